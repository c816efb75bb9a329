package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pathgate/pathgate/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	metrics.Observe(logging.Decision{Action: logging.ActionRedirect, Match: "/login", Target: "/auth", StatusCode: 307, DurationMS: 1}, "ip")
	metrics.Observe(logging.Decision{Action: logging.ActionRedirect, Match: "/login", Target: "/auth", StatusCode: 307}, "ip")
	metrics.Observe(logging.Decision{Action: logging.ActionPass, Rule: -1, StatusCode: 200, DurationMS: 12}, "ip")
	metrics.Observe(logging.Decision{Action: logging.ActionLimited, Rule: -1, StatusCode: 429}, "ip_path")

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.redirectsTotal.WithLabelValues("/login", "/auth")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requestsTotal.WithLabelValues("pass", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ratelimitHitsTotal.WithLabelValues("ip_path")))

	_, err := reg.Gather()
	require.NoError(t, err)
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	metrics.Observe(logging.Decision{Action: logging.ActionPass, StatusCode: 200}, "")

	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pathgate_requests_total")
}

func TestNilMetricsObserve(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Observe(logging.Decision{Action: logging.ActionPass}, "")
	})
}
