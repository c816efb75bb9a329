package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/pathgate/pathgate/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	requestsTotal      *prometheus.CounterVec
	redirectsTotal     *prometheus.CounterVec
	ratelimitHitsTotal *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "pathgate_requests_total", Help: "Total requests by outcome"},
			[]string{"action", "code"},
		),
		redirectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "pathgate_redirects_total", Help: "Total redirects issued per rule"},
			[]string{"match", "target"},
		),
		ratelimitHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "pathgate_ratelimit_hits_total", Help: "Total rate limited requests"},
			[]string{"key"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pathgate_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action"},
		),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.requestsTotal,
		m.redirectsTotal,
		m.ratelimitHitsTotal,
		m.requestDuration,
	)

	return m
}

func (m *Metrics) Handler(reg *prometheus.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Observe records one request. ratelimitKey is the configured key mode and
// only used for rate limited requests; client addresses never become labels.
func (m *Metrics) Observe(decision logging.Decision, ratelimitKey string) {
	if m == nil {
		return
	}

	m.requestsTotal.WithLabelValues(decision.Action, strconv.Itoa(decision.StatusCode)).Inc()
	m.requestDuration.WithLabelValues(decision.Action).Observe((time.Duration(decision.DurationMS) * time.Millisecond).Seconds())

	switch decision.Action {
	case logging.ActionRedirect:
		m.redirectsTotal.WithLabelValues(decision.Match, decision.Target).Inc()
	case logging.ActionLimited:
		m.ratelimitHitsTotal.WithLabelValues(ratelimitKey).Inc()
	}
}
