package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pathgate/pathgate/internal/config"
	"github.com/pathgate/pathgate/internal/logging"
	"github.com/pathgate/pathgate/internal/observability"
	"github.com/pathgate/pathgate/internal/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("upstream:" + r.URL.RequestURI()))
	}))
	t.Cleanup(backend.Close)
	return backend
}

func sampleConfig(upstreamURL string) *config.Config {
	cfg := config.Default()
	cfg.Upstream.URL = upstreamURL
	cfg.Upstream.Timeout = 2 * time.Second
	return cfg
}

func decisions(t *testing.T, buf *bytes.Buffer) []logging.Decision {
	t.Helper()
	var out []logging.Decision
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var d logging.Decision
		require.NoError(t, json.Unmarshal([]byte(line), &d))
		out = append(out, d)
	}
	return out
}

func TestGatewayRedirects(t *testing.T) {
	backend := newBackend(t)
	gw, err := New(sampleConfig(backend.URL))
	require.NoError(t, err)

	var buf bytes.Buffer
	gw.SetDecisionLogger(logging.NewDecisionLogger(&buf))

	cases := map[string]string{
		"/builder/home":         "/dashboard/builder",
		"/builder/home?tab=1":   "/dashboard/builder?tab=1",
		"/founder/home":         "/dashboard/founder",
		"/login":                "/auth",
		"/login?next=/settings": "/auth?next=/settings",
	}
	for in, want := range cases {
		rec := httptest.NewRecorder()
		gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, in, nil))

		assert.Equal(t, http.StatusTemporaryRedirect, rec.Code, in)
		assert.Equal(t, want, rec.Header().Get("Location"), in)
	}

	logged := decisions(t, &buf)
	require.Len(t, logged, len(cases))
	for _, d := range logged {
		assert.Equal(t, logging.ActionRedirect, d.Action)
		assert.Equal(t, http.StatusTemporaryRedirect, d.StatusCode)
		assert.NotEmpty(t, d.RequestID)
		assert.GreaterOrEqual(t, d.Rule, 0)
	}
}

func TestGatewayPassesThrough(t *testing.T) {
	backend := newBackend(t)
	gw, err := New(sampleConfig(backend.URL))
	require.NoError(t, err)

	var buf bytes.Buffer
	gw.SetDecisionLogger(logging.NewDecisionLogger(&buf))

	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example.com/dashboard/builder?x=1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, "upstream:/dashboard/builder?x=1", string(body))
	assert.Empty(t, rec.Header().Get("Location"))

	logged := decisions(t, &buf)
	require.Len(t, logged, 1)
	assert.Equal(t, logging.ActionPass, logged[0].Action)
	assert.Equal(t, -1, logged[0].Rule)
	assert.Equal(t, http.StatusOK, logged[0].StatusCode)
}

func TestGatewayCustomRulesAndStatus(t *testing.T) {
	backend := newBackend(t)
	cfg := sampleConfig(backend.URL)
	cfg.Redirect.StatusCode = http.StatusMovedPermanently
	cfg.Redirect.Rules = cfg.Redirect.Rules[:1]
	cfg.Redirect.Matcher = []string{"/builder/home"}

	gw, err := New(cfg)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/builder/home", nil))
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)

	rec = httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "upstream:/login", rec.Body.String())
}

func TestGatewayRejectsLargeHeaders(t *testing.T) {
	backend := newBackend(t)
	cfg := sampleConfig(backend.URL)
	cfg.Limits.MaxHeaderBytes = 8

	gw, err := New(cfg)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.Header.Set("X-Test", "0123456789")
	rec := httptest.NewRecorder()

	gw.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestHeaderFieldsTooLarge, rec.Code)
}

func TestGatewayRateLimit(t *testing.T) {
	backend := newBackend(t)
	cfg := sampleConfig(backend.URL)
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, Key: ratelimit.KeyIP, RPS: 0.001, Burst: 1, StatusCode: http.StatusTooManyRequests}

	gw, err := New(cfg)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	gw.SetMetrics(observability.NewMetrics(reg))

	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)

	rec = httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestGatewayUpstreamDown(t *testing.T) {
	backend := newBackend(t)
	url := backend.URL
	backend.Close()

	gw, err := New(sampleConfig(url))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard/founder", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	// Redirects never touch the upstream.
	rec = httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/founder/home", nil))
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
}

func TestGatewayUpstreamTimeout(t *testing.T) {
	release := make(chan struct{})
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(backend.Close)
	t.Cleanup(func() { close(release) })

	cfg := sampleConfig(backend.URL)
	cfg.Upstream.Timeout = 100 * time.Millisecond

	gw, err := New(cfg)
	require.NoError(t, err)

	var buf bytes.Buffer
	gw.SetDecisionLogger(logging.NewDecisionLogger(&buf))

	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard/builder", nil))
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	logged := decisions(t, &buf)
	require.Len(t, logged, 1)
	assert.Equal(t, logging.ActionPass, logged[0].Action)
	assert.Equal(t, http.StatusGatewayTimeout, logged[0].StatusCode)
	assert.Equal(t, -1, logged[0].Rule)
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	_, err = New(sampleConfig("not-a-url"))
	require.Error(t, err)

	cfg := sampleConfig("http://127.0.0.1:1")
	cfg.Redirect.StatusCode = http.StatusOK
	_, err = New(cfg)
	require.Error(t, err)
}

func TestExceedsHeaderLimit(t *testing.T) {
	headers := http.Header{"X-A": []string{"1234"}}
	assert.False(t, exceedsHeaderLimit(headers, 0))
	assert.False(t, exceedsHeaderLimit(headers, 9))
	assert.True(t, exceedsHeaderLimit(headers, 8))
}
