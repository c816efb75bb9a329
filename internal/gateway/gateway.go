package gateway

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/pathgate/pathgate/internal/config"
	"github.com/pathgate/pathgate/internal/logging"
	"github.com/pathgate/pathgate/internal/observability"
	"github.com/pathgate/pathgate/internal/ratelimit"
	"github.com/pathgate/pathgate/internal/redirect"
)

const limiterIdle = 10 * time.Minute

// Gateway answers allowlisted legacy paths with redirects and proxies every
// other request to the upstream application.
type Gateway struct {
	redirects *redirect.Middleware
	upstream  *url.URL
	handler   http.Handler

	rateLimit      config.RateLimitConfig
	maxHeaderBytes int64
	limiter        *ratelimit.Limiter

	decisionLog *logging.DecisionLogger
	metrics     *observability.Metrics
	logger      *slog.Logger

	requestCount uint64
}

type recordKey struct{}

func New(cfg *config.Config) (*Gateway, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	upstream, err := url.Parse(cfg.Upstream.URL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream: %w", err)
	}
	if upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("upstream %q must include scheme and host", cfg.Upstream.URL)
	}

	g := &Gateway{
		upstream:       upstream,
		rateLimit:      cfg.RateLimit,
		maxHeaderBytes: cfg.Limits.MaxHeaderBytes,
		limiter:        ratelimit.NewLimiter(),
		logger:         slog.Default(),
	}

	redirects, err := cfg.Middleware(redirect.WithObserver(g.observeRedirect))
	if err != nil {
		return nil, fmt.Errorf("build redirects: %w", err)
	}
	g.redirects = redirects

	proxy := httputil.NewSingleHostReverseProxy(upstream)
	proxy.Transport = newTransport(cfg.Upstream.Timeout)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		g.logger.Warn("upstream error", slog.String("path", r.URL.Path), slog.Any("error", err))
		var netErr net.Error
		switch {
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled),
			errors.As(err, &netErr) && netErr.Timeout():
			http.Error(w, "upstream timeout", http.StatusGatewayTimeout)
		default:
			http.Error(w, "upstream error", http.StatusBadGateway)
		}
	}

	timeout := cfg.Upstream.Timeout
	g.handler = redirects.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		proxy.ServeHTTP(w, r.WithContext(ctx))
		if rec, ok := r.Context().Value(recordKey{}).(*logging.Decision); ok {
			rec.UpstreamMS = time.Since(start).Milliseconds()
		}
	}))

	return g, nil
}

func (g *Gateway) SetDecisionLogger(logger *logging.DecisionLogger) {
	g.decisionLog = logger
}

func (g *Gateway) SetMetrics(metrics *observability.Metrics) {
	g.metrics = metrics
}

func (g *Gateway) SetLogger(logger *slog.Logger) {
	if logger != nil {
		g.logger = logger
	}
}

func (g *Gateway) Redirects() *redirect.Middleware {
	return g.redirects
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	decision := logging.Decision{
		Timestamp: start.UTC(),
		RequestID: g.newRequestID(),
		ClientIP:  clientIP(r),
		Host:      r.Host,
		Method:    r.Method,
		Path:      r.URL.Path,
		Query:     r.URL.RawQuery,
		Action:    logging.ActionPass,
		Rule:      -1,
	}

	if exceedsHeaderLimit(r.Header, g.maxHeaderBytes) {
		decision.Action = logging.ActionReject
		decision.StatusCode = http.StatusRequestHeaderFieldsTooLarge
		http.Error(w, "request headers too large", decision.StatusCode)
		g.writeDecision(decision, start)
		return
	}

	if g.rateLimit.Enabled {
		key := ratelimit.Key(g.rateLimit.Key, decision.ClientIP, r.URL.Path)
		if !g.limiter.Allow(key, g.rateLimit.RPS, g.rateLimit.Burst, start) {
			decision.Action = logging.ActionLimited
			decision.StatusCode = g.rateLimit.StatusCode
			if decision.StatusCode == 0 {
				decision.StatusCode = http.StatusTooManyRequests
			}
			http.Error(w, "rate limit exceeded", decision.StatusCode)
			g.writeDecision(decision, start)
			return
		}
	}

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	ctx := context.WithValue(r.Context(), recordKey{}, &decision)
	g.handler.ServeHTTP(rec, r.WithContext(ctx))

	decision.StatusCode = rec.status
	g.writeDecision(decision, start)
}

// SweepLimiter drops idle rate limit buckets every interval until ctx ends.
func (g *Gateway) SweepLimiter(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := g.limiter.Sweep(limiterIdle, now); n > 0 {
				g.logger.Debug("swept rate limit buckets",
					slog.Int("removed", n),
					slog.Int("remaining", g.limiter.Len()),
				)
			}
		}
	}
}

func (g *Gateway) observeRedirect(r *http.Request, d redirect.Decision) {
	rec, ok := r.Context().Value(recordKey{}).(*logging.Decision)
	if !ok {
		return
	}
	rec.Action = string(d.Action)
	rec.Rule = d.Rule
	rec.Match = d.Match
	rec.Target = d.Target
	if d.Location != nil {
		rec.Location = d.Location.String()
	}
}

func (g *Gateway) writeDecision(decision logging.Decision, start time.Time) {
	decision.DurationMS = time.Since(start).Milliseconds()
	if g.decisionLog != nil {
		if err := g.decisionLog.Write(decision); err != nil {
			g.logger.Error("write decision log", slog.Any("error", err))
		}
	}
	if g.metrics != nil {
		g.metrics.Observe(decision, string(g.rateLimit.Key))
	}
	g.logger.Debug("request",
		slog.String("request_id", decision.RequestID),
		slog.String("action", decision.Action),
		slog.String("path", decision.Path),
		slog.String("location", decision.Location),
		slog.Int("status", decision.StatusCode),
	)
}

func (g *Gateway) newRequestID() string {
	var buf [12]byte
	if _, err := rand.Read(buf[:]); err == nil {
		return hex.EncodeToString(buf[:])
	}
	value := atomic.AddUint64(&g.requestCount, 1)
	return fmt.Sprintf("req-%d", value)
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func exceedsHeaderLimit(headers http.Header, maxBytes int64) bool {
	if maxBytes <= 0 {
		return false
	}

	var total int64
	for name, values := range headers {
		for _, value := range values {
			total += int64(len(name) + len(value) + 2)
			if total > maxBytes {
				return true
			}
		}
	}

	return false
}

func newTransport(timeout time.Duration) *http.Transport {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
}
