package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pathgate/pathgate/internal/config"
	"github.com/pathgate/pathgate/internal/gateway"
	"github.com/pathgate/pathgate/internal/logging"
	"github.com/pathgate/pathgate/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const limiterSweepInterval = time.Minute

func newRunCmd() *cobra.Command {
	var configPath string
	var statusOverride int
	var upstreamOverride string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pathgate gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return errors.New("config path is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			applyOverrides(cfg, statusOverride, upstreamOverride)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runGateway(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().IntVar(&statusOverride, "status", 0, "Override the redirect status code")
	cmd.Flags().StringVar(&upstreamOverride, "upstream", "", "Override the upstream URL")

	return cmd
}

func applyOverrides(cfg *config.Config, status int, upstream string) {
	if status != 0 {
		cfg.Redirect.StatusCode = status
	}
	if upstream != "" {
		cfg.Upstream.URL = upstream
	}
}

func runGateway(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := logging.NewLogger(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	gw, err := gateway.New(cfg)
	if err != nil {
		return err
	}
	gw.SetLogger(logger)

	if cfg.Logging.DecisionLog != "" {
		decisionLog, closer, err := logging.OpenDecisionLog(cfg.ResolvePath(cfg.Logging.DecisionLog))
		if err != nil {
			return err
		}
		defer func() { _ = closer() }()
		gw.SetDecisionLogger(decisionLog)
	}

	metricsSrv := startMetricsServer(cfg, gw, logger)
	defer func() {
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(context.Background())
		}
	}()

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RateLimit.Enabled {
		go gw.SweepLimiter(signalCtx, limiterSweepInterval)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           gw,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if cfg.Server.TLS.Enabled {
			serverErr <- srv.ListenAndServeTLS(cfg.ResolvePath(cfg.Server.TLS.CertFile), cfg.ResolvePath(cfg.Server.TLS.KeyFile))
			return
		}
		serverErr <- srv.ListenAndServe()
	}()

	rules := gw.Redirects().Table()
	logger.Info("pathgate listening",
		slog.String("addr", cfg.Server.Listen),
		slog.String("upstream", cfg.Upstream.URL),
		slog.Int("rules", rules.Len()),
		slog.Int("status", gw.Redirects().Status()),
	)

	select {
	case <-signalCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("pathgate stopped")
	return nil
}

func startMetricsServer(cfg *config.Config, gw *gateway.Gateway, logger *slog.Logger) *http.Server {
	if !cfg.Metrics.Enabled {
		return nil
	}

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	gw.SetMetrics(metrics)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })

	srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("starting metrics server", slog.String("addr", cfg.Metrics.Listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	return srv
}
