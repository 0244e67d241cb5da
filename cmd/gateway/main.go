// Package main is the entry point for the library gateway. It loads
// configuration, wires the backend clients behind circuit breakers, starts
// the retry queue worker and the HTTP server, and handles graceful shutdown
// on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dskow/library-gateway/internal/admin"
	"github.com/dskow/library-gateway/internal/circuitbreaker"
	"github.com/dskow/library-gateway/internal/clients"
	"github.com/dskow/library-gateway/internal/config"
	"github.com/dskow/library-gateway/internal/gateway"
	"github.com/dskow/library-gateway/internal/health"
	"github.com/dskow/library-gateway/internal/metrics"
	"github.com/dskow/library-gateway/internal/middleware"
	"github.com/dskow/library-gateway/internal/ratelimit"
	"github.com/dskow/library-gateway/internal/retryqueue"
)

func main() {
	configPath := flag.String("config", "configs/gateway.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logOut := os.Stdout
	if cfg.Logging.Output == "stderr" {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: middleware.ParseLogLevel(cfg.Logging.Level),
	}))

	for _, w := range cfg.Warnings {
		logger.Warn("config warning", "message", w)
	}

	logger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"catalog", cfg.Dependencies.Catalog.BaseURL,
		"rating", cfg.Dependencies.Rating.BaseURL,
		"rental", cfg.Dependencies.Rental.BaseURL,
		"failure_threshold", cfg.CircuitBreaker.FailureThreshold,
		"retry_timeout", cfg.CircuitBreaker.RetryTimeout,
		"metrics_enabled", cfg.Metrics.IsEnabled(),
		"admin_enabled", cfg.Admin.Enabled,
	)

	// Initialize Prometheus metrics
	if cfg.Metrics.IsEnabled() {
		metrics.Init()
	}

	// One independent breaker per dependency
	breakers := gateway.Breakers{
		Catalog: circuitbreaker.New("catalog", cfg.CircuitBreaker.FailureThreshold, cfg.CircuitBreaker.RetryTimeout, logger),
		Rating:  circuitbreaker.New("rating", cfg.CircuitBreaker.FailureThreshold, cfg.CircuitBreaker.RetryTimeout, logger),
		Rental:  circuitbreaker.New("rental", cfg.CircuitBreaker.FailureThreshold, cfg.CircuitBreaker.RetryTimeout, logger),
	}

	catalog := clients.NewCatalog(cfg.Dependencies.Catalog.BaseURL, cfg.Dependencies.Catalog.Timeout)
	rating := clients.NewRating(cfg.Dependencies.Rating.BaseURL, cfg.Dependencies.Rating.Timeout)
	rental := clients.NewRental(cfg.Dependencies.Rental.BaseURL, cfg.Dependencies.Rental.Timeout)

	// Retry queue and its single drain worker
	queue := retryqueue.NewQueue()
	worker := retryqueue.NewWorker(queue, rating, cfg.Retry.Cooldown, cfg.Retry.PollInterval, logger)
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	go worker.Run(workerCtx)

	server := gateway.New(catalog, rating, rental, breakers, queue, logger)
	apiMux := http.NewServeMux()
	server.Register(apiMux)

	limiter := ratelimit.New(cfg.RateLimit, cfg.Server.TrustedProxies, logger)
	defer limiter.Stop()

	// Assemble middleware stack:
	// Recovery → RequestID → SecurityHeaders → Logging → Instrument →
	// BodyLimit → RateLimit → API
	var handler http.Handler = apiMux
	handler = limiter.Middleware()(handler)
	handler = middleware.BodyLimit(cfg.Server.MaxBodyBytes)(handler)
	handler = middleware.Instrument(gateway.RouteLabel)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.SecurityHeaders()(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(logger)(handler)

	// Health, metrics and admin live on a separate mux that bypasses the
	// middleware stack.
	opsMux := http.NewServeMux()
	healthHandler := health.New([]health.Dependency{
		{Name: "catalog", BaseURL: cfg.Dependencies.Catalog.BaseURL, Breaker: breakers.Catalog},
		{Name: "rating", BaseURL: cfg.Dependencies.Rating.BaseURL, Breaker: breakers.Rating},
		{Name: "rental", BaseURL: cfg.Dependencies.Rental.BaseURL, Breaker: breakers.Rental},
	}, logger)
	healthHandler.RegisterRoutes(opsMux)

	metricsPath := cfg.Metrics.Path
	if cfg.Metrics.IsEnabled() {
		opsMux.Handle(metricsPath, metrics.Handler())
		logger.Info("metrics endpoint registered", "path", metricsPath)
	}

	// Initialize config reloader
	reloader := config.NewReloader(*configPath, cfg, logger)
	reloader.Start()
	defer reloader.Stop()

	reloader.OnReload(func(newCfg *config.Config) {
		limiter.UpdateConfig(newCfg.RateLimit)
	})

	if cfg.Admin.Enabled {
		adminHandler := admin.New(reloader,
			[]*circuitbreaker.ConsecutiveBreaker{breakers.Catalog, breakers.Rating, breakers.Rental},
			queue, cfg.Admin.IPAllowlist, logger)
		adminHandler.RegisterRoutes(opsMux)
		logger.Info("admin endpoints registered", "allowlist", cfg.Admin.IPAllowlist)
	}

	combined := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/health") ||
			strings.HasPrefix(r.URL.Path, "/manage/health") ||
			strings.HasPrefix(r.URL.Path, "/ready") ||
			strings.HasPrefix(r.URL.Path, "/admin/") ||
			(cfg.Metrics.IsEnabled() && r.URL.Path == metricsPath) {
			opsMux.ServeHTTP(w, r)
			return
		}
		handler.ServeHTTP(w, r)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      combined,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("starting gateway", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutdown signal received", "signal", sig.String())

	// Graceful shutdown: drain in-flight requests first, then stop the
	// retry worker. Undrained queue tasks are lost; the rating services'
	// read path tolerates that.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	logger.Info("draining in-flight requests", "timeout", cfg.Server.ShutdownTimeout)
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	stopWorker()
	if pending := queue.Len(); pending > 0 {
		logger.Warn("shutting down with unresolved retry tasks", "pending", pending)
	}

	logger.Info("gateway stopped gracefully")
}
