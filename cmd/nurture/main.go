package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/nurturehq/nurture/pkg/api"
	"github.com/nurturehq/nurture/pkg/app"
	"github.com/nurturehq/nurture/pkg/config"
	"github.com/nurturehq/nurture/pkg/middleware"
	"github.com/nurturehq/nurture/pkg/observability"
)

var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).WithField("service", "nurture")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize")
		os.Exit(1)
	}
	a.Start(ctx)

	limitConfig := middleware.RefreshRateLimitConfig(cfg.Server.RefreshPerMinute)
	var limiter middleware.Limiter
	if a.Redis != nil {
		limiter = middleware.NewDistributedRateLimiter(a.Redis, limitConfig, cfg.Storage.RedisKeyPrefix+"ratelimit:")
	} else {
		local := middleware.NewRateLimiter(limitConfig)
		local.StartCleanup(ctx)
		limiter = local
	}

	proxies, err := cfg.Server.Proxies()
	if err != nil {
		logger.WithError(err).Error("Invalid trusted proxies")
		os.Exit(1)
	}

	opts := []api.ServerOption{
		api.WithRateLimiter(limiter),
		api.WithTrustedProxies(proxies),
		api.WithCORS(cfg.Server.CORSOrigins...),
	}
	if cfg.Observability.MetricsEnabled {
		opts = append(opts, api.WithMetrics(a.Metrics))
	}
	if a.Archive != nil {
		opts = append(opts, api.WithArchive(a.Archive, cfg.Storage.ArchivePrefix))
	}
	server := api.NewServer(a.Service, logger, opts...)

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthRouter := mux.NewRouter()
	observability.RegisterHealthRoutes(healthRouter, a.HealthChecker(version))
	if cfg.Observability.MetricsEnabled {
		healthRouter.Handle("/metrics", observability.MetricsHandler(a.Registry)).Methods(http.MethodGet)
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthRouter,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc("health server", healthServer.Shutdown)
	shutdown.RegisterShutdownFunc("background", func(context.Context) error {
		cancel()
		return nil
	})
	a.RegisterShutdown(shutdown)

	for _, s := range []*http.Server{httpServer, healthServer} {
		go func(s *http.Server) {
			defer observability.RecoverPanic(logger, "http listener")
			logger.WithField("addr", s.Addr).Info("Listening")
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).Error("HTTP server failed")
				os.Exit(1)
			}
		}(s)
	}

	go func() {
		defer observability.RecoverPanic(logger, "cache warmup")
		if err := a.Warm(ctx); err != nil {
			logger.WithError(err).Warn("Initial snapshot failed")
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
}
