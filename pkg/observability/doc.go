// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health checks and graceful shutdown.
//
// # Structured Logging
//
// Loggers wrap logrus with JSON output:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("window", "30d").Info("Snapshot published")
//
// Request-scoped loggers travel in the context:
//
//	ctx = observability.WithLogger(ctx, logger.WithField("request_id", id))
//	observability.FromContext(ctx).Warn("Export write failed")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	router.Use(mux.MiddlewareFunc(observability.HTTPMetricsMiddleware(metrics)))
//	healthRouter.Handle("/metrics", observability.MetricsHandler(registry))
//
// Metrics and OTelMetrics both satisfy Recorder; MultiRecorder fans out to
// several sinks so the analytics service reports to both.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient).WithArchive(archive)
//	observability.RegisterHealthRoutes(router, checker)
//
// PostgreSQL is required for readiness. Redis and the archive only degrade it.
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "nurture-analytics",
//		Insecure:    true,
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Graceful Shutdown
//
//	sm := observability.NewShutdownManager(logger, httpServer, 30*time.Second)
//	sm.RegisterShutdownFunc("redis", func(ctx context.Context) error { return rdb.Close() })
//	sm.WaitForShutdown()
package observability
