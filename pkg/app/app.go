package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nurturehq/nurture/pkg/analytics"
	"github.com/nurturehq/nurture/pkg/config"
	"github.com/nurturehq/nurture/pkg/observability"
	"github.com/nurturehq/nurture/pkg/storage"
	"github.com/nurturehq/nurture/pkg/storage/postgres"
)

// App holds the dependencies shared by the server and the aggregator
type App struct {
	Config   *config.Config
	Logger   *observability.Logger
	DB       *postgres.ConnectionManager
	Redis    *redis.Client
	Store    *postgres.SnapshotStore
	Archive  storage.Archive
	Registry *prometheus.Registry
	Metrics  *observability.Metrics
	Service  *analytics.Service

	palette atomic.Pointer[analytics.Palette]
	otel    *observability.OTelProviders
}

// New connects to every configured backend and builds the analytics service.
// Redis and the archive are optional; PostgreSQL is not.
func New(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	p := cfg.Analytics.Palette
	a.palette.Store(&p)

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	a.otel = providers

	a.DB, err = postgres.NewConnectionManager(cfg.Storage, logger)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if cfg.Storage.RedisURL != "" {
		a.Redis, err = postgres.NewRedisClient(cfg.Storage)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		a.Store = postgres.NewSnapshotStore(a.Redis, cfg.Storage)
	} else {
		logger.Warn("Redis not configured, snapshots are kept in process only")
	}

	a.Archive, err = newArchive(ctx, cfg.Storage)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	if a.Archive == nil {
		logger.Info("Export archive disabled")
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = observability.NewMetrics(a.Registry)

	recorder := observability.MultiRecorder{a.Metrics}
	if otelMetrics, err := observability.NewOTelMetrics(); err != nil {
		logger.WithError(err).Warn("OpenTelemetry instruments unavailable")
	} else {
		recorder = append(recorder, otelMetrics)
	}

	serviceConfig, err := cfg.Analytics.ServiceConfig()
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	opts := []analytics.ServiceOption{
		analytics.WithLogger(logger),
		analytics.WithRecorder(recorder),
		analytics.WithPaletteFunc(a.Palette),
	}
	if a.Store != nil {
		opts = append(opts, analytics.WithStore(a.Store))
	}
	a.Service = analytics.NewService(postgres.NewSource(a.DB), serviceConfig, opts...)

	return a, nil
}

func newArchive(ctx context.Context, cfg storage.Config) (storage.Archive, error) {
	switch {
	case cfg.S3Bucket != "":
		archive, err := postgres.NewS3Archive(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 archive: %w", err)
		}
		return archive, nil
	case cfg.ArchiveDir != "":
		archive, err := storage.NewFileSystemArchive(cfg.ArchiveDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize archive directory: %w", err)
		}
		return archive, nil
	}
	return nil, nil
}

// Palette returns the palette currently in effect
func (a *App) Palette() analytics.Palette {
	return *a.palette.Load()
}

// SetPalette replaces the palette used by subsequent computations
func (a *App) SetPalette(p analytics.Palette) {
	a.palette.Store(&p)
}

// Start launches the background routines: replica health checks, pool
// statistics and, when a config file is set, palette reloads. They stop
// when ctx is canceled.
func (a *App) Start(ctx context.Context) {
	a.DB.StartHealthCheckRoutine(ctx, 30*time.Second)

	go func() {
		defer observability.RecoverPanic(a.Logger, "db stats")

		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			a.Metrics.UpdateDBStats(a.DB.Stats().Primary)
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	if path := a.Config.Analytics.ConfigFile; path != "" {
		if err := config.WatchPalette(ctx, path, a.Logger, a.SetPalette); err != nil {
			a.Logger.WithError(err).Warn("Palette reload disabled")
		}
	}
}

// Warm computes the 30 day snapshot so the first dashboard load does not pay
// for a full fetch. A fresh snapshot already in the shared store is reused.
func (a *App) Warm(ctx context.Context) error {
	_, err := a.Service.Get(ctx, analytics.Window30d, false)
	return err
}

// HealthChecker reports on every backend the app is connected to
func (a *App) HealthChecker(version string) *observability.HealthChecker {
	checker := observability.NewHealthChecker(a.DB.Primary(), a.Redis).WithVersion(version)
	if a.Archive != nil {
		checker.WithArchive(a.Archive)
	}
	return checker
}

// RegisterShutdown adds Close to sm
func (a *App) RegisterShutdown(sm *observability.ShutdownManager) {
	sm.RegisterShutdownFunc("backends", a.Close)
}

// Close releases every backend connection and flushes telemetry
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if err := observability.ShutdownOTel(ctx, a.otel, a.Logger); err != nil {
		errs = append(errs, fmt.Errorf("otel: %w", err))
	}
	return errors.Join(errs...)
}
