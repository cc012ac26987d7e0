package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nurturehq/nurture/pkg/analytics"
	"github.com/nurturehq/nurture/pkg/app"
	"github.com/nurturehq/nurture/pkg/config"
	"github.com/nurturehq/nurture/pkg/observability"
)

var (
	schedule = flag.String("schedule", "", "Cron schedule for the nightly refresh (default: NURTURE_SCHEDULE or the config file)")
	runOnce  = flag.Bool("run-once", false, "Run aggregation once and exit")
	windows  = flag.String("windows", "", "Comma-separated windows to refresh (default: all)")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *schedule != "" {
		if err := config.ValidateSchedule(*schedule); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid schedule: %v\n", err)
			os.Exit(1)
		}
		cfg.Analytics.Schedule = *schedule
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).WithField("service", "nurture-aggregator")

	selected, err := parseWindows(*windows)
	if err != nil {
		logger.WithError(err).Error("Invalid windows")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize")
		os.Exit(1)
	}
	if a.Archive == nil {
		logger.Warn("No archive configured, snapshots are refreshed but exports are not stored")
	}
	aggregator := app.NewAggregator(a.Service, a.Archive, cfg.Storage.ArchivePrefix, logger)

	// Run once mode (for testing or manual backfills)
	if *runOnce {
		err := runAggregation(ctx, aggregator, logger, selected)
		if closeErr := a.Close(ctx); closeErr != nil {
			logger.WithError(closeErr).Warn("Failed to close backends")
		}
		if err != nil {
			os.Exit(1)
		}
		return
	}

	a.Start(ctx)

	c := cron.New(cron.WithLocation(a.Service.Location()), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err = c.AddFunc(cfg.Analytics.Schedule, func() {
		defer observability.RecoverPanic(logger, "scheduled aggregation")
		runAggregation(ctx, aggregator, logger, selected)
	})
	if err != nil {
		logger.WithError(err).Error("Failed to schedule aggregation")
		os.Exit(1)
	}

	c.Start()
	logger.WithField("schedule", cfg.Analytics.Schedule).Info("Nurture aggregator started")

	shutdown := observability.NewShutdownManager(logger, nil, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc("scheduler", func(ctx context.Context) error {
		stopped := c.Stop()
		cancel()
		select {
		case <-stopped.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	a.RegisterShutdown(shutdown)

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
}

func runAggregation(ctx context.Context, aggregator *app.Aggregator, logger *observability.Logger, selected []analytics.Window) error {
	start := time.Now()
	logger.Info("Starting aggregation")

	results, err := aggregator.Run(ctx, selected...)
	for _, r := range results {
		if r.Err == nil && r.Snapshot != nil {
			logger.WithFields(map[string]interface{}{
				"window":      r.Window,
				"total_users": r.Snapshot.TotalUsers,
				"key":         r.Key,
			}).Info("Window refreshed")
		}
	}
	if err != nil {
		logger.WithError(err).Error("Aggregation failed")
		return err
	}

	logger.WithField("duration", time.Since(start).String()).Info("Aggregation completed successfully")
	return nil
}

func parseWindows(s string) ([]analytics.Window, error) {
	if s == "" {
		return nil, nil
	}
	var out []analytics.Window
	for _, part := range strings.Split(s, ",") {
		w, err := analytics.ParseWindow(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}
