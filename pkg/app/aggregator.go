package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nurturehq/nurture/pkg/analytics"
	"github.com/nurturehq/nurture/pkg/async"
	"github.com/nurturehq/nurture/pkg/observability"
	"github.com/nurturehq/nurture/pkg/storage"
)

// Refresher is the part of the analytics service the aggregator drives
type Refresher interface {
	Refresh(ctx context.Context, window analytics.Window) (*analytics.Snapshot, error)
	Location() *time.Location
}

// Aggregator recomputes every window on a schedule and archives the exports
type Aggregator struct {
	service Refresher
	archive storage.Archive
	prefix  string
	logger  *observability.Logger
	workers int
	timeout time.Duration
}

// NewAggregator creates an aggregator. archive may be nil.
func NewAggregator(service Refresher, archive storage.Archive, prefix string, logger *observability.Logger) *Aggregator {
	return &Aggregator{
		service: service,
		archive: archive,
		prefix:  prefix,
		logger:  logger,
		workers: 2,
		timeout: 2 * time.Minute,
	}
}

// WindowResult is the outcome of one window's run
type WindowResult struct {
	Window   analytics.Window
	Snapshot *analytics.Snapshot
	Key      string
	Err      error
}

// Run refreshes windows and uploads one CSV per successful refresh. A window
// superseded by a newer refresh is not an error. The returned error joins
// every failed window.
func (a *Aggregator) Run(ctx context.Context, windows ...analytics.Window) ([]WindowResult, error) {
	if len(windows) == 0 {
		windows = analytics.Windows()
	}

	results := make([]WindowResult, len(windows))
	slots := make([]int, len(windows))
	for i := range slots {
		slots[i] = i
	}
	errs := async.Batch(ctx, slots, a.workers, a.timeout, func(ctx context.Context, i int) error {
		w := windows[i]

		snap, err := a.service.Refresh(ctx, w)
		if errors.Is(err, analytics.ErrStaleSnapshot) {
			a.logger.WithField("window", w).Debug("Refresh superseded")
			return nil
		}
		if err != nil {
			return err
		}
		results[i].Snapshot = snap

		if a.archive == nil {
			return nil
		}
		key, err := a.upload(ctx, snap)
		results[i].Key = key
		return err
	})

	var failed []error
	for i, err := range errs {
		results[i].Window = windows[i]
		results[i].Err = err
		if err != nil {
			a.logger.WithField("window", windows[i]).WithError(err).Error("Window aggregation failed")
			failed = append(failed, fmt.Errorf("%s: %w", windows[i], err))
		}
	}
	return results, errors.Join(failed...)
}

func (a *Aggregator) upload(ctx context.Context, snap *analytics.Snapshot) (string, error) {
	var buf bytes.Buffer
	if err := analytics.WriteCSV(&buf, snap); err != nil {
		return "", fmt.Errorf("failed to render export: %w", err)
	}

	local := snap.GeneratedAt.In(a.service.Location())
	filename := analytics.ExportFilename(snap.Window, local)
	key := storage.ArchiveKey(a.prefix, filename, local)
	if err := a.archive.Put(ctx, key, buf.Bytes(), analytics.ExportContentType); err != nil {
		return key, fmt.Errorf("failed to archive %s: %w", key, err)
	}
	a.logger.WithFields(map[string]interface{}{
		"window": snap.Window,
		"key":    key,
	}).Info("Export archived")
	return key, nil
}
