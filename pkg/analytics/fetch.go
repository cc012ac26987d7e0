package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("github.com/nurturehq/nurture/pkg/analytics")

// ErrFetchFailed is wrapped by every FetchError
var ErrFetchFailed = errors.New("raw collection fetch failed")

// Source supplies the unfiltered raw collections. Implementations must be safe
// for concurrent use; Fetch calls every method in parallel.
type Source interface {
	Accounts(ctx context.Context) ([]Account, error)
	Scripts(ctx context.Context) ([]ContentItem, error)
	Videos(ctx context.Context) ([]MediaItem, error)
	ScriptUses(ctx context.Context) ([]UsageEvent, error)
	VideoWatches(ctx context.Context) ([]UsageEvent, error)
	Posts(ctx context.Context) ([]UsageEvent, error)
	TrackerDays(ctx context.Context) ([]TrackerDay, error)
}

// FetchError reports which collection failed to load
type FetchError struct {
	Collection Collection
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Collection, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrFetchFailed, e.Err}
}

// FetchObserver is notified once per collection with its load time and result
type FetchObserver func(c Collection, elapsed time.Duration, err error)

// Fetch loads all seven collections concurrently and waits for every one of
// them. A single failure cancels the rest and no collections are returned.
// A positive timeout bounds the whole fan-out.
func Fetch(ctx context.Context, src Source, timeout time.Duration, observe FetchObserver) (RawCollections, error) {
	ctx, span := tracer.Start(ctx, "analytics.Fetch")
	defer span.End()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	var raw RawCollections

	run := func(c Collection, load func(context.Context) error) {
		g.Go(func() error {
			ctx, span := tracer.Start(gctx, "analytics.Fetch."+string(c),
				trace.WithAttributes(attribute.String("analytics.collection", string(c))))
			defer span.End()

			start := time.Now()
			err := load(ctx)
			if observe != nil {
				observe(c, time.Since(start), err)
			}
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "fetch failed")
				return &FetchError{Collection: c, Err: err}
			}
			return nil
		})
	}

	// Each loader writes a distinct field of raw.
	run(CollectionAccounts, func(ctx context.Context) (err error) {
		raw.Accounts, err = src.Accounts(ctx)
		return err
	})
	run(CollectionScripts, func(ctx context.Context) (err error) {
		raw.Scripts, err = src.Scripts(ctx)
		return err
	})
	run(CollectionVideos, func(ctx context.Context) (err error) {
		raw.Videos, err = src.Videos(ctx)
		return err
	})
	run(CollectionScriptUses, func(ctx context.Context) (err error) {
		raw.ScriptUses, err = src.ScriptUses(ctx)
		return err
	})
	run(CollectionVideoWatches, func(ctx context.Context) (err error) {
		raw.VideoWatches, err = src.VideoWatches(ctx)
		return err
	})
	run(CollectionPosts, func(ctx context.Context) (err error) {
		raw.Posts, err = src.Posts(ctx)
		return err
	})
	run(CollectionTrackerDays, func(ctx context.Context) (err error) {
		raw.TrackerDays, err = src.TrackerDays(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return RawCollections{}, err
	}
	span.SetStatus(codes.Ok, "collections loaded")
	return raw, nil
}
