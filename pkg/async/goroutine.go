package async

import (
	"context"
	"sync"
	"time"

	"github.com/nurturehq/nurture/pkg/observability"
)

// Task is a unit of background work
type Task func(context.Context) error

// SafeGo runs fn in its own goroutine with a timeout derived from parent.
// Errors and panics are logged, never propagated. The returned channel is
// closed when fn has returned.
//
//	async.SafeGo(ctx, logger, 30*time.Second, "export archive", func(ctx context.Context) error {
//	    return archive.Put(ctx, key, body)
//	})
func SafeGo(parent context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn Task) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer observability.RecoverPanic(logger, taskName)

		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			logger.WithField("task", taskName).WithError(err).Warn("Background task failed")
		}
	}()
	return done
}

// Detach returns a context that keeps ctx's values but is never canceled with
// it, for work that must outlive the request that started it
func Detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// Batch calls fn for every item with at most workers calls in flight, each
// bounded by timeout. It returns one error slot per item, in item order; a
// panic in fn is reported as that item's error. Items not yet started when
// ctx is canceled get ctx.Err().
func Batch[T any](ctx context.Context, items []T, workers int, timeout time.Duration, fn func(context.Context, T) error) []error {
	if workers <= 0 {
		workers = 1
	}

	errs := make([]error, len(items))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		select {
		case <-ctx.Done():
			errs[i] = ctx.Err()
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if perr := observability.MustRecover(recover()); perr != nil {
					errs[i] = perr
				}
			}()

			taskCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			errs[i] = fn(taskCtx, item)
		}(i, item)
	}

	wg.Wait()
	return errs
}
