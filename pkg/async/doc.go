// Package async provides safe concurrent execution primitives for background tasks.
//
// SafeGo runs fire-and-forget work with panic recovery, a timeout and
// structured error logging:
//
//	async.SafeGo(ctx, logger, 30*time.Second, "export archive", func(ctx context.Context) error {
//		return archive.Put(ctx, key, body)
//	})
//
// Batch fans a slice out over a bounded number of goroutines and reports one
// error per item:
//
//	errs := async.Batch(ctx, analytics.Windows(), 2, time.Minute, func(ctx context.Context, w analytics.Window) error {
//		_, err := service.Refresh(ctx, w)
//		return err
//	})
package async
