// Package analytics computes the dashboard snapshot for the Nurture platform.
//
// # Overview
//
// A snapshot is derived from seven raw collections loaded from the data store:
// accounts, the script catalog, the video catalog, script-use events,
// video-watch events, community posts and habit-tracker days. Collections are
// fetched concurrently and the computation only begins once every one of them
// has arrived. A failure in any fetch abandons the cycle.
//
// # Windows
//
// Most figures are scoped to a window selector: 7d, 30d, 90d or all. The
// all-time cutoff is the zero time so every record, including those with a
// missing timestamp, passes the filter. Active users, retention and "today"
// use their own fixed lookbacks regardless of the selected window.
//
// # Series
//
// Weekly signups always contain 8 buckets and daily engagement always
// contains 30, zero-filled and oldest first. All buckets are half-open
// [start, end) intervals built by the calendar helpers in calendar.go.
//
// # Usage Example
//
// Compute a snapshot directly:
//
//	raw, err := analytics.Fetch(ctx, source, 30*time.Second, nil)
//	if err != nil {
//		return err
//	}
//	snap, err := analytics.ComputeSnapshot(raw, analytics.Window30d, time.Now())
//
// Or let the Service manage caching and request ordering:
//
//	svc := analytics.NewService(source, analytics.DefaultServiceConfig(),
//		analytics.WithStore(redisStore),
//		analytics.WithRecorder(metrics),
//	)
//	snap, err := svc.Get(ctx, analytics.Window7d, false)
//
// # Request Ordering
//
// Every Refresh takes a sequence number before fetching. When two refreshes
// for the same window overlap, the one that started last wins; an older cycle
// that finishes afterwards is discarded with ErrStaleSnapshot.
//
// # Export
//
// WriteCSV renders a snapshot as a Metric,Value table followed by the top
// scripts ranking. ExportFilename names the download
// analytics-<window>-<YYYY-MM-DD>.csv.
package analytics
