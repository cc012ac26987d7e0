// Package api serves analytics snapshots over HTTP.
//
// Routes, all under /api/v1/analytics:
//
//	GET  /windows                          supported window selectors
//	GET  /snapshot?window=30d&refresh=true current snapshot, recomputed on refresh
//	POST /refresh?window=30d               forces a fetch and compute cycle
//	GET  /export?window=30d                CSV download, archived in the background
//	GET  /latest                           snapshot of the most recent request
//
// Errors map to status codes: an unknown window is 400, a missing snapshot is
// 404, a superseded refresh is 409 and a failed collection fetch is 502.
//
//	server := api.NewServer(service, logger,
//	    api.WithArchive(archive, "exports"),
//	    api.WithMetrics(metrics),
//	    api.WithRateLimiter(limiter),
//	)
//	http.ListenAndServe(":8080", server)
package api
