// Package middleware provides request rate limiting for the analytics API.
//
// Refresh and export requests recompute a snapshot from every raw collection,
// so they are limited per client IP. Forwarding headers only count when the
// connection comes from one of the configured trusted proxies.
//
// RateLimiter keeps token buckets in process; DistributedRateLimiter shares a
// fixed window counter through Redis across API instances.
//
//	limiter := middleware.NewDistributedRateLimiter(rdb, middleware.RefreshRateLimitConfig(30), "nurture:ratelimit")
//	router.Handle("/refresh", middleware.RateLimit(limiter, "refresh", proxies, logger)(handler))
package middleware
