package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurturehq/nurture/pkg/httputil"
	"github.com/nurturehq/nurture/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func TestRefreshRateLimitConfig(t *testing.T) {
	cfg := RefreshRateLimitConfig(0)
	assert.Equal(t, 30, cfg.RequestsPerWindow)
	assert.Equal(t, 6, cfg.BurstSize)
	assert.Equal(t, time.Minute, cfg.WindowDuration)
}

func TestRateLimiter_AllowAndRefill(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute, BurstSize: 1})
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := rl.Allow(ctx, "ip:1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i)
	}

	d, err := rl.Allow(ctx, "ip:1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 30*time.Second, d.ResetAfter)

	other, err := rl.Allow(ctx, "ip:2")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	now = now.Add(31 * time.Second)
	d, err = rl.Allow(ctx, "ip:1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
	rl.now = func() time.Time { return now }

	_, _ = rl.Allow(context.Background(), "a")
	now = now.Add(3 * time.Minute)
	rl.Cleanup()
	assert.Empty(t, rl.buckets)
}

func TestDistributedRateLimiter(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	rl := NewDistributedRateLimiter(client, RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}, "")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := rl.Allow(ctx, "refresh:203.0.113.7")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:refresh:203.0.113.7"))

	d, err := rl.Allow(ctx, "refresh:203.0.113.7")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.ResetAfter)

	mr.FastForward(61 * time.Second)
	d, err = rl.Allow(ctx, "refresh:203.0.113.7")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	require.NoError(t, rl.Reset(ctx, "refresh:203.0.113.7"))
	assert.False(t, mr.Exists("ratelimit:refresh:203.0.113.7"))
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{}, errors.New("redis down")
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
	handler := RateLimit(rl, "refresh", nil, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analytics/refresh", nil)
	req.RemoteAddr = "192.0.2.1:4000"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
}

func TestRateLimitMiddleware_ForwardedForNeedsTrustedProxy(t *testing.T) {
	newHandler := func(proxies httputil.TrustedProxies) http.Handler {
		rl := NewRateLimiter(RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
		return RateLimit(rl, "refresh", proxies, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}))
	}
	send := func(h http.Handler, forwardedFor string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/analytics/refresh", nil)
		req.RemoteAddr = "10.0.0.5:4000"
		req.Header.Set("X-Forwarded-For", forwardedFor)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("spoofed header from untrusted peer", func(t *testing.T) {
		h := newHandler(nil)
		assert.Equal(t, http.StatusAccepted, send(h, "198.51.100.1"))
		assert.Equal(t, http.StatusTooManyRequests, send(h, "198.51.100.2"))
	})

	t.Run("clients behind trusted proxy", func(t *testing.T) {
		proxies, err := httputil.ParseTrustedProxies([]string{"10.0.0.0/8"})
		require.NoError(t, err)
		h := newHandler(proxies)
		assert.Equal(t, http.StatusAccepted, send(h, "198.51.100.1"))
		assert.Equal(t, http.StatusAccepted, send(h, "198.51.100.2"))
		assert.Equal(t, http.StatusTooManyRequests, send(h, "198.51.100.1"))
	})
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	handler := RateLimit(failingLimiter{}, "export", nil, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
