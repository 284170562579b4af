package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLimiterRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRateLimiter_Allow(t *testing.T) {
	mr, rdb := setupLimiterRedis(t)
	limiter := NewRateLimiter(rdb, "production")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "login", "ip:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}
	ok, err := limiter.Allow(ctx, "login", "ip:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = limiter.Allow(ctx, "login", "ip:5.6.7.8", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "other callers keep their own window")

	assert.Equal(t, time.Minute, mr.TTL("rl:login:ip:1.2.3.4"))
	mr.FastForward(time.Minute + time.Second)

	ok, err = limiter.Allow(ctx, "login", "ip:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "window resets after expiry")
}

func TestRateLimiter_BypassProfiles(t *testing.T) {
	_, rdb := setupLimiterRedis(t)
	for _, env := range []string{"", "test", "development", "stress"} {
		limiter := NewRateLimiter(rdb, env)
		for i := 0; i < 5; i++ {
			ok, err := limiter.Allow(context.Background(), "signup", "ip:x", 1, time.Minute)
			require.NoError(t, err)
			assert.True(t, ok, env)
		}
	}
}

func TestRateLimiter_HandlerFailPolicies(t *testing.T) {
	mr, rdb := setupLimiterRedis(t)
	limiter := NewRateLimiter(rdb, "production")

	app := fiber.New()
	app.Get("/open", limiter.Handler(1, time.Minute, FailOpen, "open"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/closed", limiter.Handler(1, time.Minute, FailClosed, "closed"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	get := func(path string) int {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusNoContent, get("/open"))
	assert.Equal(t, http.StatusTooManyRequests, get("/open"))

	mr.Close()
	assert.Equal(t, http.StatusNoContent, get("/open"))
	assert.Equal(t, http.StatusServiceUnavailable, get("/closed"))
}
