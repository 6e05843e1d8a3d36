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

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCheckRateLimit(t *testing.T) {
	mr, rdb := setupRedis(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := CheckRateLimit(ctx, rdb, "upvote", "user:1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := CheckRateLimit(ctx, rdb, "upvote", "user:1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	assert.Equal(t, time.Minute, mr.TTL("rl:upvote:user:1"))

	// another caller has an independent window
	allowed, err = CheckRateLimit(ctx, rdb, "upvote", "user:2", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	mr.FastForward(time.Minute + time.Second)
	allowed, err = CheckRateLimit(ctx, rdb, "upvote", "user:1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCheckRateLimit_NilStore(t *testing.T) {
	allowed, err := CheckRateLimit(context.Background(), nil, "upvote", "user:1", 1, time.Minute)
	assert.ErrorIs(t, err, errNilRateLimitStore)
	assert.False(t, allowed)
}

func TestRateLimitMiddleware(t *testing.T) {
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }

	do := func(t *testing.T, app *fiber.App, path string) int {
		t.Helper()
		resp, err := app.Test(httptest.NewRequest(http.MethodPut, path, nil))
		require.NoError(t, err)
		_ = resp.Body.Close()
		return resp.StatusCode
	}

	t.Run("limits by user id", func(t *testing.T) {
		_, rdb := setupRedis(t)
		app := fiber.New()
		app.Put("/p", func(c *fiber.Ctx) error {
			c.Locals("userID", uint(7))
			return c.Next()
		}, RateLimit(rdb, RateLimitPolicy{Resource: "view", Limit: 1, Window: time.Minute}), ok)

		assert.Equal(t, http.StatusOK, do(t, app, "/p"))
		assert.Equal(t, http.StatusTooManyRequests, do(t, app, "/p"))
	})

	t.Run("disabled policy passes through", func(t *testing.T) {
		app := fiber.New()
		app.Put("/p", RateLimit(nil, RateLimitPolicy{Limit: 1, Window: time.Minute, Disabled: true}), ok)

		assert.Equal(t, http.StatusOK, do(t, app, "/p"))
		assert.Equal(t, http.StatusOK, do(t, app, "/p"))
	})

	t.Run("fail open when store missing", func(t *testing.T) {
		app := fiber.New()
		app.Put("/p", RateLimit(nil, RateLimitPolicy{Limit: 1, Window: time.Minute}), ok)
		assert.Equal(t, http.StatusOK, do(t, app, "/p"))
	})

	t.Run("fail closed when store unreachable", func(t *testing.T) {
		rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
		defer rdb.Close()
		app := fiber.New()
		app.Put("/p", RateLimit(rdb, RateLimitPolicy{Limit: 1, Window: time.Minute, OnError: FailClosed}), ok)
		assert.Equal(t, http.StatusServiceUnavailable, do(t, app, "/p"))
	})
}
