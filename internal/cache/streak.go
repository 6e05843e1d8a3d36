package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"squadfeed/internal/middleware"
	"squadfeed/internal/models"

	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the circuit breaker guarding Redis.
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	Timeout          time.Duration
	Interval         time.Duration
	MaxRequests      uint32
}

// DefaultBreakerConfig opens after five consecutive Redis failures and probes again after 30s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "streak-cache",
		FailureThreshold: 5,
		Timeout:          30 * time.Second,
		Interval:         time.Minute,
		MaxRequests:      1,
	}
}

// StreakCache stores streak snapshots under streak:<userID> with a 24h TTL.
// All Redis calls go through a circuit breaker; callers treat every error as
// "cache unavailable" and fall back to the durable record.
type StreakCache struct {
	rdb     redis.Cmdable
	breaker *gobreaker.CircuitBreaker[any]
	ttl     time.Duration
}

// NewStreakCache wraps rdb with a breaker configured by cfg.
func NewStreakCache(rdb redis.Cmdable, cfg BreakerConfig) *StreakCache {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			middleware.Logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}
	return &StreakCache{
		rdb:     rdb,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		ttl:     StreakTTL,
	}
}

// Get returns the cached snapshot. found is false on a miss.
func (c *StreakCache) Get(ctx context.Context, userID uint) (snap models.StreakSnapshot, found bool, err error) {
	_, err = c.breaker.Execute(func() (any, error) {
		var e error
		found, e = GetJSON(ctx, c.rdb, StreakKey(userID), &snap)
		return nil, e
	})
	return snap, found, err
}

// Set writes the snapshot and resets its TTL.
func (c *StreakCache) Set(ctx context.Context, userID uint, snap models.StreakSnapshot) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, SetJSON(ctx, c.rdb, StreakKey(userID), snap, c.ttl)
	})
	return err
}

// Invalidate drops the snapshot so the next read goes to the durable record.
func (c *StreakCache) Invalidate(ctx context.Context, userID uint) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, Invalidate(ctx, c.rdb, StreakKey(userID))
	})
	return err
}

// State reports the breaker state (closed, half-open, open).
func (c *StreakCache) State() string {
	return c.breaker.State().String()
}

// IsUnavailable reports whether err came from the breaker refusing the call.
func IsUnavailable(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
