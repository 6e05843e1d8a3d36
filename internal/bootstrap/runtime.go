// Package bootstrap wires the process-level dependencies shared by the
// server, migrate and seed commands.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"squadfeed/internal/cache"
	"squadfeed/internal/config"
	"squadfeed/internal/database"
	"squadfeed/internal/middleware"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SkipSchema leaves the schema untouched (the migrate command manages it itself).
	SkipSchema bool
	// RequireRedis fails startup when Redis cannot be reached instead of running degraded.
	RequireRedis bool
}

// InitRuntime connects to the database, applies the schema per DB_SCHEMA_MODE
// and connects to Redis. The returned Redis client is nil when Redis is
// unreachable and opts.RequireRedis is false.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	if !opts.SkipSchema {
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			closeDB(db)
			return nil, nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	if cfg.RedisURL == "" {
		if opts.RequireRedis {
			closeDB(db)
			return nil, nil, fmt.Errorf("REDIS_URL is required")
		}
		middleware.Logger.Warn("REDIS_URL not set; running without streak cache, events or rate limits")
		return db, nil, nil
	}

	rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		if opts.RequireRedis {
			closeDB(db)
			return nil, nil, err
		}
		middleware.Logger.Warn("Redis unavailable; running degraded", slog.String("error", err.Error()))
		return db, nil, nil
	}

	return db, rdb, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
