package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pos/internal/sales"
	"github.com/odyssey-erp/odyssey-pos/internal/shift"
)

const redisKeyPrefix = "odyssey_pos"

// Resources are the storage backends selected by SHIFT_STORE and SALES_FEED.
type Resources struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client
	Store shift.Store
	Feed  sales.Feed

	logger *slog.Logger
}

// RedisOptions returns the Redis connection shared by the store and the job queue.
func (c *Config) RedisOptions() cache.Options {
	return cache.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}

// OpenResources connects the configured backends. The Postgres schema is
// created when the shift store lives there.
func OpenResources(ctx context.Context, cfg *Config, logger *slog.Logger) (*Resources, error) {
	if logger == nil {
		logger = slog.Default()
	}
	res := &Resources{logger: logger}

	if cfg.ShiftStore == StorePostgres || cfg.SalesFeed == StorePostgres {
		pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
		if err != nil {
			return nil, err
		}
		res.Pool = pool
	}

	switch cfg.ShiftStore {
	case StorePostgres:
		repo := shift.NewRepository(res.Pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			res.Close()
			return nil, fmt.Errorf("app: ensure shift schema: %w", err)
		}
		res.Store = repo
	case StoreRedis:
		client, err := cache.New(ctx, cfg.RedisOptions())
		if err != nil {
			res.Close()
			return nil, err
		}
		res.Redis = client
		res.Store = shift.NewRedisStore(client, redisKeyPrefix)
	default:
		logger.Warn("shift store is in memory, closures are lost on restart")
		res.Store = shift.NewMemoryStore()
	}

	if cfg.SalesFeed == StorePostgres {
		res.Feed = sales.NewRepository(res.Pool)
	} else {
		res.Feed = sales.NewStaticFeed()
	}
	return res, nil
}

// Close releases every opened backend.
func (r *Resources) Close() {
	if r == nil {
		return
	}
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			r.logger.Warn("redis close", slog.Any("error", err))
		}
	}
	if r.Pool != nil {
		r.Pool.Close()
	}
}
