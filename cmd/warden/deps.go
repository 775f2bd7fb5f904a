package main

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/lborres/warden/adapters/memory"
	pgxadapter "github.com/lborres/warden/adapters/pgx"
	"github.com/lborres/warden/core"
	"github.com/lborres/warden/internal/config"
	"github.com/lborres/warden/internal/metrics"
	"github.com/lborres/warden/pkg/cache"
)

// loadStoreConfig reads the environment for commands that only need a store.
func loadStoreConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if cfg.Store == config.StorePostgres && cfg.DatabaseURL == "" {
		return config.Config{}, oops.Code("CONFIG_INVALID").With("field", "DATABASE_URL").Errorf("DATABASE_URL environment variable is required")
	}
	return cfg, nil
}

// openStorage returns the configured store and a function releasing it.
func openStorage(ctx context.Context, cfg config.Config) (core.AuthStorage, func(), error) {
	switch cfg.Store {
	case config.StoreMemory:
		slog.WarnContext(ctx, "using in-memory store; all data is lost on exit")
		return memory.New(), func() {}, nil
	case config.StorePostgres:
		pool, err := pgxadapter.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pgxadapter.New(pool), pool.Close, nil
	default:
		return nil, nil, oops.Code("CONFIG_INVALID").With("store", cfg.Store).Errorf("unknown store %q", cfg.Store)
	}
}

// openCache returns a Redis-backed session cache when REDIS_ADDR is set and
// nil otherwise. Every instance then reads sessions from the shared store,
// so a logout on one instance is seen by all of them.
func openCache(ctx context.Context, cfg config.Config) (core.Cache, func(), error) {
	if cfg.RedisAddr == "" {
		return nil, func() {}, nil
	}
	cacheConfig := core.CacheConfig{TTL: cache.DefaultTTL, MaxSize: cache.DefaultMaxSize}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, oops.Code("REDIS_CONNECT_FAILED").With("addr", cfg.RedisAddr).Wrap(err)
	}

	closeFn := func() {
		if err := client.Close(); err != nil {
			slog.Warn("error closing redis client", "error", err)
		}
	}
	return cache.NewRedisCache(client, cacheConfig), closeFn, nil
}

// newMetrics builds the registry when metrics are enabled and exports the
// session cache counters when there is a cache.
func newMetrics(cfg config.Config, sessionCache core.Cache) (*metrics.Metrics, error) {
	if !cfg.MetricsEnabled {
		return nil, nil
	}
	m := metrics.New()
	if stats, ok := sessionCache.(metrics.CacheStatsSource); ok {
		if err := m.RegisterCache(stats); err != nil {
			return nil, oops.Code("METRICS_INIT_FAILED").Wrap(err)
		}
	}
	return m, nil
}
