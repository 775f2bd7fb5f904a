package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lborres/warden/adapters/memory"
	"github.com/lborres/warden/internal/config"
	"github.com/lborres/warden/internal/metrics"
	"github.com/lborres/warden/pkg/cache"
)

func TestOpenStorage(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		storage, closeFn, err := openStorage(context.Background(), config.Config{Store: config.StoreMemory})

		require.NoError(t, err)
		defer closeFn()
		assert.IsType(t, &memory.Store{}, storage)
	})

	t.Run("unknown store", func(t *testing.T) {
		_, _, err := openStorage(context.Background(), config.Config{Store: "sqlite"})

		require.Error(t, err)
		assertErrorCode(t, err, "CONFIG_INVALID")
	})
}

func TestOpenCache(t *testing.T) {
	// Requirement: without Redis there is no per-instance cache, so every
	// refresh reads the shared session store.
	t.Run("none without redis address", func(t *testing.T) {
		c, closeFn, err := openCache(context.Background(), config.Config{})

		require.NoError(t, err)
		defer closeFn()
		assert.Nil(t, c)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)

		c, closeFn, err := openCache(context.Background(), config.Config{RedisAddr: mr.Addr()})

		require.NoError(t, err)
		defer closeFn()
		assert.IsType(t, &cache.RedisCache{}, c)
	})

	t.Run("unreachable redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		_, _, err := openCache(context.Background(), config.Config{RedisAddr: addr})

		require.Error(t, err)
		assertErrorCode(t, err, "REDIS_CONNECT_FAILED")
	})
}

func TestNewMetrics(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		m, err := newMetrics(config.Config{MetricsEnabled: false}, nil)

		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("without cache", func(t *testing.T) {
		m, err := newMetrics(config.Config{MetricsEnabled: true}, nil)

		require.NoError(t, err)
		require.NotNil(t, m)
		assert.NotContains(t, scrape(t, m), "warden_session_cache_")
	})

	t.Run("exports cache stats", func(t *testing.T) {
		mr := miniredis.RunT(t)
		c, closeFn, err := openCache(context.Background(), config.Config{RedisAddr: mr.Addr()})
		require.NoError(t, err)
		defer closeFn()
		_, _ = c.Get(context.Background(), "missing")

		m, err := newMetrics(config.Config{MetricsEnabled: true}, c)

		require.NoError(t, err)
		body := scrape(t, m)
		assert.Contains(t, body, "warden_session_cache_misses_total 1")
		assert.Contains(t, body, "warden_session_cache_entries 0")
	})
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}
