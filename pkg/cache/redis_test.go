package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lborres/warden/core"
)

func newTestRedisCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewRedisCache(client, core.CacheConfig{TTL: ttl})
	c.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	return c, mr
}

func TestRedisCache_SetGet(t *testing.T) {
	// Arrange
	ctx := context.Background()
	c, _ := newTestRedisCache(t, 5*time.Minute)
	device := "Mozilla/5.0"
	session := testSession("s1", c.now().Add(24*time.Hour))
	session.DeviceInfo = &device

	// Act
	require.NoError(t, c.Set(ctx, session.TokenHash, session))
	got, err := c.Get(ctx, session.TokenHash)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, session.UserID, got.UserID)
	assert.Equal(t, session.TokenHash, got.TokenHash)
	assert.True(t, session.ExpiresAt.Equal(got.ExpiresAt))
	require.NotNil(t, got.DeviceInfo)
	assert.Equal(t, device, *got.DeviceInfo)
	assert.Equal(t, int64(1), c.Stats().Hits)
}

func TestRedisCache_GetMissing(t *testing.T) {
	c, _ := newTestRedisCache(t, 5*time.Minute)

	_, err := c.Get(context.Background(), "missing")

	assert.ErrorIs(t, err, core.ErrCacheNotFound)
	assert.Equal(t, int64(1), c.Stats().Misses)
}

// Requirement: the cached entry expires no later than the session itself.
func TestRedisCache_TTLBoundedBySessionExpiry(t *testing.T) {
	tests := []struct {
		name    string
		ttl     time.Duration
		expires time.Duration
		wantTTL time.Duration
	}{
		{name: "cache ttl shorter", ttl: 5 * time.Minute, expires: time.Hour, wantTTL: 5 * time.Minute},
		{name: "session expires first", ttl: time.Hour, expires: 2 * time.Minute, wantTTL: 2 * time.Minute},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			ctx := context.Background()
			c, mr := newTestRedisCache(t, test.ttl)
			s := testSession("s1", c.now().Add(test.expires))

			// Act
			require.NoError(t, c.Set(ctx, s.TokenHash, s))

			// Assert
			assert.Equal(t, test.wantTTL, mr.TTL(c.key(s.TokenHash)))

			mr.FastForward(test.wantTTL)
			_, err := c.Get(ctx, s.TokenHash)
			assert.ErrorIs(t, err, core.ErrCacheNotFound)
		})
	}
}

func TestRedisCache_SetExpiredSessionIsNoop(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedisCache(t, time.Minute)
	s := testSession("stale", c.now().Add(-time.Second))

	require.NoError(t, c.Set(ctx, s.TokenHash, s))

	assert.False(t, mr.Exists(c.key(s.TokenHash)))
}

func TestRedisCache_DeleteAndClear(t *testing.T) {
	// Arrange
	ctx := context.Background()
	c, mr := newTestRedisCache(t, time.Minute)
	require.NoError(t, mr.Set("unrelated", "keep"))
	for _, id := range []string{"s1", "s2", "s3"} {
		s := testSession(id, c.now().Add(time.Hour))
		require.NoError(t, c.Set(ctx, s.TokenHash, s))
	}

	// Act & Assert: delete is idempotent
	require.NoError(t, c.Delete(ctx, "hash-s1"))
	require.NoError(t, c.Delete(ctx, "hash-s1"))
	_, err := c.Get(ctx, "hash-s1")
	assert.ErrorIs(t, err, core.ErrCacheNotFound)
	assert.Equal(t, int64(1), c.Stats().Deletes)
	assert.Equal(t, 2, c.Stats().Size)

	// Act & Assert: clear only touches the cache prefix
	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 0, c.Stats().Size)
	assert.True(t, mr.Exists("unrelated"))
}

func TestRedisCache_CorruptEntry(t *testing.T) {
	c, mr := newTestRedisCache(t, time.Minute)
	require.NoError(t, mr.Set(c.key("bad"), "{not json"))

	_, err := c.Get(context.Background(), "bad")

	assert.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrCacheNotFound)
}
