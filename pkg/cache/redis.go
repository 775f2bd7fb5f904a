package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lborres/warden/core"
)

const DefaultKeyPrefix = "warden:session"

// RedisCache shares the session cache between server instances. Entries
// expire at the earlier of the cache TTL and the session's own expiry.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time

	hits    int64
	misses  int64
	sets    int64
	deletes int64
}

func NewRedisCache(client *redis.Client, c core.CacheConfig) *RedisCache {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	return &RedisCache{
		client: client,
		prefix: DefaultKeyPrefix,
		ttl:    c.TTL,
		now:    time.Now,
	}
}

func (c *RedisCache) key(tokenHash string) string {
	return c.prefix + ":" + tokenHash
}

func (c *RedisCache) Get(ctx context.Context, tokenHash string) (*core.Session, error) {
	raw, err := c.client.Get(ctx, c.key(tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		atomic.AddInt64(&c.misses, 1)
		return nil, core.ErrCacheNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached session: %w", err)
	}

	var s core.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode cached session: %w", err)
	}
	s.TokenHash = tokenHash

	atomic.AddInt64(&c.hits, 1)
	return &s, nil
}

func (c *RedisCache) Set(ctx context.Context, tokenHash string, session *core.Session) error {
	ttl := c.ttl
	if remaining := session.ExpiresAt.Sub(c.now()); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(cachedSession{
		ID:           session.ID,
		UserID:       session.UserID,
		DeviceInfo:   session.DeviceInfo,
		IPAddress:    session.IPAddress,
		ExpiresAt:    session.ExpiresAt,
		CreatedAt:    session.CreatedAt,
		LastActiveAt: session.LastActiveAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := c.client.Set(ctx, c.key(tokenHash), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache session: %w", err)
	}

	atomic.AddInt64(&c.sets, 1)
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, tokenHash string) error {
	n, err := c.client.Del(ctx, c.key(tokenHash)).Result()
	if err != nil {
		return fmt.Errorf("failed to evict session: %w", err)
	}
	atomic.AddInt64(&c.deletes, n)
	return nil
}

// Clear removes every key under the cache prefix.
func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to clear session cache: %w", err)
		}
	}
	return iter.Err()
}

func (c *RedisCache) Stats() core.CacheStats {
	size := 0
	if n, err := c.count(context.Background()); err == nil {
		size = n
	}
	return core.CacheStats{
		Hits:    atomic.LoadInt64(&c.hits),
		Misses:  atomic.LoadInt64(&c.misses),
		Sets:    atomic.LoadInt64(&c.sets),
		Deletes: atomic.LoadInt64(&c.deletes),
		Size:    size,
		TTL:     c.ttl,
	}
}

func (c *RedisCache) count(ctx context.Context) (int, error) {
	n := 0
	iter := c.client.Scan(ctx, 0, c.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n, iter.Err()
}

// cachedSession mirrors core.Session with the token hash left out; the hash
// is already the key.
type cachedSession struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	DeviceInfo   *string   `json:"deviceInfo,omitempty"`
	IPAddress    *string   `json:"ipAddress,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}
