package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lborres/warden/core"
)

const (
	DefaultTTL     = 5 * time.Minute
	DefaultMaxSize = 500
)

// Ensure implementations satisfy core.CacheWithStats
var (
	_ core.CacheWithStats = (*InMemoryCache)(nil)
	_ core.CacheWithStats = (*RedisCache)(nil)
)

// InMemoryCache implements an in-process session cache keyed by token hash.
// Entries never outlive the session they hold.
type InMemoryCache struct {
	cache   map[string]*cachedRecord
	mu      sync.RWMutex
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	// counters
	hits      int64
	misses    int64
	sets      int64
	deletes   int64
	evictions int64
}

type cachedRecord struct {
	session  core.Session
	deadline time.Time
}

// NewInMemoryCache creates a new in-memory cache
func NewInMemoryCache(c core.CacheConfig) *InMemoryCache {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.MaxSize <= 0 {
		c.MaxSize = DefaultMaxSize
	}

	return &InMemoryCache{
		cache:   make(map[string]*cachedRecord),
		ttl:     c.TTL,
		maxSize: c.MaxSize,
		now:     time.Now,
	}
}

// Get returns a copy of the cached session, or core.ErrCacheNotFound.
func (c *InMemoryCache) Get(ctx context.Context, tokenHash string) (*core.Session, error) {
	c.mu.RLock()
	record, exists := c.cache[tokenHash]
	c.mu.RUnlock()

	if !exists {
		atomic.AddInt64(&c.misses, 1)
		return nil, core.ErrCacheNotFound
	}

	if !c.now().Before(record.deadline) {
		atomic.AddInt64(&c.misses, 1)
		if err := c.Delete(ctx, tokenHash); err != nil {
			return nil, err
		}
		return nil, core.ErrCacheNotFound
	}

	atomic.AddInt64(&c.hits, 1)
	s := record.session
	return &s, nil
}

// Set stores a copy of session in cache
func (c *InMemoryCache) Set(_ context.Context, tokenHash string, session *core.Session) error {
	now := c.now()
	deadline := now.Add(c.ttl)
	if session.ExpiresAt.Before(deadline) {
		deadline = session.ExpiresAt
	}
	if !now.Before(deadline) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Simple eviction if full
	if _, replacing := c.cache[tokenHash]; !replacing && len(c.cache) >= c.maxSize {
		for k := range c.cache {
			delete(c.cache, k)
			atomic.AddInt64(&c.evictions, 1)
			break
		}
	}

	c.cache[tokenHash] = &cachedRecord{
		session:  *session,
		deadline: deadline,
	}

	atomic.AddInt64(&c.sets, 1)
	return nil
}

// Delete removes a session from cache
func (c *InMemoryCache) Delete(_ context.Context, tokenHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, existed := c.cache[tokenHash]; existed {
		delete(c.cache, tokenHash)
		atomic.AddInt64(&c.deletes, 1)
	}
	return nil
}

// Clear removes all sessions from cache
func (c *InMemoryCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*cachedRecord)
	return nil
}

// Len returns the number of cached sessions
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Stats returns cache statistics
func (c *InMemoryCache) Stats() core.CacheStats {
	return core.CacheStats{
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Sets:      atomic.LoadInt64(&c.sets),
		Deletes:   atomic.LoadInt64(&c.deletes),
		Evictions: atomic.LoadInt64(&c.evictions),
		Size:      c.Len(),
		TTL:       c.ttl,
	}
}
