package core

import (
	"context"
	"time"
)

// Cache defines session caching operations, keyed by refresh-token hash.
type Cache interface {
	Get(ctx context.Context, tokenHash string) (*Session, error)
	Set(ctx context.Context, tokenHash string, session *Session) error
	Delete(ctx context.Context, tokenHash string) error
	Clear(ctx context.Context) error
}

// CacheWithStats extends Cache with statistics tracking
type CacheWithStats interface {
	Cache
	Stats() CacheStats
}

// CacheConfig configures cache behavior
type CacheConfig struct {
	TTL     time.Duration
	MaxSize int
}

// CacheStats are simple counters for cache behavior.
// These are intended for diagnostics and monitoring.
type CacheStats struct {
	Hits      int64         `json:"hits"`
	Misses    int64         `json:"misses"`
	Sets      int64         `json:"sets"`
	Deletes   int64         `json:"deletes"`
	Evictions int64         `json:"evictions"`
	Size      int           `json:"size"`
	TTL       time.Duration `json:"ttl"`
}
