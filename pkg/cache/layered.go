package cache

import (
	"context"
	"time"
)

// LayeredCache implements a two-level cache: memory in front of an optional
// shared L2 (Redis). With no L2 it behaves as a plain memory cache.
type LayeredCache struct {
	memCache *MemoryCache
	l2       Service
	l1TTL    time.Duration
}

// NewLayeredCache creates a layered cache. l2 may be nil.
func NewLayeredCache(l2 Service, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{L1TTL: 30 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}
	return &LayeredCache{
		memCache: NewMemoryCache(cfg.Memory...),
		l2:       l2,
		l1TTL:    cfg.L1TTL,
	}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	// Write-through: L2 first, then memory
	if lc.l2 != nil {
		if err := lc.l2.Set(ctx, key, value, expiration); err != nil {
			return err
		}
	}
	return lc.memCache.Set(ctx, key, value, lc.memTTL(expiration))
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.memCache.Get(ctx, key, dest); err == nil || lc.l2 == nil {
		return err
	}

	var raw []byte
	if err := lc.l2.Get(ctx, key, &raw); err != nil {
		return err
	}
	_ = lc.memCache.Set(ctx, key, raw, lc.l1TTL)
	return decode(raw, dest)
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.memCache.Delete(ctx, keys...)
	if lc.l2 == nil {
		return nil
	}
	return lc.l2.Delete(ctx, keys...)
}

func (lc *LayeredCache) DeleteByPattern(ctx context.Context, pattern string) error {
	_ = lc.memCache.DeleteByPattern(ctx, pattern)
	if lc.l2 == nil {
		return nil
	}
	return lc.l2.DeleteByPattern(ctx, pattern)
}

// TryLock is decided by L2 when present so the lock holds across instances.
func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if lc.l2 == nil {
		return lc.memCache.TryLock(ctx, key, ttl)
	}
	return lc.l2.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	if lc.l2 == nil {
		return lc.memCache.Unlock(ctx, key)
	}
	return lc.l2.Unlock(ctx, key)
}

// Close closes both cache layers.
func (lc *LayeredCache) Close() error {
	_ = lc.memCache.Close()
	if lc.l2 == nil {
		return nil
	}
	return lc.l2.Close()
}

func (lc *LayeredCache) memTTL(expiration time.Duration) time.Duration {
	if lc.l2 == nil || lc.l1TTL <= 0 {
		return expiration
	}
	if expiration <= 0 || expiration > lc.l1TTL {
		return lc.l1TTL
	}
	return expiration
}
