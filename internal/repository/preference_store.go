package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"StockPulse/internal/domain/signal"
	"StockPulse/pkg/cache"
)

// CachePreferenceStore keeps viewer masks in the shared cache. With Redis
// as L2 the masks survive restarts and are visible to every instance.
type CachePreferenceStore struct {
	c   cache.Service
	ttl time.Duration
}

func NewCachePreferenceStore(c cache.Service, ttl time.Duration) *CachePreferenceStore {
	return &CachePreferenceStore{c: c, ttl: ttl}
}

func maskKey(viewer string) string {
	return cache.GenerateKey("prefs", viewer, "indicators")
}

// GetMask returns the stored mask and whether one existed.
func (s *CachePreferenceStore) GetMask(ctx context.Context, viewer string) (signal.SelectionMask, bool, error) {
	var raw string
	if err := s.c.Get(ctx, maskKey(viewer), &raw); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get mask: %w", err)
	}
	m, err := signal.ParseMask(raw)
	if err != nil {
		// indicator set changed since it was stored; treat as absent
		return nil, false, nil
	}
	return m, true, nil
}

// SaveMask stores m, refreshing the TTL.
func (s *CachePreferenceStore) SaveMask(ctx context.Context, viewer string, m signal.SelectionMask) error {
	if err := s.c.Set(ctx, maskKey(viewer), m.String(), s.ttl); err != nil {
		return fmt.Errorf("save mask: %w", err)
	}
	return nil
}

func (s *CachePreferenceStore) DeleteMask(ctx context.Context, viewer string) error {
	if err := s.c.Delete(ctx, maskKey(viewer)); err != nil {
		return fmt.Errorf("delete mask: %w", err)
	}
	return nil
}
