package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quote struct {
	ID    string  `json:"id"`
	Price float64 `json:"price"`
}

func TestMemoryCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "q:1", quote{ID: "1", Price: 12.5}, time.Minute))
	var got quote
	require.NoError(t, mc.Get(ctx, "q:1", &got))
	assert.Equal(t, quote{ID: "1", Price: 12.5}, got)

	require.NoError(t, mc.Set(ctx, "s", "raw", time.Minute))
	var s string
	require.NoError(t, mc.Get(ctx, "s", &s))
	assert.Equal(t, "raw", s)

	assert.ErrorIs(t, mc.Get(ctx, "missing", &s), ErrCacheMiss)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	now := time.Now()
	mc.now = func() time.Time { return now }
	require.NoError(t, mc.Set(ctx, "k", 1, time.Second))

	now = now.Add(2 * time.Second)
	var v int
	assert.ErrorIs(t, mc.Get(ctx, "k", &v), ErrCacheMiss)
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	now := time.Now()
	mc.now = func() time.Time { now = now.Add(time.Millisecond); return now }

	require.NoError(t, mc.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, mc.Set(ctx, "b", 2, time.Minute))
	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	require.NoError(t, mc.Set(ctx, "c", 3, time.Minute))

	assert.NoError(t, mc.Get(ctx, "a", &v))
	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	assert.Equal(t, 2, mc.Len())
}

func TestMemoryCache_DeleteByPattern(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	for _, k := range []string{"stock:1", "stock:2", "chart:1"} {
		require.NoError(t, mc.Set(ctx, k, k, time.Minute))
	}
	require.NoError(t, mc.DeleteByPattern(ctx, BuildPattern("stock:")))

	var s string
	assert.ErrorIs(t, mc.Get(ctx, "stock:1", &s), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "chart:1", &s))
}

func TestMemoryCache_TryLock(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	ok, err := mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "lock"))
	ok, _ = mc.TryLock(ctx, "lock", time.Minute)
	assert.True(t, ok)
}

func TestLayeredCache_BackfillsFromL2(t *testing.T) {
	ctx := context.Background()
	l2 := NewMemoryCache()
	lc := NewLayeredCache(l2, WithLayeredL1TTL(time.Second))
	defer lc.Close()

	require.NoError(t, l2.Set(ctx, "q", quote{ID: "x", Price: 3}, time.Minute))

	var got quote
	require.NoError(t, lc.Get(ctx, "q", &got))
	assert.Equal(t, "x", got.ID)
	assert.Equal(t, 1, lc.memCache.Len())

	require.NoError(t, lc.Delete(ctx, "q"))
	assert.ErrorIs(t, l2.Get(ctx, "q", &got), ErrCacheMiss)
}

func TestLayeredCache_WithoutL2(t *testing.T) {
	ctx := context.Background()
	lc := NewLayeredCache(nil)
	defer lc.Close()

	require.NoError(t, lc.Set(ctx, "k", []int{1, 2}, time.Minute))
	var got []int
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, []int{1, 2}, got)
}

func TestRemember(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	calls := 0
	load := func(context.Context) (quote, error) {
		calls++
		return quote{ID: "a", Price: 1}, nil
	}
	for i := 0; i < 3; i++ {
		got, err := Remember(ctx, mc, "r", time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, "a", got.ID)
	}
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	_, err := Remember(ctx, mc, "r2", time.Minute, func(context.Context) (quote, error) { return quote{}, boom })
	assert.ErrorIs(t, err, boom)
}

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, "stock:AAPL:1y", GenerateKey("stock", "AAPL", "1y"))
	assert.Equal(t, "stock*", BuildPattern("stock"))
	assert.Len(t, HashKey([]byte("x")), 24)
}
