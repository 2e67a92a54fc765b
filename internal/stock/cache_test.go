package stock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*BalanceCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewBalanceCache(client, time.Minute), mr
}

func TestBalanceCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	_, ok := cache.Get(ctx, 1)
	assert.False(t, ok)

	cache.Set(ctx, 1, 42)
	balance, ok := cache.Get(ctx, 1)
	require.True(t, ok)
	assert.EqualValues(t, 42, balance)
}

func TestBalanceCacheInvalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, 1, 10)
	cache.Set(ctx, 2, 20)
	cache.Invalidate(ctx, 1, 2)

	_, ok := cache.Get(ctx, 1)
	assert.False(t, ok)
	_, ok = cache.Get(ctx, 2)
	assert.False(t, ok)
}

func TestBalanceCacheExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewBalanceCache(client, time.Second)
	ctx := context.Background()

	cache.Set(ctx, 1, 10)
	mr.FastForward(2 * time.Second)

	_, ok := cache.Get(ctx, 1)
	assert.False(t, ok)
}

func TestBalanceCacheNilClientDegrades(t *testing.T) {
	cache := NewBalanceCache(nil, time.Minute)
	ctx := context.Background()

	cache.Set(ctx, 1, 10)
	_, ok := cache.Get(ctx, 1)
	assert.False(t, ok)
	cache.Invalidate(ctx, 1)
}
