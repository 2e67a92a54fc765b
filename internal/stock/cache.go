package stock

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// BalanceCache is a redis read-through cache for product balances. Misses
// and redis failures fall back to the repository; the ledger never trusts
// the cache for writes.
type BalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBalanceCache constructs BalanceCache.
func NewBalanceCache(client *redis.Client, ttl time.Duration) *BalanceCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &BalanceCache{client: client, ttl: ttl}
}

func balanceKey(productID int64) string {
	return fmt.Sprintf("stock:balance:%d", productID)
}

// Get returns a cached balance when present.
func (c *BalanceCache) Get(ctx context.Context, productID int64) (int64, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}
	raw, err := c.client.Get(ctx, balanceKey(productID)).Result()
	if err != nil {
		return 0, false
	}
	balance, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return balance, true
}

// Set stores a balance with TTL.
func (c *BalanceCache) Set(ctx context.Context, productID, balance int64) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Set(ctx, balanceKey(productID), strconv.FormatInt(balance, 10), c.ttl).Err()
}

// Invalidate drops cached balances after a movement commits.
func (c *BalanceCache) Invalidate(ctx context.Context, productIDs ...int64) {
	if c == nil || c.client == nil || len(productIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, balanceKey(id))
	}
	_ = c.client.Del(ctx, keys...).Err()
}
