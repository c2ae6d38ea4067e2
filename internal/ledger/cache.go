package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache is a read-through cache for on-hand quantities. A nil *Cache is
// valid and falls through to the loader, so callers never branch on its
// presence.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache constructs an on-hand cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{client: client, ttl: ttl}
}

func onHandKey(itemID int64) string {
	return fmt.Sprintf("stockforge:onhand:%d", itemID)
}

// OnHand returns the cached quantity or loads and stores it. Concurrent
// misses for the same item collapse into a single loader call.
func (c *Cache) OnHand(ctx context.Context, itemID int64, loader func(context.Context) (int64, error)) (int64, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key := onHandKey(itemID)
	if raw, err := c.client.Get(ctx, key).Result(); err == nil {
		if qty, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			return qty, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		qty, err := loader(ctx)
		if err != nil {
			return int64(0), err
		}
		_ = c.client.Set(ctx, key, strconv.FormatInt(qty, 10), c.ttl).Err()
		return qty, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// Invalidate drops the cached quantity after a ledger mutation.
func (c *Cache) Invalidate(ctx context.Context, itemIDs ...int64) {
	if c == nil || c.client == nil || len(itemIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(itemIDs))
	for _, id := range itemIDs {
		keys = append(keys, onHandKey(id))
	}
	_ = c.client.Del(ctx, keys...).Err()
}
