package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/TworzymyMarzenia3d/front-crm/internal/orders"
	"github.com/redis/go-redis/v9"
)

type CachedStatus struct {
	Status    orders.Status `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// StatusCache is the read-through cache behind GET /orders/{id}/status.
type StatusCache struct{ RDB *redis.Client }

func (c *StatusCache) Get(ctx context.Context, orderID string) (CachedStatus, bool, error) {
	var cs CachedStatus
	b, err := c.RDB.Get(ctx, Key(KeyOrderStatus, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return cs, false, nil
	}
	if err != nil {
		return cs, false, err
	}
	if err := json.Unmarshal(b, &cs); err != nil {
		return cs, false, err
	}
	return cs, true, nil
}

func (c *StatusCache) Set(ctx context.Context, orderID string, cs CachedStatus) error {
	b, err := json.Marshal(cs)
	if err != nil {
		return err
	}
	return c.RDB.Set(ctx, Key(KeyOrderStatus, orderID), b, TTLStatusCache).Err()
}

// Forget drops the cached status of a deleted order.
func (c *StatusCache) Forget(ctx context.Context, orderID string) error {
	return c.RDB.Del(ctx, Key(KeyOrderStatus, orderID)).Err()
}

// Advance stores cs unless the cached entry is newer. Consumers may see
// status events out of order across partition rebalances.
func (c *StatusCache) Advance(ctx context.Context, orderID string, cs CachedStatus) error {
	cur, ok, err := c.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if ok && cur.UpdatedAt.After(cs.UpdatedAt) {
		return nil
	}
	return c.Set(ctx, orderID, cs)
}
