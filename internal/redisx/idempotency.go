package redisx

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Idempotency maps a client-supplied key to the id of the order it created.
type Idempotency struct{ RDB *redis.Client }

func (i *Idempotency) Lookup(ctx context.Context, key string) (string, bool, error) {
	id, err := i.RDB.Get(ctx, Key(KeyIdemOrderCreate, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// Remember keeps the first order id stored under key.
func (i *Idempotency) Remember(ctx context.Context, key, orderID string) error {
	return i.RDB.SetNX(ctx, Key(KeyIdemOrderCreate, key), orderID, TTLIdempotency).Err()
}
