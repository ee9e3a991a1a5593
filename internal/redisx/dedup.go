package redisx

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Dedup tracks consumed event ids for one consuming service.
type Dedup struct {
	RDB     *redis.Client
	Service string
}

func (d *Dedup) Seen(ctx context.Context, eventID string) (bool, error) {
	return Exists(ctx, d.RDB, Key(KeyDedup, d.Service, eventID))
}

func (d *Dedup) Mark(ctx context.Context, eventID string) error {
	_, err := MarkOnce(ctx, d.RDB, d.Service, eventID)
	return err
}
