package redisx

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript deletes the key only if it still holds our token, so a lock
// that expired and was taken by someone else is left alone.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a single-instance Redis lock (SET NX PX). It never waits: a held
// key is reported as busy. The TTL bounds how long a crashed holder blocks
// the key.
type Locker struct {
	RDB *redis.Client
	TTL time.Duration
}

func NewLocker(rdb *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{RDB: rdb, TTL: ttl}
}

func (l *Locker) TryLock(ctx context.Context, name string) (func(), bool, error) {
	key := Key(KeyLock, name)
	token := uuid.NewString()
	ok, err := l.RDB.SetNX(ctx, key, token, l.TTL).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return func() {
		// The caller's ctx may already be done; release on a fresh one.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = unlockScript.Run(ctx, l.RDB, []string{key}, token).Err()
	}, true, nil
}
