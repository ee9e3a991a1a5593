package redisx

import (
	"fmt"
	"time"
)

const (
	// Idempotent order creation: idem:order:create:{idempotency key} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Order status cache: order_status:{order_id} -> {"status": "...", "updated_at": "..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup of consumed events: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Transition locks: lock:{name} -> owner token, e.g. lock:order:{order_id}
	KeyLock = "lock:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)

func Key(format string, args ...any) string { return fmt.Sprintf(format, args...) }
