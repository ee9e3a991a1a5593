package projector_test

import (
	"context"
	"errors"
	"testing"

	kafkax "github.com/TworzymyMarzenia3d/front-crm/internal/kafka"
	"github.com/TworzymyMarzenia3d/front-crm/internal/logger"
	"github.com/TworzymyMarzenia3d/front-crm/internal/orders"
	"github.com/TworzymyMarzenia3d/front-crm/internal/projector"
	"github.com/TworzymyMarzenia3d/front-crm/internal/redisx"
	"github.com/segmentio/kafka-go"
)

type fakeCache struct {
	calls int
	last  redisx.CachedStatus
	err   error
}

func (c *fakeCache) Advance(_ context.Context, _ string, cs redisx.CachedStatus) error {
	c.calls++
	if c.err != nil {
		return c.err
	}
	c.last = cs
	return nil
}

type fakeDedup struct{ seen map[string]bool }

func (d *fakeDedup) Seen(_ context.Context, id string) (bool, error) { return d.seen[id], nil }
func (d *fakeDedup) Mark(_ context.Context, id string) error {
	d.seen[id] = true
	return nil
}

func message(t *testing.T, eventType string, payload any) (kafka.Message, orders.Envelope) {
	t.Helper()
	env, err := orders.NewEnvelope(context.Background(), eventType, "test", "order-1", payload)
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	return kafka.Message{Value: kafkax.MustMarshal(env)}, env
}

func TestStatusProjector(t *testing.T) {
	ctx := context.Background()
	changed := orders.OrderStatusChangedPayload{OrderID: "order-1", From: orders.StatusPending, To: orders.StatusInProgress}

	t.Run("projects status change once", func(t *testing.T) {
		cache := &fakeCache{}
		p := &projector.StatusProjector{Cache: cache, Dedup: &fakeDedup{seen: map[string]bool{}}, Log: logger.Discard()}
		m, env := message(t, orders.EventOrderStatusChanged, changed)

		if err := p.Handle(ctx, m); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if err := p.Handle(ctx, m); err != nil {
			t.Fatalf("redelivery: %v", err)
		}
		if cache.calls != 1 {
			t.Fatalf("advance calls = %d, want 1", cache.calls)
		}
		if cache.last.Status != orders.StatusInProgress || !cache.last.UpdatedAt.Equal(env.OccurredAt) {
			t.Fatalf("cached = %+v", cache.last)
		}
	})

	t.Run("ignores other events", func(t *testing.T) {
		cache := &fakeCache{}
		p := &projector.StatusProjector{Cache: cache, Log: logger.Discard()}
		m, _ := message(t, orders.EventOrderCreated, orders.OrderCreatedPayload{OrderID: "order-1"})
		if err := p.Handle(ctx, m); err != nil || cache.calls != 0 {
			t.Fatalf("err = %v, calls = %d", err, cache.calls)
		}
	})

	t.Run("commits poison messages", func(t *testing.T) {
		cache := &fakeCache{}
		p := &projector.StatusProjector{Cache: cache, Log: logger.Discard()}
		if err := p.Handle(ctx, kafka.Message{Value: []byte("not json")}); err != nil {
			t.Fatalf("poison: %v", err)
		}
		m, _ := message(t, orders.EventOrderStatusChanged, orders.OrderStatusChangedPayload{OrderID: "order-1", To: "shipped"})
		if err := p.Handle(ctx, m); err != nil || cache.calls != 0 {
			t.Fatalf("unknown status: err = %v, calls = %d", err, cache.calls)
		}
	})

	t.Run("cache failure is retried", func(t *testing.T) {
		cache := &fakeCache{err: errors.New("redis down")}
		dedup := &fakeDedup{seen: map[string]bool{}}
		p := &projector.StatusProjector{Cache: cache, Dedup: dedup, Log: logger.Discard()}
		m, env := message(t, orders.EventOrderStatusChanged, changed)

		if err := p.Handle(ctx, m); err == nil {
			t.Fatal("expected error")
		}
		if dedup.seen[env.EventID] {
			t.Fatal("failed event marked as processed")
		}
		cache.err = nil
		if err := p.Handle(ctx, m); err != nil || cache.calls != 2 {
			t.Fatalf("retry: err = %v, calls = %d", err, cache.calls)
		}
	})
}
