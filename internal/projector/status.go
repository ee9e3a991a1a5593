// Package projector keeps read-side views up to date from the order event
// stream.
package projector

import (
	"context"
	"log/slog"

	kafkax "github.com/TworzymyMarzenia3d/front-crm/internal/kafka"
	"github.com/TworzymyMarzenia3d/front-crm/internal/orders"
	"github.com/TworzymyMarzenia3d/front-crm/internal/redisx"
	"github.com/segmentio/kafka-go"
)

// StatusCache is satisfied by *redisx.StatusCache.
type StatusCache interface {
	Advance(ctx context.Context, orderID string, cs redisx.CachedStatus) error
}

// Deduper remembers processed event ids.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// StatusProjector copies OrderStatusChanged events into the status cache so
// GET /orders/{id}/status stays warm across API instances.
type StatusProjector struct {
	Cache StatusCache
	Dedup Deduper // optional
	Log   *slog.Logger
}

// Handle is a kafka.Handler. Undecodable messages are logged and committed;
// cache errors are returned so the message is redelivered.
func (p *StatusProjector) Handle(ctx context.Context, m kafka.Message) error {
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		p.log().Warn("skipping undecodable message", "offset", m.Offset, "err", err)
		return nil
	}
	if env.EventType != orders.EventOrderStatusChanged {
		return nil
	}
	if p.Dedup != nil {
		if seen, err := p.Dedup.Seen(ctx, env.EventID); err == nil && seen {
			return nil
		}
	}

	pl, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
	if err != nil {
		p.log().Warn("skipping bad payload", "event_id", env.EventID, "err", err)
		return nil
	}
	if !pl.To.Valid() {
		p.log().Warn("skipping unknown status", "event_id", env.EventID, "status", pl.To)
		return nil
	}
	if err := p.Cache.Advance(ctx, pl.OrderID, redisx.CachedStatus{Status: pl.To, UpdatedAt: env.OccurredAt}); err != nil {
		return err
	}
	p.log().Debug("status projected", "order_id", pl.OrderID, "from", pl.From, "to", pl.To, "trace_id", env.TraceID)

	if p.Dedup != nil {
		if err := p.Dedup.Mark(ctx, env.EventID); err != nil {
			p.log().Warn("dedup mark failed", "event_id", env.EventID, "err", err)
		}
	}
	return nil
}

func (p *StatusProjector) log() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return slog.Default()
}
