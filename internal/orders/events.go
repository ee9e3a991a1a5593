package orders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderUpdated       = "OrderUpdated"
	EventOrderDeleted       = "OrderDeleted"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventStockReserved      = "StockReserved"
	EventStockReleased      = "StockReleased"
	EventStockCommitted     = "StockCommitted"
	EventScrapLogged        = "ScrapLogged"
	EventJobScheduled       = "JobScheduled"
	EventJobRescheduled     = "JobRescheduled"
	EventJobCancelled       = "JobCancelled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	Actor         string          `json:"actor,omitempty"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps payload as a v1 event. The caller identity on ctx, if any,
// is stamped as Actor.
func NewEnvelope(ctx context.Context, eventType, producer, orderID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		Actor:         ActorFrom(ctx),
		TraceID:       TraceFrom(ctx),
		CorrelationID: orderID,
		Payload:       b,
	}, nil
}

// Publisher ships envelopes after the unit of work that produced them has
// committed. Delivery is fire-and-forget.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Envelope) error { return nil }

// ---- payloads ----

type OrderCreatedPayload struct {
	OrderID     string          `json:"order_id"`
	ClientID    string          `json:"client_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
}

// OrderUpdatedPayload carries the full order after a pending edit.
type OrderUpdatedPayload struct {
	Order Order `json:"order"`
}

type OrderDeletedPayload struct {
	OrderID  string `json:"order_id"`
	ClientID string `json:"client_id"`
}

type OrderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
}

type StockMovementPayload struct {
	OrderID      string        `json:"order_id"`
	Reservations []Reservation `json:"reservations"`
}

type ScrapLoggedPayload struct {
	OrderID string     `json:"order_id"`
	Entry   ScrapEntry `json:"entry"`
}

type JobPayload struct {
	Job PrintJob `json:"job"`
}
