package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/TworzymyMarzenia3d/front-crm/internal/orders"
	"github.com/segmentio/kafka-go"
)

// EventPublisher routes envelopes to their topic's producer, keyed by order id.
type EventPublisher struct {
	producers map[string]*Producer
}

// NewEventPublisher creates one producer per topic in orders.Topics.
func NewEventPublisher(brokers []string, buf int, log *slog.Logger) *EventPublisher {
	ps := make(map[string]*Producer)
	for _, t := range orders.Topics() {
		ps[t] = NewProducer(brokers, t, buf, log)
	}
	return &EventPublisher{producers: ps}
}

func (p *EventPublisher) Start(ctx context.Context) {
	for _, pr := range p.producers {
		pr.Start(ctx)
	}
}

func (p *EventPublisher) Publish(ctx context.Context, env orders.Envelope) error {
	topic := orders.TopicFor(env.EventType)
	pr, ok := p.producers[topic]
	if !ok {
		return fmt.Errorf("no producer for topic %s", topic)
	}
	return pr.Publish(ctx, orders.PartitionKey(env.CorrelationID), MustMarshal(env),
		kafka.Header{Key: "x-event-type", Value: []byte(env.EventType)},
		kafka.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(env.EventVersion))},
	)
}

// Close flushes and closes every producer.
func (p *EventPublisher) Close() {
	for _, pr := range p.producers {
		pr.Close()
	}
	for _, pr := range p.producers {
		pr.WaitClosed()
	}
}

var _ orders.Publisher = (*EventPublisher)(nil)
