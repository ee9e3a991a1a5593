package kafka_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/TworzymyMarzenia3d/front-crm/internal/kafka"
	"github.com/TworzymyMarzenia3d/front-crm/internal/logger"
)

// No broker listens on this address; none of these tests reach the writer.
var deadBrokers = []string{"127.0.0.1:1"}

func TestPublishAfterCloseReturnsError(t *testing.T) {
	p := kafka.NewProducer(deadBrokers, "orders.test", 4, logger.Discard())
	p.Start(context.Background())
	p.Close()
	p.WaitClosed()

	err := p.Publish(context.Background(), []byte("k"), []byte("v"))
	if !errors.Is(err, kafka.ErrProducerClosed) {
		t.Fatalf("err = %v, want ErrProducerClosed", err)
	}
	p.Close() // second close is a no-op
}

func TestCloseReleasesBlockedPublisher(t *testing.T) {
	p := kafka.NewProducer(deadBrokers, "orders.test", 1, logger.Discard())
	ctx := context.Background()
	// Loop not started: the first message fills the inbox, the second blocks.
	if err := p.Publish(ctx, []byte("k"), []byte("1")); err != nil {
		t.Fatalf("first publish: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- p.Publish(ctx, []byte("k"), []byte("2")) }()

	time.Sleep(20 * time.Millisecond)
	p.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, kafka.ErrProducerClosed) {
			t.Fatalf("err = %v, want ErrProducerClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("publish still blocked after Close")
	}
}

func TestPublishHonoursContext(t *testing.T) {
	p := kafka.NewProducer(deadBrokers, "orders.test", 1, logger.Discard())
	if err := p.Publish(context.Background(), nil, []byte("1")); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := p.Publish(ctx, nil, []byte("2")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}
