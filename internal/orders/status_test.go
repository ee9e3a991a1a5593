package orders_test

import (
	"testing"

	"github.com/TworzymyMarzenia3d/front-crm/internal/orders"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to orders.Status
		want     bool
	}{
		{orders.StatusPending, orders.StatusInProgress, true},
		{orders.StatusPending, orders.StatusCancelled, true},
		{orders.StatusPending, orders.StatusCompleted, false},
		{orders.StatusInProgress, orders.StatusCompleted, true},
		{orders.StatusInProgress, orders.StatusCancelled, true},
		{orders.StatusInProgress, orders.StatusPending, false},
		{orders.StatusCompleted, orders.StatusCancelled, false},
		{orders.StatusCancelled, orders.StatusInProgress, false},
		{"shipped", orders.StatusCompleted, false},
	}
	for _, tt := range tests {
		if got := orders.CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	for s, want := range map[orders.Status]bool{
		orders.StatusPending:    false,
		orders.StatusInProgress: false,
		orders.StatusCompleted:  true,
		orders.StatusCancelled:  true,
		"shipped":               false,
	} {
		if got := s.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", s, got, want)
		}
	}
	if orders.Status("shipped").Valid() {
		t.Error("unknown status reported valid")
	}
}
