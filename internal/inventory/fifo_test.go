package inventory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/TworzymyMarzenia3d/front-crm/internal/inventory"
	"github.com/TworzymyMarzenia3d/front-crm/internal/orders"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func mkBatch(id string, seq int64, at time.Time, remaining, unitCost string) orders.Batch {
	return orders.Batch{ID: id, Seq: seq, ProductID: "p", PurchasedAt: at, Remaining: d(remaining), UnitCost: d(unitCost)}
}

func TestWalk(t *testing.T) {
	a := mkBatch("a", 1, t0, "500", "0.02")
	b := mkBatch("b", 2, t0.Add(time.Hour), "500", "0.025")

	tests := []struct {
		name       string
		batches    []orders.Batch
		held       map[string]decimal.Decimal
		qty        string
		cost       string
		allocs     map[string]string
		sufficient bool
		shortfall  string
	}{
		{
			name:       "spills into second batch",
			batches:    []orders.Batch{b, a},
			qty:        "600",
			cost:       "12.5",
			allocs:     map[string]string{"a": "500", "b": "100"},
			sufficient: true,
		},
		{
			name:       "fits in oldest",
			batches:    []orders.Batch{a, b},
			qty:        "1",
			cost:       "0.02",
			allocs:     map[string]string{"a": "1"},
			sufficient: true,
		},
		{
			name:       "held stock is skipped",
			batches:    []orders.Batch{a, b},
			held:       map[string]decimal.Decimal{"a": d("450")},
			qty:        "100",
			cost:       "2.25",
			allocs:     map[string]string{"a": "50", "b": "50"},
			sufficient: true,
		},
		{
			name:      "short",
			batches:   []orders.Batch{a, b},
			qty:       "1200",
			cost:      "22.5",
			allocs:    map[string]string{"a": "500", "b": "500"},
			shortfall: "200",
		},
		{
			name:      "no batches",
			qty:       "5",
			cost:      "0",
			allocs:    map[string]string{},
			shortfall: "5",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := inventory.Walk("p", tt.batches, tt.held, d(tt.qty))
			if !q.TotalCost.Equal(d(tt.cost)) {
				t.Errorf("cost = %s, want %s", q.TotalCost, tt.cost)
			}
			if q.Sufficient != tt.sufficient {
				t.Errorf("sufficient = %v, want %v", q.Sufficient, tt.sufficient)
			}
			if len(q.Allocations) != len(tt.allocs) {
				t.Fatalf("allocations = %+v, want %v", q.Allocations, tt.allocs)
			}
			for _, al := range q.Allocations {
				if want, ok := tt.allocs[al.BatchID]; !ok || !al.Quantity.Equal(d(want)) {
					t.Errorf("allocation %s = %s, want %s", al.BatchID, al.Quantity, want)
				}
			}
			if tt.shortfall != "" && !q.Shortfall.Equal(d(tt.shortfall)) {
				t.Errorf("shortfall = %s, want %s", q.Shortfall, tt.shortfall)
			}
		})
	}
}

func TestWalkTieBreaksOnSeq(t *testing.T) {
	first := mkBatch("first", 1, t0, "1", "1")
	second := mkBatch("second", 2, t0, "1", "2")
	in := []orders.Batch{second, first}

	q := inventory.Walk("p", in, nil, d("1"))
	if len(q.Allocations) != 1 || q.Allocations[0].BatchID != "first" {
		t.Fatalf("allocations = %+v", q.Allocations)
	}
	if in[0].ID != "second" {
		t.Fatal("Walk reordered its input")
	}
}

func TestQuoteErr(t *testing.T) {
	q := inventory.Walk("p", []orders.Batch{mkBatch("a", 1, t0, "10", "1")}, nil, d("25"))
	var ise *orders.InsufficientStockError
	if err := q.Err(); !errors.As(err, &ise) || !errors.Is(err, orders.ErrInsufficientStock) {
		t.Fatalf("err = %v", err)
	}
	if !ise.Available.Equal(d("10")) || !ise.Shortfall.Equal(d("15")) || ise.ProductID != "p" {
		t.Fatalf("detail = %+v", ise)
	}
}

func TestUnitCost(t *testing.T) {
	tests := []struct{ price, rate, qty, want string }{
		{"10", "1", "500", "0.02"},
		{"100", "4.3", "3", "143.333333"},
		{"12.5", "1", "500", "0.025"},
	}
	for _, tt := range tests {
		if got := inventory.UnitCost(d(tt.price), d(tt.rate), d(tt.qty)); !got.Equal(d(tt.want)) {
			t.Errorf("UnitCost(%s, %s, %s) = %s, want %s", tt.price, tt.rate, tt.qty, got, tt.want)
		}
	}
}
