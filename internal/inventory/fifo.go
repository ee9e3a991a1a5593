package inventory

import (
	"slices"

	"github.com/TworzymyMarzenia3d/front-crm/internal/orders"
	"github.com/shopspring/decimal"
)

// Quote is the result of a FIFO costing walk.
type Quote struct {
	ProductID   string              `json:"product_id"`
	Quantity    decimal.Decimal     `json:"quantity"`
	Allocations []orders.Allocation `json:"allocations"`
	TotalCost   decimal.Decimal     `json:"total_cost"` // cost of what was allocated
	Available   decimal.Decimal     `json:"available"`  // unreserved stock across all batches
	Shortfall   decimal.Decimal     `json:"shortfall"`
	Sufficient  bool                `json:"sufficient"`
}

// Err is nil when the walk covered the whole quantity.
func (q Quote) Err() error {
	if q.Sufficient {
		return nil
	}
	return &orders.InsufficientStockError{
		ProductID: q.ProductID,
		Required:  q.Quantity,
		Available: q.Available,
		Shortfall: q.Shortfall,
	}
}

// Walk allocates qty across batches oldest-first (purchased_at, then
// insertion seq). held maps batch id to the quantity already tied up in other
// held reservations; that part of a batch is not available. Walk does not
// touch its inputs.
func Walk(productID string, batches []orders.Batch, held map[string]decimal.Decimal, qty decimal.Decimal) Quote {
	ordered := slices.Clone(batches)
	slices.SortStableFunc(ordered, func(a, b orders.Batch) int {
		if c := a.PurchasedAt.Compare(b.PurchasedAt); c != 0 {
			return c
		}
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})

	q := Quote{ProductID: productID, Quantity: qty}
	need := qty
	for _, b := range ordered {
		avail := b.Remaining.Sub(held[b.ID])
		if !avail.IsPositive() {
			continue
		}
		q.Available = q.Available.Add(avail)
		if !need.IsPositive() {
			continue
		}
		take := decimal.Min(avail, need)
		a := orders.Allocation{BatchID: b.ID, Quantity: take, UnitCost: b.UnitCost}
		q.Allocations = append(q.Allocations, a)
		q.TotalCost = q.TotalCost.Add(a.Cost())
		need = need.Sub(take)
	}

	if need.IsPositive() {
		q.Shortfall = need
		return q
	}
	q.Sufficient = true
	return q
}

// UnitCost derives the frozen per-unit cost of a purchase in the accounting
// currency: price × exchangeRate ÷ quantity, kept to UnitCostScale digits.
func UnitCost(price, exchangeRate, quantity decimal.Decimal) decimal.Decimal {
	return price.Mul(exchangeRate).DivRound(quantity, UnitCostScale)
}

const UnitCostScale = 6
