package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/TworzymyMarzenia3d/front-crm/internal/metrics"
	"github.com/TworzymyMarzenia3d/front-crm/internal/orders"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service is the ledger write side, the FIFO costing engine, the reservation
// manager and the scrap ledger. The *Tx methods run inside a caller-provided
// unit of work so the fulfillment state machine can keep reservations atomic
// with its own status change.
type Service struct {
	Store       orders.Store
	Publisher   orders.Publisher
	Log         *slog.Logger
	ServiceName string
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

func (s *Service) publish(ctx context.Context, eventType, orderID string, payload any) {
	if s.Publisher == nil {
		return
	}
	env, err := orders.NewEnvelope(ctx, eventType, s.ServiceName, orderID, payload)
	if err == nil {
		err = s.Publisher.Publish(ctx, env)
	}
	if err != nil {
		s.log().Warn("publish failed", "event", eventType, "order_id", orderID, "err", err)
	}
}

// ---- catalogue & purchases ----

type ProductInput struct {
	Name       string            `json:"name"`
	Unit       orders.Unit       `json:"unit"`
	Category   string            `json:"category"`
	Attributes map[string]string `json:"attributes"`
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*orders.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, orders.Invalid("product name is required")
	}
	if !in.Unit.Valid() {
		return nil, orders.Invalid("unknown unit %q", in.Unit)
	}
	p := &orders.Product{
		ID:         uuid.NewString(),
		Name:       in.Name,
		Unit:       in.Unit,
		Category:   in.Category,
		Attributes: in.Attributes,
		CreatedAt:  s.now(),
	}
	err := s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		return tx.InsertProduct(ctx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*orders.Product, error) {
	var p *orders.Product
	err := s.Store.View(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		p, err = tx.GetProduct(ctx, id)
		return err
	})
	return p, err
}

func (s *Service) ListProducts(ctx context.Context) ([]orders.Product, error) {
	var out []orders.Product
	err := s.Store.View(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		out, err = tx.ListProducts(ctx)
		return err
	})
	return out, err
}

type PurchaseInput struct {
	ProductID    string          `json:"product_id"`
	Vendor       string          `json:"vendor"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	Quantity     decimal.Decimal `json:"quantity"`
	PurchasedAt  *time.Time      `json:"purchased_at"`
}

// BaseCurrency is the accounting currency unit costs are kept in.
const BaseCurrency = "PLN"

// RecordPurchase inserts a new batch. The unit cost is derived here once and
// never recomputed.
func (s *Service) RecordPurchase(ctx context.Context, in PurchaseInput) (*orders.Batch, error) {
	if !in.Quantity.IsPositive() {
		return nil, orders.Invalid("purchase quantity must be positive, got %s", in.Quantity)
	}
	if !in.Price.IsPositive() {
		return nil, orders.Invalid("purchase price must be positive, got %s", in.Price)
	}
	cur := strings.ToUpper(strings.TrimSpace(in.Currency))
	if cur == "" {
		cur = BaseCurrency
	}
	rate := in.ExchangeRate
	if rate.IsZero() && cur == BaseCurrency {
		rate = decimal.NewFromInt(1)
	}
	if !rate.IsPositive() {
		return nil, orders.Invalid("exchange rate must be positive, got %s", rate)
	}
	purchasedAt := s.now()
	if in.PurchasedAt != nil {
		purchasedAt = in.PurchasedAt.UTC()
	}

	b := &orders.Batch{
		ID:           uuid.NewString(),
		ProductID:    in.ProductID,
		Vendor:       strings.TrimSpace(in.Vendor),
		PurchasedAt:  purchasedAt,
		Price:        in.Price,
		Currency:     cur,
		ExchangeRate: rate,
		Original:     in.Quantity,
		Remaining:    in.Quantity,
		UnitCost:     UnitCost(in.Price, rate, in.Quantity),
	}
	err := s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		if _, err := tx.GetProduct(ctx, in.ProductID); err != nil {
			return fmt.Errorf("product %s: %w", in.ProductID, err)
		}
		return tx.InsertBatch(ctx, b)
	})
	if err != nil {
		return nil, fmt.Errorf("record purchase: %w", err)
	}
	return b, nil
}

// ListBatches returns batches in FIFO order; empty productID lists all.
func (s *Service) ListBatches(ctx context.Context, productID string) ([]orders.Batch, error) {
	var out []orders.Batch
	err := s.Store.View(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		out, err = tx.ListBatches(ctx, productID, false)
		return err
	})
	return out, err
}

// ---- costing ----

// Quote previews the FIFO cost of qty units without mutating anything. An
// insufficient quote is not an error: it comes back with Sufficient=false
// and the shortfall.
func (s *Service) Quote(ctx context.Context, productID string, qty decimal.Decimal) (Quote, error) {
	if !qty.IsPositive() {
		return Quote{}, orders.Invalid("quantity must be positive, got %s", qty)
	}
	var q Quote
	err := s.Store.View(ctx, func(ctx context.Context, tx orders.Tx) error {
		if _, err := tx.GetProduct(ctx, productID); err != nil {
			return fmt.Errorf("product %s: %w", productID, err)
		}
		var err error
		q, err = s.walkTx(ctx, tx, productID, qty)
		return err
	})
	return q, err
}

func (s *Service) walkTx(ctx context.Context, tx orders.Tx, productID string, qty decimal.Decimal) (Quote, error) {
	batches, err := tx.ListBatches(ctx, productID, true)
	if err != nil {
		return Quote{}, fmt.Errorf("list batches: %w", err)
	}
	held, err := tx.HeldByBatch(ctx, productID)
	if err != nil {
		return Quote{}, fmt.Errorf("held reservations: %w", err)
	}
	return Walk(productID, batches, held, qty), nil
}

// ---- reservations ----

// ReserveTx holds qty of productID for a line item. All-or-nothing: on
// insufficient stock nothing is written.
func (s *Service) ReserveTx(ctx context.Context, tx orders.Tx, lineItemID, productID string, qty decimal.Decimal) (*orders.Reservation, error) {
	if !qty.IsPositive() {
		return nil, orders.Invalid("reservation quantity must be positive, got %s", qty)
	}
	if err := tx.LockProduct(ctx, productID); err != nil {
		return nil, fmt.Errorf("lock product %s: %w", productID, err)
	}
	q, err := s.walkTx(ctx, tx, productID, qty)
	if err != nil {
		return nil, err
	}
	if err := q.Err(); err != nil {
		metrics.Reservations.WithLabelValues("insufficient").Inc()
		return nil, err
	}
	now := s.now()
	r := &orders.Reservation{
		ID:          uuid.NewString(),
		LineItemID:  lineItemID,
		ProductID:   productID,
		Quantity:    qty,
		Allocations: q.Allocations,
		TotalCost:   q.TotalCost,
		Status:      orders.ReservationHeld,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.InsertReservation(ctx, r); err != nil {
		return nil, fmt.Errorf("insert reservation: %w", err)
	}
	metrics.Reservations.WithLabelValues("held").Inc()
	return r, nil
}

// CommitTx turns a held reservation into a permanent decrement of its batches.
func (s *Service) CommitTx(ctx context.Context, tx orders.Tx, reservationID string) (*orders.Reservation, error) {
	r, err := tx.GetReservation(ctx, reservationID, orders.LockExclusive)
	if err != nil {
		return nil, fmt.Errorf("reservation %s: %w", reservationID, err)
	}
	if r.Status != orders.ReservationHeld {
		return nil, &orders.TransitionError{Entity: "reservation", ID: r.ID, From: string(r.Status), To: string(orders.ReservationCommitted)}
	}
	if err := tx.LockProduct(ctx, r.ProductID); err != nil {
		return nil, fmt.Errorf("lock product %s: %w", r.ProductID, err)
	}
	for _, a := range r.Allocations {
		if err := tx.DecrementBatch(ctx, a.BatchID, a.Quantity); err != nil {
			// A held allocation is excluded from everyone else's pool, so the
			// batch must still cover it.
			metrics.ConsistencyFaults.Inc()
			s.log().Error("commit of held reservation failed",
				"reservation_id", r.ID, "batch_id", a.BatchID, "quantity", a.Quantity.String(), "err", err)
			return nil, fmt.Errorf("%w: reservation %s batch %s: %v", orders.ErrConsistency, r.ID, a.BatchID, err)
		}
	}
	now := s.now()
	if err := tx.SetReservationStatus(ctx, r.ID, orders.ReservationHeld, orders.ReservationCommitted, now); err != nil {
		return nil, err
	}
	r.Status = orders.ReservationCommitted
	r.UpdatedAt = now
	metrics.Reservations.WithLabelValues("committed").Inc()
	return r, nil
}

// ReleaseTx frees a held reservation. Batches are not touched.
func (s *Service) ReleaseTx(ctx context.Context, tx orders.Tx, reservationID string) (*orders.Reservation, error) {
	r, err := tx.GetReservation(ctx, reservationID, orders.LockExclusive)
	if err != nil {
		return nil, fmt.Errorf("reservation %s: %w", reservationID, err)
	}
	if r.Status != orders.ReservationHeld {
		return nil, &orders.TransitionError{Entity: "reservation", ID: r.ID, From: string(r.Status), To: string(orders.ReservationReleased)}
	}
	if err := tx.LockProduct(ctx, r.ProductID); err != nil {
		return nil, fmt.Errorf("lock product %s: %w", r.ProductID, err)
	}
	now := s.now()
	if err := tx.SetReservationStatus(ctx, r.ID, orders.ReservationHeld, orders.ReservationReleased, now); err != nil {
		return nil, err
	}
	r.Status = orders.ReservationReleased
	r.UpdatedAt = now
	metrics.Reservations.WithLabelValues("released").Inc()
	return r, nil
}

// Reserve is ReserveTx in its own unit of work, for the line item's product.
func (s *Service) Reserve(ctx context.Context, lineItemID string, qty decimal.Decimal) (*orders.Reservation, error) {
	var r *orders.Reservation
	err := s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		item, err := tx.GetLineItem(ctx, lineItemID)
		if err != nil {
			return fmt.Errorf("line item %s: %w", lineItemID, err)
		}
		r, err = s.ReserveTx(ctx, tx, item.ID, item.ProductID, qty)
		return err
	})
	return r, err
}

func (s *Service) Commit(ctx context.Context, reservationID string) (*orders.Reservation, error) {
	var r *orders.Reservation
	err := s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		r, err = s.CommitTx(ctx, tx, reservationID)
		return err
	})
	return r, err
}

func (s *Service) Release(ctx context.Context, reservationID string) (*orders.Reservation, error) {
	var r *orders.Reservation
	err := s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		r, err = s.ReleaseTx(ctx, tx, reservationID)
		return err
	})
	return r, err
}

// ---- scrap ----

type ScrapInput struct {
	LineItemID string          `json:"line_item_id"`
	ProductID  string          `json:"product_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	Reason     string          `json:"reason"`
}

// LogScrap permanently removes qty from the oldest unreserved batches of the
// product. Scrap is loss on top of the line item's planned consumption: it is
// not checked against, and does not draw from, the item's own reservation.
// Only allowed while the owning order is in progress.
func (s *Service) LogScrap(ctx context.Context, in ScrapInput) (*orders.ScrapEntry, error) {
	if !in.Quantity.IsPositive() {
		return nil, orders.Invalid("scrap quantity must be positive, got %s", in.Quantity)
	}
	var (
		entry   *orders.ScrapEntry
		orderID string
	)
	err := s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		item, err := tx.GetLineItem(ctx, in.LineItemID)
		if err != nil {
			return fmt.Errorf("line item %s: %w", in.LineItemID, err)
		}
		productID := in.ProductID
		if productID == "" {
			productID = item.ProductID
		}
		if _, err := tx.GetProduct(ctx, productID); err != nil {
			return fmt.Errorf("product %s: %w", productID, err)
		}
		o, err := tx.GetOrder(ctx, item.OrderID, orders.LockShare)
		if err != nil {
			return fmt.Errorf("order %s: %w", item.OrderID, err)
		}
		if o.Status != orders.StatusInProgress {
			return fmt.Errorf("%w: scrap needs an in-progress order, order %s is %s",
				orders.ErrInvalidTransition, o.ID, o.Status)
		}
		orderID = o.ID

		if err := tx.LockProduct(ctx, productID); err != nil {
			return fmt.Errorf("lock product %s: %w", productID, err)
		}
		q, err := s.walkTx(ctx, tx, productID, in.Quantity)
		if err != nil {
			return err
		}
		if err := q.Err(); err != nil {
			return err
		}
		for _, a := range q.Allocations {
			if err := tx.DecrementBatch(ctx, a.BatchID, a.Quantity); err != nil {
				return fmt.Errorf("scrap from batch %s: %w", a.BatchID, err)
			}
		}
		entry = &orders.ScrapEntry{
			ID:          uuid.NewString(),
			LineItemID:  item.ID,
			ProductID:   productID,
			Quantity:    in.Quantity,
			Reason:      strings.TrimSpace(in.Reason),
			Allocations: q.Allocations,
			TotalCost:   q.TotalCost,
			LoggedBy:    orders.ActorFrom(ctx),
			CreatedAt:   s.now(),
		}
		return tx.InsertScrap(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	metrics.ScrapEntries.Inc()
	s.publish(ctx, orders.EventScrapLogged, orderID, orders.ScrapLoggedPayload{OrderID: orderID, Entry: *entry})
	return entry, nil
}

func (s *Service) ListScrap(ctx context.Context, orderID string) ([]orders.ScrapEntry, error) {
	var out []orders.ScrapEntry
	err := s.Store.View(ctx, func(ctx context.Context, tx orders.Tx) error {
		if _, err := tx.GetOrder(ctx, orderID, orders.LockNone); err != nil {
			return fmt.Errorf("order %s: %w", orderID, err)
		}
		var err error
		out, err = tx.ListScrapByOrder(ctx, orderID)
		return err
	})
	return out, err
}

