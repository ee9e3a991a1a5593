package fulfillment

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/TworzymyMarzenia3d/front-crm/internal/inventory"
	"github.com/TworzymyMarzenia3d/front-crm/internal/metrics"
	"github.com/TworzymyMarzenia3d/front-crm/internal/orders"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service drives orders through pending → in_progress → completed|cancelled
// and applies the reservation side effects of each edge in the same unit of
// work as the status change.
type Service struct {
	Store       orders.Store
	Inventory   *inventory.Service
	Locker      Locker // nil: rely on the store's row lock alone
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

// ---- create & read ----

type ItemInput struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type CreateOrderInput struct {
	ClientID  string      `json:"client_id"`
	OrderDate *time.Time  `json:"order_date"`
	Items     []ItemInput `json:"items"`
}

// CreateOrder stores a pending order. The total is Σ quantity × unit price and
// has nothing to do with material cost.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*orders.Order, error) {
	now := s.now()
	o := &orders.Order{
		ID:        uuid.NewString(),
		OrderDate: now.Truncate(24 * time.Hour),
		Status:    orders.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := fill(o, in); err != nil {
		return nil, err
	}

	err := s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		if err := checkRefs(ctx, tx, o); err != nil {
			return err
		}
		return tx.InsertOrder(ctx, o)
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.publish(ctx, orders.EventOrderCreated, o.ID, orders.OrderCreatedPayload{
		OrderID: o.ID, ClientID: o.ClientID, TotalAmount: o.TotalAmount, ItemCount: len(o.Items),
	})
	return o, nil
}

// fill validates in and writes the client, date, items and total onto o.
// Line items get fresh ids.
func fill(o *orders.Order, in CreateOrderInput) error {
	clientID := strings.TrimSpace(in.ClientID)
	if clientID == "" {
		return orders.Invalid("client_id is required")
	}
	if len(in.Items) == 0 {
		return orders.Invalid("order must have at least one item")
	}
	o.ClientID = clientID
	if in.OrderDate != nil {
		o.OrderDate = in.OrderDate.UTC()
	}
	o.Items = o.Items[:0]
	o.TotalAmount = decimal.Zero
	for i, it := range in.Items {
		if !it.Quantity.IsPositive() {
			return orders.Invalid("item %d: quantity must be positive, got %s", i, it.Quantity)
		}
		if it.UnitPrice.IsNegative() {
			return orders.Invalid("item %d: unit price cannot be negative, got %s", i, it.UnitPrice)
		}
		o.Items = append(o.Items, orders.LineItem{
			ID:        uuid.NewString(),
			OrderID:   o.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
		o.TotalAmount = o.TotalAmount.Add(it.Quantity.Mul(it.UnitPrice))
	}
	return nil
}

// checkRefs rejects an order whose client or products are unknown.
func checkRefs(ctx context.Context, tx orders.Tx, o *orders.Order) error {
	if _, err := tx.GetClient(ctx, o.ClientID); err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return orders.Invalid("client not found: %s", o.ClientID)
		}
		return err
	}
	for _, it := range o.Items {
		if _, err := tx.GetProduct(ctx, it.ProductID); err != nil {
			if errors.Is(err, orders.ErrNotFound) {
				return orders.Invalid("product not found: %s", it.ProductID)
			}
			return err
		}
	}
	return nil
}

// UpdateOrder replaces the client, date and line items of a pending order.
// Orders that have left pending are rejected with ErrInvalidTransition.
func (s *Service) UpdateOrder(ctx context.Context, orderID string, in CreateOrderInput) (*orders.Order, error) {
	var out *orders.Order
	err := s.pendingOnly(ctx, orderID, func(ctx context.Context, tx orders.Tx, o *orders.Order) error {
		if err := fill(o, in); err != nil {
			return err
		}
		if err := checkRefs(ctx, tx, o); err != nil {
			return err
		}
		o.UpdatedAt = s.now()
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, orders.EventOrderUpdated, out.ID, orders.OrderUpdatedPayload{Order: *out})
	return out, nil
}

// DeleteOrder removes a pending order. Anything past pending has stock or
// schedule history and is cancelled instead.
func (s *Service) DeleteOrder(ctx context.Context, orderID string) error {
	var clientID string
	err := s.pendingOnly(ctx, orderID, func(ctx context.Context, tx orders.Tx, o *orders.Order) error {
		clientID = o.ClientID
		return tx.DeleteOrder(ctx, o.ID)
	})
	if err != nil {
		return err
	}
	s.log().Info("order deleted", "order_id", orderID, "actor", orders.ActorFrom(ctx))
	s.publish(ctx, orders.EventOrderDeleted, orderID, orders.OrderDeletedPayload{OrderID: orderID, ClientID: clientID})
	return nil
}

// pendingOnly runs fn on a pending order under the same per-order lock the
// status transitions take.
func (s *Service) pendingOnly(ctx context.Context, orderID string, fn applyFunc) error {
	unlock, err := s.lock(ctx, orderID)
	if err != nil {
		return err
	}
	defer unlock()

	return s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		o, err := tx.GetOrder(ctx, orderID, orders.LockExclusive)
		if err != nil {
			return fmt.Errorf("order %s: %w", orderID, err)
		}
		if o.Status != orders.StatusPending {
			return fmt.Errorf("%w: order %s is %s, only pending orders can change",
				orders.ErrInvalidTransition, o.ID, o.Status)
		}
		return fn(ctx, tx, o)
	})
}

func (s *Service) GetOrder(ctx context.Context, id string) (*orders.Order, error) {
	var o *orders.Order
	err := s.Store.View(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		o, err = tx.GetOrder(ctx, id, orders.LockNone)
		return err
	})
	return o, err
}

func (s *Service) ListOrders(ctx context.Context, status orders.Status) ([]orders.Order, error) {
	if status != "" && !status.Valid() {
		return nil, orders.Invalid("unknown status %q", status)
	}
	var out []orders.Order
	err := s.Store.View(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		out, err = tx.ListOrders(ctx, status)
		return err
	})
	return out, err
}

// ---- transitions ----

// ReserveMaterials moves a pending order to in_progress, holding stock for
// every line item. If any item cannot be covered the whole transition fails
// and no reservation of this attempt survives.
func (s *Service) ReserveMaterials(ctx context.Context, orderID string) (*orders.Order, error) {
	var reserved []orders.Reservation
	o, err := s.transition(ctx, orderID, orders.StatusInProgress, func(ctx context.Context, tx orders.Tx, o *orders.Order) error {
		reserved = reserved[:0]
		for _, i := range byProduct(o.Items) {
			it := o.Items[i]
			r, err := s.Inventory.ReserveTx(ctx, tx, it.ID, it.ProductID, it.Quantity)
			if err != nil {
				return fmt.Errorf("line item %s: %w", it.ID, err)
			}
			if err := tx.SetLineItemReservation(ctx, it.ID, r.ID); err != nil {
				return err
			}
			o.Items[i].ReservationID = r.ID
			reserved = append(reserved, *r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, orders.EventStockReserved, o.ID, orders.StockMovementPayload{OrderID: o.ID, Reservations: reserved})
	return o, nil
}

// Complete commits every reservation of an in-progress order.
func (s *Service) Complete(ctx context.Context, orderID string) (*orders.Order, error) {
	var committed []orders.Reservation
	o, err := s.transition(ctx, orderID, orders.StatusCompleted, func(ctx context.Context, tx orders.Tx, o *orders.Order) error {
		committed = committed[:0]
		for _, i := range byProduct(o.Items) {
			it := o.Items[i]
			if it.ReservationID == "" {
				return s.fault(o.ID, it.ID, fmt.Errorf("in-progress line item has no reservation"))
			}
			r, err := s.Inventory.CommitTx(ctx, tx, it.ReservationID)
			if err != nil {
				return s.fault(o.ID, it.ID, err)
			}
			committed = append(committed, *r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, orders.EventStockCommitted, o.ID, orders.StockMovementPayload{OrderID: o.ID, Reservations: committed})
	return o, nil
}

// Cancel cancels a pending order outright, or an in-progress one after
// releasing its reservations and cancelling its print jobs.
func (s *Service) Cancel(ctx context.Context, orderID string) (*orders.Order, error) {
	var (
		released  []orders.Reservation
		cancelled []string
	)
	o, err := s.transition(ctx, orderID, orders.StatusCancelled, func(ctx context.Context, tx orders.Tx, o *orders.Order) error {
		released, cancelled = released[:0], nil
		if o.Status == orders.StatusPending {
			return nil
		}
		for _, i := range byProduct(o.Items) {
			it := o.Items[i]
			if it.ReservationID == "" {
				return s.fault(o.ID, it.ID, fmt.Errorf("in-progress line item has no reservation"))
			}
			r, err := s.Inventory.ReleaseTx(ctx, tx, it.ReservationID)
			if err != nil {
				return s.fault(o.ID, it.ID, err)
			}
			released = append(released, *r)
		}
		var err error
		cancelled, err = tx.CancelJobsForOrder(ctx, o.ID, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(released) > 0 {
		s.publish(ctx, orders.EventStockReleased, o.ID, orders.StockMovementPayload{OrderID: o.ID, Reservations: released})
	}
	for _, id := range cancelled {
		s.publish(ctx, orders.EventJobCancelled, o.ID, orders.JobPayload{Job: orders.PrintJob{ID: id, OrderID: o.ID, Status: orders.JobCancelled}})
	}
	return o, nil
}

type applyFunc func(ctx context.Context, tx orders.Tx, o *orders.Order) error

// transition runs one edge of the status graph. A second request for the same
// order while one is executing is rejected with ErrBusy rather than queued.
func (s *Service) transition(ctx context.Context, orderID string, to orders.Status, apply applyFunc) (*orders.Order, error) {
	unlock, err := s.lock(ctx, orderID)
	if err != nil {
		if errors.Is(err, orders.ErrBusy) {
			metrics.OrderTransitions.WithLabelValues("", string(to), "busy").Inc()
		}
		return nil, err
	}
	defer unlock()

	var (
		out  *orders.Order
		from orders.Status
	)
	err = s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		o, err := tx.GetOrder(ctx, orderID, orders.LockExclusive)
		if err != nil {
			return fmt.Errorf("order %s: %w", orderID, err)
		}
		from = o.Status
		if !orders.CanTransition(o.Status, to) {
			return &orders.TransitionError{Entity: "order", ID: o.ID, From: string(o.Status), To: string(to)}
		}
		if err := apply(ctx, tx, o); err != nil {
			return err
		}
		now := s.now()
		if err := tx.SetOrderStatus(ctx, o.ID, from, to, now); err != nil {
			return err
		}
		o.Status = to
		o.UpdatedAt = now
		out = o
		return nil
	})
	metrics.OrderTransitions.WithLabelValues(string(from), string(to), transitionResult(err)).Inc()
	if err != nil {
		return nil, err
	}
	s.log().Info("order transition", "order_id", orderID, "from", from, "to", to, "actor", orders.ActorFrom(ctx))
	s.publish(ctx, orders.EventOrderStatusChanged, orderID, orders.OrderStatusChangedPayload{OrderID: orderID, From: from, To: to})
	return out, nil
}

// lock takes the per-order lock. A held lock is ErrBusy.
func (s *Service) lock(ctx context.Context, orderID string) (func(), error) {
	if s.Locker == nil {
		return func() {}, nil
	}
	unlock, ok, err := s.Locker.TryLock(ctx, orderLockKey(orderID))
	if err != nil {
		return nil, fmt.Errorf("order lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, orders.ErrBusy)
	}
	return unlock, nil
}

// byProduct returns item indexes ordered by product id so every unit of work
// takes product locks in the same order.
func byProduct(items []orders.LineItem) []int {
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(items[a].ProductID, items[b].ProductID)
	})
	return idx
}

// fault reports a broken invariant on an order's reservations. The unit of
// work is aborted by returning the error.
func (s *Service) fault(orderID, itemID string, err error) error {
	if errors.Is(err, orders.ErrConsistency) {
		return err
	}
	metrics.ConsistencyFaults.Inc()
	s.log().Error("reservation consistency fault", "order_id", orderID, "line_item_id", itemID, "err", err)
	return fmt.Errorf("%w: order %s line item %s: %w", orders.ErrConsistency, orderID, itemID, err)
}

func transitionResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, orders.ErrBusy):
		return "busy"
	case errors.Is(err, orders.ErrInsufficientStock):
		return "insufficient"
	case errors.Is(err, orders.ErrConsistency):
		return "fault"
	case errors.Is(err, orders.ErrInvalidTransition):
		return "rejected"
	}
	return "error"
}
