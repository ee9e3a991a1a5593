package fulfillment_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/TworzymyMarzenia3d/front-crm/internal/clients"
	"github.com/TworzymyMarzenia3d/front-crm/internal/fulfillment"
	"github.com/TworzymyMarzenia3d/front-crm/internal/inventory"
	"github.com/TworzymyMarzenia3d/front-crm/internal/logger"
	"github.com/TworzymyMarzenia3d/front-crm/internal/memstore"
	"github.com/TworzymyMarzenia3d/front-crm/internal/orders"
	"github.com/shopspring/decimal"
)

type recorder struct {
	mu     sync.Mutex
	events []orders.Envelope
}

func (r *recorder) Publish(_ context.Context, env orders.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, env)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

type fixture struct {
	store  *memstore.Store
	inv    *inventory.Service
	svc    *fulfillment.Service
	pub    *recorder
	client string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	pub := &recorder{}
	log := logger.Discard()
	inv := &inventory.Service{Store: store, Publisher: pub, Log: log, ServiceName: "test"}
	svc := &fulfillment.Service{
		Store:       store,
		Inventory:   inv,
		Locker:      fulfillment.NewLocalLocker(),
		Publisher:   pub,
		Log:         log,
		ServiceName: "test",
	}
	c, err := (&clients.Service{Store: store, Log: log}).CreateClient(context.Background(), clients.Input{Name: "Client One"})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	return &fixture{store: store, inv: inv, svc: svc, pub: pub, client: c.ID}
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return d
}

func (f *fixture) product(t *testing.T, name string) *orders.Product {
	t.Helper()
	p, err := f.inv.CreateProduct(context.Background(), inventory.ProductInput{Name: name, Unit: orders.UnitGram})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

// batch records qty at unitCost (price = qty × unitCost, PLN) purchased at the given hour.
func (f *fixture) batch(t *testing.T, productID, qty, unitCost string, hour int) *orders.Batch {
	t.Helper()
	q := dec(t, qty)
	at := time.Date(2025, 1, 1, hour, 0, 0, 0, time.UTC)
	b, err := f.inv.RecordPurchase(context.Background(), inventory.PurchaseInput{
		ProductID:   productID,
		Price:       q.Mul(dec(t, unitCost)),
		Quantity:    q,
		PurchasedAt: &at,
	})
	if err != nil {
		t.Fatalf("record purchase: %v", err)
	}
	return b
}

func (f *fixture) order(t *testing.T, items ...fulfillment.ItemInput) *orders.Order {
	t.Helper()
	o, err := f.svc.CreateOrder(context.Background(), fulfillment.CreateOrderInput{ClientID: f.client, Items: items})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func (f *fixture) remaining(t *testing.T, productID string) map[string]string {
	t.Helper()
	bs, err := f.inv.ListBatches(context.Background(), productID)
	if err != nil {
		t.Fatalf("list batches: %v", err)
	}
	out := map[string]string{}
	for _, b := range bs {
		out[b.ID] = b.Remaining.String()
	}
	return out
}

func TestCreateOrderComputesTotal(t *testing.T) {
	f := setup(t)
	p := f.product(t, "PLA black")

	o := f.order(t,
		fulfillment.ItemInput{ProductID: p.ID, Quantity: dec(t, "100"), UnitPrice: dec(t, "0.10")},
		fulfillment.ItemInput{ProductID: p.ID, Quantity: dec(t, "2"), UnitPrice: dec(t, "15")},
	)
	if o.Status != orders.StatusPending {
		t.Fatalf("status = %s, want pending", o.Status)
	}
	if !o.TotalAmount.Equal(dec(t, "40")) {
		t.Fatalf("total = %s, want 40", o.TotalAmount)
	}
	if got := f.pub.types(); len(got) != 1 || got[0] != orders.EventOrderCreated {
		t.Fatalf("events = %v", got)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	f := setup(t)
	p := f.product(t, "PETG")

	cases := []struct {
		name string
		in   fulfillment.CreateOrderInput
	}{
		{"no client", fulfillment.CreateOrderInput{Items: []fulfillment.ItemInput{{ProductID: p.ID, Quantity: dec(t, "1")}}}},
		{"no items", fulfillment.CreateOrderInput{ClientID: f.client}},
		{"zero quantity", fulfillment.CreateOrderInput{ClientID: f.client, Items: []fulfillment.ItemInput{{ProductID: p.ID}}}},
		{"negative price", fulfillment.CreateOrderInput{ClientID: f.client, Items: []fulfillment.ItemInput{{ProductID: p.ID, Quantity: dec(t, "1"), UnitPrice: dec(t, "-1")}}}},
		{"unknown product", fulfillment.CreateOrderInput{ClientID: f.client, Items: []fulfillment.ItemInput{{ProductID: "nope", Quantity: dec(t, "1")}}}},
		{"unknown client", fulfillment.CreateOrderInput{ClientID: "nobody", Items: []fulfillment.ItemInput{{ProductID: p.ID, Quantity: dec(t, "1")}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateOrder(context.Background(), tc.in)
			if !errors.Is(err, orders.ErrValidation) {
				t.Fatalf("err = %v, want validation", err)
			}
		})
	}
}

func TestReserveThenCompleteConsumesFIFO(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.product(t, "PLA white")
	a := f.batch(t, p.ID, "500", "0.02", 1)
	b := f.batch(t, p.ID, "500", "0.025", 2)
	o := f.order(t, fulfillment.ItemInput{ProductID: p.ID, Quantity: dec(t, "600"), UnitPrice: dec(t, "0.1")})

	got, err := f.svc.ReserveMaterials(ctx, o.ID)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if got.Status != orders.StatusInProgress || got.Items[0].ReservationID == "" {
		t.Fatalf("after reserve: status=%s reservation=%q", got.Status, got.Items[0].ReservationID)
	}

	// Held stock is untouched until commit.
	if rem := f.remaining(t, p.ID); rem[a.ID] != "500" || rem[b.ID] != "500" {
		t.Fatalf("remaining after reserve = %v", rem)
	}

	if _, err := f.svc.Complete(ctx, o.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if rem := f.remaining(t, p.ID); rem[a.ID] != "0" || rem[b.ID] != "400" {
		t.Fatalf("remaining after complete = %v, want A=0 B=400", rem)
	}
	stored, err := f.svc.GetOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if stored.Status != orders.StatusCompleted {
		t.Fatalf("status = %s, want completed", stored.Status)
	}
}

func TestReserveInsufficientLeavesNothing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	pla := f.product(t, "PLA")
	resin := f.product(t, "Resin")
	f.batch(t, pla.ID, "100", "0.02", 1)
	f.batch(t, resin.ID, "10", "0.2", 1)

	o := f.order(t,
		fulfillment.ItemInput{ProductID: pla.ID, Quantity: dec(t, "50"), UnitPrice: dec(t, "1")},
		fulfillment.ItemInput{ProductID: resin.ID, Quantity: dec(t, "25"), UnitPrice: dec(t, "1")},
	)

	_, err := f.svc.ReserveMaterials(ctx, o.ID)
	var ise *orders.InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("err = %v, want insufficient stock", err)
	}
	if ise.ProductID != resin.ID || !ise.Shortfall.Equal(dec(t, "15")) {
		t.Fatalf("shortfall detail = %+v", ise)
	}

	stored, _ := f.svc.GetOrder(ctx, o.ID)
	if stored.Status != orders.StatusPending {
		t.Fatalf("status = %s, want pending", stored.Status)
	}
	for _, it := range stored.Items {
		if it.ReservationID != "" {
			t.Fatalf("item %s kept reservation %s", it.ID, it.ReservationID)
		}
	}
	// The PLA reservation made before the failure was rolled back with it.
	q, err := f.inv.Quote(ctx, pla.ID, dec(t, "100"))
	if err != nil || !q.Sufficient {
		t.Fatalf("quote after failed reserve = %+v, %v", q, err)
	}
}

func TestCancelInProgressRestoresStock(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.product(t, "PLA")
	f.batch(t, p.ID, "500", "0.02", 1)
	f.batch(t, p.ID, "500", "0.025", 2)
	before := f.remaining(t, p.ID)

	o := f.order(t, fulfillment.ItemInput{ProductID: p.ID, Quantity: dec(t, "600"), UnitPrice: dec(t, "0.1")})
	if _, err := f.svc.ReserveMaterials(ctx, o.ID); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := f.svc.Cancel(ctx, o.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	after := f.remaining(t, p.ID)
	for id, r := range before {
		if after[id] != r {
			t.Fatalf("batch %s remaining %s, want %s", id, after[id], r)
		}
	}
	q, _ := f.inv.Quote(ctx, p.ID, dec(t, "1000"))
	if !q.Sufficient {
		t.Fatalf("released stock not available again: %+v", q)
	}
}

func TestCancelPendingHasNoSideEffects(t *testing.T) {
	f := setup(t)
	p := f.product(t, "PLA")
	f.batch(t, p.ID, "10", "1", 1)
	o := f.order(t, fulfillment.ItemInput{ProductID: p.ID, Quantity: dec(t, "5"), UnitPrice: dec(t, "2")})

	got, err := f.svc.Cancel(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != orders.StatusCancelled {
		t.Fatalf("status = %s", got.Status)
	}
	for _, et := range f.pub.types() {
		if et == orders.EventStockReleased {
			t.Fatalf("pending cancel released stock")
		}
	}
}

func TestInvalidTransitions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.product(t, "PLA")
	f.batch(t, p.ID, "100", "1", 1)

	t.Run("complete pending", func(t *testing.T) {
		o := f.order(t, fulfillment.ItemInput{ProductID: p.ID, Quantity: dec(t, "1"), UnitPrice: dec(t, "1")})
		_, err := f.svc.Complete(ctx, o.ID)
		if !errors.Is(err, orders.ErrInvalidTransition) {
			t.Fatalf("err = %v, want invalid transition", err)
		}
	})

	t.Run("reserve twice", func(t *testing.T) {
		o := f.order(t, fulfillment.ItemInput{ProductID: p.ID, Quantity: dec(t, "1"), UnitPrice: dec(t, "1")})
		if _, err := f.svc.ReserveMaterials(ctx, o.ID); err != nil {
			t.Fatalf("reserve: %v", err)
		}
		_, err := f.svc.ReserveMaterials(ctx, o.ID)
		if !errors.Is(err, orders.ErrInvalidTransition) {
			t.Fatalf("err = %v, want invalid transition", err)
		}
	})

	t.Run("leave terminal", func(t *testing.T) {
		o := f.order(t, fulfillment.ItemInput{ProductID: p.ID, Quantity: dec(t, "1"), UnitPrice: dec(t, "1")})
		if _, err := f.svc.Cancel(ctx, o.ID); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		for name, op := range map[string]func(context.Context, string) (*orders.Order, error){
			"reserve":  f.svc.ReserveMaterials,
			"complete": f.svc.Complete,
			"cancel":   f.svc.Cancel,
		} {
			if _, err := op(ctx, o.ID); !errors.Is(err, orders.ErrInvalidTransition) {
				t.Fatalf("%s on cancelled: err = %v", name, err)
			}
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := f.svc.Cancel(ctx, "missing")
		if !errors.Is(err, orders.ErrNotFound) {
			t.Fatalf("err = %v, want not found", err)
		}
	})
}

func TestTransitionRejectedWhileOrderLocked(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.product(t, "PLA")
	f.batch(t, p.ID, "100", "1", 1)
	o := f.order(t, fulfillment.ItemInput{ProductID: p.ID, Quantity: dec(t, "1"), UnitPrice: dec(t, "1")})

	locker := fulfillment.NewLocalLocker()
	f.svc.Locker = locker
	unlock, ok, _ := locker.TryLock(ctx, "order:"+o.ID)
	if !ok {
		t.Fatal("could not take lock")
	}

	if _, err := f.svc.Cancel(ctx, o.ID); !errors.Is(err, orders.ErrBusy) {
		t.Fatalf("err = %v, want busy", err)
	}
	unlock()
	if _, err := f.svc.Cancel(ctx, o.ID); err != nil {
		t.Fatalf("cancel after unlock: %v", err)
	}
}

func TestConcurrentStartAndCancelApplyOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.product(t, "PLA")
	f.batch(t, p.ID, "100", "1", 1)
	o := f.order(t, fulfillment.ItemInput{ProductID: p.ID, Quantity: dec(t, "60"), UnitPrice: dec(t, "1")})
	if _, err := f.svc.ReserveMaterials(ctx, o.ID); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			op := f.svc.Cancel
			if i%2 == 0 {
				op = f.svc.Complete
			}
			if _, err := op(ctx, o.ID); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("%d transitions succeeded, want exactly 1", successes)
	}
	stored, _ := f.svc.GetOrder(ctx, o.ID)
	rem := f.remaining(t, p.ID)
	for _, r := range rem {
		switch stored.Status {
		case orders.StatusCompleted:
			if r != "40" {
				t.Fatalf("completed order left remaining %s, want 40", r)
			}
		case orders.StatusCancelled:
			if r != "100" {
				t.Fatalf("cancelled order left remaining %s, want 100", r)
			}
		default:
			t.Fatalf("unexpected final status %s", stored.Status)
		}
	}
}

func TestListOrdersByStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.product(t, "PLA")
	f.batch(t, p.ID, "100", "1", 1)
	a := f.order(t, fulfillment.ItemInput{ProductID: p.ID, Quantity: dec(t, "1"), UnitPrice: dec(t, "1")})
	f.order(t, fulfillment.ItemInput{ProductID: p.ID, Quantity: dec(t, "1"), UnitPrice: dec(t, "1")})
	if _, err := f.svc.Cancel(ctx, a.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	pending, err := f.svc.ListOrders(ctx, orders.StatusPending)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending = %d, %v", len(pending), err)
	}
	all, _ := f.svc.ListOrders(ctx, "")
	if len(all) != 2 {
		t.Fatalf("all = %d, want 2", len(all))
	}
	if _, err := f.svc.ListOrders(ctx, "shipped"); !errors.Is(err, orders.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestCompleteWithReleasedReservationIsConsistencyFault(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	pla := f.product(t, "PLA")
	petg := f.product(t, "PETG")
	f.batch(t, pla.ID, "100", "0.02", 1)
	f.batch(t, petg.ID, "100", "0.03", 1)
	o := f.order(t,
		fulfillment.ItemInput{ProductID: pla.ID, Quantity: dec(t, "40"), UnitPrice: dec(t, "1")},
		fulfillment.ItemInput{ProductID: petg.ID, Quantity: dec(t, "30"), UnitPrice: dec(t, "1")},
	)
	reserved, err := f.svc.ReserveMaterials(ctx, o.ID)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	// Release one reservation behind the order's back.
	if _, err := f.inv.Release(ctx, reserved.Items[1].ReservationID); err != nil {
		t.Fatalf("release: %v", err)
	}
	before := map[string]map[string]string{pla.ID: f.remaining(t, pla.ID), petg.ID: f.remaining(t, petg.ID)}

	_, err = f.svc.Complete(ctx, o.ID)
	if !errors.Is(err, orders.ErrConsistency) {
		t.Fatalf("err = %v, want consistency fault", err)
	}

	stored, err := f.svc.GetOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if stored.Status != orders.StatusInProgress {
		t.Fatalf("status = %s, want in_progress", stored.Status)
	}
	for pid, rem := range before {
		after := f.remaining(t, pid)
		for id, r := range rem {
			if after[id] != r {
				t.Fatalf("batch %s remaining %s, want %s (nothing decremented)", id, after[id], r)
			}
		}
	}
	for _, et := range f.pub.types() {
		if et == orders.EventStockCommitted {
			t.Fatal("StockCommitted published for an aborted completion")
		}
	}
}

// lockLog records the product locks taken inside each unit of work.
type lockLog struct {
	orders.Store
	mu    sync.Mutex
	locks []string
}

type loggedTx struct {
	orders.Tx
	log *lockLog
}

func (l *lockLog) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	return l.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		return fn(ctx, loggedTx{Tx: tx, log: l})
	})
}

func (tx loggedTx) LockProduct(ctx context.Context, productID string) error {
	tx.log.mu.Lock()
	tx.log.locks = append(tx.log.locks, productID)
	tx.log.mu.Unlock()
	return tx.Tx.LockProduct(ctx, productID)
}

func (l *lockLog) take() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.locks
	l.locks = nil
	return out
}

func TestProductLocksFollowProductOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a, b := f.product(t, "A"), f.product(t, "B")
	lo, hi := a.ID, b.ID
	if hi < lo {
		lo, hi = hi, lo
	}
	f.batch(t, lo, "100", "1", 1)
	f.batch(t, hi, "100", "1", 1)

	ll := &lockLog{Store: f.store}
	f.svc.Store = ll

	for _, step := range []struct {
		name string
		op   func(context.Context, string) (*orders.Order, error)
	}{
		{"reserve", f.svc.ReserveMaterials},
		{"complete", f.svc.Complete},
	} {
		t.Run(step.name, func(t *testing.T) {
			o := f.order(t,
				fulfillment.ItemInput{ProductID: hi, Quantity: dec(t, "1"), UnitPrice: dec(t, "1")},
				fulfillment.ItemInput{ProductID: lo, Quantity: dec(t, "1"), UnitPrice: dec(t, "1")},
			)
			if step.name == "complete" {
				if _, err := f.svc.ReserveMaterials(ctx, o.ID); err != nil {
					t.Fatalf("reserve: %v", err)
				}
			}
			ll.take()
			if _, err := step.op(ctx, o.ID); err != nil {
				t.Fatalf("%s: %v", step.name, err)
			}
			if got := ll.take(); len(got) != 2 || got[0] != lo || got[1] != hi {
				t.Fatalf("lock order = %v, want [%s %s]", got, lo, hi)
			}
		})
	}

	t.Run("cancel", func(t *testing.T) {
		o := f.order(t,
			fulfillment.ItemInput{ProductID: hi, Quantity: dec(t, "1"), UnitPrice: dec(t, "1")},
			fulfillment.ItemInput{ProductID: lo, Quantity: dec(t, "1"), UnitPrice: dec(t, "1")},
		)
		if _, err := f.svc.ReserveMaterials(ctx, o.ID); err != nil {
			t.Fatalf("reserve: %v", err)
		}
		ll.take()
		if _, err := f.svc.Cancel(ctx, o.ID); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if got := ll.take(); len(got) != 2 || got[0] != lo || got[1] != hi {
			t.Fatalf("lock order = %v, want [%s %s]", got, lo, hi)
		}
	})
}

func TestUpdatePendingOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.product(t, "PLA")
	f.batch(t, p.ID, "100", "1", 1)
	o := f.order(t, fulfillment.ItemInput{ProductID: p.ID, Quantity: dec(t, "1"), UnitPrice: dec(t, "5")})

	got, err := f.svc.UpdateOrder(ctx, o.ID, fulfillment.CreateOrderInput{
		ClientID: f.client,
		Items: []fulfillment.ItemInput{
			{ProductID: p.ID, Quantity: dec(t, "3"), UnitPrice: dec(t, "2")},
			{ProductID: p.ID, Quantity: dec(t, "1"), UnitPrice: dec(t, "0.5")},
		},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !got.TotalAmount.Equal(dec(t, "6.5")) || len(got.Items) != 2 || !got.CreatedAt.Equal(o.CreatedAt) {
		t.Fatalf("updated = %+v", got)
	}
	stored, _ := f.svc.GetOrder(ctx, o.ID)
	if len(stored.Items) != 2 || stored.Items[0].ID == o.Items[0].ID || !stored.OrderDate.Equal(o.OrderDate) {
		t.Fatalf("stored = %+v", stored)
	}

	// The replaced items are gone; the new ones can be reserved.
	if _, err := f.svc.ReserveMaterials(ctx, o.ID); err != nil {
		t.Fatalf("reserve after edit: %v", err)
	}
	if q, _ := f.inv.Quote(ctx, p.ID, dec(t, "96")); !q.Sufficient {
		t.Fatalf("expected 4 held after edit, quote = %+v", q)
	}
	if q, _ := f.inv.Quote(ctx, p.ID, dec(t, "97")); q.Sufficient {
		t.Fatalf("more than 96 available after edit, quote = %+v", q)
	}

	_, err = f.svc.UpdateOrder(ctx, o.ID, fulfillment.CreateOrderInput{
		ClientID: f.client,
		Items:    []fulfillment.ItemInput{{ProductID: p.ID, Quantity: dec(t, "1"), UnitPrice: dec(t, "1")}},
	})
	if !errors.Is(err, orders.ErrInvalidTransition) {
		t.Fatalf("edit in-progress: err = %v, want invalid transition", err)
	}

	types := f.pub.types()
	found := false
	for _, et := range types {
		found = found || et == orders.EventOrderUpdated
	}
	if !found {
		t.Fatalf("events = %v, want OrderUpdated", types)
	}
}

func TestUpdateOrderValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.product(t, "PLA")
	o := f.order(t, fulfillment.ItemInput{ProductID: p.ID, Quantity: dec(t, "1"), UnitPrice: dec(t, "5")})

	for name, in := range map[string]fulfillment.CreateOrderInput{
		"no items":        {ClientID: f.client},
		"unknown client":  {ClientID: "nobody", Items: []fulfillment.ItemInput{{ProductID: p.ID, Quantity: dec(t, "1")}}},
		"unknown product": {ClientID: f.client, Items: []fulfillment.ItemInput{{ProductID: "nope", Quantity: dec(t, "1")}}},
	} {
		if _, err := f.svc.UpdateOrder(ctx, o.ID, in); !errors.Is(err, orders.ErrValidation) {
			t.Fatalf("%s: err = %v, want validation", name, err)
		}
	}
	stored, _ := f.svc.GetOrder(ctx, o.ID)
	if len(stored.Items) != 1 || stored.Items[0].ID != o.Items[0].ID {
		t.Fatalf("rejected edit changed the order: %+v", stored)
	}
	if _, err := f.svc.UpdateOrder(ctx, "missing", fulfillment.CreateOrderInput{}); !errors.Is(err, orders.ErrNotFound) {
		t.Fatalf("unknown order: err = %v", err)
	}
}

func TestDeleteOrderOnlyWhilePending(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.product(t, "PLA")
	f.batch(t, p.ID, "100", "1", 1)

	pending := f.order(t, fulfillment.ItemInput{ProductID: p.ID, Quantity: dec(t, "1"), UnitPrice: dec(t, "1")})
	if err := f.svc.DeleteOrder(ctx, pending.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.GetOrder(ctx, pending.ID); !errors.Is(err, orders.ErrNotFound) {
		t.Fatalf("deleted order still readable: %v", err)
	}

	started := f.order(t, fulfillment.ItemInput{ProductID: p.ID, Quantity: dec(t, "1"), UnitPrice: dec(t, "1")})
	if _, err := f.svc.ReserveMaterials(ctx, started.ID); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := f.svc.DeleteOrder(ctx, started.ID); !errors.Is(err, orders.ErrInvalidTransition) {
		t.Fatalf("delete in-progress: err = %v, want invalid transition", err)
	}

	locker := fulfillment.NewLocalLocker()
	f.svc.Locker = locker
	other := f.order(t, fulfillment.ItemInput{ProductID: p.ID, Quantity: dec(t, "1"), UnitPrice: dec(t, "1")})
	unlock, _, _ := locker.TryLock(ctx, "order:"+other.ID)
	defer unlock()
	if err := f.svc.DeleteOrder(ctx, other.ID); !errors.Is(err, orders.ErrBusy) {
		t.Fatalf("delete while locked: err = %v, want busy", err)
	}
}
