package memstore

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/TworzymyMarzenia3d/front-crm/internal/orders"
	"github.com/shopspring/decimal"
)

var errReadOnly = errors.New("memstore: write in read-only view")

func (t *tx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

// ---- clients ----

func (t *tx) InsertClient(_ context.Context, c *orders.Client) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.clients[c.ID] = *c
	return nil
}

func (t *tx) GetClient(_ context.Context, id string) (*orders.Client, error) {
	c, ok := t.st.clients[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	return &c, nil
}

func (t *tx) ListClients(context.Context) ([]orders.Client, error) {
	out := make([]orders.Client, 0, len(t.st.clients))
	for _, c := range t.st.clients {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b orders.Client) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (t *tx) UpdateClient(_ context.Context, c *orders.Client) error {
	if err := t.writable(); err != nil {
		return err
	}
	old, ok := t.st.clients[c.ID]
	if !ok {
		return orders.ErrNotFound
	}
	c.CreatedAt = old.CreatedAt
	t.st.clients[c.ID] = *c
	return nil
}

// ---- catalog ----

func (t *tx) InsertProduct(_ context.Context, p *orders.Product) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.products[p.ID] = *p
	return nil
}

func (t *tx) GetProduct(_ context.Context, id string) (*orders.Product, error) {
	p, ok := t.st.products[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	return &p, nil
}

func (t *tx) ListProducts(context.Context) ([]orders.Product, error) {
	out := make([]orders.Product, 0, len(t.st.products))
	for _, p := range t.st.products {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b orders.Product) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (t *tx) InsertBatch(_ context.Context, b *orders.Batch) error {
	if err := t.writable(); err != nil {
		return err
	}
	b.Seq = t.next()
	t.st.batches[b.ID] = *b
	return nil
}

func (t *tx) ListBatches(_ context.Context, productID string, onlyOpen bool) ([]orders.Batch, error) {
	var out []orders.Batch
	for _, b := range t.st.batches {
		if productID != "" && b.ProductID != productID {
			continue
		}
		if onlyOpen && !b.Remaining.IsPositive() {
			continue
		}
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b orders.Batch) int {
		if c := a.PurchasedAt.Compare(b.PurchasedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
	return out, nil
}

// LockProduct is a no-op: the store mutex already serializes units of work.
func (t *tx) LockProduct(_ context.Context, productID string) error {
	if _, ok := t.st.products[productID]; !ok {
		return orders.ErrNotFound
	}
	return nil
}

func (t *tx) DecrementBatch(_ context.Context, batchID string, qty decimal.Decimal) error {
	if err := t.writable(); err != nil {
		return err
	}
	b, ok := t.st.batches[batchID]
	if !ok {
		return orders.ErrNotFound
	}
	if b.Remaining.LessThan(qty) {
		return fmt.Errorf("batch %s has %s remaining, cannot take %s", batchID, b.Remaining, qty)
	}
	b.Remaining = b.Remaining.Sub(qty)
	t.st.batches[batchID] = b
	return nil
}

// ---- reservations & scrap ----

func (t *tx) InsertReservation(_ context.Context, r *orders.Reservation) error {
	if err := t.writable(); err != nil {
		return err
	}
	rec := *r
	rec.Allocations = slices.Clone(r.Allocations)
	t.st.reservations[r.ID] = rec
	return nil
}

func (t *tx) GetReservation(_ context.Context, id string, _ orders.LockMode) (*orders.Reservation, error) {
	r, ok := t.st.reservations[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	r.Allocations = slices.Clone(r.Allocations)
	return &r, nil
}

func (t *tx) HeldByBatch(_ context.Context, productID string) (map[string]decimal.Decimal, error) {
	held := map[string]decimal.Decimal{}
	for _, r := range t.st.reservations {
		if r.ProductID != productID || r.Status != orders.ReservationHeld {
			continue
		}
		for _, a := range r.Allocations {
			held[a.BatchID] = held[a.BatchID].Add(a.Quantity)
		}
	}
	return held, nil
}

func (t *tx) SetReservationStatus(_ context.Context, id string, from, to orders.ReservationStatus, at time.Time) error {
	if err := t.writable(); err != nil {
		return err
	}
	r, ok := t.st.reservations[id]
	if !ok {
		return orders.ErrNotFound
	}
	if r.Status != from {
		return &orders.TransitionError{Entity: "reservation", ID: id, From: string(r.Status), To: string(to)}
	}
	r.Status = to
	r.UpdatedAt = at
	t.st.reservations[id] = r
	return nil
}

func (t *tx) InsertScrap(_ context.Context, e *orders.ScrapEntry) error {
	if err := t.writable(); err != nil {
		return err
	}
	rec := *e
	rec.Allocations = slices.Clone(e.Allocations)
	t.st.scrap = append(t.st.scrap, rec)
	return nil
}

func (t *tx) ListScrapByOrder(_ context.Context, orderID string) ([]orders.ScrapEntry, error) {
	var out []orders.ScrapEntry
	for _, e := range t.st.scrap {
		if it, ok := t.st.items[e.LineItemID]; ok && it.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ---- orders ----

func (t *tx) InsertOrder(_ context.Context, o *orders.Order) error {
	if err := t.writable(); err != nil {
		return err
	}
	head := *o
	head.Items = nil
	t.st.orders[o.ID] = head
	ids := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		t.st.items[it.ID] = it
		ids = append(ids, it.ID)
	}
	t.st.itemOrder[o.ID] = ids
	return nil
}

// pending returns the stored head of a pending order.
func (t *tx) pending(id string) (orders.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return o, orders.ErrNotFound
	}
	if o.Status != orders.StatusPending {
		return o, fmt.Errorf("%w: order %s is %s, only pending orders can change", orders.ErrInvalidTransition, id, o.Status)
	}
	return o, nil
}

func (t *tx) UpdateOrder(_ context.Context, o *orders.Order) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, err := t.pending(o.ID); err != nil {
		return err
	}
	for _, id := range t.st.itemOrder[o.ID] {
		delete(t.st.items, id)
	}
	delete(t.st.itemOrder, o.ID)
	return t.InsertOrder(context.Background(), o)
}

func (t *tx) DeleteOrder(_ context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, err := t.pending(id); err != nil {
		return err
	}
	for _, itemID := range t.st.itemOrder[id] {
		delete(t.st.items, itemID)
	}
	delete(t.st.itemOrder, id)
	delete(t.st.orders, id)
	return nil
}

func (t *tx) GetOrder(_ context.Context, id string, _ orders.LockMode) (*orders.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	o.Items = t.itemsOf(id)
	return &o, nil
}

func (t *tx) itemsOf(orderID string) []orders.LineItem {
	ids := t.st.itemOrder[orderID]
	out := make([]orders.LineItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.st.items[id])
	}
	return out
}

func (t *tx) ListOrders(_ context.Context, status orders.Status) ([]orders.Order, error) {
	var out []orders.Order
	for id, o := range t.st.orders {
		if status != "" && o.Status != status {
			continue
		}
		o.Items = t.itemsOf(id)
		out = append(out, o)
	}
	slices.SortFunc(out, func(a, b orders.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (t *tx) GetLineItem(_ context.Context, id string) (*orders.LineItem, error) {
	it, ok := t.st.items[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	return &it, nil
}

func (t *tx) SetLineItemReservation(_ context.Context, itemID, reservationID string) error {
	if err := t.writable(); err != nil {
		return err
	}
	it, ok := t.st.items[itemID]
	if !ok {
		return orders.ErrNotFound
	}
	it.ReservationID = reservationID
	t.st.items[itemID] = it
	return nil
}

func (t *tx) SetOrderStatus(_ context.Context, id string, from, to orders.Status, at time.Time) error {
	if err := t.writable(); err != nil {
		return err
	}
	o, ok := t.st.orders[id]
	if !ok {
		return orders.ErrNotFound
	}
	if o.Status != from {
		return &orders.TransitionError{Entity: "order", ID: id, From: string(o.Status), To: string(to)}
	}
	o.Status = to
	o.UpdatedAt = at
	t.st.orders[id] = o
	return nil
}

// ---- printers & jobs ----

func (t *tx) InsertPrinter(_ context.Context, p *orders.Printer) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.printers[p.ID] = *p
	return nil
}

func (t *tx) GetPrinter(_ context.Context, id string) (*orders.Printer, error) {
	p, ok := t.st.printers[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	return &p, nil
}

func (t *tx) ListPrinters(context.Context) ([]orders.Printer, error) {
	out := make([]orders.Printer, 0, len(t.st.printers))
	for _, p := range t.st.printers {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b orders.Printer) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (t *tx) UpdatePrinter(_ context.Context, p *orders.Printer) error {
	if err := t.writable(); err != nil {
		return err
	}
	old, ok := t.st.printers[p.ID]
	if !ok {
		return orders.ErrNotFound
	}
	p.CreatedAt = old.CreatedAt
	t.st.printers[p.ID] = *p
	return nil
}

func (t *tx) DeletePrinter(_ context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.printers[id]; !ok {
		return orders.ErrNotFound
	}
	for jid, j := range t.st.jobs {
		if j.PrinterID != id {
			continue
		}
		if j.Status != orders.JobCancelled {
			return fmt.Errorf("%w: printer %s has job %s", orders.ErrInUse, id, jid)
		}
		delete(t.st.jobs, jid)
	}
	delete(t.st.printers, id)
	return nil
}

func (t *tx) HasLiveJobs(_ context.Context, printerID string) (bool, error) {
	for _, j := range t.st.jobs {
		if j.PrinterID == printerID && j.Status != orders.JobCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) LockPrinter(_ context.Context, id string) error {
	if _, ok := t.st.printers[id]; !ok {
		return orders.ErrNotFound
	}
	return nil
}

func (t *tx) InsertJob(_ context.Context, j *orders.PrintJob) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.jobs[j.ID] = *j
	return nil
}

func (t *tx) GetJob(_ context.Context, id string, _ orders.LockMode) (*orders.PrintJob, error) {
	j, ok := t.st.jobs[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	return &j, nil
}

func (t *tx) UpdateJob(_ context.Context, j *orders.PrintJob) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.jobs[j.ID]; !ok {
		return orders.ErrNotFound
	}
	t.st.jobs[j.ID] = *j
	return nil
}

func intersects(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func (t *tx) OverlappingJobs(_ context.Context, printerID string, start, end time.Time, excludeID string) ([]orders.PrintJob, error) {
	var out []orders.PrintJob
	for _, j := range t.st.jobs {
		if j.PrinterID != printerID || j.ID == excludeID || j.Status == orders.JobCancelled {
			continue
		}
		if intersects(j.Start, j.End, start, end) {
			out = append(out, j)
		}
	}
	sortJobs(out)
	return out, nil
}

func (t *tx) ListJobs(_ context.Context, printerID string, start, end time.Time) ([]orders.PrintJob, error) {
	var out []orders.PrintJob
	for _, j := range t.st.jobs {
		if printerID != "" && j.PrinterID != printerID {
			continue
		}
		if j.Status == orders.JobCancelled {
			continue
		}
		if intersects(j.Start, j.End, start, end) {
			out = append(out, j)
		}
	}
	sortJobs(out)
	return out, nil
}

func (t *tx) CancelJobsForOrder(_ context.Context, orderID string, at time.Time) ([]string, error) {
	if err := t.writable(); err != nil {
		return nil, err
	}
	var ids []string
	for id, j := range t.st.jobs {
		if j.OrderID != orderID || j.Status == orders.JobCancelled {
			continue
		}
		j.Status = orders.JobCancelled
		j.UpdatedAt = at
		t.st.jobs[id] = j
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func sortJobs(js []orders.PrintJob) {
	slices.SortFunc(js, func(a, b orders.PrintJob) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
