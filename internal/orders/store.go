package orders

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// LockMode says how a read inside a transaction claims the row it reads.
type LockMode int

const (
	LockNone      LockMode = iota
	LockShare              // blocks writers, allows other readers
	LockExclusive          // fails fast with ErrBusy when someone else holds the row
)

// CatalogTx covers products and purchase batches (the ledger).
type CatalogTx interface {
	InsertProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	InsertBatch(ctx context.Context, b *Batch) error
	// ListBatches returns batches in FIFO order (purchased_at, seq). An empty
	// productID lists all products. Only batches with remaining > 0 when
	// onlyOpen is set.
	ListBatches(ctx context.Context, productID string, onlyOpen bool) ([]Batch, error)
	// LockProduct serializes reservation/commit/scrap per product until the
	// transaction ends.
	LockProduct(ctx context.Context, productID string) error
	// DecrementBatch subtracts qty from remaining. Must not go below zero.
	DecrementBatch(ctx context.Context, batchID string, qty decimal.Decimal) error
}

type ReservationTx interface {
	InsertReservation(ctx context.Context, r *Reservation) error
	GetReservation(ctx context.Context, id string, mode LockMode) (*Reservation, error)
	// HeldByBatch sums allocations of held reservations for a product, keyed by batch id.
	HeldByBatch(ctx context.Context, productID string) (map[string]decimal.Decimal, error)
	// SetReservationStatus is a guarded update: it fails with ErrInvalidTransition
	// when the current status is not from.
	SetReservationStatus(ctx context.Context, id string, from, to ReservationStatus, at time.Time) error
	InsertScrap(ctx context.Context, e *ScrapEntry) error
	ListScrapByOrder(ctx context.Context, orderID string) ([]ScrapEntry, error)
}

type ClientTx interface {
	InsertClient(ctx context.Context, c *Client) error
	GetClient(ctx context.Context, id string) (*Client, error)
	ListClients(ctx context.Context) ([]Client, error)
	UpdateClient(ctx context.Context, c *Client) error
}

type OrderTx interface {
	InsertOrder(ctx context.Context, o *Order) error
	// UpdateOrder rewrites a pending order's head and replaces its line items.
	// It fails with ErrInvalidTransition once the order has left pending.
	UpdateOrder(ctx context.Context, o *Order) error
	// DeleteOrder removes a pending order and its line items, same guard as
	// UpdateOrder.
	DeleteOrder(ctx context.Context, id string) error
	GetOrder(ctx context.Context, id string, mode LockMode) (*Order, error)
	ListOrders(ctx context.Context, status Status) ([]Order, error)
	GetLineItem(ctx context.Context, id string) (*LineItem, error)
	SetLineItemReservation(ctx context.Context, itemID, reservationID string) error
	// SetOrderStatus is a guarded update, same contract as SetReservationStatus.
	SetOrderStatus(ctx context.Context, id string, from, to Status, at time.Time) error
}

type ScheduleTx interface {
	InsertPrinter(ctx context.Context, p *Printer) error
	GetPrinter(ctx context.Context, id string) (*Printer, error)
	ListPrinters(ctx context.Context) ([]Printer, error)
	UpdatePrinter(ctx context.Context, p *Printer) error
	// DeletePrinter removes the printer together with its cancelled jobs.
	// Callers check HasLiveJobs under LockPrinter first.
	DeletePrinter(ctx context.Context, id string) error
	HasLiveJobs(ctx context.Context, printerID string) (bool, error)
	// LockPrinter serializes overlap check + write per printer.
	LockPrinter(ctx context.Context, id string) error
	InsertJob(ctx context.Context, j *PrintJob) error
	GetJob(ctx context.Context, id string, mode LockMode) (*PrintJob, error)
	UpdateJob(ctx context.Context, j *PrintJob) error
	// OverlappingJobs returns non-cancelled jobs on printerID whose [start,end)
	// intersects [start,end), skipping excludeID.
	OverlappingJobs(ctx context.Context, printerID string, start, end time.Time, excludeID string) ([]PrintJob, error)
	// ListJobs returns non-cancelled jobs intersecting [start,end); empty
	// printerID means all printers.
	ListJobs(ctx context.Context, printerID string, start, end time.Time) ([]PrintJob, error)
	CancelJobsForOrder(ctx context.Context, orderID string, at time.Time) ([]string, error)
}

// Tx is everything a service can do inside one atomic unit of work.
type Tx interface {
	ClientTx
	CatalogTx
	ReservationTx
	OrderTx
	ScheduleTx
}

// Store runs units of work. InTx commits when fn returns nil and rolls back
// otherwise; View is read-only and takes no locks.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
