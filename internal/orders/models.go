package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Unit is the unit of measure a product is stocked and consumed in.
type Unit string

const (
	UnitGram  Unit = "g"   // mass
	UnitML    Unit = "ml"  // volume
	UnitPiece Unit = "pcs" // count
	UnitHour  Unit = "h"   // time
)

func (u Unit) Valid() bool {
	switch u {
	case UnitGram, UnitML, UnitPiece, UnitHour:
		return true
	}
	return false
}

type Product struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Unit       Unit              `json:"unit"`
	Category   string            `json:"category,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"` // e.g. filament manufacturer/material/color
	CreatedAt  time.Time         `json:"created_at"`
}

// Batch is one purchase of a product. UnitCost is in the accounting currency and
// frozen at insert; Remaining only ever goes down.
type Batch struct {
	ID           string          `json:"id"`
	Seq          int64           `json:"seq"` // insertion order, FIFO tie-break
	ProductID    string          `json:"product_id"`
	Vendor       string          `json:"vendor,omitempty"`
	PurchasedAt  time.Time       `json:"purchased_at"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	Original     decimal.Decimal `json:"original_quantity"`
	Remaining    decimal.Decimal `json:"remaining_quantity"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
}

// Allocation is the part of a reservation or scrap entry drawn from one batch.
type Allocation struct {
	BatchID  string          `json:"batch_id"`
	Quantity decimal.Decimal `json:"quantity"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

func (a Allocation) Cost() decimal.Decimal { return a.Quantity.Mul(a.UnitCost) }

type ReservationStatus string

const (
	ReservationHeld      ReservationStatus = "held"
	ReservationCommitted ReservationStatus = "committed"
	ReservationReleased  ReservationStatus = "released"
)

type Reservation struct {
	ID          string            `json:"id"`
	LineItemID  string            `json:"line_item_id"`
	ProductID   string            `json:"product_id"`
	Quantity    decimal.Decimal   `json:"quantity"`
	Allocations []Allocation      `json:"allocations"`
	TotalCost   decimal.Decimal   `json:"total_cost"`
	Status      ReservationStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Client is an entry of the customer registry orders are placed for. NIP is
// the Polish tax id, kept as entered.
type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	NIP       string    `json:"nip,omitempty"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Order struct {
	ID          string          `json:"id"`
	ClientID    string          `json:"client_id"`
	OrderDate   time.Time       `json:"order_date"`
	Status      Status          `json:"status"` // see status.go
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []LineItem      `json:"items"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type LineItem struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"order_id"`
	ProductID     string          `json:"product_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	ReservationID string          `json:"reservation_id,omitempty"`
}

// ScrapEntry is append-only: scrap is never reversed.
type ScrapEntry struct {
	ID          string          `json:"id"`
	LineItemID  string          `json:"line_item_id"`
	ProductID   string          `json:"product_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	Reason      string          `json:"reason,omitempty"`
	Allocations []Allocation    `json:"allocations"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	LoggedBy    string          `json:"logged_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type BuildVolume struct {
	X decimal.Decimal `json:"x"`
	Y decimal.Decimal `json:"y"`
	Z decimal.Decimal `json:"z"`
}

type Printer struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	Model              string       `json:"model,omitempty"`
	BuildVolume        *BuildVolume `json:"build_volume,omitempty"`
	SupportedMaterials []string     `json:"supported_materials"`
	Notes              string       `json:"notes,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
}

type JobStatus string

const (
	JobScheduled JobStatus = "scheduled"
	JobCancelled JobStatus = "cancelled"
)

// PrintJob occupies [Start, End) on its printer.
type PrintJob struct {
	ID         string    `json:"id"`
	PrinterID  string    `json:"printer_id"`
	LineItemID string    `json:"line_item_id"`
	OrderID    string    `json:"order_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Color      string    `json:"color"`
	Status     JobStatus `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
