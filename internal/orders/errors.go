package orders

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrOverlap           = errors.New("schedule overlap")
	ErrBusy              = errors.New("another transition is in flight")
	ErrInUse             = errors.New("resource in use")
	// ErrConsistency marks a violated invariant that should already hold. Fatal
	// for the operation: the transaction is aborted.
	ErrConsistency = errors.New("consistency fault")
)

// InsufficientStockError carries the shortfall of a costing walk that ran out
// of unreserved batches.
type InsufficientStockError struct {
	ProductID string
	Required  decimal.Decimal
	Available decimal.Decimal
	Shortfall decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: required %s, available %s, shortfall %s",
		e.ProductID, e.Required.StringFixed(4), e.Available.StringFixed(4), e.Shortfall.StringFixed(4))
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// OverlapError names the job whose interval collides with the requested one.
type OverlapError struct {
	PrinterID        string
	ConflictingJobID string
	Start, End       time.Time
}

func (e *OverlapError) Error() string {
	if e.ConflictingJobID == "" {
		return fmt.Sprintf("printer %s is already booked within [%s, %s)",
			e.PrinterID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
	}
	return fmt.Sprintf("printer %s: [%s, %s) overlaps job %s",
		e.PrinterID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339), e.ConflictingJobID)
}

func (e *OverlapError) Unwrap() error { return ErrOverlap }

// TransitionError is returned when a status change is not on the graph.
type TransitionError struct {
	Entity string // "order", "reservation", "job"
	ID     string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %s: cannot move from %s to %s", e.Entity, e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
