// Package ledger is the inventory ledger: quantity-on-hand per item held as
// a sequence of immutable lots, consumed in strict FIFO order. It is the only
// owner of batch and movement mutation; other modules orchestrate ledger
// operations inside their own transactions.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/stockforge/stockforge/internal/uom"
)

// SourceKind tags the business origin of a batch or movement.
type SourceKind string

const (
	// SourcePurchase marks goods received against a purchase.
	SourcePurchase SourceKind = "purchase"
	// SourceStockIn marks a plain inbound posting.
	SourceStockIn SourceKind = "stock_in"
	// SourceStockOut marks a plain outbound posting.
	SourceStockOut SourceKind = "stock_out"
	// SourceAdjustment marks manual corrections.
	SourceAdjustment SourceKind = "adjustment"
	// SourceManufacturing marks movements created by a manufacturing run.
	SourceManufacturing SourceKind = "manufacturing"
)

// Item is a stock item. QtyStored is denormalised in base units and must
// equal the signed sum of all movements for the item.
type Item struct {
	ID        int64
	Name      string
	Unit      string
	Dimension uom.Dimension
	QtyStored int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Batch is one immutable lot. QtyRemaining only ever decreases, never below
// zero; batches are never deleted.
type Batch struct {
	ID            int64
	ItemID        int64
	QtyInitial    int64
	QtyRemaining  int64
	UnitCostCents int64
	SourceKind    SourceKind
	SourceID      string
	CreatedAt     time.Time
}

// Movement is one append-only ledger line. Positive QtyChange creates a
// batch, negative consumes one.
type Movement struct {
	ID            int64
	ItemID        int64
	BatchID       *int64
	QtyChange     int64
	UnitCostCents int64
	SourceKind    SourceKind
	SourceID      string
	IsOversold    bool
	CreatedAt     time.Time
}

// Allocation is one FIFO slice taken from a batch during consumption.
type Allocation struct {
	BatchID       int64
	Qty           int64
	UnitCostCents int64
}

// AddBatchInput describes an inbound lot. IdempotencyKey is optional; when
// set, a replayed request is rejected instead of double-posting.
type AddBatchInput struct {
	ItemID         int64
	Qty            int64
	UnitCostCents  int64
	SourceKind     SourceKind
	SourceID       string
	IdempotencyKey string
}

// ConsumeInput describes an outbound FIFO consumption.
type ConsumeInput struct {
	ItemID         int64
	Qty            int64
	SourceKind     SourceKind
	SourceID       string
	IdempotencyKey string
}

// ErrInvalidQuantity indicates a non-positive quantity.
var ErrInvalidQuantity = errors.New("ledger: quantity must be positive")

// ErrInvalidUnitCost indicates a negative unit cost.
var ErrInvalidUnitCost = errors.New("ledger: unit cost must be >= 0")

// ErrItemNotFound indicates a missing item row.
var ErrItemNotFound = errors.New("ledger: item not found")

// ErrInsufficientStock is the sentinel matched by errors.Is against
// InsufficientStockError values.
var ErrInsufficientStock = errors.New("ledger: insufficient stock")

// InsufficientStockError reports a shortage for one item. Raised fail-fast
// before any mutation, or mid-allocation when the locked lots turn out not
// to cover the request, in which case the caller must roll back.
type InsufficientStockError struct {
	ItemID   int64
	Required int64
	OnHand   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("ledger: insufficient stock for item %d: required %d, on hand %d", e.ItemID, e.Required, e.OnHand)
}

// Missing returns how many base units short the request was.
func (e *InsufficientStockError) Missing() int64 {
	return e.Required - e.OnHand
}

// Is lets errors.Is(err, ErrInsufficientStock) match.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
