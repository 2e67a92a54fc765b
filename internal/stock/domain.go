package stock

import (
	"fmt"
	"time"

	"github.com/armada-dist/armada/internal/shared"
)

// MovementType enumerates ledger entry directions.
type MovementType string

const (
	// MovementIn represents incoming supply.
	MovementIn MovementType = "in"
	// MovementOut represents outbound stock, quantity stored negative.
	MovementOut MovementType = "out"
)

// ReferenceType ties a movement to the operation that caused it.
type ReferenceType string

const (
	// ReferenceStockIn marks movements created by supply intake.
	ReferenceStockIn ReferenceType = "stock_in"
	// ReferenceDelivery marks movements created by a departing delivery.
	ReferenceDelivery ReferenceType = "delivery"
)

// IsValid checks if the reference type is known.
func (r ReferenceType) IsValid() bool {
	return r == ReferenceStockIn || r == ReferenceDelivery
}

// Product carries the stock aggregate for a single item.
type Product struct {
	ID        int64
	Code      string
	Name      string
	Stock     int64
	MinStock  int64
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Movement is an immutable stock ledger entry. stock_after - stock_before
// always equals quantity, and quantity is signed (negative for out).
type Movement struct {
	ID            int64
	ProductID     int64
	Type          MovementType
	Quantity      int64
	StockBefore   int64
	StockAfter    int64
	ReferenceType ReferenceType
	ReferenceID   int64
	Notes         string
	CreatedAt     time.Time
}

// MovementInput describes a single stock-in or stock-out request.
type MovementInput struct {
	ProductID     int64
	Quantity      int64
	ReferenceType ReferenceType
	ReferenceID   int64
	Note          string
	ActorID       int64
}

// BatchOutItem is one product deduction inside a batch.
type BatchOutItem struct {
	ProductID int64
	Quantity  int64
}

// BatchOutInput deducts several products under a single reference,
// all-or-nothing.
type BatchOutInput struct {
	Items         []BatchOutItem
	ReferenceType ReferenceType
	ReferenceID   int64
	Note          string
	ActorID       int64
}

// MovementFilter narrows ledger listings.
type MovementFilter struct {
	From  time.Time
	To    time.Time
	Limit int
}

// ErrInsufficientStock triggered when a deduction would drive stock negative.
var ErrInsufficientStock = fmt.Errorf("stock: insufficient balance: %w", shared.ErrConflict)

// ErrDuplicateReference indicates a movement already exists for the reference.
var ErrDuplicateReference = fmt.Errorf("stock: duplicate movement reference: %w", shared.ErrConflict)

// ErrInvalidQuantity indicates a non-positive quantity.
var ErrInvalidQuantity = fmt.Errorf("stock: quantity must be positive: %w", shared.ErrValidation)
