package debt

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/armada-dist/armada/internal/shared"
)

// PaymentMethod enumerates accepted payment channels.
type PaymentMethod string

const (
	MethodCash     PaymentMethod = "cash"
	MethodTransfer PaymentMethod = "transfer"
	MethodCheck    PaymentMethod = "check"
)

// IsValid checks if the method is known.
func (m PaymentMethod) IsValid() bool {
	return m == MethodCash || m == MethodTransfer || m == MethodCheck
}

// OverpaymentPolicy decides what happens when a payment exceeds the
// store's outstanding debt.
type OverpaymentPolicy string

const (
	// PolicyClamp floors the new debt at zero and records the full amount.
	PolicyClamp OverpaymentPolicy = "clamp"
	// PolicyReject refuses payments larger than the outstanding debt.
	PolicyReject OverpaymentPolicy = "reject"
)

// IsValid checks if the policy is known.
func (p OverpaymentPolicy) IsValid() bool {
	return p == PolicyClamp || p == PolicyReject
}

// Store carries the outstanding debt aggregate.
type Store struct {
	ID        int64
	Name      string
	Debt      decimal.Decimal
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Payment is an immutable ledger entry reducing a store's debt.
type Payment struct {
	ID            int64
	ReceiptNumber string
	StoreID       int64
	OrderID       int64
	Amount        decimal.Decimal
	PaymentDate   time.Time
	Method        PaymentMethod
	Notes         string
	CreatedAt     time.Time
}

// Charge is an immutable ledger entry increasing a store's debt, appended
// when goods ship unpaid. Together with payments it makes Store.Debt fully
// derivable by replay.
type Charge struct {
	ID        int64
	StoreID   int64
	OrderID   int64
	Amount    decimal.Decimal
	Notes     string
	CreatedAt time.Time
}

// PaymentInput describes a payment request.
type PaymentInput struct {
	StoreID     int64
	OrderID     int64
	Amount      decimal.Decimal
	PaymentDate time.Time
	Method      PaymentMethod
	Notes       string
	ActorID     int64
}

// ChargeInput describes a debt accrual request.
type ChargeInput struct {
	StoreID int64
	OrderID int64
	Amount  decimal.Decimal
	Notes   string
	ActorID int64
}

// ErrInvalidAmount indicates a non-positive amount.
var ErrInvalidAmount = fmt.Errorf("debt: amount must be positive: %w", shared.ErrValidation)

// ErrOverpayment indicates a payment above the outstanding debt under the
// reject policy.
var ErrOverpayment = fmt.Errorf("debt: payment exceeds outstanding debt: %w", shared.ErrValidation)
