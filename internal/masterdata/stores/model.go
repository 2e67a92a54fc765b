package stores

import (
	"time"

	"github.com/shopspring/decimal"
)

// Store represents a retail store entity. Debt is owned by the debt ledger
// and only read here.
type Store struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Address   string          `json:"address"`
	Phone     string          `json:"phone"`
	Debt      decimal.Decimal `json:"debt"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// StoreForm carries the writable store fields. Debt is deliberately
// absent: it changes only through payments and charges.
type StoreForm struct {
	Name     string `json:"name" validate:"required"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	IsActive bool   `json:"is_active"`
}
