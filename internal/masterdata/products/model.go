package products

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product entity. Stock is owned by the stock ledger
// and only read here.
type Product struct {
	ID        int64           `json:"id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int64           `json:"stock"`
	MinStock  int64           `json:"min_stock"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
