package products

// ProductForm carries the writable product fields. Stock is deliberately
// absent: balances change only through stock movements.
type ProductForm struct {
	Code     string `json:"code" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Price    string `json:"price" validate:"required"`
	MinStock int64  `json:"min_stock" validate:"gte=0"`
	IsActive bool   `json:"is_active"`
}
