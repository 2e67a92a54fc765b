package drivers

import "time"

// Driver represents a delivery driver entity.
type Driver struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DriverForm carries the writable driver fields.
type DriverForm struct {
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone"`
	IsActive bool   `json:"is_active"`
}
