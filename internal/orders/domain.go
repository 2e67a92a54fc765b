package orders

import "time"

// Status enumerates the order lifecycle. The delivery workflow drives
// on_delivery and delivered; the surrounding flows own the rest.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusOnDelivery Status = "on_delivery"
	StatusDelivered  Status = "delivered"
	StatusCompleted  Status = "completed"
)

// IsValid checks if the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusOnDelivery, StatusDelivered, StatusCompleted:
		return true
	default:
		return false
	}
}

// Order models a store order as the delivery workflow sees it.
type Order struct {
	ID        int64
	StoreID   int64
	Status    Status
	Items     []Item
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is one ordered product line.
type Item struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int64
}
