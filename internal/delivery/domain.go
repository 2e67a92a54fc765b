package delivery

import (
	"time"
)

// Status is the lifecycle shared by deliveries and their delivery orders.
// Transitions are monotonic: scheduled → on_delivery → delivered.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusOnDelivery Status = "on_delivery"
	StatusDelivered  Status = "delivered"
)

// IsValid checks if the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusOnDelivery, StatusDelivered:
		return true
	default:
		return false
	}
}

// CanStart checks if a delivery can depart.
func (s Status) CanStart() bool {
	return s == StatusScheduled
}

// Delivery is a scheduled trip by a driver carrying one or more orders.
// Its status derives from its delivery orders: it becomes delivered only
// when every one of them is.
type Delivery struct {
	ID           int64
	DriverID     int64
	DeliveryDate time.Time
	Status       Status
	Orders       []DeliveryOrder
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DeliveryOrder associates one order with a delivery and tracks its
// individual fulfillment along the route.
type DeliveryOrder struct {
	ID            int64
	DeliveryID    int64
	OrderID       int64
	RouteOrder    int
	Status        Status
	RecipientName *string
	DeliveredAt   *time.Time
	Notes         *string
	ProofPhotoURL *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Driver is the masterdata row joined for route display.
type Driver struct {
	ID   int64
	Name string
}

// CreateDeliveryInput schedules a new delivery.
type CreateDeliveryInput struct {
	DriverID     int64
	DeliveryDate time.Time
	Orders       []CreateDeliveryOrderInput
	ActorID      int64
}

// CreateDeliveryOrderInput assigns one order a position on the route.
type CreateDeliveryOrderInput struct {
	OrderID    int64
	RouteOrder int
}

// MarkDeliveredInput records the handover of one order.
type MarkDeliveredInput struct {
	DeliveryID    int64
	OrderID       int64
	RecipientName string
	Notes         string
	ProofPhotoURL string
	ActorID       int64
}

// DeliveredInfo is the persisted handover detail.
type DeliveredInfo struct {
	RecipientName string
	Notes         string
	ProofPhotoURL string
	DeliveredAt   time.Time
}

// ListFilter narrows delivery listings.
type ListFilter struct {
	DriverID int64
	Status   Status
	DateFrom time.Time
	DateTo   time.Time
	Limit    int
	Offset   int
}
