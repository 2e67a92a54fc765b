package delivery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/armada-dist/armada/internal/orders"
	"github.com/armada-dist/armada/internal/shared"
	"github.com/armada-dist/armada/internal/stock"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetDelivery(ctx context.Context, id int64) (Delivery, error)
	ListDeliveries(ctx context.Context, filter ListFilter) ([]Delivery, int64, error)
	ListDrivers(ctx context.Context) ([]Driver, error)
}

// StockPort is the slice of the stock service the workflow needs. The
// deduction runs against the workflow's own transaction; cached balances are
// invalidated separately once that transaction has committed.
type StockPort interface {
	BatchOut(ctx context.Context, tx stock.TxRepository, input stock.BatchOutInput) ([]stock.Movement, error)
	InvalidateBalances(ctx context.Context, productIDs ...int64)
}

// OrdersPort keeps order statuses aligned with delivery transitions.
type OrdersPort interface {
	Sync(ctx context.Context, tx orders.TxRepository, orderID int64, status orders.Status) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts committed workflow transitions and stock movements.
type MetricsPort interface {
	ObserveDelivery(status string)
	ObserveMovement(movementType string)
}

// Service drives the delivery lifecycle. Starting a trip flips the
// delivery, its orders and the underlying order rows, and deducts stock
// for every line item inside one transaction.
type Service struct {
	repo    RepositoryPort
	stock   StockPort
	orders  OrdersPort
	audit   AuditPort
	metrics MetricsPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, stockPort StockPort, ordersPort OrdersPort, audit AuditPort, metrics MetricsPort) *Service {
	return &Service{repo: repo, stock: stockPort, orders: ordersPort, audit: audit, metrics: metrics}
}

// Create schedules a delivery with its routed orders.
func (s *Service) Create(ctx context.Context, input CreateDeliveryInput) (Delivery, error) {
	if input.DriverID == 0 {
		return Delivery{}, shared.Validationf("driver is required")
	}
	if len(input.Orders) == 0 {
		return Delivery{}, shared.Validationf("delivery requires at least one order")
	}
	seenOrders := map[int64]bool{}
	seenRoutes := map[int]bool{}
	for i := range input.Orders {
		o := &input.Orders[i]
		if o.OrderID == 0 {
			return Delivery{}, shared.Validationf("order id is required")
		}
		if seenOrders[o.OrderID] {
			return Delivery{}, shared.Validationf("order %d listed twice", o.OrderID)
		}
		seenOrders[o.OrderID] = true
		if o.RouteOrder == 0 {
			o.RouteOrder = i + 1
		}
		if seenRoutes[o.RouteOrder] {
			return Delivery{}, shared.Validationf("route position %d assigned twice", o.RouteOrder)
		}
		seenRoutes[o.RouteOrder] = true
	}
	deliveryDate := input.DeliveryDate
	if deliveryDate.IsZero() {
		deliveryDate = time.Now().UTC().Truncate(24 * time.Hour)
	}

	var deliveryID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		deliveryID, err = tx.InsertDelivery(ctx, Delivery{
			DriverID:     input.DriverID,
			DeliveryDate: deliveryDate,
			Status:       StatusScheduled,
		})
		if err != nil {
			return err
		}
		for _, o := range input.Orders {
			if _, err := tx.InsertDeliveryOrder(ctx, DeliveryOrder{
				DeliveryID: deliveryID,
				OrderID:    o.OrderID,
				RouteOrder: o.RouteOrder,
				Status:     StatusScheduled,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Delivery{}, err
	}
	if s.metrics != nil {
		s.metrics.ObserveDelivery(string(StatusScheduled))
	}
	s.record(ctx, input.ActorID, "delivery:create", deliveryID, map[string]any{
		"driver_id": input.DriverID,
		"orders":    len(input.Orders),
	})
	return s.repo.GetDelivery(ctx, deliveryID)
}

// Start departs a scheduled delivery. In one transaction it moves the
// delivery and every carried order to on_delivery and deducts stock for all
// line items under the delivery's reference. A delivery that already
// departed fails the status guard before any stock is touched, so retries
// and double submits never deduct twice.
func (s *Service) Start(ctx context.Context, deliveryID, actorID int64) (Delivery, error) {
	var moved []stock.Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.StartDelivery(ctx, deliveryID); err != nil {
			return err
		}
		orderIDs, err := tx.ListOrderIDs(ctx, deliveryID)
		if err != nil {
			return err
		}
		if len(orderIDs) == 0 {
			return shared.Statef("delivery %d has no orders", deliveryID)
		}
		if err := tx.MarkOrdersOnDelivery(ctx, deliveryID); err != nil {
			return err
		}
		for _, orderID := range orderIDs {
			if err := s.orders.Sync(ctx, tx.Orders(), orderID, orders.StatusOnDelivery); err != nil {
				return err
			}
		}
		items, err := tx.GetOrderItems(ctx, orderIDs)
		if err != nil {
			return err
		}
		batch := stock.BatchOutInput{
			ReferenceType: stock.ReferenceDelivery,
			ReferenceID:   deliveryID,
			Note:          fmt.Sprintf("delivery #%d departed", deliveryID),
		}
		for _, item := range items {
			batch.Items = append(batch.Items, stock.BatchOutItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			})
		}
		moved, err = s.stock.BatchOut(ctx, tx.Stock(), batch)
		return err
	})
	if err != nil {
		return Delivery{}, err
	}
	// The deduction is committed, so cached balances are safe to drop now.
	productIDs := make([]int64, 0, len(moved))
	for _, m := range moved {
		productIDs = append(productIDs, m.ProductID)
	}
	s.stock.InvalidateBalances(ctx, productIDs...)
	if s.metrics != nil {
		s.metrics.ObserveDelivery(string(StatusOnDelivery))
		for _, m := range moved {
			s.metrics.ObserveMovement(string(m.Type))
		}
	}
	s.record(ctx, actorID, "delivery:start", deliveryID, map[string]any{
		"movements": len(moved),
	})
	return s.repo.GetDelivery(ctx, deliveryID)
}

// MarkDelivered records the handover of one order. The order flips to
// delivered, and when it was the last one outstanding the delivery itself
// is promoted based on the persisted rows, not on request-time reads.
func (s *Service) MarkDelivered(ctx context.Context, input MarkDeliveredInput) (DeliveryOrder, error) {
	if strings.TrimSpace(input.RecipientName) == "" {
		return DeliveryOrder{}, shared.Validationf("recipient name is required")
	}
	info := DeliveredInfo{
		RecipientName: strings.TrimSpace(input.RecipientName),
		Notes:         input.Notes,
		ProofPhotoURL: input.ProofPhotoURL,
		DeliveredAt:   time.Now().UTC(),
	}
	var (
		deliveryOrder DeliveryOrder
		completed     bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		deliveryOrder, err = tx.MarkOrderDelivered(ctx, input.DeliveryID, input.OrderID, info)
		if err != nil {
			return err
		}
		if err := s.orders.Sync(ctx, tx.Orders(), input.OrderID, orders.StatusDelivered); err != nil {
			return err
		}
		remaining, err := tx.CountUndelivered(ctx, input.DeliveryID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			completed, err = tx.CompleteDelivery(ctx, input.DeliveryID)
			return err
		}
		return nil
	})
	if err != nil {
		return DeliveryOrder{}, err
	}
	if completed && s.metrics != nil {
		s.metrics.ObserveDelivery(string(StatusDelivered))
	}
	s.record(ctx, input.ActorID, "delivery:delivered", input.DeliveryID, map[string]any{
		"order_id":  input.OrderID,
		"recipient": info.RecipientName,
		"completed": completed,
	})
	return deliveryOrder, nil
}

// Get returns a delivery with its route.
func (s *Service) Get(ctx context.Context, id int64) (Delivery, error) {
	return s.repo.GetDelivery(ctx, id)
}

// List returns deliveries matching the filter plus the total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Delivery, int64, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, shared.Validationf("unknown delivery status %q", filter.Status)
	}
	return s.repo.ListDeliveries(ctx, filter)
}

// ListDrivers returns drivers available for scheduling.
func (s *Service) ListDrivers(ctx context.Context) ([]Driver, error) {
	return s.repo.ListDrivers(ctx)
}

func (s *Service) record(ctx context.Context, actorID int64, action string, deliveryID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "delivery",
		EntityID: fmt.Sprintf("%d", deliveryID),
		Meta:     meta,
	})
}
