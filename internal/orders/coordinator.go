package orders

import (
	"context"
	"fmt"

	"github.com/armada-dist/armada/internal/shared"
)

// TxRepository exposes the order mutation available inside a workflow
// transaction.
type TxRepository interface {
	SetOrderStatus(ctx context.Context, orderID int64, status Status) error
}

// Coordinator keeps Order.status aligned with the delivery state that
// references it. It holds no state of its own; the delivery workflow pushes
// the new status at each transition.
type Coordinator struct{}

// NewCoordinator builds a Coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Sync sets the order status unconditionally inside the caller's
// transaction.
func (c *Coordinator) Sync(ctx context.Context, tx TxRepository, orderID int64, status Status) error {
	if !status.IsValid() {
		return shared.Validationf("unknown order status %q", status)
	}
	if err := tx.SetOrderStatus(ctx, orderID, status); err != nil {
		return fmt.Errorf("sync order %d to %s: %w", orderID, status, err)
	}
	return nil
}
