package stock

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/armada-dist/armada/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListMovements(ctx context.Context, productID int64, filter MovementFilter) ([]Movement, error)
	ListLowStock(ctx context.Context) ([]Product, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// BalanceCachePort caches hot balance reads.
type BalanceCachePort interface {
	Get(ctx context.Context, productID int64) (int64, bool)
	Set(ctx context.Context, productID, balance int64)
	Invalidate(ctx context.Context, productIDs ...int64)
}

// MetricsPort counts committed movements.
type MetricsPort interface {
	ObserveMovement(movementType string)
}

// Service is the single writer of product stock. All balance mutations go
// through here so the movement log and the denormalised Product.Stock can
// never drift apart.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	cache    BalanceCachePort
	metrics  MetricsPort
	allowNeg bool
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cache BalanceCachePort, metrics MetricsPort, cfg ServiceConfig) *Service {
	return &Service{repo: repo, audit: audit, cache: cache, metrics: metrics, allowNeg: cfg.AllowNegativeStock}
}

// RecordStockIn posts incoming supply and returns the appended movement.
// A repeated (reference_type, reference_id) for the same product skips the
// whole operation and reports ErrDuplicateReference.
func (s *Service) RecordStockIn(ctx context.Context, input MovementInput) (Movement, error) {
	if input.Quantity <= 0 {
		return Movement{}, ErrInvalidQuantity
	}
	if !input.ReferenceType.IsValid() || input.ReferenceID == 0 {
		return Movement{}, shared.Validationf("stock-in requires a reference")
	}
	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		movement, err = s.apply(ctx, tx, input.ProductID, input.Quantity, input.ReferenceType, input.ReferenceID, input.Note)
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	s.afterMovement(ctx, input.ActorID, movement)
	return movement, nil
}

// RecordStockOut posts an outbound deduction; the movement quantity is
// stored negative. Deductions that would drive stock negative are rejected
// unless negative stock is explicitly allowed.
func (s *Service) RecordStockOut(ctx context.Context, input MovementInput) (Movement, error) {
	if input.Quantity <= 0 {
		return Movement{}, ErrInvalidQuantity
	}
	if !input.ReferenceType.IsValid() || input.ReferenceID == 0 {
		return Movement{}, shared.Validationf("stock-out requires a reference")
	}
	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		movement, err = s.apply(ctx, tx, input.ProductID, -input.Quantity, input.ReferenceType, input.ReferenceID, input.Note)
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	s.afterMovement(ctx, input.ActorID, movement)
	return movement, nil
}

// BatchOut deducts every item under one reference inside the caller's
// transaction. Availability is validated for all items before any row is
// touched, so the batch applies all-or-nothing. Quantities for the same
// product are merged first: the ledger keeps at most one movement per
// (reference_type, reference_id, product).
func (s *Service) BatchOut(ctx context.Context, tx TxRepository, input BatchOutInput) ([]Movement, error) {
	if len(input.Items) == 0 {
		return nil, shared.Validationf("batch stock-out requires at least one item")
	}
	if !input.ReferenceType.IsValid() || input.ReferenceID == 0 {
		return nil, shared.Validationf("batch stock-out requires a reference")
	}

	merged := map[int64]int64{}
	order := []int64{}
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if _, seen := merged[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		merged[item.ProductID] += item.Quantity
	}
	// Lock in ascending product order to keep concurrent batches deadlock free.
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	// Validate availability for the whole batch up front.
	for _, productID := range order {
		product, err := tx.GetProductForUpdate(ctx, productID)
		if err != nil {
			return nil, err
		}
		if !s.allowNeg && product.Stock-merged[productID] < 0 {
			return nil, fmt.Errorf("product %d needs %d, has %d: %w", productID, merged[productID], product.Stock, ErrInsufficientStock)
		}
	}

	movements := make([]Movement, 0, len(order))
	for _, productID := range order {
		movement, err := s.apply(ctx, tx, productID, -merged[productID], input.ReferenceType, input.ReferenceID, input.Note)
		if err != nil {
			return nil, err
		}
		movements = append(movements, movement)
	}
	return movements, nil
}

// InvalidateBalances drops cached balances for the given products. Workflows
// that deduct through BatchOut call this once their transaction has
// committed; invalidating earlier would let a concurrent read re-seed the
// cache with the pre-deduction balance.
func (s *Service) InvalidateBalances(ctx context.Context, productIDs ...int64) {
	if s.cache == nil || len(productIDs) == 0 {
		return
	}
	s.cache.Invalidate(ctx, productIDs...)
}

// GetBalance returns current stock for a product.
func (s *Service) GetBalance(ctx context.Context, productID int64) (int64, error) {
	if s.cache != nil {
		if balance, ok := s.cache.Get(ctx, productID); ok {
			return balance, nil
		}
	}
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, productID, product.Stock)
	}
	return product.Stock, nil
}

// GetMovements lists the stock card for a product.
func (s *Service) GetMovements(ctx context.Context, productID int64, filter MovementFilter) ([]Movement, error) {
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.repo.ListMovements(ctx, productID, filter)
}

// ListLowStock returns products at or below their reorder threshold.
func (s *Service) ListLowStock(ctx context.Context) ([]Product, error) {
	return s.repo.ListLowStock(ctx)
}

// apply performs one guarded balance mutation plus its ledger append. The
// product row is read FOR UPDATE, so concurrent movements against the same
// product serialise instead of losing updates.
func (s *Service) apply(ctx context.Context, tx TxRepository, productID, delta int64, refType ReferenceType, refID int64, note string) (Movement, error) {
	exists, err := tx.HasMovement(ctx, refType, refID, productID)
	if err != nil {
		return Movement{}, err
	}
	if exists {
		return Movement{}, ErrDuplicateReference
	}
	product, err := tx.GetProductForUpdate(ctx, productID)
	if err != nil {
		return Movement{}, err
	}
	after := product.Stock + delta
	if after < 0 && !s.allowNeg {
		return Movement{}, fmt.Errorf("product %d needs %d, has %d: %w", productID, -delta, product.Stock, ErrInsufficientStock)
	}
	if err := tx.UpdateProductStock(ctx, productID, after); err != nil {
		return Movement{}, err
	}
	movementType := MovementIn
	if delta < 0 {
		movementType = MovementOut
	}
	movement := Movement{
		ProductID:     productID,
		Type:          movementType,
		Quantity:      delta,
		StockBefore:   product.Stock,
		StockAfter:    after,
		ReferenceType: refType,
		ReferenceID:   refID,
		Notes:         note,
		CreatedAt:     time.Now().UTC(),
	}
	id, err := tx.InsertMovement(ctx, movement)
	if err != nil {
		return Movement{}, err
	}
	movement.ID = id
	return movement, nil
}

func (s *Service) afterMovement(ctx context.Context, actorID int64, movement Movement) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, movement.ProductID)
	}
	if s.metrics != nil {
		s.metrics.ObserveMovement(string(movement.Type))
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   fmt.Sprintf("stock:%s", movement.Type),
			Entity:   "stock_log",
			EntityID: fmt.Sprintf("%s:%d:%d", movement.ReferenceType, movement.ReferenceID, movement.ProductID),
			Meta: map[string]any{
				"product_id":   movement.ProductID,
				"quantity":     movement.Quantity,
				"stock_before": movement.StockBefore,
				"stock_after":  movement.StockAfter,
				"note":         movement.Notes,
			},
		})
	}
}
