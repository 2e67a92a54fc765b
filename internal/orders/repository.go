package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/armada-dist/armada/internal/shared"
)

// Repository provides PostgreSQL backed order access.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds order mutations to an existing transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) SetOrderStatus(ctx context.Context, orderID int64, status Status) error {
	tag, err := r.tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=NOW() WHERE id=$1`, orderID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %d: %w", orderID, shared.ErrNotFound)
	}
	return nil
}

// GetOrder loads an order with its items.
func (r *Repository) GetOrder(ctx context.Context, id int64) (*Order, error) {
	var o Order
	err := r.pool.QueryRow(ctx, `SELECT id, store_id, status, created_at, updated_at FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.StoreID, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	items, err := r.getItems(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

// ListByStore returns orders belonging to a store, newest first.
func (r *Repository) ListByStore(ctx context.Context, storeID int64, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, store_id, status, created_at, updated_at
FROM orders WHERE store_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`, storeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []Order{}
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.StoreID, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Repository) getItems(ctx context.Context, orderID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, product_id, quantity FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
