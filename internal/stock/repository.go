package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/armada-dist/armada/internal/platform/db"
	"github.com/armada-dist/armada/internal/shared"
)

// Repository persists the stock ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional ledger operations. The delivery
// workflow obtains one bound to its own transaction via NewTxRepository so
// stock deduction commits or rolls back together with the status flips.
type TxRepository interface {
	GetProductForUpdate(ctx context.Context, productID int64) (Product, error)
	UpdateProductStock(ctx context.Context, productID, newStock int64) error
	HasMovement(ctx context.Context, refType ReferenceType, refID, productID int64) (bool, error)
	InsertMovement(ctx context.Context, m Movement) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds ledger operations to an existing transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// GetProduct loads a product row.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, stock, min_stock, is_active, created_at, updated_at
FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Code, &p.Name, &p.Stock, &p.MinStock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
		}
		return Product{}, err
	}
	return p, nil
}

// ListMovements returns the stock card for a product, oldest first.
func (r *Repository) ListMovements(ctx context.Context, productID int64, filter MovementFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, type, quantity, stock_before, stock_after, reference_type, reference_id, notes, created_at
FROM stock_logs
WHERE product_id=$1 AND created_at BETWEEN COALESCE($2, '-infinity') AND COALESCE($3, 'infinity')
ORDER BY created_at ASC, id ASC
LIMIT $4`, productID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Type, &m.Quantity, &m.StockBefore, &m.StockAfter, &m.ReferenceType, &m.ReferenceID, &m.Notes, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movements, nil
}

// ListLowStock returns active products at or below their reorder threshold.
func (r *Repository) ListLowStock(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, stock, min_stock, is_active, created_at, updated_at
FROM products
WHERE is_active AND stock <= min_stock
ORDER BY stock - min_stock ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Stock, &p.MinStock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *txRepository) GetProductForUpdate(ctx context.Context, productID int64) (Product, error) {
	var p Product
	err := r.tx.QueryRow(ctx, `SELECT id, code, name, stock, min_stock, is_active, created_at, updated_at
FROM products WHERE id=$1 FOR UPDATE`, productID).
		Scan(&p.ID, &p.Code, &p.Name, &p.Stock, &p.MinStock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("product %d: %w", productID, shared.ErrNotFound)
		}
		return Product{}, err
	}
	return p, nil
}

func (r *txRepository) UpdateProductStock(ctx context.Context, productID, newStock int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products SET stock=$2, updated_at=NOW() WHERE id=$1`, productID, newStock)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", productID, shared.ErrNotFound)
	}
	return nil
}

func (r *txRepository) HasMovement(ctx context.Context, refType ReferenceType, refID, productID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stock_logs WHERE reference_type=$1 AND reference_id=$2 AND product_id=$3)`,
		string(refType), refID, productID).Scan(&exists)
	return exists, err
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_logs (product_id, type, quantity, stock_before, stock_after, reference_type, reference_id, notes, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW()) RETURNING id`,
		m.ProductID, string(m.Type), m.Quantity, m.StockBefore, m.StockAfter, string(m.ReferenceType), m.ReferenceID, m.Notes).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateReference
		}
		return 0, err
	}
	return id, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
