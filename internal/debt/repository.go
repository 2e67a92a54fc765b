package debt

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/armada-dist/armada/internal/platform/db"
	"github.com/armada-dist/armada/internal/shared"
)

// Repository persists debt ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional debt operations.
type TxRepository interface {
	GetStoreForUpdate(ctx context.Context, storeID int64) (Store, error)
	UpdateStoreDebt(ctx context.Context, storeID int64, debt decimal.Decimal) error
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	InsertCharge(ctx context.Context, c Charge) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("debt repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// GetStore loads a store row.
func (r *Repository) GetStore(ctx context.Context, id int64) (Store, error) {
	var s Store
	var debt string
	err := r.pool.QueryRow(ctx, `SELECT id, name, debt::text, is_active, created_at, updated_at FROM stores WHERE id=$1`, id).
		Scan(&s.ID, &s.Name, &debt, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Store{}, fmt.Errorf("store %d: %w", id, shared.ErrNotFound)
		}
		return Store{}, err
	}
	s.Debt, err = decimal.NewFromString(debt)
	if err != nil {
		return Store{}, fmt.Errorf("parse store debt: %w", err)
	}
	return s, nil
}

// ListPayments returns payments for a store, newest first.
func (r *Repository) ListPayments(ctx context.Context, storeID int64, limit int) ([]Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, receipt_number, store_id, COALESCE(order_id, 0), amount::text, payment_date, payment_method, notes, created_at
FROM debt_payments WHERE store_id=$1 ORDER BY payment_date DESC, id DESC LIMIT $2`, storeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	payments := []Payment{}
	for rows.Next() {
		var p Payment
		var amount string
		if err := rows.Scan(&p.ID, &p.ReceiptNumber, &p.StoreID, &p.OrderID, &amount, &p.PaymentDate, &p.Method, &p.Notes, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse payment amount: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

// TotalPaid sums the payment ledger for a store.
func (r *Repository) TotalPaid(ctx context.Context, storeID int64) (decimal.Decimal, error) {
	var total string
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)::text FROM debt_payments WHERE store_id=$1`, storeID).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(total)
}

func (r *txRepository) GetStoreForUpdate(ctx context.Context, storeID int64) (Store, error) {
	var s Store
	var debt string
	err := r.tx.QueryRow(ctx, `SELECT id, name, debt::text, is_active, created_at, updated_at FROM stores WHERE id=$1 FOR UPDATE`, storeID).
		Scan(&s.ID, &s.Name, &debt, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Store{}, fmt.Errorf("store %d: %w", storeID, shared.ErrNotFound)
		}
		return Store{}, err
	}
	s.Debt, err = decimal.NewFromString(debt)
	if err != nil {
		return Store{}, fmt.Errorf("parse store debt: %w", err)
	}
	return s, nil
}

func (r *txRepository) UpdateStoreDebt(ctx context.Context, storeID int64, debt decimal.Decimal) error {
	tag, err := r.tx.Exec(ctx, `UPDATE stores SET debt=$2, updated_at=NOW() WHERE id=$1`, storeID, debt.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store %d: %w", storeID, shared.ErrNotFound)
	}
	return nil
}

func (r *txRepository) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	var orderID any
	if p.OrderID != 0 {
		orderID = p.OrderID
	}
	err := r.tx.QueryRow(ctx, `INSERT INTO debt_payments (receipt_number, store_id, order_id, amount, payment_date, payment_method, notes, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW()) RETURNING id`,
		p.ReceiptNumber, p.StoreID, orderID, p.Amount.String(), p.PaymentDate, string(p.Method), p.Notes).Scan(&id)
	return id, err
}

func (r *txRepository) InsertCharge(ctx context.Context, c Charge) (int64, error) {
	var id int64
	var orderID any
	if c.OrderID != 0 {
		orderID = c.OrderID
	}
	err := r.tx.QueryRow(ctx, `INSERT INTO debt_charges (store_id, order_id, amount, notes, created_at)
VALUES ($1,$2,$3,$4,NOW()) RETURNING id`,
		c.StoreID, orderID, c.Amount.String(), c.Notes).Scan(&id)
	return id, err
}
