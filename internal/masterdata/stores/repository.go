package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/armada-dist/armada/internal/masterdata/shared"
	internalshared "github.com/armada-dist/armada/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Store, int, error)
	Get(ctx context.Context, id int64) (Store, error)
	Create(ctx context.Context, store Store) (Store, error)
	Update(ctx context.Context, id int64, store Store) error
	Deactivate(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const storeColumns = `id, name, address, phone, debt::text, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Store, int, error) {
	query := `SELECT ` + storeColumns + ` FROM stores WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM stores WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		clause := ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR address ILIKE $` + strconv.Itoa(argCount) + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		argCount++
		clause := ` AND is_active = $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dir := "ASC"
	if filters.SortDir == shared.SortDesc {
		dir = "DESC"
	}
	switch filters.SortBy {
	case "debt":
		query += " ORDER BY debt " + dir
	case "created_at":
		query += " ORDER BY created_at " + dir
	default:
		query += " ORDER BY name " + dir
	}
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, filters.Limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, filters.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var stores []Store
	for rows.Next() {
		s, err := scanStore(rows)
		if err != nil {
			return nil, 0, err
		}
		stores = append(stores, s)
	}
	return stores, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Store, error) {
	row := r.db.QueryRow(ctx, `SELECT `+storeColumns+` FROM stores WHERE id = $1`, id)
	s, err := scanStore(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Store{}, fmt.Errorf("store %d: %w", id, internalshared.ErrNotFound)
	}
	return s, err
}

// Create inserts a store with zero debt; debt accrues through the ledger.
func (r *repository) Create(ctx context.Context, store Store) (Store, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO stores (name, address, phone, debt, is_active, created_at, updated_at)
VALUES ($1, $2, $3, 0, $4, NOW(), NOW()) RETURNING `+storeColumns,
		store.Name, store.Address, store.Phone, store.IsActive)
	return scanStore(row)
}

// Update never touches the debt column.
func (r *repository) Update(ctx context.Context, id int64, store Store) error {
	tag, err := r.db.Exec(ctx, `UPDATE stores SET name = $1, address = $2, phone = $3, is_active = $4, updated_at = NOW() WHERE id = $5`,
		store.Name, store.Address, store.Phone, store.IsActive, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store %d: %w", id, internalshared.ErrNotFound)
	}
	return nil
}

func (r *repository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE stores SET is_active = false, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store %d: %w", id, internalshared.ErrNotFound)
	}
	return nil
}

func scanStore(row pgx.Row) (Store, error) {
	var s Store
	var debt string
	err := row.Scan(&s.ID, &s.Name, &s.Address, &s.Phone, &debt, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return Store{}, err
	}
	s.Debt, err = decimal.NewFromString(debt)
	if err != nil {
		return Store{}, fmt.Errorf("parse store debt: %w", err)
	}
	return s, nil
}
