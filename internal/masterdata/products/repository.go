package products

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/armada-dist/armada/internal/masterdata/shared"
	internalshared "github.com/armada-dist/armada/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, id int64, product Product) error
	Deactivate(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const productColumns = `id, code, name, price::text, stock, min_stock, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM products WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		clause := ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR code ILIKE $` + strconv.Itoa(argCount) + `)`
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

	query += " ORDER BY " + sortOrder(filters.SortBy, filters.SortDir)
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

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	row := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("product %d: %w", id, internalshared.ErrNotFound)
	}
	return p, err
}

// Create inserts a product with zero stock; the opening balance arrives as
// a stock-in movement.
func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO products (code, name, price, stock, min_stock, is_active, created_at, updated_at)
VALUES ($1, $2, $3, 0, $4, $5, NOW(), NOW()) RETURNING `+productColumns,
		product.Code, product.Name, product.Price.String(), product.MinStock, product.IsActive)
	created, err := scanProduct(row)
	if err != nil {
		return Product{}, mapCodeConflict(err, product.Code)
	}
	return created, nil
}

// Update never touches the stock column.
func (r *repository) Update(ctx context.Context, id int64, product Product) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET code = $1, name = $2, price = $3, min_stock = $4, is_active = $5, updated_at = NOW() WHERE id = $6`,
		product.Code, product.Name, product.Price.String(), product.MinStock, product.IsActive, id)
	if err != nil {
		return mapCodeConflict(err, product.Code)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", id, internalshared.ErrNotFound)
	}
	return nil
}

func (r *repository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET is_active = false, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", id, internalshared.ErrNotFound)
	}
	return nil
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == shared.SortDesc {
		dir = "DESC"
	}
	switch sortBy {
	case "code":
		return "code " + dir
	case "stock":
		return "stock " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}

func mapCodeConflict(err error, code string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("product code %q already exists: %w", code, internalshared.ErrConflict)
	}
	return err
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	var price string
	err := row.Scan(&p.ID, &p.Code, &p.Name, &price, &p.Stock, &p.MinStock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	p.Price, err = decimal.NewFromString(price)
	if err != nil {
		return Product{}, fmt.Errorf("parse product price: %w", err)
	}
	return p, nil
}
