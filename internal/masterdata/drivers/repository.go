package drivers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/armada-dist/armada/internal/masterdata/shared"
	internalshared "github.com/armada-dist/armada/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Driver, int, error)
	Get(ctx context.Context, id int64) (Driver, error)
	Create(ctx context.Context, driver Driver) (Driver, error)
	Update(ctx context.Context, id int64, driver Driver) error
	Deactivate(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const driverColumns = `id, name, phone, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Driver, int, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM drivers WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		clause := ` AND name ILIKE $` + strconv.Itoa(argCount)
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

	query += ` ORDER BY name ASC`
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

	var drivers []Driver
	for rows.Next() {
		var d Driver
		if err := rows.Scan(&d.ID, &d.Name, &d.Phone, &d.IsActive, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, 0, err
		}
		drivers = append(drivers, d)
	}
	return drivers, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Driver, error) {
	var d Driver
	err := r.db.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id).
		Scan(&d.ID, &d.Name, &d.Phone, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Driver{}, fmt.Errorf("driver %d: %w", id, internalshared.ErrNotFound)
	}
	return d, err
}

func (r *repository) Create(ctx context.Context, driver Driver) (Driver, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO drivers (name, phone, is_active, created_at, updated_at)
VALUES ($1, $2, $3, NOW(), NOW()) RETURNING `+driverColumns,
		driver.Name, driver.Phone, driver.IsActive).
		Scan(&driver.ID, &driver.Name, &driver.Phone, &driver.IsActive, &driver.CreatedAt, &driver.UpdatedAt)
	return driver, err
}

func (r *repository) Update(ctx context.Context, id int64, driver Driver) error {
	tag, err := r.db.Exec(ctx, `UPDATE drivers SET name = $1, phone = $2, is_active = $3, updated_at = NOW() WHERE id = $4`,
		driver.Name, driver.Phone, driver.IsActive, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("driver %d: %w", id, internalshared.ErrNotFound)
	}
	return nil
}

func (r *repository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE drivers SET is_active = false, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("driver %d: %w", id, internalshared.ErrNotFound)
	}
	return nil
}
