package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/armada-dist/armada/internal/orders"
	"github.com/armada-dist/armada/internal/platform/db"
	"github.com/armada-dist/armada/internal/shared"
	"github.com/armada-dist/armada/internal/stock"
)

// Repository persists deliveries in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional delivery operations. Stock() and
// Orders() hand out sibling repositories bound to the same transaction, so
// a workflow step commits or rolls back as one unit across all three
// tables.
type TxRepository interface {
	InsertDelivery(ctx context.Context, d Delivery) (int64, error)
	InsertDeliveryOrder(ctx context.Context, do DeliveryOrder) (int64, error)
	GetDeliveryForUpdate(ctx context.Context, id int64) (Delivery, error)
	StartDelivery(ctx context.Context, id int64) error
	MarkOrdersOnDelivery(ctx context.Context, deliveryID int64) error
	MarkOrderDelivered(ctx context.Context, deliveryID, orderID int64, info DeliveredInfo) (DeliveryOrder, error)
	CountUndelivered(ctx context.Context, deliveryID int64) (int64, error)
	CompleteDelivery(ctx context.Context, deliveryID int64) (bool, error)
	ListOrderIDs(ctx context.Context, deliveryID int64) ([]int64, error)
	GetOrderItems(ctx context.Context, orderIDs []int64) ([]orders.Item, error)
	Stock() stock.TxRepository
	Orders() orders.TxRepository
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("delivery repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// GetDelivery loads a delivery with its orders sorted by route position.
func (r *Repository) GetDelivery(ctx context.Context, id int64) (Delivery, error) {
	var d Delivery
	err := r.pool.QueryRow(ctx, `SELECT id, driver_id, delivery_date, status, created_at, updated_at
FROM deliveries WHERE id=$1`, id).
		Scan(&d.ID, &d.DriverID, &d.DeliveryDate, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Delivery{}, fmt.Errorf("delivery %d: %w", id, shared.ErrNotFound)
		}
		return Delivery{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, delivery_id, order_id, route_order, delivery_status, recipient_name, delivered_at, notes, proof_photo_url, created_at, updated_at
FROM delivery_orders WHERE delivery_id=$1 ORDER BY route_order ASC`, id)
	if err != nil {
		return Delivery{}, err
	}
	defer rows.Close()
	for rows.Next() {
		do, err := scanDeliveryOrder(rows)
		if err != nil {
			return Delivery{}, err
		}
		d.Orders = append(d.Orders, do)
	}
	if err := rows.Err(); err != nil {
		return Delivery{}, err
	}
	return d, nil
}

// ListDeliveries returns deliveries matching the filter, newest first,
// along with the total match count for pagination.
func (r *Repository) ListDeliveries(ctx context.Context, filter ListFilter) ([]Delivery, int64, error) {
	where := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.DriverID != 0 {
		where = append(where, "driver_id="+arg(filter.DriverID))
	}
	if filter.Status != "" {
		where = append(where, "status="+arg(string(filter.Status)))
	}
	if !filter.DateFrom.IsZero() {
		where = append(where, "delivery_date>="+arg(filter.DateFrom))
	}
	if !filter.DateTo.IsZero() {
		where = append(where, "delivery_date<="+arg(filter.DateTo))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM deliveries WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id, driver_id, delivery_date, status, created_at, updated_at
FROM deliveries WHERE %s ORDER BY delivery_date DESC, id DESC LIMIT %s OFFSET %s`,
		cond, arg(limit), arg(filter.Offset))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	deliveries := []Delivery{}
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.DriverID, &d.DeliveryDate, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, 0, err
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return deliveries, total, nil
}

// ListDrivers returns active drivers for route assignment.
func (r *Repository) ListDrivers(ctx context.Context) ([]Driver, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM drivers WHERE is_active ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	drivers := []Driver{}
	for rows.Next() {
		var d Driver
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

func (r *txRepository) Stock() stock.TxRepository {
	return stock.NewTxRepository(r.tx)
}

func (r *txRepository) Orders() orders.TxRepository {
	return orders.NewTxRepository(r.tx)
}

func (r *txRepository) InsertDelivery(ctx context.Context, d Delivery) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO deliveries (driver_id, delivery_date, status, created_at, updated_at)
VALUES ($1,$2,$3,NOW(),NOW()) RETURNING id`,
		d.DriverID, d.DeliveryDate, string(d.Status)).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return 0, fmt.Errorf("driver %d: %w", d.DriverID, shared.ErrNotFound)
		}
		return 0, err
	}
	return id, nil
}

func (r *txRepository) InsertDeliveryOrder(ctx context.Context, do DeliveryOrder) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO delivery_orders (delivery_id, order_id, route_order, delivery_status, created_at, updated_at)
VALUES ($1,$2,$3,$4,NOW(),NOW()) RETURNING id`,
		do.DeliveryID, do.OrderID, do.RouteOrder, string(do.Status)).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return 0, fmt.Errorf("order %d already routed: %w", do.OrderID, shared.ErrConflict)
			case "23503":
				return 0, fmt.Errorf("order %d: %w", do.OrderID, shared.ErrNotFound)
			}
		}
		return 0, err
	}
	return id, nil
}

func (r *txRepository) GetDeliveryForUpdate(ctx context.Context, id int64) (Delivery, error) {
	var d Delivery
	err := r.tx.QueryRow(ctx, `SELECT id, driver_id, delivery_date, status, created_at, updated_at
FROM deliveries WHERE id=$1 FOR UPDATE`, id).
		Scan(&d.ID, &d.DriverID, &d.DeliveryDate, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Delivery{}, fmt.Errorf("delivery %d: %w", id, shared.ErrNotFound)
		}
		return Delivery{}, err
	}
	return d, nil
}

// StartDelivery flips scheduled to on_delivery. The status guard in the
// WHERE clause makes a concurrent double submit fail cleanly instead of
// deducting stock twice.
func (r *txRepository) StartDelivery(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE deliveries SET status=$2, updated_at=NOW() WHERE id=$1 AND status=$3`,
		id, string(StatusOnDelivery), string(StatusScheduled))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var current string
	err = r.tx.QueryRow(ctx, `SELECT status FROM deliveries WHERE id=$1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("delivery %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return shared.Statef("delivery %d is %s, expected %s", id, current, StatusScheduled)
}

func (r *txRepository) MarkOrdersOnDelivery(ctx context.Context, deliveryID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE delivery_orders SET delivery_status=$2, updated_at=NOW()
WHERE delivery_id=$1 AND delivery_status=$3`,
		deliveryID, string(StatusOnDelivery), string(StatusScheduled))
	return err
}

// MarkOrderDelivered records the handover, guarded on the current status so
// an order is delivered at most once and never before the trip departs.
func (r *txRepository) MarkOrderDelivered(ctx context.Context, deliveryID, orderID int64, info DeliveredInfo) (DeliveryOrder, error) {
	var notes, proof any
	if info.Notes != "" {
		notes = info.Notes
	}
	if info.ProofPhotoURL != "" {
		proof = info.ProofPhotoURL
	}
	row := r.tx.QueryRow(ctx, `UPDATE delivery_orders
SET delivery_status=$3, recipient_name=$4, delivered_at=$5, notes=$6, proof_photo_url=$7, updated_at=NOW()
WHERE delivery_id=$1 AND order_id=$2 AND delivery_status=$8
RETURNING id, delivery_id, order_id, route_order, delivery_status, recipient_name, delivered_at, notes, proof_photo_url, created_at, updated_at`,
		deliveryID, orderID, string(StatusDelivered), info.RecipientName, info.DeliveredAt, notes, proof, string(StatusOnDelivery))
	do, err := scanDeliveryOrder(row)
	if err == nil {
		return do, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return DeliveryOrder{}, err
	}
	var current string
	err = r.tx.QueryRow(ctx, `SELECT delivery_status FROM delivery_orders WHERE delivery_id=$1 AND order_id=$2`,
		deliveryID, orderID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return DeliveryOrder{}, fmt.Errorf("order %d on delivery %d: %w", orderID, deliveryID, shared.ErrNotFound)
	}
	if err != nil {
		return DeliveryOrder{}, err
	}
	if current == string(StatusDelivered) {
		return DeliveryOrder{}, shared.Statef("order %d on delivery %d already delivered", orderID, deliveryID)
	}
	return DeliveryOrder{}, shared.Statef("delivery %d has not started", deliveryID)
}

func (r *txRepository) CountUndelivered(ctx context.Context, deliveryID int64) (int64, error) {
	var count int64
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM delivery_orders WHERE delivery_id=$1 AND delivery_status <> $2`,
		deliveryID, string(StatusDelivered)).Scan(&count)
	return count, err
}

// CompleteDelivery promotes the delivery to delivered, but only while every
// delivery order already is. Reports whether the promotion happened.
func (r *txRepository) CompleteDelivery(ctx context.Context, deliveryID int64) (bool, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE deliveries SET status=$2, updated_at=NOW()
WHERE id=$1 AND status=$3
AND NOT EXISTS (SELECT 1 FROM delivery_orders WHERE delivery_id=$1 AND delivery_status <> $2)`,
		deliveryID, string(StatusDelivered), string(StatusOnDelivery))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *txRepository) ListOrderIDs(ctx context.Context, deliveryID int64) ([]int64, error) {
	rows, err := r.tx.Query(ctx, `SELECT order_id FROM delivery_orders WHERE delivery_id=$1 ORDER BY route_order ASC`, deliveryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *txRepository) GetOrderItems(ctx context.Context, orderIDs []int64) ([]orders.Item, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	rows, err := r.tx.Query(ctx, `SELECT id, order_id, product_id, quantity FROM order_items WHERE order_id = ANY($1)`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []orders.Item{}
	for rows.Next() {
		var item orders.Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanDeliveryOrder(row pgx.Row) (DeliveryOrder, error) {
	var do DeliveryOrder
	err := row.Scan(&do.ID, &do.DeliveryID, &do.OrderID, &do.RouteOrder, &do.Status,
		&do.RecipientName, &do.DeliveredAt, &do.Notes, &do.ProofPhotoURL, &do.CreatedAt, &do.UpdatedAt)
	return do, err
}
