package orders

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/inventory"
)

// Repository persists orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	inventory.TxRepository
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction. The
// transaction carries the inventory ledger primitives so order writes and
// stock movements commit together.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{TxRepository: inventory.NewTxRepository(tx), tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// FindBySource returns the order identified by the external event, with items.
func (r *Repository) FindBySource(ctx context.Context, source, sourceID string) (Order, error) {
	var order Order
	err := r.pool.QueryRow(ctx, `SELECT id, total_amount, status, source, source_id, warehouse_id, customer_email, customer_name, created_at, updated_at
FROM orders WHERE source=$1 AND source_id=$2`, source, sourceID).
		Scan(&order.ID, &order.TotalAmount, &order.Status, &order.Source, &order.SourceID, &order.WarehouseID,
			&order.CustomerEmail, &order.CustomerName, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	items, err := r.itemsFor(ctx, order.ID)
	if err != nil {
		return Order{}, err
	}
	order.Items = items
	return order, nil
}

// Get returns one order with its items.
func (r *Repository) Get(ctx context.Context, id int64) (Order, error) {
	var order Order
	err := r.pool.QueryRow(ctx, `SELECT id, total_amount, status, source, source_id, warehouse_id, customer_email, customer_name, created_at, updated_at
FROM orders WHERE id=$1`, id).
		Scan(&order.ID, &order.TotalAmount, &order.Status, &order.Source, &order.SourceID, &order.WarehouseID,
			&order.CustomerEmail, &order.CustomerName, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	items, err := r.itemsFor(ctx, order.ID)
	if err != nil {
		return Order{}, err
	}
	order.Items = items
	return order, nil
}

// List returns orders matching the admin filters, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	query := `SELECT id, total_amount, status, source, source_id, warehouse_id, customer_email, customer_name, created_at, updated_at
FROM orders WHERE 1=1`
	args := []any{}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if filter.Source != "" {
		args = append(args, filter.Source)
		query += ` AND source = $` + strconv.Itoa(len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := strconv.Itoa(len(args))
		query += ` AND (source_id ILIKE $` + n + ` OR customer_email ILIKE $` + n + ` OR customer_name ILIKE $` + n + `)`
	}

	query += ` ORDER BY created_at DESC, id DESC`
	args = append(args, filter.Limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))
	args = append(args, filter.Offset)
	query += ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.TotalAmount, &o.Status, &o.Source, &o.SourceID, &o.WarehouseID,
			&o.CustomerEmail, &o.CustomerName, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *Repository) itemsFor(ctx context.Context, orderID int64) ([]OrderItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, product_id, product_name, quantity, price
FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []OrderItem{}
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Price); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *txRepository) InsertOrder(ctx context.Context, order Order) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO orders (total_amount, status, source, source_id, warehouse_id, customer_email, customer_name, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW()) RETURNING id`,
		order.TotalAmount, string(order.Status), order.Source, order.SourceID, order.WarehouseID, order.CustomerEmail, order.CustomerName).
		Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, errDuplicateSource
		}
		return 0, err
	}
	return id, nil
}

func (r *txRepository) InsertItem(ctx context.Context, item OrderItem) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO order_items (order_id, product_id, product_name, quantity, price)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		item.OrderID, item.ProductID, item.ProductName, item.Quantity, item.Price).
		Scan(&id)
	return id, err
}

func (r *txRepository) GetStatusForUpdate(ctx context.Context, orderID int64) (Status, error) {
	var status Status
	err := r.tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return status, nil
}

func (r *txRepository) UpdateStatus(ctx context.Context, orderID int64, status Status) error {
	_, err := r.tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=NOW() WHERE id=$1`, orderID, status)
	return err
}
