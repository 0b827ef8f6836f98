package inventory

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// NewTxRepository binds ledger primitives to a transaction owned by another
// module so order creation and PO receipt span one atomic commit.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// GetQuantity returns the current quantity, 0 when no row exists.
func (r *Repository) GetQuantity(ctx context.Context, warehouseID, productID int64) (int, error) {
	var quantity int
	err := r.pool.QueryRow(ctx, `SELECT quantity FROM inventories WHERE warehouse_id=$1 AND product_id=$2`, warehouseID, productID).Scan(&quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return quantity, nil
}

// SetReorderLevel upserts the reorder threshold; the quantity column is never
// touched by this path.
func (r *Repository) SetReorderLevel(ctx context.Context, warehouseID, productID int64, level int) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO inventories (warehouse_id, product_id, quantity, reorder_level, created_at, updated_at)
VALUES ($1,$2,0,$3,NOW(),NOW())
ON CONFLICT (warehouse_id, product_id) DO UPDATE SET reorder_level=EXCLUDED.reorder_level, updated_at=NOW()`, warehouseID, productID, level)
	return err
}

// List returns inventory rows joined with products and warehouses.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Detail, error) {
	query := `SELECT i.id, i.warehouse_id, i.product_id, i.quantity, i.reorder_level, i.updated_at,
p.name, p.sku, p.price, w.name, w.code
FROM inventories i
JOIN products p ON p.id = i.product_id
JOIN warehouses w ON w.id = i.warehouse_id
WHERE 1=1`
	args := []any{}

	if filter.WarehouseID != 0 {
		args = append(args, filter.WarehouseID)
		query += ` AND i.warehouse_id = $` + strconv.Itoa(len(args))
	}
	switch filter.Status {
	case StatusLowStock:
		query += ` AND i.quantity <= i.reorder_level AND i.quantity > 0`
	case StatusOutOfStock:
		query += ` AND i.quantity = 0`
	case StatusInStock:
		query += ` AND i.quantity > i.reorder_level`
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := strconv.Itoa(len(args))
		query += ` AND (p.name ILIKE $` + n + ` OR p.sku ILIKE $` + n + `)`
	}

	query += ` ORDER BY w.name, p.name`
	args = append(args, filter.Limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))
	args = append(args, filter.Offset)
	query += ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details := []Detail{}
	for rows.Next() {
		var d Detail
		if err := rows.Scan(&d.ID, &d.WarehouseID, &d.ProductID, &d.Quantity, &d.ReorderLevel, &d.UpdatedAt,
			&d.ProductName, &d.ProductSKU, &d.ProductPrice, &d.WarehouseName, &d.WarehouseCode); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// ListMovements returns the movement log for one pair, newest first.
func (r *Repository) ListMovements(ctx context.Context, warehouseID, productID int64, limit int) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT m.id, m.inventory_id, m.type, m.quantity, m.reason, m.user_id, m.created_at
FROM stock_movements m
JOIN inventories i ON i.id = m.inventory_id
WHERE i.warehouse_id=$1 AND i.product_id=$2
ORDER BY m.created_at DESC, m.id DESC
LIMIT $3`, warehouseID, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.InventoryID, &m.Type, &m.Quantity, &m.Reason, &m.UserID, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// Summary aggregates dashboard figures.
func (r *Repository) Summary(ctx context.Context) (Summary, error) {
	var s Summary
	err := r.pool.QueryRow(ctx, `SELECT
(SELECT COUNT(*) FROM products WHERE is_active),
(SELECT COUNT(*) FROM inventories WHERE quantity <= reorder_level),
(SELECT COUNT(*) FROM warehouses WHERE is_active),
COALESCE((SELECT SUM(i.quantity * p.price) FROM inventories i JOIN products p ON p.id = i.product_id), 0)`).
		Scan(&s.TotalSKUs, &s.LowStockAlerts, &s.ActiveWarehouses, &s.TotalValuation)
	return s, err
}

func (r *txRepository) FindOrCreateForUpdate(ctx context.Context, warehouseID, productID int64) (Inventory, error) {
	// ON CONFLICT DO NOTHING keeps concurrent lazy creates from tripping the
	// unique constraint; the SELECT FOR UPDATE then serialises both callers.
	if _, err := r.tx.Exec(ctx, `INSERT INTO inventories (warehouse_id, product_id, quantity, reorder_level, created_at, updated_at)
VALUES ($1,$2,0,0,NOW(),NOW())
ON CONFLICT (warehouse_id, product_id) DO NOTHING`, warehouseID, productID); err != nil {
		return Inventory{}, err
	}
	var inv Inventory
	err := r.tx.QueryRow(ctx, `SELECT id, warehouse_id, product_id, quantity, reorder_level, updated_at
FROM inventories WHERE warehouse_id=$1 AND product_id=$2 FOR UPDATE`, warehouseID, productID).
		Scan(&inv.ID, &inv.WarehouseID, &inv.ProductID, &inv.Quantity, &inv.ReorderLevel, &inv.UpdatedAt)
	if err != nil {
		return Inventory{}, err
	}
	return inv, nil
}

func (r *txRepository) UpdateQuantity(ctx context.Context, inventoryID int64, quantity int) error {
	_, err := r.tx.Exec(ctx, `UPDATE inventories SET quantity=$2, updated_at=NOW() WHERE id=$1`, inventoryID, quantity)
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, movement Movement) (Movement, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (inventory_id, type, quantity, reason, user_id, created_at)
VALUES ($1,$2,$3,$4,$5,NOW()) RETURNING id, created_at`,
		movement.InventoryID, string(movement.Type), movement.Quantity, movement.Reason, movement.UserID).
		Scan(&movement.ID, &movement.CreatedAt)
	if err != nil {
		return Movement{}, err
	}
	return movement, nil
}
