package inventory

import (
	"errors"
	"fmt"
	"time"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementTypeIn represents an inbound movement (receipt, initial stock).
	MovementTypeIn MovementType = "in"
	// MovementTypeOut represents an outbound movement (order fulfillment).
	MovementTypeOut MovementType = "out"
	// MovementTypeAdjustment represents a manual correction in either direction.
	MovementTypeAdjustment MovementType = "adjustment"
)

// Inventory is the authoritative quantity for one (warehouse, product) pair.
// Rows are created lazily on first movement and mutated only by the Ledger.
type Inventory struct {
	ID           int64     `json:"id"`
	WarehouseID  int64     `json:"warehouse_id"`
	ProductID    int64     `json:"product_id"`
	Quantity     int       `json:"quantity"`
	ReorderLevel int       `json:"reorder_level"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Movement is one immutable change to an inventory quantity. Quantity is
// always the signed delta applied to the row: `in` stores a positive value,
// `out` a negative value, `adjustment` either sign.
type Movement struct {
	ID          int64        `json:"id"`
	InventoryID int64        `json:"inventory_id"`
	Type        MovementType `json:"type"`
	Quantity    int          `json:"quantity"`
	Reason      string       `json:"reason"`
	UserID      *int64       `json:"user_id,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Detail is an inventory row joined with its product and warehouse for lists.
type Detail struct {
	Inventory
	ProductName   string  `json:"product_name"`
	ProductSKU    string  `json:"product_sku"`
	ProductPrice  float64 `json:"product_price"`
	WarehouseName string  `json:"warehouse_name"`
	WarehouseCode string  `json:"warehouse_code"`
}

// Stock status filters for listings.
const (
	StatusInStock    = "in_stock"
	StatusLowStock   = "low_stock"
	StatusOutOfStock = "out_of_stock"
)

// ListFilter narrows inventory listings.
type ListFilter struct {
	WarehouseID int64
	Status      string
	Search      string
	Limit       int
	Offset      int
}

// Summary aggregates dashboard figures for the inventory overview.
type Summary struct {
	TotalSKUs        int     `json:"total_skus"`
	LowStockAlerts   int     `json:"low_stock_alerts"`
	ActiveWarehouses int     `json:"active_warehouses"`
	TotalValuation   float64 `json:"total_valuation"`
}

// ErrInvalidQuantity indicates a non-positive quantity where a positive
// magnitude is required, or a zero adjustment delta.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

// ErrSameWarehouse rejects transfers whose source and target match.
var ErrSameWarehouse = errors.New("inventory: source and target warehouse must differ")

// InsufficientStockError is returned when a removal would drive the quantity
// negative. No mutation is applied.
type InsufficientStockError struct {
	Current   int
	Resulting int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: current %d, requested change results in %d", e.Current, e.Resulting)
}
