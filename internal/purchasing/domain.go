package purchasing

import (
	"errors"
	"time"
)

// Status is a purchase order lifecycle state.
type Status string

const (
	StatusOrdered  Status = "ordered"
	StatusReceived Status = "received"
)

// PurchaseOrder is an inbound replenishment order against a supplier.
type PurchaseOrder struct {
	ID          int64               `json:"id"`
	Code        string              `json:"code"`
	SupplierID  int64               `json:"supplier_id"`
	WarehouseID int64               `json:"warehouse_id"`
	Status      Status              `json:"status"`
	IsReceived  bool                `json:"is_received"`
	TotalAmount float64             `json:"total_amount"`
	Notes       *string             `json:"notes,omitempty"`
	OrderedAt   time.Time           `json:"ordered_at"`
	ExpectedAt  *time.Time          `json:"expected_at,omitempty"`
	ReceivedAt  *time.Time          `json:"received_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Items       []PurchaseOrderItem `json:"items,omitempty"`
}

// PurchaseOrderItem is one ordered line; immutable after creation.
type PurchaseOrderItem struct {
	ID              int64   `json:"id"`
	PurchaseOrderID int64   `json:"purchase_order_id"`
	ProductID       int64   `json:"product_id"`
	Quantity        int     `json:"quantity"`
	UnitCost        float64 `json:"unit_cost"`
}

// ListFilter narrows purchase order listings.
type ListFilter struct {
	Search     string
	Status     Status
	SupplierID int64
	Limit      int
	Offset     int
}

// ErrNotFound indicates a missing purchase order.
var ErrNotFound = errors.New("purchasing: not found")

// ErrDuplicateCode is raised when a caller-supplied code collides with an
// existing purchase order.
var ErrDuplicateCode = errors.New("purchasing: code already exists")

// ErrNoItems rejects a purchase order without lines.
var ErrNoItems = errors.New("purchasing: at least one item required")
