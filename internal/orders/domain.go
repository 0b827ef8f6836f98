package orders

import (
	"errors"
	"fmt"
	"time"
)

// Status is an order lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPicking   Status = "picking"
	StatusPacked    Status = "packed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

// Transitions lists the allowed forward transitions per status. `cancelled`
// and `refunded` are terminal and have no entry.
var Transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPicking, StatusCancelled},
	StatusPicking:   {StatusPacked, StatusCancelled},
	StatusPacked:    {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered},
	StatusDelivered: {StatusRefunded},
}

// CanTransition reports whether next is reachable from current.
func CanTransition(current, next Status) bool {
	for _, allowed := range Transitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order is a customer order. (source, source_id) identifies the external
// event exactly once; orders are never hard-deleted.
type Order struct {
	ID            int64       `json:"id"`
	TotalAmount   float64     `json:"total_amount"`
	Status        Status      `json:"status"`
	Source        string      `json:"source"`
	SourceID      string      `json:"source_id"`
	WarehouseID   int64       `json:"warehouse_id"`
	CustomerEmail *string     `json:"customer_email,omitempty"`
	CustomerName  *string     `json:"customer_name,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	Items         []OrderItem `json:"items,omitempty"`
}

// OrderItem snapshots the product name and price at order time; immutable
// after creation.
type OrderItem struct {
	ID          int64   `json:"id"`
	OrderID     int64   `json:"order_id"`
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

// ListFilter narrows order listings, per the admin index screen.
type ListFilter struct {
	Search string
	Source string
	Status Status
	Limit  int
	Offset int
}

// ErrNotFound indicates a missing order.
var ErrNotFound = errors.New("orders: not found")

// errDuplicateSource is raised by the repository when the
// (source, source_id) unique constraint fires; the service then returns the
// already-persisted order.
var errDuplicateSource = errors.New("orders: source already processed")

// InvalidTransitionError rejects a status change not reachable from the
// current status. The order is left unchanged.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s -> %s", e.From, e.To)
}

// CreationError wraps a stock failure during order creation; the whole
// transaction rolls back.
type CreationError struct {
	ProductName string
	Err         error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("order creation failed: stock error for product %q: %s", e.ProductName, e.Err)
}

func (e *CreationError) Unwrap() error {
	return e.Err
}
