package products

import (
	"errors"
	"time"
)

// Product represents a catalog product. A row with ParentID set is a variant
// of its parent; variants are flat, a variant cannot have variants of its
// own.
type Product struct {
	ID          int64     `json:"id"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CategoryID  *int64    `json:"category_id,omitempty"`
	ParentID    *int64    `json:"parent_id,omitempty"`
	Price       float64   `json:"price"`
	Cost        float64   `json:"cost"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Variants []Product `json:"variants,omitempty"`
}

// ErrParentIsVariant rejects nesting deeper than one level.
var ErrParentIsVariant = errors.New("products: parent is itself a variant")
