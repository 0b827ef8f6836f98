package inventory

import (
	"context"
)

// TxRepository exposes the transactional primitives the ledger mutates stock
// through. Orders and purchasing embed this interface in their own Tx
// interfaces so ledger mutations commit atomically with their own writes.
type TxRepository interface {
	// FindOrCreateForUpdate returns the inventory row for the pair, creating
	// it with quantity 0 when absent, and holds a row lock until commit. The
	// create path must be race-safe against the (warehouse_id, product_id)
	// unique constraint.
	FindOrCreateForUpdate(ctx context.Context, warehouseID, productID int64) (Inventory, error)
	UpdateQuantity(ctx context.Context, inventoryID int64, quantity int) error
	InsertMovement(ctx context.Context, movement Movement) (Movement, error)
}

// MovementParams describes one requested stock mutation. Quantity is the
// positive magnitude for `in`/`out` and the signed delta for `adjustment`.
type MovementParams struct {
	WarehouseID int64
	ProductID   int64
	Type        MovementType
	Quantity    int
	Reason      string
	ActorID     int64
}

// Ledger applies stock-movement accounting rules inside a caller-supplied
// transaction. It is the only code path allowed to write Inventory.Quantity.
type Ledger struct{}

// NewLedger constructs a Ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Apply validates the movement, locks the inventory row, enforces the
// non-negative invariant, writes the new quantity and appends the movement.
// The caller owns the transaction; on error nothing must be committed.
func (l *Ledger) Apply(ctx context.Context, tx TxRepository, params MovementParams) (Movement, error) {
	delta, err := signedDelta(params.Type, params.Quantity)
	if err != nil {
		return Movement{}, err
	}

	inv, err := tx.FindOrCreateForUpdate(ctx, params.WarehouseID, params.ProductID)
	if err != nil {
		return Movement{}, err
	}

	newQuantity := inv.Quantity + delta
	if newQuantity < 0 {
		return Movement{}, &InsufficientStockError{Current: inv.Quantity, Resulting: newQuantity}
	}

	if err := tx.UpdateQuantity(ctx, inv.ID, newQuantity); err != nil {
		return Movement{}, err
	}

	movement := Movement{
		InventoryID: inv.ID,
		Type:        params.Type,
		Quantity:    delta,
		Reason:      params.Reason,
	}
	if params.ActorID != 0 {
		actorID := params.ActorID
		movement.UserID = &actorID
	}
	return tx.InsertMovement(ctx, movement)
}

func signedDelta(movementType MovementType, quantity int) (int, error) {
	switch movementType {
	case MovementTypeIn:
		if quantity <= 0 {
			return 0, ErrInvalidQuantity
		}
		return quantity, nil
	case MovementTypeOut:
		if quantity <= 0 {
			return 0, ErrInvalidQuantity
		}
		return -quantity, nil
	case MovementTypeAdjustment:
		if quantity == 0 {
			return 0, ErrInvalidQuantity
		}
		return quantity, nil
	default:
		return 0, ErrInvalidQuantity
	}
}
