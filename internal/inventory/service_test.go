package inventory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	rows      map[string]*Inventory
	movements []Movement
	nextInvID int64
	nextMovID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: make(map[string]*Inventory)}
}

func pairKey(warehouseID, productID int64) string {
	return fmt.Sprintf("%d:%d", warehouseID, productID)
}

type memoryTx struct {
	repo *memoryRepo
}

// WithTx emulates rollback by snapshotting state and restoring it when the
// callback fails, so atomicity assertions hold against this repo too.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshotRows := make(map[string]*Inventory, len(r.rows))
	for k, v := range r.rows {
		copied := *v
		snapshotRows[k] = &copied
	}
	snapshotMovements := make([]Movement, len(r.movements))
	copy(snapshotMovements, r.movements)
	snapshotInvID, snapshotMovID := r.nextInvID, r.nextMovID

	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.rows = snapshotRows
		r.movements = snapshotMovements
		r.nextInvID, r.nextMovID = snapshotInvID, snapshotMovID
		return err
	}
	return nil
}

func (r *memoryRepo) GetQuantity(ctx context.Context, warehouseID, productID int64) (int, error) {
	if row, ok := r.rows[pairKey(warehouseID, productID)]; ok {
		return row.Quantity, nil
	}
	return 0, nil
}

func (r *memoryRepo) SetReorderLevel(ctx context.Context, warehouseID, productID int64, level int) error {
	key := pairKey(warehouseID, productID)
	if row, ok := r.rows[key]; ok {
		row.ReorderLevel = level
		return nil
	}
	r.nextInvID++
	r.rows[key] = &Inventory{ID: r.nextInvID, WarehouseID: warehouseID, ProductID: productID, ReorderLevel: level}
	return nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Detail, error) {
	return nil, nil
}

func (r *memoryRepo) ListMovements(ctx context.Context, warehouseID, productID int64, limit int) ([]Movement, error) {
	key := pairKey(warehouseID, productID)
	row, ok := r.rows[key]
	if !ok {
		return nil, nil
	}
	var out []Movement
	for _, m := range r.movements {
		if m.InventoryID == row.ID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryRepo) Summary(ctx context.Context) (Summary, error) {
	return Summary{}, nil
}

func (tx *memoryTx) FindOrCreateForUpdate(ctx context.Context, warehouseID, productID int64) (Inventory, error) {
	key := pairKey(warehouseID, productID)
	if row, ok := tx.repo.rows[key]; ok {
		return *row, nil
	}
	tx.repo.nextInvID++
	row := &Inventory{ID: tx.repo.nextInvID, WarehouseID: warehouseID, ProductID: productID}
	tx.repo.rows[key] = row
	return *row, nil
}

func (tx *memoryTx) UpdateQuantity(ctx context.Context, inventoryID int64, quantity int) error {
	for _, row := range tx.repo.rows {
		if row.ID == inventoryID {
			row.Quantity = quantity
			return nil
		}
	}
	return fmt.Errorf("inventory %d not found", inventoryID)
}

func (tx *memoryTx) InsertMovement(ctx context.Context, movement Movement) (Movement, error) {
	tx.repo.nextMovID++
	movement.ID = tx.repo.nextMovID
	tx.repo.movements = append(tx.repo.movements, movement)
	return movement, nil
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, NewLedger(), nil, nil, 0)
}

func TestGetStockMissingRow(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	qty, err := svc.GetStock(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, 0, qty)
	require.Empty(t, repo.rows, "lookup must not create a row")
}

func TestAddRemoveAccounting(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddStock(ctx, 1, 7, 10, "Initial Stock", 42)
	require.NoError(t, err)
	_, err = svc.AddStock(ctx, 1, 7, 5, "Restock", 42)
	require.NoError(t, err)
	_, err = svc.RemoveStock(ctx, 1, 7, 8, "Order #100", 0)
	require.NoError(t, err)

	qty, err := svc.GetStock(ctx, 1, 7)
	require.NoError(t, err)
	require.Equal(t, 7, qty)
}

func TestMovementStoresSignedDelta(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	in, err := svc.AddStock(ctx, 1, 1, 5, "in", 9)
	require.NoError(t, err)
	require.Equal(t, MovementTypeIn, in.Type)
	require.Equal(t, 5, in.Quantity)
	require.NotNil(t, in.UserID)
	require.Equal(t, int64(9), *in.UserID)

	out, err := svc.RemoveStock(ctx, 1, 1, 3, "out", 0)
	require.NoError(t, err)
	require.Equal(t, MovementTypeOut, out.Type)
	require.Equal(t, -3, out.Quantity)
	require.Nil(t, out.UserID)

	up, err := svc.SetStock(ctx, 1, 1, 10, "set up", 9)
	require.NoError(t, err)
	require.Equal(t, MovementTypeAdjustment, up.Type)
	require.Equal(t, 8, up.Quantity)

	down, err := svc.SetStock(ctx, 1, 1, 1, "set down", 9)
	require.NoError(t, err)
	require.Equal(t, MovementTypeAdjustment, down.Type)
	require.Equal(t, -9, down.Quantity)
}

func TestSetStockSameTargetIsNoOp(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddStock(ctx, 1, 1, 4, "seed", 0)
	require.NoError(t, err)
	before := len(repo.movements)

	movement, err := svc.SetStock(ctx, 1, 1, 4, "same", 0)
	require.NoError(t, err)
	require.Zero(t, movement.ID)
	require.Len(t, repo.movements, before)
}

func TestInsufficientStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddStock(ctx, 1, 1, 5, "seed", 0)
	require.NoError(t, err)

	_, err = svc.RemoveStock(ctx, 1, 1, 10, "too much", 0)
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, 5, insufficient.Current)
	require.Equal(t, -5, insufficient.Resulting)
	require.Contains(t, err.Error(), "current 5")
	require.Contains(t, err.Error(), "results in -5")

	qty, err := svc.GetStock(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, 5, qty)
	require.Len(t, repo.movements, 1, "failed removal must not append a movement")
}

func TestInvalidQuantity(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddStock(ctx, 1, 1, 0, "zero", 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = svc.AddStock(ctx, 1, 1, -2, "negative", 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = svc.RemoveStock(ctx, 1, 1, 0, "zero", 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = svc.SetStock(ctx, 1, 1, -1, "negative target", 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestTransferAtomicity(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddStock(ctx, 1, 1, 20, "seed", 0)
	require.NoError(t, err)

	require.NoError(t, svc.TransferStock(ctx, 1, 2, 1, 5, 3))
	src, _ := svc.GetStock(ctx, 1, 1)
	dst, _ := svc.GetStock(ctx, 2, 1)
	require.Equal(t, 15, src)
	require.Equal(t, 5, dst)

	err = svc.TransferStock(ctx, 1, 2, 1, 50, 3)
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)

	src, _ = svc.GetStock(ctx, 1, 1)
	dst, _ = svc.GetStock(ctx, 2, 1)
	require.Equal(t, 15, src, "failed transfer must not debit source")
	require.Equal(t, 5, dst, "failed transfer must not credit target")
}

func TestTransferValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	require.ErrorIs(t, svc.TransferStock(ctx, 1, 1, 1, 5, 0), ErrSameWarehouse)
	require.ErrorIs(t, svc.TransferStock(ctx, 1, 2, 1, 0, 0), ErrInvalidQuantity)
}

func TestSetReorderLevelDoesNotTouchQuantity(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddStock(ctx, 1, 1, 9, "seed", 0)
	require.NoError(t, err)

	require.NoError(t, svc.SetReorderLevel(ctx, 1, 1, 3))
	qty, err := svc.GetStock(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, 9, qty)
	require.Equal(t, 3, repo.rows[pairKey(1, 1)].ReorderLevel)
}
