package warehouses

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/masterdata/shared"
)

type memoryRepo struct {
	byID      map[int64]Warehouse
	byCode    map[string]int64
	inventory map[int64]bool
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byID: make(map[int64]Warehouse), byCode: make(map[string]int64), inventory: make(map[int64]bool)}
}

func (r *memoryRepo) List(ctx context.Context, filters shared.ListFilters) ([]Warehouse, int, error) {
	out := []Warehouse{}
	for _, w := range r.byID {
		out = append(out, w)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Warehouse, error) {
	if w, ok := r.byID[id]; ok {
		return w, nil
	}
	return Warehouse{}, shared.ErrNotFound
}

func (r *memoryRepo) Create(ctx context.Context, warehouse Warehouse) (Warehouse, error) {
	if _, ok := r.byCode[warehouse.Code]; ok {
		return Warehouse{}, shared.ErrDuplicate
	}
	r.nextID++
	warehouse.ID = r.nextID
	r.byID[warehouse.ID] = warehouse
	r.byCode[warehouse.Code] = warehouse.ID
	return warehouse, nil
}

func (r *memoryRepo) Update(ctx context.Context, id int64, warehouse Warehouse) error {
	if _, ok := r.byID[id]; !ok {
		return shared.ErrNotFound
	}
	warehouse.ID = id
	r.byID[id] = warehouse
	return nil
}

func (r *memoryRepo) HasInventory(ctx context.Context, id int64) (bool, error) {
	return r.inventory[id], nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.byID[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func TestDeleteGuardedByInventory(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	warehouse, err := svc.Create(ctx, Warehouse{Code: "MAIN", Name: "Main"})
	require.NoError(t, err)

	repo.inventory[warehouse.ID] = true
	require.ErrorIs(t, svc.Delete(ctx, warehouse.ID), ErrHasInventory)
	_, err = svc.Get(ctx, warehouse.ID)
	require.NoError(t, err, "guarded delete leaves the warehouse in place")

	repo.inventory[warehouse.ID] = false
	require.NoError(t, svc.Delete(ctx, warehouse.ID))
	_, err = svc.Get(ctx, warehouse.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateDuplicateCode(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, Warehouse{Code: "MAIN", Name: "Main"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, Warehouse{Code: "MAIN", Name: "Other"})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}
