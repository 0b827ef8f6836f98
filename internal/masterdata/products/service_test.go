package products

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/masterdata/shared"
)

type memoryRepo struct {
	byID   map[int64]Product
	bySKU  map[string]int64
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byID: make(map[int64]Product), bySKU: make(map[string]int64)}
}

func (r *memoryRepo) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	out := []Product{}
	for _, p := range r.byID {
		if p.ParentID == nil {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Product, error) {
	if p, ok := r.byID[id]; ok {
		return p, nil
	}
	return Product{}, shared.ErrNotFound
}

func (r *memoryRepo) VariantsOf(ctx context.Context, parentID int64) ([]Product, error) {
	out := []Product{}
	for _, p := range r.byID {
		if p.ParentID != nil && *p.ParentID == parentID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) Create(ctx context.Context, product Product) (Product, error) {
	if _, ok := r.bySKU[product.SKU]; ok {
		return Product{}, shared.ErrDuplicate
	}
	r.nextID++
	product.ID = r.nextID
	r.byID[product.ID] = product
	r.bySKU[product.SKU] = product.ID
	return product, nil
}

func (r *memoryRepo) Update(ctx context.Context, id int64, product Product) error {
	existing, ok := r.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	if other, taken := r.bySKU[product.SKU]; taken && other != id {
		return shared.ErrDuplicate
	}
	delete(r.bySKU, existing.SKU)
	product.ID = id
	product.ParentID = existing.ParentID
	product.IsActive = existing.IsActive
	r.byID[id] = product
	r.bySKU[product.SKU] = id
	return nil
}

func (r *memoryRepo) SetActive(ctx context.Context, id int64, active bool) error {
	p, ok := r.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.IsActive = active
	r.byID[id] = p
	return nil
}

type stockCall struct {
	warehouseID int64
	productID   int64
	quantity    int
	reason      string
	actorID     int64
}

type memoryStock struct {
	adds    []stockCall
	reorder []stockCall
}

func (m *memoryStock) AddStock(ctx context.Context, warehouseID, productID int64, quantity int, reason string, actorID int64) error {
	m.adds = append(m.adds, stockCall{warehouseID, productID, quantity, reason, actorID})
	return nil
}

func (m *memoryStock) SetReorderLevel(ctx context.Context, warehouseID, productID int64, level int) error {
	m.reorder = append(m.reorder, stockCall{warehouseID: warehouseID, productID: productID, quantity: level})
	return nil
}

func TestCreateSeedsInitialStockThroughLedger(t *testing.T) {
	repo := newMemoryRepo()
	stock := &memoryStock{}
	svc := NewService(repo, stock)

	product, err := svc.Create(context.Background(), CreateInput{
		Product:      Product{SKU: "SKU-1", Name: "Kettle"},
		WarehouseID:  2,
		InitialStock: 15,
		ReorderLevel: 3,
	}, 7)
	require.NoError(t, err)
	require.True(t, product.IsActive)

	require.Len(t, stock.adds, 1)
	require.Equal(t, stockCall{warehouseID: 2, productID: product.ID, quantity: 15, reason: "Initial Stock", actorID: 7}, stock.adds[0])
	require.Len(t, stock.reorder, 1)
	require.Equal(t, 3, stock.reorder[0].quantity)
}

func TestCreateWithoutStockSkipsLedger(t *testing.T) {
	stock := &memoryStock{}
	svc := NewService(newMemoryRepo(), stock)

	_, err := svc.Create(context.Background(), CreateInput{Product: Product{SKU: "SKU-2", Name: "Mug"}}, 7)
	require.NoError(t, err)
	require.Empty(t, stock.adds)
	require.Empty(t, stock.reorder)
}

func TestCreateDuplicateSKU(t *testing.T) {
	svc := NewService(newMemoryRepo(), &memoryStock{})
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Product: Product{SKU: "SKU-1", Name: "A"}}, 0)
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Product: Product{SKU: "SKU-1", Name: "B"}}, 0)
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestVariantsAreFlat(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, &memoryStock{})
	ctx := context.Background()

	parent, err := svc.Create(ctx, CreateInput{Product: Product{SKU: "TEE", Name: "Tee"}}, 0)
	require.NoError(t, err)

	variant, err := svc.Create(ctx, CreateInput{Product: Product{SKU: "TEE-M", Name: "Tee M", ParentID: &parent.ID}}, 0)
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{Product: Product{SKU: "TEE-M-X", Name: "Nested", ParentID: &variant.ID}}, 0)
	require.ErrorIs(t, err, ErrParentIsVariant, "a variant cannot parent another variant")

	got, err := svc.Get(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, got.Variants, 1)
	require.Equal(t, "TEE-M", got.Variants[0].SKU)

	gotVariant, err := svc.Get(ctx, variant.ID)
	require.NoError(t, err)
	require.Empty(t, gotVariant.Variants)
}

func TestDeactivateKeepsRow(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, &memoryStock{})
	ctx := context.Background()

	product, err := svc.Create(ctx, CreateInput{Product: Product{SKU: "SKU-9", Name: "Lamp"}}, 0)
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, product.ID))
	got, err := svc.Get(ctx, product.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive, "deactivated product stays resolvable")
}
