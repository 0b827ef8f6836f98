package orders

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/inventory"
)

type memoryRepo struct {
	orders    map[int64]*Order
	bySource  map[string]int64
	stock     map[string]*inventory.Inventory
	movements []inventory.Movement
	products  map[int64]ProductInfo

	nextOrderID int64
	nextItemID  int64
	nextInvID   int64
	nextMovID   int64

	// missSourceOnce makes the next FindBySource miss, modelling the window
	// where a concurrent creator has not committed yet.
	missSourceOnce bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		orders:   make(map[int64]*Order),
		bySource: make(map[string]int64),
		stock:    make(map[string]*inventory.Inventory),
		products: make(map[int64]ProductInfo),
	}
}

func (r *memoryRepo) seedProduct(id int64, name string, price float64) {
	r.products[id] = ProductInfo{ID: id, Name: name, Price: price}
}

func (r *memoryRepo) seedStock(warehouseID, productID int64, quantity int) {
	r.nextInvID++
	r.stock[stockKey(warehouseID, productID)] = &inventory.Inventory{
		ID: r.nextInvID, WarehouseID: warehouseID, ProductID: productID, Quantity: quantity,
	}
}

func (r *memoryRepo) quantity(warehouseID, productID int64) int {
	if row, ok := r.stock[stockKey(warehouseID, productID)]; ok {
		return row.Quantity
	}
	return 0
}

func (r *memoryRepo) Lookup(ctx context.Context, productID int64) (ProductInfo, error) {
	if p, ok := r.products[productID]; ok {
		return p, nil
	}
	return ProductInfo{}, fmt.Errorf("product %d not found", productID)
}

func stockKey(warehouseID, productID int64) string {
	return fmt.Sprintf("%d:%d", warehouseID, productID)
}

func sourceKey(source, sourceID string) string {
	return source + "|" + sourceID
}

type memoryTx struct {
	repo *memoryRepo
}

// WithTx emulates rollback by snapshotting state and restoring it when the
// callback fails, so atomicity assertions hold against this repo too.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapOrders := make(map[int64]*Order, len(r.orders))
	for id, o := range r.orders {
		copied := *o
		copied.Items = append([]OrderItem(nil), o.Items...)
		snapOrders[id] = &copied
	}
	snapBySource := make(map[string]int64, len(r.bySource))
	for k, v := range r.bySource {
		snapBySource[k] = v
	}
	snapStock := make(map[string]*inventory.Inventory, len(r.stock))
	for k, v := range r.stock {
		copied := *v
		snapStock[k] = &copied
	}
	snapMovements := append([]inventory.Movement(nil), r.movements...)
	snapIDs := [4]int64{r.nextOrderID, r.nextItemID, r.nextInvID, r.nextMovID}

	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.orders = snapOrders
		r.bySource = snapBySource
		r.stock = snapStock
		r.movements = snapMovements
		r.nextOrderID, r.nextItemID, r.nextInvID, r.nextMovID = snapIDs[0], snapIDs[1], snapIDs[2], snapIDs[3]
		return err
	}
	return nil
}

func (r *memoryRepo) FindBySource(ctx context.Context, source, sourceID string) (Order, error) {
	if r.missSourceOnce {
		r.missSourceOnce = false
		return Order{}, ErrNotFound
	}
	if id, ok := r.bySource[sourceKey(source, sourceID)]; ok {
		return *r.orders[id], nil
	}
	return Order{}, ErrNotFound
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Order, error) {
	if o, ok := r.orders[id]; ok {
		return *o, nil
	}
	return Order{}, ErrNotFound
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	out := []Order{}
	for _, o := range r.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (tx *memoryTx) InsertOrder(ctx context.Context, order Order) (int64, error) {
	key := sourceKey(order.Source, order.SourceID)
	if _, ok := tx.repo.bySource[key]; ok {
		return 0, errDuplicateSource
	}
	tx.repo.nextOrderID++
	order.ID = tx.repo.nextOrderID
	tx.repo.orders[order.ID] = &order
	tx.repo.bySource[key] = order.ID
	return order.ID, nil
}

func (tx *memoryTx) InsertItem(ctx context.Context, item OrderItem) (int64, error) {
	tx.repo.nextItemID++
	item.ID = tx.repo.nextItemID
	order := tx.repo.orders[item.OrderID]
	order.Items = append(order.Items, item)
	return item.ID, nil
}

func (tx *memoryTx) GetStatusForUpdate(ctx context.Context, orderID int64) (Status, error) {
	if o, ok := tx.repo.orders[orderID]; ok {
		return o.Status, nil
	}
	return "", ErrNotFound
}

func (tx *memoryTx) UpdateStatus(ctx context.Context, orderID int64, status Status) error {
	tx.repo.orders[orderID].Status = status
	return nil
}

func (tx *memoryTx) FindOrCreateForUpdate(ctx context.Context, warehouseID, productID int64) (inventory.Inventory, error) {
	key := stockKey(warehouseID, productID)
	if row, ok := tx.repo.stock[key]; ok {
		return *row, nil
	}
	tx.repo.nextInvID++
	row := &inventory.Inventory{ID: tx.repo.nextInvID, WarehouseID: warehouseID, ProductID: productID}
	tx.repo.stock[key] = row
	return *row, nil
}

func (tx *memoryTx) UpdateQuantity(ctx context.Context, inventoryID int64, quantity int) error {
	for _, row := range tx.repo.stock {
		if row.ID == inventoryID {
			row.Quantity = quantity
			return nil
		}
	}
	return fmt.Errorf("inventory %d not found", inventoryID)
}

func (tx *memoryTx) InsertMovement(ctx context.Context, movement inventory.Movement) (inventory.Movement, error) {
	tx.repo.nextMovID++
	movement.ID = tx.repo.nextMovID
	tx.repo.movements = append(tx.repo.movements, movement)
	return movement, nil
}

func newTestService(repo *memoryRepo, initial Status) *Service {
	return NewService(repo, repo, inventory.NewLedger(), nil, initial)
}

func webstoreOrder(sourceID string, lines ...CreateItemInput) CreateInput {
	total := 0.0
	for _, line := range lines {
		total += float64(line.Quantity) * line.Price
	}
	return CreateInput{
		Source:      "webstore",
		SourceID:    sourceID,
		WarehouseID: 1,
		TotalAmount: total,
		Items:       lines,
	}
}

func TestCreateDecrementsStockOnce(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedProduct(7, "Trail Mix", 4.50)
	repo.seedStock(1, 7, 20)
	svc := newTestService(repo, StatusConfirmed)
	ctx := context.Background()

	input := webstoreOrder("W-1001", CreateItemInput{ProductID: 7, Quantity: 3, Price: 4.50})

	first, created, err := svc.Create(ctx, input)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, StatusConfirmed, first.Status)
	require.Equal(t, 17, repo.quantity(1, 7))
	require.Len(t, first.Items, 1)
	require.Equal(t, "Trail Mix", first.Items[0].ProductName)

	second, created, err := svc.Create(ctx, input)
	require.NoError(t, err)
	require.False(t, created, "repeat of the same external event returns the existing order")
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 17, repo.quantity(1, 7), "repeat must not decrement stock again")
	require.Len(t, repo.movements, 1)
}

func TestCreateMovementReasonAndActor(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedProduct(7, "Trail Mix", 4.50)
	repo.seedStock(1, 7, 10)
	svc := newTestService(repo, StatusConfirmed)

	_, _, err := svc.Create(context.Background(), webstoreOrder("W-55", CreateItemInput{ProductID: 7, Quantity: 2, Price: 4.50}))
	require.NoError(t, err)

	require.Len(t, repo.movements, 1)
	movement := repo.movements[0]
	require.Equal(t, inventory.MovementTypeOut, movement.Type)
	require.Equal(t, -2, movement.Quantity)
	require.Equal(t, "Order #W-55 from webstore", movement.Reason)
	require.Nil(t, movement.UserID, "channel orders are not attributed to a user")
}

func TestCreateRollsBackOnInsufficientStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedProduct(1, "Beans", 2.00)
	repo.seedProduct(2, "Rice", 3.00)
	repo.seedStock(1, 1, 50)
	repo.seedStock(1, 2, 1)
	svc := newTestService(repo, StatusConfirmed)

	_, created, err := svc.Create(context.Background(), webstoreOrder("W-2001",
		CreateItemInput{ProductID: 1, Quantity: 5, Price: 2.00},
		CreateItemInput{ProductID: 2, Quantity: 4, Price: 3.00},
	))
	require.False(t, created)

	var creation *CreationError
	require.ErrorAs(t, err, &creation)
	require.Equal(t, "Rice", creation.ProductName)
	var insufficient *inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)

	require.Empty(t, repo.orders, "failed creation must not persist the order")
	require.Empty(t, repo.movements)
	require.Equal(t, 50, repo.quantity(1, 1), "first line must roll back with the rest")
	require.Equal(t, 1, repo.quantity(1, 2))
}

func TestCreateDuplicateRaceReturnsExisting(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedProduct(7, "Trail Mix", 4.50)
	repo.seedStock(1, 7, 10)
	svc := newTestService(repo, StatusConfirmed)
	ctx := context.Background()

	existing, _, err := svc.Create(ctx, webstoreOrder("W-77", CreateItemInput{ProductID: 7, Quantity: 1, Price: 4.50}))
	require.NoError(t, err)

	// Simulate losing the insert race: the pre-check misses the winner but the
	// unique constraint fires inside the transaction.
	repo.missSourceOnce = true

	order, created, err := svc.Create(ctx, webstoreOrder("W-77", CreateItemInput{ProductID: 7, Quantity: 1, Price: 4.50}))
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, existing.ID, order.ID)
	require.Equal(t, 9, repo.quantity(1, 7), "loser of the race must not decrement stock")
}

func TestUpdateStatusTransitions(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedProduct(7, "Trail Mix", 4.50)
	repo.seedStock(1, 7, 10)
	svc := newTestService(repo, StatusConfirmed)
	ctx := context.Background()

	order, _, err := svc.Create(ctx, webstoreOrder("W-1", CreateItemInput{ProductID: 7, Quantity: 1, Price: 4.50}))
	require.NoError(t, err)

	for _, next := range []Status{StatusPicking, StatusPacked, StatusShipped, StatusDelivered, StatusRefunded} {
		require.NoError(t, svc.UpdateStatus(ctx, order.ID, next, 3))
	}

	err = svc.UpdateStatus(ctx, order.ID, StatusPending, 3)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, StatusRefunded, invalid.From)
	require.Equal(t, StatusPending, invalid.To)

	got, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRefunded, got.Status, "rejected transition leaves the order unchanged")
}

func TestUpdateStatusSkipIsRejected(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedProduct(7, "Trail Mix", 4.50)
	repo.seedStock(1, 7, 10)
	svc := newTestService(repo, StatusConfirmed)
	ctx := context.Background()

	order, _, err := svc.Create(ctx, webstoreOrder("W-2", CreateItemInput{ProductID: 7, Quantity: 1, Price: 4.50}))
	require.NoError(t, err)

	var invalid *InvalidTransitionError
	require.ErrorAs(t, svc.UpdateStatus(ctx, order.ID, StatusShipped, 3), &invalid)
	require.ErrorAs(t, svc.UpdateStatus(ctx, order.ID, StatusDelivered, 3), &invalid)
	require.NoError(t, svc.UpdateStatus(ctx, order.ID, StatusCancelled, 3))

	require.ErrorAs(t, svc.UpdateStatus(ctx, order.ID, StatusConfirmed, 3), &invalid, "cancelled is terminal")
}

func TestUpdateStatusMissingOrder(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, StatusConfirmed)

	require.ErrorIs(t, svc.UpdateStatus(context.Background(), 404, StatusConfirmed, 3), ErrNotFound)
}

func TestInitialStatusConfigurable(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedProduct(7, "Trail Mix", 4.50)
	repo.seedStock(1, 7, 10)
	svc := newTestService(repo, StatusPending)
	ctx := context.Background()

	order, _, err := svc.Create(ctx, webstoreOrder("W-3", CreateItemInput{ProductID: 7, Quantity: 1, Price: 4.50}))
	require.NoError(t, err)
	require.Equal(t, StatusPending, order.Status)

	require.NoError(t, svc.UpdateStatus(ctx, order.ID, StatusConfirmed, 3))
}

func TestCreateUnknownProductFails(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, StatusConfirmed)

	_, created, err := svc.Create(context.Background(), webstoreOrder("W-4", CreateItemInput{ProductID: 99, Quantity: 1, Price: 1.00}))
	require.False(t, created)
	require.Error(t, err)
	require.Empty(t, repo.orders)
	require.Empty(t, repo.movements)
}
