package purchasing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/inventory"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (PurchaseOrder, error)
	List(ctx context.Context, filter ListFilter) ([]PurchaseOrder, error)
}

// TxRepository groups purchase order writes with the ledger primitives so the
// receipt and its stock credits commit in one transaction.
type TxRepository interface {
	inventory.TxRepository
	InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) (int64, error)
	InsertItem(ctx context.Context, item PurchaseOrderItem) (int64, error)
	GetForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	ItemsFor(ctx context.Context, id int64) ([]PurchaseOrderItem, error)
	MarkReceived(ctx context.Context, id int64, at time.Time) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates the purchasing workflow.
type Service struct {
	repo   RepositoryPort
	ledger *inventory.Ledger
	audit  AuditPort
}

// NewService builds Service. audit may be nil.
func NewService(repo RepositoryPort, ledger *inventory.Ledger, audit AuditPort) *Service {
	return &Service{repo: repo, ledger: ledger, audit: audit}
}

// CreateInput describes a new purchase order. Code is optional; when empty a
// reference is generated.
type CreateInput struct {
	Code        string
	SupplierID  int64
	WarehouseID int64
	Notes       *string
	ExpectedAt  *time.Time
	Items       []CreateItemInput
}

// CreateItemInput is one ordered line.
type CreateItemInput struct {
	ProductID int64
	Quantity  int
	UnitCost  float64
}

// Create persists the purchase order in status `ordered`, under the supplied
// code or a generated one. No stock moves at creation; stock is credited only
// on receipt. The total is the sum of the persisted lines.
func (s *Service) Create(ctx context.Context, input CreateInput, actorID int64) (PurchaseOrder, error) {
	if len(input.Items) == 0 {
		return PurchaseOrder{}, ErrNoItems
	}

	code := strings.TrimSpace(input.Code)
	if code == "" {
		code = newCode()
	}

	po := PurchaseOrder{
		Code:        code,
		SupplierID:  input.SupplierID,
		WarehouseID: input.WarehouseID,
		Status:      StatusOrdered,
		Notes:       input.Notes,
		OrderedAt:   time.Now().UTC(),
		ExpectedAt:  input.ExpectedAt,
	}
	for _, line := range input.Items {
		po.TotalAmount += float64(line.Quantity) * line.UnitCost
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertPurchaseOrder(ctx, po)
		if err != nil {
			return err
		}
		po.ID = id
		for _, line := range input.Items {
			item := PurchaseOrderItem{
				PurchaseOrderID: id,
				ProductID:       line.ProductID,
				Quantity:        line.Quantity,
				UnitCost:        line.UnitCost,
			}
			itemID, err := tx.InsertItem(ctx, item)
			if err != nil {
				return err
			}
			item.ID = itemID
			po.Items = append(po.Items, item)
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}

	s.recordAudit(ctx, actorID, "purchase_order:create", po.ID, map[string]any{
		"code":  po.Code,
		"total": po.TotalAmount,
	})
	return po, nil
}

// Receive credits every line into the destination warehouse and marks the
// purchase order received, all in one transaction. The row is locked first so
// two concurrent receipts cannot both credit: replays observe is_received and
// return the purchase order unchanged with no stock touched.
func (s *Service) Receive(ctx context.Context, id int64, actorID int64) (PurchaseOrder, error) {
	var po PurchaseOrder
	var replay bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		po, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		items, err := tx.ItemsFor(ctx, id)
		if err != nil {
			return err
		}
		po.Items = items

		if po.IsReceived {
			replay = true
			return nil
		}

		for _, item := range items {
			_, err := s.ledger.Apply(ctx, tx, inventory.MovementParams{
				WarehouseID: po.WarehouseID,
				ProductID:   item.ProductID,
				Type:        inventory.MovementTypeIn,
				Quantity:    item.Quantity,
				Reason:      fmt.Sprintf("PO %s received", po.Code),
				ActorID:     actorID,
			})
			if err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		if err := tx.MarkReceived(ctx, id, now); err != nil {
			return err
		}
		po.Status = StatusReceived
		po.IsReceived = true
		po.ReceivedAt = &now
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	if replay {
		return po, nil
	}

	s.recordAudit(ctx, actorID, "purchase_order:receive", po.ID, map[string]any{"code": po.Code})
	return po, nil
}

// Get returns one purchase order with items.
func (s *Service) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.Get(ctx, id)
}

// List returns purchase orders per the admin filters.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]PurchaseOrder, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.repo.List(ctx, filter)
}

// newCode derives a human-pasteable reference from a UUID.
func newCode() string {
	return "PO-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, poID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "purchase_order",
		EntityID: fmt.Sprintf("%d", poID),
		Meta:     meta,
	})
}
