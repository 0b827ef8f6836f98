package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/ledgerline/ledgerline/internal/inventory"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	FindBySource(ctx context.Context, source, sourceID string) (Order, error)
	Get(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, error)
}

// TxRepository groups the order writes with the ledger primitives so the
// order, its items and its stock movements commit in one transaction.
type TxRepository interface {
	inventory.TxRepository
	InsertOrder(ctx context.Context, order Order) (int64, error)
	InsertItem(ctx context.Context, item OrderItem) (int64, error)
	GetStatusForUpdate(ctx context.Context, orderID int64) (Status, error)
	UpdateStatus(ctx context.Context, orderID int64, status Status) error
}

// CatalogPort looks up products for the name/price snapshot.
type CatalogPort interface {
	Lookup(ctx context.Context, productID int64) (ProductInfo, error)
}

// ProductInfo is the catalog projection the workflow needs.
type ProductInfo struct {
	ID    int64
	Name  string
	Price float64
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates order fulfillment.
type Service struct {
	repo          RepositoryPort
	catalog       CatalogPort
	ledger        *inventory.Ledger
	audit         AuditPort
	initialStatus Status
}

// NewService builds Service. initialStatus is the configured status for newly
// created orders (pending or confirmed).
func NewService(repo RepositoryPort, catalog CatalogPort, ledger *inventory.Ledger, audit AuditPort, initialStatus Status) *Service {
	if initialStatus == "" {
		initialStatus = StatusConfirmed
	}
	return &Service{repo: repo, catalog: catalog, ledger: ledger, audit: audit, initialStatus: initialStatus}
}

// CreateInput describes an incoming order from a sales channel.
type CreateInput struct {
	Source        string
	SourceID      string
	WarehouseID   int64
	TotalAmount   float64
	CustomerEmail *string
	CustomerName  *string
	Items         []CreateItemInput
}

// CreateItemInput is one requested line.
type CreateItemInput struct {
	ProductID int64
	Quantity  int
	Price     float64
}

// Create persists the order, its items and the per-line stock removals in one
// transaction. Creation is idempotent by (source, source_id): a repeat of the
// same external event returns the existing order untouched and reports
// created=false. The race between the existence check and the insert is
// closed by the unique constraint — a duplicate insert aborts the transaction
// before any stock moved and the existing order is returned.
func (s *Service) Create(ctx context.Context, input CreateInput) (Order, bool, error) {
	existing, err := s.repo.FindBySource(ctx, input.Source, input.SourceID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Order{}, false, err
	}

	order := Order{
		TotalAmount:   input.TotalAmount,
		Status:        s.initialStatus,
		Source:        input.Source,
		SourceID:      input.SourceID,
		WarehouseID:   input.WarehouseID,
		CustomerEmail: input.CustomerEmail,
		CustomerName:  input.CustomerName,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		orderID, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = orderID

		for _, line := range input.Items {
			product, err := s.catalog.Lookup(ctx, line.ProductID)
			if err != nil {
				return &CreationError{ProductName: fmt.Sprintf("#%d", line.ProductID), Err: err}
			}
			item := OrderItem{
				OrderID:     orderID,
				ProductID:   line.ProductID,
				ProductName: product.Name,
				Quantity:    line.Quantity,
				Price:       line.Price,
			}
			itemID, err := tx.InsertItem(ctx, item)
			if err != nil {
				return err
			}
			item.ID = itemID
			order.Items = append(order.Items, item)

			_, err = s.ledger.Apply(ctx, tx, inventory.MovementParams{
				WarehouseID: input.WarehouseID,
				ProductID:   line.ProductID,
				Type:        inventory.MovementTypeOut,
				Quantity:    line.Quantity,
				Reason:      fmt.Sprintf("Order #%s from %s", input.SourceID, input.Source),
			})
			if err != nil {
				return &CreationError{ProductName: product.Name, Err: err}
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errDuplicateSource) {
			existing, findErr := s.repo.FindBySource(ctx, input.Source, input.SourceID)
			if findErr != nil {
				return Order{}, false, findErr
			}
			return existing, false, nil
		}
		return Order{}, false, err
	}

	s.recordAudit(ctx, 0, "order:create", order.ID, map[string]any{
		"source":    order.Source,
		"source_id": order.SourceID,
		"total":     order.TotalAmount,
	})
	return order, true, nil
}

// UpdateStatus applies one state-machine transition atomically: the current
// status is read under a row lock, validated and written in one transaction,
// so concurrent transition requests cannot lose updates.
func (s *Service) UpdateStatus(ctx context.Context, orderID int64, next Status, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetStatusForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(current, next) {
			return &InvalidTransitionError{From: current, To: next}
		}
		return tx.UpdateStatus(ctx, orderID, next)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "order:status", orderID, map[string]any{"status": string(next)})
	return nil
}

// Get returns one order with items.
func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	return s.repo.Get(ctx, id)
}

// List returns orders per the admin filters.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, orderID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "order",
		EntityID: fmt.Sprintf("%d", orderID),
		Meta:     meta,
	})
}
