package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetQuantity(ctx context.Context, warehouseID, productID int64) (int, error)
	SetReorderLevel(ctx context.Context, warehouseID, productID int64, level int) error
	List(ctx context.Context, filter ListFilter) ([]Detail, error)
	ListMovements(ctx context.Context, warehouseID, productID int64, limit int) ([]Movement, error)
	Summary(ctx context.Context) (Summary, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

const summaryCacheKey = "inventory:summary"

// Service is the stock ledger engine: the sole authority for mutating
// inventory quantities, recording every mutation as a movement.
type Service struct {
	repo       RepositoryPort
	ledger     *Ledger
	audit      AuditPort
	cache      *redis.Client
	summaryTTL time.Duration
	summarySF  singleflight.Group
}

// NewService builds Service. audit and cache may be nil.
func NewService(repo RepositoryPort, ledger *Ledger, audit AuditPort, cache *redis.Client, summaryTTL time.Duration) *Service {
	if summaryTTL <= 0 {
		summaryTTL = 30 * time.Second
	}
	return &Service{repo: repo, ledger: ledger, audit: audit, cache: cache, summaryTTL: summaryTTL}
}

// GetStock returns the current quantity, or 0 when no inventory row exists.
// No row is created.
func (s *Service) GetStock(ctx context.Context, warehouseID, productID int64) (int, error) {
	return s.repo.GetQuantity(ctx, warehouseID, productID)
}

// AddStock credits stock and records an `in` movement.
func (s *Service) AddStock(ctx context.Context, warehouseID, productID int64, quantity int, reason string, actorID int64) (Movement, error) {
	return s.post(ctx, MovementParams{
		WarehouseID: warehouseID,
		ProductID:   productID,
		Type:        MovementTypeIn,
		Quantity:    quantity,
		Reason:      reason,
		ActorID:     actorID,
	})
}

// RemoveStock debits stock and records an `out` movement. Fails with
// InsufficientStockError when the result would be negative.
func (s *Service) RemoveStock(ctx context.Context, warehouseID, productID int64, quantity int, reason string, actorID int64) (Movement, error) {
	return s.post(ctx, MovementParams{
		WarehouseID: warehouseID,
		ProductID:   productID,
		Type:        MovementTypeOut,
		Quantity:    quantity,
		Reason:      reason,
		ActorID:     actorID,
	})
}

// SetStock moves the quantity to the absolute target by applying the signed
// difference as an `adjustment` movement. Setting the current value is a
// no-op: no movement is recorded and the returned movement has ID zero.
func (s *Service) SetStock(ctx context.Context, warehouseID, productID int64, target int, reason string, actorID int64) (Movement, error) {
	if target < 0 {
		return Movement{}, ErrInvalidQuantity
	}
	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.FindOrCreateForUpdate(ctx, warehouseID, productID)
		if err != nil {
			return err
		}
		delta := target - inv.Quantity
		if delta == 0 {
			return nil
		}
		movement, err = s.ledger.Apply(ctx, tx, MovementParams{
			WarehouseID: warehouseID,
			ProductID:   productID,
			Type:        MovementTypeAdjustment,
			Quantity:    delta,
			Reason:      reason,
			ActorID:     actorID,
		})
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	if movement.ID != 0 {
		s.recordAudit(ctx, actorID, "inventory:set", warehouseID, productID, movement.Quantity, reason)
	}
	return movement, nil
}

// TransferStock moves quantity between warehouses as an `out` on the source
// and an `in` on the target inside one transaction. An insufficient source
// aborts the whole transfer with no partial effect.
func (s *Service) TransferStock(ctx context.Context, sourceWarehouseID, targetWarehouseID, productID int64, quantity int, actorID int64) error {
	if sourceWarehouseID == targetWarehouseID {
		return ErrSameWarehouse
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// Lock both rows in warehouse order so opposite concurrent transfers
		// cannot deadlock.
		first, second := sourceWarehouseID, targetWarehouseID
		if second < first {
			first, second = second, first
		}
		if _, err := tx.FindOrCreateForUpdate(ctx, first, productID); err != nil {
			return err
		}
		if _, err := tx.FindOrCreateForUpdate(ctx, second, productID); err != nil {
			return err
		}

		if _, err := s.ledger.Apply(ctx, tx, MovementParams{
			WarehouseID: sourceWarehouseID,
			ProductID:   productID,
			Type:        MovementTypeOut,
			Quantity:    quantity,
			Reason:      fmt.Sprintf("Transfer to warehouse #%d", targetWarehouseID),
			ActorID:     actorID,
		}); err != nil {
			return err
		}
		_, err := s.ledger.Apply(ctx, tx, MovementParams{
			WarehouseID: targetWarehouseID,
			ProductID:   productID,
			Type:        MovementTypeIn,
			Quantity:    quantity,
			Reason:      fmt.Sprintf("Transfer from warehouse #%d", sourceWarehouseID),
			ActorID:     actorID,
		})
		return err
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "inventory:transfer", sourceWarehouseID, productID, quantity, fmt.Sprintf("to warehouse #%d", targetWarehouseID))
	return nil
}

// SetReorderLevel updates the reorder threshold without touching the
// quantity; the row is created with quantity 0 when absent.
func (s *Service) SetReorderLevel(ctx context.Context, warehouseID, productID int64, level int) error {
	if level < 0 {
		return ErrInvalidQuantity
	}
	return s.repo.SetReorderLevel(ctx, warehouseID, productID, level)
}

// List returns inventory rows with product/warehouse details.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Detail, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.repo.List(ctx, filter)
}

// Movements lists the movement log for one (warehouse, product) pair, newest
// first.
func (s *Service) Movements(ctx context.Context, warehouseID, productID int64, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListMovements(ctx, warehouseID, productID, limit)
}

// GetSummary returns dashboard figures, served from Redis when fresh.
// Singleflight collapses concurrent misses into one database query.
func (s *Service) GetSummary(ctx context.Context) (Summary, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, summaryCacheKey).Bytes()
		if err == nil {
			var cached Summary
			if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
				return cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			return s.repo.Summary(ctx)
		}
	}

	value, err, _ := s.summarySF.Do(summaryCacheKey, func() (any, error) {
		summary, err := s.repo.Summary(ctx)
		if err != nil {
			return Summary{}, err
		}
		if s.cache != nil {
			if data, jsonErr := json.Marshal(summary); jsonErr == nil {
				_ = s.cache.Set(ctx, summaryCacheKey, data, s.summaryTTL).Err()
			}
		}
		return summary, nil
	})
	if err != nil {
		return Summary{}, err
	}
	return value.(Summary), nil
}

func (s *Service) post(ctx context.Context, params MovementParams) (Movement, error) {
	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		movement, err = s.ledger.Apply(ctx, tx, params)
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	s.recordAudit(ctx, params.ActorID, fmt.Sprintf("inventory:%s", params.Type), params.WarehouseID, params.ProductID, movement.Quantity, params.Reason)
	return movement, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, warehouseID, productID int64, quantity int, reason string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "inventory",
		EntityID: fmt.Sprintf("%d:%d", warehouseID, productID),
		Meta: map[string]any{
			"warehouse_id": warehouseID,
			"product_id":   productID,
			"quantity":     quantity,
			"reason":       reason,
		},
	})
}
