package products

import (
	"context"

	"github.com/ledgerline/ledgerline/internal/masterdata/shared"
)

// StockPort seeds opening stock through the inventory ledger so product
// creation never touches quantities directly.
type StockPort interface {
	AddStock(ctx context.Context, warehouseID, productID int64, quantity int, reason string, actorID int64) error
	SetReorderLevel(ctx context.Context, warehouseID, productID int64, level int) error
}

type Service struct {
	repo  Repository
	stock StockPort
}

func NewService(repo Repository, stock StockPort) *Service {
	return &Service{repo: repo, stock: stock}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

// Get returns the product with its variants attached.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	product, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if product.ParentID == nil {
		variants, err := s.repo.VariantsOf(ctx, id)
		if err != nil {
			return Product{}, err
		}
		product.Variants = variants
	}
	return product, nil
}

// CreateInput carries the product fields plus optional opening stock.
type CreateInput struct {
	Product      Product
	WarehouseID  int64
	InitialStock int
	ReorderLevel int
}

// Create persists the product. When ParentID is set the parent must be a
// top-level product. Opening stock, when given, flows through the ledger with
// reason "Initial Stock".
func (s *Service) Create(ctx context.Context, input CreateInput, actorID int64) (Product, error) {
	if input.Product.ParentID != nil {
		parent, err := s.repo.Get(ctx, *input.Product.ParentID)
		if err != nil {
			return Product{}, err
		}
		if parent.ParentID != nil {
			return Product{}, ErrParentIsVariant
		}
	}
	input.Product.IsActive = true

	product, err := s.repo.Create(ctx, input.Product)
	if err != nil {
		return Product{}, err
	}

	if input.WarehouseID != 0 {
		if input.InitialStock > 0 {
			if err := s.stock.AddStock(ctx, input.WarehouseID, product.ID, input.InitialStock, "Initial Stock", actorID); err != nil {
				return Product{}, err
			}
		}
		if input.ReorderLevel > 0 {
			if err := s.stock.SetReorderLevel(ctx, input.WarehouseID, product.ID, input.ReorderLevel); err != nil {
				return Product{}, err
			}
		}
	}
	return product, nil
}

func (s *Service) Update(ctx context.Context, id int64, product Product) error {
	return s.repo.Update(ctx, id, product)
}

// Deactivate hides the product from the catalog. Products are never deleted:
// movements and order items keep referencing them.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.repo.SetActive(ctx, id, false)
}

func (s *Service) Activate(ctx context.Context, id int64) error {
	return s.repo.SetActive(ctx, id, true)
}
