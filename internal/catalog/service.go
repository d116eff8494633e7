package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/madebyloom/loomline-backend/pkg/db/models"
	pkgerrors "github.com/madebyloom/loomline-backend/pkg/errors"
)

// Service exposes read-only catalog lookups. The storefront core treats the
// catalog as an external collaborator; nothing here mutates products.
type Service interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListActive(ctx context.Context, limit, offset int) ([]models.Product, error)
	AvailableStock(ctx context.Context, id uuid.UUID) (int, error)
	ResolveProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type service struct {
	repo Repository
}

// NewService builds the catalog read service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

// ListActive pages through the purchasable catalog, newest first.
func (s *service) ListActive(ctx context.Context, limit, offset int) ([]models.Product, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	products, err := s.repo.FindActive(ctx, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return products, nil
}

// AvailableStock sums per-variant stock for the product.
func (s *service) AvailableStock(ctx context.Context, id uuid.UUID) (int, error) {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return 0, err
	}
	return product.AvailableStock(), nil
}

// ResolveProducts loads the given products keyed by id. Missing ids are
// simply absent from the result; callers decide how to treat them.
func (s *service) ResolveProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	products, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	resolved := make(map[uuid.UUID]models.Product, len(products))
	for _, product := range products {
		resolved[product.ID] = product
	}
	return resolved, nil
}
