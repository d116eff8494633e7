package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/madebyloom/loomline-backend/pkg/db/models"
	pkgerrors "github.com/madebyloom/loomline-backend/pkg/errors"
)

type stubRepo struct {
	product *models.Product
	err     error
}

func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.product, nil
}

func (s *stubRepo) FindActive(ctx context.Context, limit, offset int) ([]models.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.product == nil {
		return nil, nil
	}
	return []models.Product{*s.product}, nil
}

func (s *stubRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.product == nil {
		return nil, nil
	}
	return []models.Product{*s.product}, nil
}

func TestGetProductNotFound(t *testing.T) {
	t.Parallel()

	svc, err := NewService(&stubRepo{err: gorm.ErrRecordNotFound})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.GetProduct(context.Background(), uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestAvailableStockSumsVariants(t *testing.T) {
	t.Parallel()

	product := &models.Product{
		ID: uuid.New(),
		Variants: []models.ProductVariant{
			{Name: "S", StockQty: 3},
			{Name: "M", StockQty: 0},
			{Name: "L", StockQty: 4},
		},
	}
	svc, _ := NewService(&stubRepo{product: product})

	stock, err := svc.AvailableStock(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stock != 7 {
		t.Fatalf("got %d want 7", stock)
	}
}

func TestResolveProductsOmitsMissing(t *testing.T) {
	t.Parallel()

	known := &models.Product{ID: uuid.New()}
	svc, _ := NewService(&stubRepo{product: known})

	resolved, err := svc.ResolveProducts(context.Background(), []uuid.UUID{known.ID, uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resolved) != 1 {
		t.Fatalf("expected 1 resolved product, got %d", len(resolved))
	}
	if _, ok := resolved[known.ID]; !ok {
		t.Fatal("known product missing from result")
	}
}
