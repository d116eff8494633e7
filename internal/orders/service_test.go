package orders

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/madebyloom/loomline-backend/internal/pricing"
	"github.com/madebyloom/loomline-backend/pkg/config"
	"github.com/madebyloom/loomline-backend/pkg/db/models"
	"github.com/madebyloom/loomline-backend/pkg/enums"
	pkgerrors "github.com/madebyloom/loomline-backend/pkg/errors"
	"github.com/madebyloom/loomline-backend/pkg/logger"
	"github.com/madebyloom/loomline-backend/pkg/types"
)

type memOrderRepo struct {
	orders map[uuid.UUID]*models.Order
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: map[uuid.UUID]*models.Order{}}
}

func (m *memOrderRepo) WithTx(_ *gorm.DB) Repository { return m }

func (m *memOrderRepo) Create(_ context.Context, order *models.Order) (*models.Order, error) {
	order.ID = uuid.New()
	copied := *order
	m.orders[order.ID] = &copied
	return order, nil
}

func (m *memOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (m *memOrderRepo) Update(_ context.Context, order *models.Order) (*models.Order, error) {
	if _, ok := m.orders[order.ID]; !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	m.orders[order.ID] = &copied
	return order, nil
}

func newOrderService(t *testing.T) (Service, *memOrderRepo) {
	t.Helper()
	repo := newMemOrderRepo()
	engine := pricing.NewEngine(config.PricingConfig{
		TaxRate:                    0.08,
		FreeShippingThresholdCents: 5000,
		FlatShippingRateCents:      999,
		MaterialRatePerSqInCents:   12,
	}, nil)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(repo, engine, logg)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc, repo
}

func twoLineCart() []LineInput {
	return []LineInput{
		{ProductID: uuid.New(), Name: "Patch", Quantity: 2, UnitPriceCents: 1500, ReviewStatus: enums.ReviewStatusApproved},
		{ProductID: uuid.New(), Name: "Custom Patch", Quantity: 1, UnitPriceCents: 3000, ReviewStatus: enums.ReviewStatusPending},
	}
}

func TestCreateDraftComputesTotals(t *testing.T) {
	t.Parallel()

	svc, _ := newOrderService(t)

	order, err := svc.CreateDraft(context.Background(), "bc-1", nil, twoLineCart())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if order.Status != enums.OrderStatusDraft {
		t.Fatalf("status = %s", order.Status)
	}
	if order.SubtotalCents != 6000 {
		t.Fatalf("subtotal = %d, want 6000", order.SubtotalCents)
	}
	if order.TaxCents != 480 {
		t.Fatalf("tax = %d, want 480", order.TaxCents)
	}
	// Above the free-shipping threshold with no rate selected yet.
	if order.ShippingCents != 0 {
		t.Fatalf("shipping = %d, want 0", order.ShippingCents)
	}
	if order.TotalCents != 6480 {
		t.Fatalf("total = %d, want 6480", order.TotalCents)
	}
	if len(order.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(order.Items))
	}
	if order.Items[1].TotalCents != 3000 {
		t.Fatalf("line total = %d, want 3000", order.Items[1].TotalCents)
	}
}

func TestCreateDraftRejectsEmptyCart(t *testing.T) {
	t.Parallel()

	svc, _ := newOrderService(t)

	_, err := svc.CreateDraft(context.Background(), "bc-1", nil, nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSetShippingRecomputesTotals(t *testing.T) {
	t.Parallel()

	svc, _ := newOrderService(t)
	order, err := svc.CreateDraft(context.Background(), "bc-1", nil, twoLineCart())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rate := &types.ShippingRate{ServiceCode: "usps_priority", ShipmentCostCents: 945, OtherCostCents: 50}
	rate.Normalize()
	updated, err := svc.SetShipping(context.Background(), order.ID, types.CustomerInfo{
		FirstName: "Ada", LastName: "Byron", Email: "ada@example.com", Phone: "555-0100",
	}, types.Address{Line1: "1 Main", City: "Portland", State: "OR", PostalCode: "97201"}, rate)
	if err != nil {
		t.Fatalf("set shipping: %v", err)
	}
	if updated.ShippingCents != 995 {
		t.Fatalf("shipping = %d, want 995", updated.ShippingCents)
	}
	if updated.TotalCents != 6000+480+995 {
		t.Fatalf("total = %d", updated.TotalCents)
	}
	if updated.SelectedRate == nil || updated.SelectedRate.ServiceCode != "usps_priority" {
		t.Fatalf("selected rate not recorded: %+v", updated.SelectedRate)
	}
}

func TestFinalizeTransitionsAndIsIdempotent(t *testing.T) {
	t.Parallel()

	svc, _ := newOrderService(t)
	order, err := svc.CreateDraft(context.Background(), "bc-1", nil, twoLineCart())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	finalized, err := svc.Finalize(context.Background(), order.ID, enums.PaymentProviderStripe, "pi_123")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if finalized.Status != enums.OrderStatusSubmitted {
		t.Fatalf("status = %s", finalized.Status)
	}
	if finalized.ResultPaymentID == nil || *finalized.ResultPaymentID != "pi_123" {
		t.Fatalf("payment id = %v", finalized.ResultPaymentID)
	}

	// Same payment again is a no-op.
	again, err := svc.Finalize(context.Background(), order.ID, enums.PaymentProviderStripe, "pi_123")
	if err != nil {
		t.Fatalf("idempotent finalize: %v", err)
	}
	if again.Status != enums.OrderStatusSubmitted {
		t.Fatalf("status = %s", again.Status)
	}

	// A different payment against a submitted order is a conflict.
	_, err = svc.Finalize(context.Background(), order.ID, enums.PaymentProviderPayPal, "other")
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestSetShippingAfterSubmitIsConflict(t *testing.T) {
	t.Parallel()

	svc, _ := newOrderService(t)
	order, _ := svc.CreateDraft(context.Background(), "bc-1", nil, twoLineCart())
	if _, err := svc.Finalize(context.Background(), order.ID, enums.PaymentProviderStripe, "pi_1"); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	_, err := svc.SetShipping(context.Background(), order.ID, types.CustomerInfo{}, types.Address{}, nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}
