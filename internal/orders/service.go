package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/madebyloom/loomline-backend/internal/pricing"
	"github.com/madebyloom/loomline-backend/pkg/db/models"
	"github.com/madebyloom/loomline-backend/pkg/enums"
	pkgerrors "github.com/madebyloom/loomline-backend/pkg/errors"
	"github.com/madebyloom/loomline-backend/pkg/logger"
	"github.com/madebyloom/loomline-backend/pkg/types"
)

// LineInput is one cart slot being promoted into an order context.
type LineInput struct {
	ProductID      uuid.UUID
	Name           string
	Quantity       int
	UnitPriceCents int64
	WeightOz       float64
	Customization  *types.Customization
	ReviewStatus   enums.ReviewStatus
}

type totalsEngine interface {
	SubtotalCents(lines []pricing.Line) int64
	TaxCents(subtotalCents int64) int64
	ShippingCents(subtotalCents int64, selected *types.ShippingRate) int64
	TotalCents(subtotalCents, taxCents, shippingCents int64) int64
}

// Service owns the order lifecycle: draft creation from a cart, shipping
// selection, and finalization by a successful payment outcome.
type Service interface {
	CreateDraft(ctx context.Context, contextID string, accountID *uuid.UUID, lines []LineInput) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	SetShipping(ctx context.Context, id uuid.UUID, customer types.CustomerInfo, address types.Address, rate *types.ShippingRate) (*models.Order, error)
	Finalize(ctx context.Context, id uuid.UUID, provider enums.PaymentProvider, paymentID string) (*models.Order, error)
}

type service struct {
	repo    Repository
	pricing totalsEngine
	logg    *logger.Logger
}

// NewService wires the order service.
func NewService(repo Repository, pricing totalsEngine, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if pricing == nil {
		return nil, fmt.Errorf("price engine required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, pricing: pricing, logg: logg}, nil
}

// CreateDraft snapshots the cart into an order context. Totals are computed
// with the default shipping rule; they are refined once a rate is selected.
func (s *service) CreateDraft(ctx context.Context, contextID string, accountID *uuid.UUID, lines []LineInput) (*models.Order, error) {
	if contextID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "browsing context is required")
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot start checkout with an empty cart")
	}

	priceLines := make([]pricing.Line, 0, len(lines))
	items := make([]models.OrderLineItem, 0, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be at least 1")
		}
		priceLines = append(priceLines, pricing.Line{
			UnitPriceCents: line.UnitPriceCents,
			Quantity:       line.Quantity,
		})
		status := line.ReviewStatus
		if status == "" {
			status = enums.ReviewStatusApproved
		}
		items = append(items, models.OrderLineItem{
			ProductID:      line.ProductID,
			Name:           line.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			WeightOz:       line.WeightOz,
			TotalCents:     line.UnitPriceCents * int64(line.Quantity),
			Customization:  line.Customization,
			ReviewStatus:   status,
		})
	}

	subtotal := s.pricing.SubtotalCents(priceLines)
	tax := s.pricing.TaxCents(subtotal)
	shipping := s.pricing.ShippingCents(subtotal, nil)

	order := &models.Order{
		AccountID:       accountID,
		BrowsingContext: contextID,
		Status:          enums.OrderStatusDraft,
		SubtotalCents:   subtotal,
		TaxCents:        tax,
		ShippingCents:   shipping,
		TotalCents:      s.pricing.TotalCents(subtotal, tax, shipping),
		Items:           items,
	}
	created, err := s.repo.Create(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	s.logg.Info(s.logg.WithOrderID(ctx, created.ID.String()), "order context created")
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// SetShipping records the contact block, destination and selected rate, and
// recomputes totals with the selected rate's cost.
func (s *service) SetShipping(ctx context.Context, id uuid.UUID, customer types.CustomerInfo, address types.Address, rate *types.ShippingRate) (*models.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusDraft {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer editable")
	}

	order.CustomerInfo = &customer
	order.ShippingAddress = &address
	order.SelectedRate = rate
	order.ShippingCents = s.pricing.ShippingCents(order.SubtotalCents, rate)
	order.TotalCents = s.pricing.TotalCents(order.SubtotalCents, order.TaxCents, order.ShippingCents)

	updated, err := s.repo.Update(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}
	return updated, nil
}

// Finalize moves a draft to submitted on a successful payment. Finalizing a
// non-draft order is a state conflict; re-finalizing with the same payment is
// idempotent.
func (s *service) Finalize(ctx context.Context, id uuid.UUID, provider enums.PaymentProvider, paymentID string) (*models.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.Status == enums.OrderStatusSubmitted {
		if order.ResultPaymentID != nil && *order.ResultPaymentID == paymentID {
			return order, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order already submitted")
	}
	if order.Status != enums.OrderStatusDraft {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be submitted")
	}

	providerName := string(provider)
	order.Status = enums.OrderStatusSubmitted
	order.ResultPaymentID = &paymentID
	order.PaymentProvider = &providerName

	updated, err := s.repo.Update(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize order")
	}
	s.logg.Info(s.logg.WithOrderID(ctx, updated.ID.String()), "order submitted")
	return updated, nil
}
