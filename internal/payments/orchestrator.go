package payments

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/madebyloom/loomline-backend/pkg/config"
	"github.com/madebyloom/loomline-backend/pkg/db/models"
	"github.com/madebyloom/loomline-backend/pkg/enums"
	pkgerrors "github.com/madebyloom/loomline-backend/pkg/errors"
	"github.com/madebyloom/loomline-backend/pkg/logger"
	"github.com/madebyloom/loomline-backend/pkg/metrics"
)

// OutcomeKind classifies a resolved provider return.
type OutcomeKind string

const (
	OutcomeNone     OutcomeKind = "none"
	OutcomeSuccess  OutcomeKind = "success"
	OutcomeCanceled OutcomeKind = "canceled"
	OutcomeFailed   OutcomeKind = "failed"
)

// Outcome is the result of resolving a provider return. Canceled and failed
// outcomes are recoverable: the checkout draft stays intact and a new attempt
// can be started.
type Outcome struct {
	Kind          OutcomeKind           `json:"kind"`
	OrderID       uuid.UUID             `json:"order_id,omitempty"`
	Provider      enums.PaymentProvider `json:"provider,omitempty"`
	TransactionID string                `json:"transaction_id,omitempty"`
	Message       string                `json:"message,omitempty"`
}

type orderFinalizer interface {
	Finalize(ctx context.Context, id uuid.UUID, provider enums.PaymentProvider, paymentID string) (*models.Order, error)
}

type captureGuard interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CaptureGuardKey(providerOrderID string) string
}

// Orchestrator hands a draft order off to a payment provider and resolves
// the redirect back. At most one unresolved attempt exists per order.
type Orchestrator interface {
	StartAttempt(ctx context.Context, order *models.Order, method enums.PaymentProvider) (string, error)
	ResolveReturn(ctx context.Context, draftOrderID uuid.UUID, params url.Values) (*Outcome, error)
}

type orchestrator struct {
	stripeClient StripeSessionClient
	paypalClient PayPalOrderClient
	attempts     AttemptRepository
	orders       orderFinalizer
	guards       captureGuard
	meters       *metrics.Registry
	logg         *logger.Logger
	frontend     config.FrontendConfig
	cfg          config.CheckoutConfig
}

// NewOrchestrator wires the payment orchestrator.
func NewOrchestrator(
	stripeClient StripeSessionClient,
	paypalClient PayPalOrderClient,
	attempts AttemptRepository,
	orders orderFinalizer,
	guards captureGuard,
	meters *metrics.Registry,
	logg *logger.Logger,
	frontend config.FrontendConfig,
	cfg config.CheckoutConfig,
) (Orchestrator, error) {
	if stripeClient == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if paypalClient == nil {
		return nil, fmt.Errorf("paypal client required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order finalizer required")
	}
	if guards == nil {
		return nil, fmt.Errorf("capture guard required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &orchestrator{
		stripeClient: stripeClient,
		paypalClient: paypalClient,
		attempts:     attempts,
		orders:       orders,
		guards:       guards,
		meters:       meters,
		logg:         logg,
		frontend:     frontend,
		cfg:          cfg,
	}, nil
}

// StartAttempt creates a provider hand-off for the order and returns the
// redirect URL. Any unresolved prior attempt for the order is superseded
// first.
func (o *orchestrator) StartAttempt(ctx context.Context, order *models.Order, method enums.PaymentProvider) (string, error) {
	if order == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order context required")
	}
	if !method.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}
	if order.Status != enums.OrderStatusDraft {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "order is not payable")
	}
	if order.TotalCents <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order total must be positive")
	}
	ctx = o.logg.WithOrderID(ctx, order.ID.String())

	if err := o.supersedeUnresolved(ctx, order.ID); err != nil {
		return "", err
	}

	var externalID, redirectURL string
	var err error
	switch method.Integration() {
	case enums.PaymentProviderStripe:
		externalID, redirectURL, err = o.startStripe(ctx, order)
	case enums.PaymentProviderPayPal:
		externalID, redirectURL, err = o.startPayPal(ctx, order)
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}
	if err != nil {
		return "", err
	}

	attempt := &models.PaymentAttempt{
		OrderID:    order.ID,
		Provider:   method,
		ExternalID: externalID,
		Status:     enums.PaymentAttemptStatusCreated,
	}
	if _, err := o.attempts.Create(ctx, attempt); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment attempt")
	}
	o.logg.Info(ctx, fmt.Sprintf("payment attempt started (%s)", method))
	return redirectURL, nil
}

func (o *orchestrator) supersedeUnresolved(ctx context.Context, orderID uuid.UUID) error {
	latest, err := o.attempts.FindLatestByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment attempts")
	}
	if latest.Status.Resolved() {
		return nil
	}
	latest.Status = enums.PaymentAttemptStatusSuperseded
	if _, err := o.attempts.Update(ctx, latest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "supersede payment attempt")
	}
	return nil
}

func (o *orchestrator) startStripe(ctx context.Context, order *models.Order) (string, string, error) {
	currency := strings.ToLower(o.cfg.Currency)
	checkoutURL := o.frontend.CheckoutURL()

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(order.Items)+2)
	for _, item := range order.Items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(item.UnitPriceCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}
	for _, extra := range []struct {
		name  string
		cents int64
	}{
		{"Shipping", order.ShippingCents},
		{"Tax", order.TaxCents},
	} {
		if extra.cents <= 0 {
			continue
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(extra.cents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(extra.name),
				},
			},
			Quantity: stripe.Int64(1),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(checkoutURL + "?success=true&orderId=" + order.ID.String()),
		CancelURL:  stripe.String(checkoutURL + "?canceled=true"),
		LineItems:  lineItems,
	}
	if order.CustomerInfo != nil && order.CustomerInfo.Email != "" {
		params.CustomerEmail = stripe.String(order.CustomerInfo.Email)
	}
	params.AddMetadata("order_id", order.ID.String())

	session, err := o.stripeClient.CreateSession(ctx, params)
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe checkout session")
	}
	if session == nil || session.ID == "" || session.URL == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeDependency, "stripe session missing id or redirect url")
	}
	return session.ID, session.URL, nil
}

func (o *orchestrator) startPayPal(ctx context.Context, order *models.Order) (string, string, error) {
	currency := strings.ToUpper(o.cfg.Currency)
	checkoutURL := o.frontend.CheckoutURL()

	items := make([]paypal.Item, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, paypal.Item{
			Name:     item.Name,
			Quantity: strconv.Itoa(item.Quantity),
			UnitAmount: &paypal.Money{
				Currency: currency,
				Value:    centsToValue(item.UnitPriceCents),
			},
		})
	}

	unit := paypal.PurchaseUnitRequest{
		ReferenceID: order.ID.String(),
		CustomID:    order.ID.String(),
		Amount: &paypal.PurchaseUnitAmount{
			Currency: currency,
			Value:    centsToValue(order.TotalCents),
			Breakdown: &paypal.PurchaseUnitAmountBreakdown{
				ItemTotal: &paypal.Money{Currency: currency, Value: centsToValue(order.SubtotalCents)},
				TaxTotal:  &paypal.Money{Currency: currency, Value: centsToValue(order.TaxCents)},
				Shipping:  &paypal.Money{Currency: currency, Value: centsToValue(order.ShippingCents)},
			},
		},
		Items: items,
	}
	experience := paypal.PaymentSourcePaypalExperienceContext{
		UserAction: "PAY_NOW",
		ReturnURL:  checkoutURL + "?paypal_success=true",
		CancelURL:  checkoutURL + "?paypal_canceled=true",
	}
	if order.ShippingAddress != nil {
		experience.ShippingPreference = "SET_PROVIDED_ADDRESS"
		shipping := &paypal.ShippingDetail{
			Address: &paypal.ShippingDetailAddressPortable{
				AddressLine1: order.ShippingAddress.Line1,
				AddressLine2: order.ShippingAddress.Line2,
				AdminArea2:   order.ShippingAddress.City,
				AdminArea1:   order.ShippingAddress.State,
				PostalCode:   order.ShippingAddress.PostalCode,
				CountryCode:  order.ShippingAddress.CountryOrDefault(),
			},
		}
		if order.CustomerInfo != nil {
			shipping.Name = &paypal.Name{
				FullName: strings.TrimSpace(order.CustomerInfo.FirstName + " " + order.CustomerInfo.LastName),
			}
		}
		unit.Shipping = shipping
	}

	source := &paypal.PaymentSource{
		Paypal: &paypal.PaymentSourcePaypal{ExperienceContext: experience},
	}

	created, err := o.paypalClient.CreateOrder(ctx, []paypal.PurchaseUnitRequest{unit}, source)
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create paypal order")
	}
	if created == nil || created.ID == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeDependency, "paypal order missing id")
	}
	approveURL := approveLink(created.Links)
	if approveURL == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeDependency, "paypal order missing approval link")
	}
	return created.ID, approveURL, nil
}

// ResolveReturn resolves a provider redirect. Unrecognized parameter sets are
// a no-op. The PayPal approved path captures exactly once: a one-shot guard
// keyed by the provider order id plus the attempt's resolved-status check.
func (o *orchestrator) ResolveReturn(ctx context.Context, draftOrderID uuid.UUID, params url.Values) (*Outcome, error) {
	ret := ParseReturn(params)
	switch ret.Kind {
	case ReturnStripeSuccess:
		orderID, err := uuid.Parse(ret.OrderID)
		if err != nil {
			return &Outcome{Kind: OutcomeNone}, nil
		}
		return o.resolveStripeSuccess(ctx, orderID)
	case ReturnStripeCancel:
		return o.resolveCancel(ctx, draftOrderID, enums.PaymentProviderStripe)
	case ReturnPayPalApproved:
		return o.resolvePayPalApproved(ctx, ret.ProviderOrderID)
	case ReturnPayPalCancel:
		return o.resolveCancel(ctx, draftOrderID, enums.PaymentProviderPayPal)
	default:
		return &Outcome{Kind: OutcomeNone}, nil
	}
}

func (o *orchestrator) resolveStripeSuccess(ctx context.Context, orderID uuid.UUID) (*Outcome, error) {
	ctx = o.logg.WithOrderID(ctx, orderID.String())
	attempt, err := o.attempts.FindLatestByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &Outcome{Kind: OutcomeNone}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment attempt")
	}

	if attempt.Status == enums.PaymentAttemptStatusSucceeded {
		return o.successOutcome(attempt), nil
	}
	if attempt.Status.Resolved() {
		return &Outcome{Kind: OutcomeNone}, nil
	}

	transactionID := attempt.ExternalID
	attempt.Status = enums.PaymentAttemptStatusSucceeded
	attempt.ResultPaymentID = &transactionID
	if _, err := o.attempts.Update(ctx, attempt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment success")
	}
	if _, err := o.orders.Finalize(ctx, orderID, attempt.Provider, transactionID); err != nil {
		return nil, err
	}

	o.countOutcome(attempt.Provider, "success")
	o.logg.Info(ctx, "payment succeeded")
	return o.successOutcome(attempt), nil
}

func (o *orchestrator) resolvePayPalApproved(ctx context.Context, providerOrderID string) (*Outcome, error) {
	attempt, err := o.attempts.FindByExternalID(ctx, providerOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &Outcome{Kind: OutcomeNone}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment attempt")
	}
	ctx = o.logg.WithOrderID(ctx, attempt.OrderID.String())

	if attempt.Status == enums.PaymentAttemptStatusSucceeded {
		return o.successOutcome(attempt), nil
	}
	if attempt.Status.Resolved() {
		return &Outcome{Kind: OutcomeNone}, nil
	}

	acquired, err := o.guards.SetNX(ctx, o.guards.CaptureGuardKey(providerOrderID), "1", o.cfg.CaptureGuardTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire capture guard")
	}
	if !acquired {
		return &Outcome{
			Kind:     OutcomeNone,
			OrderID:  attempt.OrderID,
			Provider: attempt.Provider,
			Message:  "payment is already being processed",
		}, nil
	}

	attempt.Status = enums.PaymentAttemptStatusPendingCapture
	if _, err := o.attempts.Update(ctx, attempt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record pending capture")
	}

	captured, err := o.paypalClient.CaptureOrder(ctx, providerOrderID)
	if err != nil || captured == nil || captured.Status != paypal.OrderStatusCompleted {
		reason := "capture failed"
		if err != nil {
			reason = err.Error()
		} else if captured != nil {
			reason = "capture status " + captured.Status
		}
		attempt.Status = enums.PaymentAttemptStatusFailed
		attempt.FailureReason = &reason
		if _, updateErr := o.attempts.Update(ctx, attempt); updateErr != nil {
			o.logg.Error(ctx, "recording capture failure", updateErr)
		}
		o.countOutcome(attempt.Provider, "failed")
		o.logg.Error(ctx, "paypal capture failed", err)
		return &Outcome{
			Kind:     OutcomeFailed,
			OrderID:  attempt.OrderID,
			Provider: attempt.Provider,
			Message:  "payment could not be completed",
		}, nil
	}

	transactionID := captureID(captured)
	attempt.Status = enums.PaymentAttemptStatusSucceeded
	attempt.ResultPaymentID = &transactionID
	if _, err := o.attempts.Update(ctx, attempt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment success")
	}
	if _, err := o.orders.Finalize(ctx, attempt.OrderID, attempt.Provider, transactionID); err != nil {
		return nil, err
	}

	o.countOutcome(attempt.Provider, "success")
	o.logg.Info(ctx, "payment captured")
	return o.successOutcome(attempt), nil
}

// resolveCancel marks the draft's unresolved attempt canceled. The attempt is
// resolved but the checkout draft stays recoverable; a retry opens a new
// attempt.
func (o *orchestrator) resolveCancel(ctx context.Context, draftOrderID uuid.UUID, provider enums.PaymentProvider) (*Outcome, error) {
	outcome := &Outcome{
		Kind:     OutcomeCanceled,
		OrderID:  draftOrderID,
		Provider: provider,
		Message:  "payment canceled",
	}
	if draftOrderID == uuid.Nil {
		return outcome, nil
	}
	ctx = o.logg.WithOrderID(ctx, draftOrderID.String())

	attempt, err := o.attempts.FindLatestByOrder(ctx, draftOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return outcome, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment attempt")
	}
	if !attempt.Status.Resolved() {
		attempt.Status = enums.PaymentAttemptStatusCanceled
		if _, err := o.attempts.Update(ctx, attempt); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment cancel")
		}
		o.countOutcome(attempt.Provider, "canceled")
		o.logg.Info(ctx, "payment canceled by customer")
	}
	outcome.Provider = attempt.Provider
	return outcome, nil
}

func (o *orchestrator) successOutcome(attempt *models.PaymentAttempt) *Outcome {
	transactionID := attempt.ExternalID
	if attempt.ResultPaymentID != nil {
		transactionID = *attempt.ResultPaymentID
	}
	return &Outcome{
		Kind:          OutcomeSuccess,
		OrderID:       attempt.OrderID,
		Provider:      attempt.Provider,
		TransactionID: transactionID,
	}
}

func (o *orchestrator) countOutcome(provider enums.PaymentProvider, status string) {
	if o.meters != nil {
		o.meters.PaymentOutcomes.WithLabelValues(string(provider), status).Inc()
	}
}

func approveLink(links []paypal.Link) string {
	for _, link := range links {
		if link.Rel == "approve" {
			return link.Href
		}
	}
	return ""
}

func captureID(resp *paypal.CaptureOrderResponse) string {
	for _, unit := range resp.PurchaseUnits {
		if unit.Payments == nil {
			continue
		}
		for _, capture := range unit.Payments.Captures {
			if capture.ID != "" {
				return capture.ID
			}
		}
	}
	return resp.ID
}

func centsToValue(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}
