package checkout

import (
	"context"
	"io"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/madebyloom/loomline-backend/internal/payments"
	"github.com/madebyloom/loomline-backend/internal/shipping"
	"github.com/madebyloom/loomline-backend/pkg/config"
	"github.com/madebyloom/loomline-backend/pkg/db/models"
	"github.com/madebyloom/loomline-backend/pkg/enums"
	pkgerrors "github.com/madebyloom/loomline-backend/pkg/errors"
	"github.com/madebyloom/loomline-backend/pkg/logger"
	"github.com/madebyloom/loomline-backend/pkg/redis"
	"github.com/madebyloom/loomline-backend/pkg/types"
)

type fakeBackend struct {
	data map[string]string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{data: map[string]string{}}
}

func (f *fakeBackend) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.data[key] = value.(string)
	return nil
}

func (f *fakeBackend) Get(_ context.Context, key string) (string, error) {
	value, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeBackend) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = "1"
	return true, nil
}

func (f *fakeBackend) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeBackend) CheckoutDraftKey(contextID string) string { return "ll:checkout_draft:" + contextID }
func (f *fakeBackend) CheckoutFormKey(contextID string) string  { return "ll:checkout_form:" + contextID }
func (f *fakeBackend) ReturnGuardKey(contextID, token string) string {
	return "ll:return_consumed:" + contextID + ":" + token
}

type stubOrders struct {
	order *models.Order
}

func (s *stubOrders) Get(_ context.Context, id uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	copied := *s.order
	return &copied, nil
}

func (s *stubOrders) SetShipping(ctx context.Context, id uuid.UUID, customer types.CustomerInfo, address types.Address, rate *types.ShippingRate) (*models.Order, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	s.order.CustomerInfo = &customer
	s.order.ShippingAddress = &address
	s.order.SelectedRate = rate
	if rate != nil {
		s.order.ShippingCents = rate.TotalCostCents
	}
	s.order.TotalCents = s.order.SubtotalCents + s.order.TaxCents + s.order.ShippingCents
	copied := *s.order
	return &copied, nil
}

type stubRates struct {
	result *shipping.Result
	calls  int
}

func (s *stubRates) GetRates(_ context.Context, _ shipping.Query) (*shipping.Result, error) {
	s.calls++
	return s.result, nil
}

type stubGateway struct {
	redirect string
	outcome  *payments.Outcome
	starts   int
	resolves int
}

func (s *stubGateway) StartAttempt(_ context.Context, _ *models.Order, _ enums.PaymentProvider) (string, error) {
	s.starts++
	return s.redirect, nil
}

func (s *stubGateway) ResolveReturn(_ context.Context, _ uuid.UUID, _ url.Values) (*payments.Outcome, error) {
	s.resolves++
	return s.outcome, nil
}

type checkoutFixture struct {
	svc     Service
	backend *fakeBackend
	orders  *stubOrders
	rates   *stubRates
	gateway *stubGateway
	order   *models.Order
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()

	order := &models.Order{
		ID:              uuid.New(),
		BrowsingContext: "bc-1",
		Status:          enums.OrderStatusDraft,
		SubtotalCents:   6000,
		TaxCents:        480,
		TotalCents:      6480,
		Items: []models.OrderLineItem{
			{Name: "Patch", Quantity: 2, UnitPriceCents: 1500, WeightOz: 3},
		},
	}

	rate := types.ShippingRate{ServiceName: "First Class", ServiceCode: "usps_first_class", ShipmentCostCents: 599}
	rate.Normalize()
	priority := types.ShippingRate{ServiceName: "Priority", ServiceCode: "usps_priority", ShipmentCostCents: 995}
	priority.Normalize()

	fix := &checkoutFixture{
		backend: newFakeBackend(),
		orders:  &stubOrders{order: order},
		rates: &stubRates{result: &shipping.Result{
			Rates:       []types.ShippingRate{rate, priority},
			Recommended: &rate,
		}},
		gateway: &stubGateway{redirect: "https://pay.example.com/session"},
		order:   order,
	}

	drafts, err := NewDraftStore(fix.backend, config.CheckoutConfig{DraftTTL: time.Hour})
	if err != nil {
		t.Fatalf("draft store: %v", err)
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(drafts, fix.orders, fix.rates, fix.gateway, nil, logg)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	fix.svc = svc
	return fix
}

func validForm() ShippingForm {
	return ShippingForm{
		FirstName:  "Ada",
		LastName:   "Byron",
		Email:      "ada@example.com",
		Phone:      "555-0100",
		Line1:      "1 Main St",
		City:       "Portland",
		State:      "OR",
		PostalCode: "97201",
	}
}

func (f *checkoutFixture) begun(t *testing.T) {
	t.Helper()
	if _, err := f.svc.Begin(context.Background(), "bc-1", f.order.ID); err != nil {
		t.Fatalf("begin: %v", err)
	}
}

func (f *checkoutFixture) atReview(t *testing.T) {
	t.Helper()
	f.begun(t)
	if _, err := f.svc.SubmitShipping(context.Background(), "bc-1", validForm()); err != nil {
		t.Fatalf("submit shipping: %v", err)
	}
	if _, err := f.svc.Navigate(context.Background(), "bc-1", 3); err != nil {
		t.Fatalf("navigate to review: %v", err)
	}
}

func TestBeginRequiresDraftOrder(t *testing.T) {
	t.Parallel()

	fix := newCheckoutFixture(t)

	_, err := fix.svc.Begin(context.Background(), "bc-1", uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	fix.order.Status = enums.OrderStatusSubmitted
	_, err = fix.svc.Begin(context.Background(), "bc-1", fix.order.ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestBeginShowsEstimatedTotals(t *testing.T) {
	t.Parallel()

	fix := newCheckoutFixture(t)

	state, err := fix.svc.Begin(context.Background(), "bc-1", fix.order.ID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if !state.Totals.Estimate {
		t.Fatal("step-1 totals must be estimates")
	}
	if state.Draft.Step != enums.CheckoutStepShipping {
		t.Fatalf("step = %d", state.Draft.Step)
	}
}

func TestSubmitShippingValidatesForm(t *testing.T) {
	t.Parallel()

	fix := newCheckoutFixture(t)
	fix.begun(t)

	form := validForm()
	form.Email = ""
	_, err := fix.svc.SubmitShipping(context.Background(), "bc-1", form)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if fix.rates.calls != 0 {
		t.Fatal("rates must not be quoted for an invalid form")
	}
}

func TestSubmitShippingAdvancesAndQuotesOnce(t *testing.T) {
	t.Parallel()

	fix := newCheckoutFixture(t)
	fix.begun(t)

	state, err := fix.svc.SubmitShipping(context.Background(), "bc-1", validForm())
	if err != nil {
		t.Fatalf("submit shipping: %v", err)
	}
	if fix.rates.calls != 1 {
		t.Fatalf("rate calls = %d, want 1", fix.rates.calls)
	}
	if state.Draft.Step != enums.CheckoutStepPayment {
		t.Fatalf("step = %d, want payment", state.Draft.Step)
	}
	if state.Draft.SelectedRate == nil || state.Draft.SelectedRate.ServiceCode != "usps_first_class" {
		t.Fatalf("default selection = %+v, want recommended", state.Draft.SelectedRate)
	}
	if state.Totals.Estimate {
		t.Fatal("totals are exact from the payment step onward")
	}
	if state.Totals.ShippingCents != 599 {
		t.Fatalf("shipping = %d, want 599", state.Totals.ShippingCents)
	}
}

func TestNavigateGuards(t *testing.T) {
	t.Parallel()

	fix := newCheckoutFixture(t)
	fix.begun(t)

	// Forward from shipping goes through SubmitShipping, not Navigate.
	if _, err := fix.svc.Navigate(context.Background(), "bc-1", 2); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	// Skipping to review is never allowed.
	if _, err := fix.svc.Navigate(context.Background(), "bc-1", 3); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}

	if _, err := fix.svc.SubmitShipping(context.Background(), "bc-1", validForm()); err != nil {
		t.Fatalf("submit shipping: %v", err)
	}
	state, err := fix.svc.Navigate(context.Background(), "bc-1", 3)
	if err != nil {
		t.Fatalf("navigate to review: %v", err)
	}
	if state.Draft.Step != enums.CheckoutStepReview {
		t.Fatalf("step = %d, want review", state.Draft.Step)
	}

	// Backward movement keeps entered data.
	state, err = fix.svc.Navigate(context.Background(), "bc-1", 1)
	if err != nil {
		t.Fatalf("navigate back: %v", err)
	}
	if state.Draft.Customer == nil || state.Draft.Customer.FirstName != "Ada" {
		t.Fatal("going back lost entered data")
	}
}

func TestSelectRateUpdatesTotals(t *testing.T) {
	t.Parallel()

	fix := newCheckoutFixture(t)
	fix.begun(t)
	if _, err := fix.svc.SubmitShipping(context.Background(), "bc-1", validForm()); err != nil {
		t.Fatalf("submit shipping: %v", err)
	}

	state, err := fix.svc.SelectRate(context.Background(), "bc-1", "usps_priority")
	if err != nil {
		t.Fatalf("select rate: %v", err)
	}
	if state.Totals.ShippingCents != 995 {
		t.Fatalf("shipping = %d, want 995", state.Totals.ShippingCents)
	}

	if _, err := fix.svc.SelectRate(context.Background(), "bc-1", "bogus"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmitRequiresTerms(t *testing.T) {
	t.Parallel()

	fix := newCheckoutFixture(t)
	fix.atReview(t)

	_, err := fix.svc.Submit(context.Background(), "bc-1", enums.PaymentProviderStripe, nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := pkgerrors.As(err).Message(); got != "you must accept the terms to continue" {
		t.Fatalf("message = %q", got)
	}
}

func TestSubmitCheckpointsAndRedirects(t *testing.T) {
	t.Parallel()

	fix := newCheckoutFixture(t)
	fix.atReview(t)
	if _, err := fix.svc.SetTerms(context.Background(), "bc-1", true); err != nil {
		t.Fatalf("set terms: %v", err)
	}

	redirect, err := fix.svc.Submit(context.Background(), "bc-1", enums.PaymentProviderStripe,
		map[string]string{"gift_note": "happy birthday"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if redirect != "https://pay.example.com/session" {
		t.Fatalf("redirect = %s", redirect)
	}
	if fix.gateway.starts != 1 {
		t.Fatalf("starts = %d, want 1", fix.gateway.starts)
	}
	if _, ok := fix.backend.data["ll:checkout_form:bc-1"]; !ok {
		t.Fatal("form values were not checkpointed before redirect")
	}
	if _, ok := fix.backend.data["ll:checkout_draft:bc-1"]; !ok {
		t.Fatal("draft was not checkpointed before redirect")
	}
}

func TestLoadResolvesSuccessOnce(t *testing.T) {
	t.Parallel()

	fix := newCheckoutFixture(t)
	fix.atReview(t)
	fix.gateway.outcome = &payments.Outcome{
		Kind:          payments.OutcomeSuccess,
		OrderID:       fix.order.ID,
		Provider:      enums.PaymentProviderStripe,
		TransactionID: "cs_1",
	}

	params := url.Values{"success": {"true"}, "orderId": {fix.order.ID.String()}}
	state, err := fix.svc.Load(context.Background(), "bc-1", params)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if state.Outcome == nil || state.Outcome.Kind != payments.OutcomeSuccess {
		t.Fatalf("outcome = %+v", state.Outcome)
	}
	if !state.ReplaceHistory {
		t.Fatal("frontend must replace history after a resolved return")
	}
	if state.Draft != nil {
		t.Fatal("draft must be cleared after success")
	}
	if fix.gateway.resolves != 1 {
		t.Fatalf("resolves = %d, want 1", fix.gateway.resolves)
	}

	// Draft is gone; a replayed success return no longer resolves anything.
	if _, err := fix.svc.Load(context.Background(), "bc-1", params); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found after draft cleared, got %v", err)
	}
	if fix.gateway.resolves != 1 {
		t.Fatalf("replay must not resolve again, resolves = %d", fix.gateway.resolves)
	}
}

func TestLoadKeepsDraftOnCancel(t *testing.T) {
	t.Parallel()

	fix := newCheckoutFixture(t)
	fix.atReview(t)
	fix.gateway.outcome = &payments.Outcome{
		Kind:     payments.OutcomeCanceled,
		OrderID:  fix.order.ID,
		Provider: enums.PaymentProviderStripe,
		Message:  "payment canceled",
	}

	state, err := fix.svc.Load(context.Background(), "bc-1", url.Values{"canceled": {"true"}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if state.Outcome == nil || state.Outcome.Kind != payments.OutcomeCanceled {
		t.Fatalf("outcome = %+v", state.Outcome)
	}
	if state.Draft == nil {
		t.Fatal("draft must survive a cancel")
	}
	if !state.ReplaceHistory {
		t.Fatal("frontend must replace history after a resolved return")
	}
}

func TestLoadWithoutDraftIsNotFound(t *testing.T) {
	t.Parallel()

	fix := newCheckoutFixture(t)

	_, err := fix.svc.Load(context.Background(), "bc-1", url.Values{})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLoadRestoresFormValuesOnResume(t *testing.T) {
	t.Parallel()

	fix := newCheckoutFixture(t)
	fix.atReview(t)
	if _, err := fix.svc.SetTerms(context.Background(), "bc-1", true); err != nil {
		t.Fatalf("set terms: %v", err)
	}
	if _, err := fix.svc.Submit(context.Background(), "bc-1", enums.PaymentProviderStripe,
		map[string]string{"gift_note": "happy birthday"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	state, err := fix.svc.Load(context.Background(), "bc-1", url.Values{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if state.FormValues["gift_note"] != "happy birthday" {
		t.Fatalf("form values = %+v", state.FormValues)
	}
}
