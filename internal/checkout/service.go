package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/madebyloom/loomline-backend/internal/payments"
	"github.com/madebyloom/loomline-backend/internal/shipping"
	"github.com/madebyloom/loomline-backend/pkg/db/models"
	"github.com/madebyloom/loomline-backend/pkg/enums"
	pkgerrors "github.com/madebyloom/loomline-backend/pkg/errors"
	"github.com/madebyloom/loomline-backend/pkg/logger"
	"github.com/madebyloom/loomline-backend/pkg/metrics"
	"github.com/madebyloom/loomline-backend/pkg/types"
)

// ShippingForm is the step-1 form. Every contact and address field except
// the second address line is required to advance.
type ShippingForm struct {
	FirstName  string `json:"first_name" validate:"required"`
	LastName   string `json:"last_name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"required"`
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country"`
}

// Totals is the money summary shown for the current wizard position.
// Estimate marks pre-Payment totals, which are floors until a rate is known.
type Totals struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	TaxCents      int64 `json:"tax_cents"`
	ShippingCents int64 `json:"shipping_cents"`
	TotalCents    int64 `json:"total_cents"`
	Estimate      bool  `json:"estimate"`
}

// State is the wizard as returned to the storefront. ReplaceHistory tells
// the frontend to strip provider return parameters from the location.
type State struct {
	Draft          *Draft            `json:"draft,omitempty"`
	Order          *models.Order     `json:"order,omitempty"`
	Totals         Totals            `json:"totals"`
	FormValues     map[string]string `json:"form_values,omitempty"`
	Outcome        *payments.Outcome `json:"outcome,omitempty"`
	ReplaceHistory bool              `json:"replace_history"`
	Warning        string            `json:"warning,omitempty"`
}

type orderContext interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	SetShipping(ctx context.Context, id uuid.UUID, customer types.CustomerInfo, address types.Address, rate *types.ShippingRate) (*models.Order, error)
}

type rateQuoter interface {
	GetRates(ctx context.Context, query shipping.Query) (*shipping.Result, error)
}

type paymentGateway interface {
	StartAttempt(ctx context.Context, order *models.Order, method enums.PaymentProvider) (string, error)
	ResolveReturn(ctx context.Context, draftOrderID uuid.UUID, params url.Values) (*payments.Outcome, error)
}

// Service drives the checkout wizard: Shipping(1) -> Payment(2) -> Review(3)
// -> submitted. Forward movement is guarded; backward movement keeps entered
// data. Submitted is reached only through a successful payment outcome.
type Service interface {
	Begin(ctx context.Context, contextID string, orderID uuid.UUID) (*State, error)
	Load(ctx context.Context, contextID string, params url.Values) (*State, error)
	SubmitShipping(ctx context.Context, contextID string, form ShippingForm) (*State, error)
	SelectRate(ctx context.Context, contextID, serviceCode string) (*State, error)
	Navigate(ctx context.Context, contextID string, step int) (*State, error)
	SetTerms(ctx context.Context, contextID string, accepted bool) (*State, error)
	Submit(ctx context.Context, contextID string, method enums.PaymentProvider, form map[string]string) (string, error)
}

type service struct {
	drafts   *DraftStore
	orders   orderContext
	rates    rateQuoter
	gateway  paymentGateway
	validate *validator.Validate
	meters   *metrics.Registry
	logg     *logger.Logger
}

// NewService wires the checkout state machine.
func NewService(
	drafts *DraftStore,
	orders orderContext,
	rates rateQuoter,
	gateway paymentGateway,
	meters *metrics.Registry,
	logg *logger.Logger,
) (Service, error) {
	if drafts == nil {
		return nil, fmt.Errorf("draft store required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order context required")
	}
	if rates == nil {
		return nil, fmt.Errorf("rate quoter required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		drafts:   drafts,
		orders:   orders,
		rates:    rates,
		gateway:  gateway,
		validate: validator.New(),
		meters:   meters,
		logg:     logg,
	}, nil
}

// Begin opens the wizard against an existing order context. An order that is
// missing or no longer a draft is a precondition failure.
func (s *service) Begin(ctx context.Context, contextID string, orderID uuid.UUID) (*State, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusDraft {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not open for checkout")
	}

	draft := &Draft{OrderID: order.ID, Step: enums.CheckoutStepShipping}
	if err := s.drafts.Save(ctx, contextID, draft); err != nil {
		return nil, err
	}
	return s.buildState(ctx, draft, order, nil, nil, false, "")
}

// Load restores the wizard for this browsing context. When the request
// carries recognized provider return parameters and a checkpointed draft
// exists, the draft is restored first and the outcome resolved; success
// return parameters are consumed exactly once.
func (s *service) Load(ctx context.Context, contextID string, params url.Values) (*State, error) {
	draft, err := s.drafts.Load(ctx, contextID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active checkout")
	}

	form, err := s.drafts.LoadForm(ctx, contextID)
	if err != nil {
		s.logg.Warn(ctx, "form values unavailable on checkout resume")
		form = nil
	}

	ret := payments.ParseReturn(params)
	if ret.Kind == payments.ReturnNone {
		order, err := s.orders.Get(ctx, draft.OrderID)
		if err != nil {
			return nil, err
		}
		return s.buildState(ctx, draft, order, form, nil, false, "")
	}

	// Success returns are replay-prone (history navigation); consume them
	// once. Cancel returns are idempotent and pass through.
	if token := successToken(ret); token != "" {
		fresh, err := s.drafts.ConsumeReturn(ctx, contextID, token)
		if err != nil {
			return nil, err
		}
		if !fresh {
			order, err := s.orders.Get(ctx, draft.OrderID)
			if err != nil {
				return nil, err
			}
			return s.buildState(ctx, draft, order, form, nil, true, "")
		}
	}

	outcome, err := s.gateway.ResolveReturn(ctx, draft.OrderID, params)
	if err != nil {
		return nil, err
	}

	if outcome.Kind == payments.OutcomeSuccess {
		if err := s.drafts.Clear(ctx, contextID); err != nil {
			s.logg.Warn(ctx, "clearing checkout draft after success")
		}
		order, err := s.orders.Get(ctx, outcome.OrderID)
		if err != nil {
			return nil, err
		}
		s.countSubmission("succeeded")
		return s.buildState(ctx, nil, order, nil, outcome, true, "")
	}

	// Cancel and failure keep the draft recoverable.
	order, err := s.orders.Get(ctx, draft.OrderID)
	if err != nil {
		return nil, err
	}
	return s.buildState(ctx, draft, order, form, outcome, true, "")
}

// SubmitShipping validates the step-1 form, quotes shipping once for the
// transition, and advances to Payment. The recommended rate becomes the
// default selection.
func (s *service) SubmitShipping(ctx context.Context, contextID string, form ShippingForm) (*State, error) {
	if err := s.validate.Struct(form); err != nil {
		return nil, validationError(err)
	}

	draft, err := s.requireDraft(ctx, contextID)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.Get(ctx, draft.OrderID)
	if err != nil {
		return nil, err
	}

	customer := types.CustomerInfo{
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Email:     form.Email,
		Phone:     form.Phone,
	}
	address := types.Address{
		Line1:      form.Line1,
		Line2:      form.Line2,
		City:       form.City,
		State:      form.State,
		PostalCode: form.PostalCode,
		Country:    form.Country,
	}

	result, err := s.rates.GetRates(ctx, shipping.Query{
		Address:  address,
		WeightOz: orderWeightOz(order),
	})
	if err != nil {
		return nil, err
	}

	draft.Customer = &customer
	draft.Address = &address
	draft.Rates = result.Rates
	draft.SelectedRate = result.Recommended
	draft.Step = enums.CheckoutStepPayment

	order, err = s.orders.SetShipping(ctx, draft.OrderID, customer, address, draft.SelectedRate)
	if err != nil {
		return nil, err
	}
	if err := s.drafts.Save(ctx, contextID, draft); err != nil {
		return nil, err
	}
	return s.buildState(ctx, draft, order, nil, nil, false, result.Warning)
}

// SelectRate switches the selected shipping rate to one of the quoted ones.
func (s *service) SelectRate(ctx context.Context, contextID, serviceCode string) (*State, error) {
	draft, err := s.requireDraft(ctx, contextID)
	if err != nil {
		return nil, err
	}
	if draft.Step < enums.CheckoutStepPayment {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "complete the shipping step first")
	}

	var selected *types.ShippingRate
	for i := range draft.Rates {
		if draft.Rates[i].ServiceCode == serviceCode {
			selected = &draft.Rates[i]
			break
		}
	}
	if selected == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown shipping rate")
	}

	draft.SelectedRate = selected
	order, err := s.orders.SetShipping(ctx, draft.OrderID, *draft.Customer, *draft.Address, selected)
	if err != nil {
		return nil, err
	}
	if err := s.drafts.Save(ctx, contextID, draft); err != nil {
		return nil, err
	}
	return s.buildState(ctx, draft, order, nil, nil, false, "")
}

// Navigate moves between wizard steps. Backward movement keeps entered data;
// forward movement is one step at a time behind its guard.
func (s *service) Navigate(ctx context.Context, contextID string, step int) (*State, error) {
	target, err := enums.ParseCheckoutStep(step)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}

	draft, err := s.requireDraft(ctx, contextID)
	if err != nil {
		return nil, err
	}

	switch {
	case target <= draft.Step:
		// Going back (or staying) never loses data.
	case target == draft.Step+1:
		if draft.Step == enums.CheckoutStepShipping {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "complete the shipping step first")
		}
		if draft.SelectedRate == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "select a shipping rate")
		}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout steps cannot be skipped")
	}

	draft.Step = target
	if err := s.drafts.Save(ctx, contextID, draft); err != nil {
		return nil, err
	}
	order, err := s.orders.Get(ctx, draft.OrderID)
	if err != nil {
		return nil, err
	}
	return s.buildState(ctx, draft, order, nil, nil, false, "")
}

// SetTerms records the terms checkbox on the review step.
func (s *service) SetTerms(ctx context.Context, contextID string, accepted bool) (*State, error) {
	draft, err := s.requireDraft(ctx, contextID)
	if err != nil {
		return nil, err
	}
	if draft.Step != enums.CheckoutStepReview {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "terms are accepted on the review step")
	}

	draft.TermsAccepted = accepted
	if err := s.drafts.Save(ctx, contextID, draft); err != nil {
		return nil, err
	}
	order, err := s.orders.Get(ctx, draft.OrderID)
	if err != nil {
		return nil, err
	}
	return s.buildState(ctx, draft, order, nil, nil, false, "")
}

// Submit starts a payment attempt from the review step. The draft and the
// caller's form values are checkpointed before the redirect URL is returned.
func (s *service) Submit(ctx context.Context, contextID string, method enums.PaymentProvider, form map[string]string) (string, error) {
	draft, err := s.requireDraft(ctx, contextID)
	if err != nil {
		return "", err
	}
	if draft.Step != enums.CheckoutStepReview {
		s.countSubmission("rejected")
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "complete the previous steps first")
	}
	if !draft.TermsAccepted {
		s.countSubmission("rejected")
		return "", pkgerrors.New(pkgerrors.CodeValidation, "you must accept the terms to continue")
	}

	order, err := s.orders.Get(ctx, draft.OrderID)
	if err != nil {
		return "", err
	}

	if err := s.drafts.SaveForm(ctx, contextID, form); err != nil {
		return "", err
	}
	if err := s.drafts.Save(ctx, contextID, draft); err != nil {
		return "", err
	}

	redirectURL, err := s.gateway.StartAttempt(ctx, order, method)
	if err != nil {
		return "", err
	}
	s.countSubmission("started")
	return redirectURL, nil
}

func (s *service) requireDraft(ctx context.Context, contextID string) (*Draft, error) {
	draft, err := s.drafts.Load(ctx, contextID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active checkout")
	}
	return draft, nil
}

func (s *service) buildState(
	_ context.Context,
	draft *Draft,
	order *models.Order,
	form map[string]string,
	outcome *payments.Outcome,
	replaceHistory bool,
	warning string,
) (*State, error) {
	state := &State{
		Draft:          draft,
		Order:          order,
		FormValues:     form,
		Outcome:        outcome,
		ReplaceHistory: replaceHistory,
		Warning:        warning,
	}
	if order != nil {
		state.Totals = Totals{
			SubtotalCents: order.SubtotalCents,
			TaxCents:      order.TaxCents,
			ShippingCents: order.ShippingCents,
			TotalCents:    order.TotalCents,
			Estimate:      draft != nil && draft.Step < enums.CheckoutStepPayment,
		}
	}
	return state, nil
}

func (s *service) countSubmission(result string) {
	if s.meters != nil {
		s.meters.CheckoutSubmissions.WithLabelValues(result).Inc()
	}
}

// successToken derives the one-shot consumption token for replay-prone
// success returns. Cancel returns yield no token.
func successToken(ret payments.Return) string {
	switch ret.Kind {
	case payments.ReturnStripeSuccess:
		return "success:" + ret.OrderID
	case payments.ReturnPayPalApproved:
		return "paypal:" + ret.ProviderOrderID
	default:
		return ""
	}
}

func orderWeightOz(order *models.Order) float64 {
	var total float64
	for _, item := range order.Items {
		total += item.WeightOz * float64(item.Quantity)
	}
	return total
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]string, len(fieldErrs))
		for _, fieldErr := range fieldErrs {
			details[strings.ToLower(fieldErr.Field())] = fieldErr.Tag()
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping details are incomplete").
			WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "shipping details are invalid")
}
