package controllers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/madebyloom/loomline-backend/api/middleware"
	"github.com/madebyloom/loomline-backend/api/responses"
	"github.com/madebyloom/loomline-backend/api/validators"
	"github.com/madebyloom/loomline-backend/internal/cart"
	"github.com/madebyloom/loomline-backend/internal/catalog"
	"github.com/madebyloom/loomline-backend/internal/checkout"
	"github.com/madebyloom/loomline-backend/internal/orders"
	"github.com/madebyloom/loomline-backend/pkg/enums"
	pkgerrors "github.com/madebyloom/loomline-backend/pkg/errors"
	"github.com/madebyloom/loomline-backend/pkg/logger"
)

type selectRateRequest struct {
	ServiceCode string `json:"service_code" validate:"required"`
}

type navigateRequest struct {
	Step int `json:"step" validate:"required"`
}

type termsRequest struct {
	Accepted bool `json:"accepted"`
}

type submitRequest struct {
	Method string            `json:"method" validate:"required"`
	Form   map[string]string `json:"form"`
}

// CheckoutBegin promotes the current cart into an order context and opens
// the wizard on the shipping step.
func CheckoutBegin(
	cartSvc cart.Service,
	catalogSvc catalog.Service,
	ordersSvc orders.Service,
	checkoutSvc checkout.Service,
	logg *logger.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := cartSession(r)

		view, err := cartSvc.Get(r.Context(), sess)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines, err := draftLines(r, catalogSvc, view.Items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := ordersSvc.CreateDraft(r.Context(), sess.ContextID, sess.AccountID, lines)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		state, err := checkoutSvc.Begin(r.Context(), sess.ContextID, order.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, state)
	}
}

// draftLines resolves cart slots against the catalog so the order snapshot
// carries names and parcel weights. Customized lines enter review pending.
func draftLines(r *http.Request, catalogSvc catalog.Service, items []cart.SnapshotItem) ([]orders.LineInput, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot start checkout with an empty cart")
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := catalogSvc.ResolveProducts(r.Context(), ids)
	if err != nil {
		return nil, err
	}

	lines := make([]orders.LineInput, 0, len(items))
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a cart item is no longer available").
				WithDetails(map[string]any{"local_id": item.LocalID})
		}
		status := enums.ReviewStatusApproved
		if item.Customized() {
			status = enums.ReviewStatusPending
		}
		lines = append(lines, orders.LineInput{
			ProductID:      item.ProductID,
			Name:           product.Title,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			WeightOz:       product.WeightOz,
			Customization:  item.Customization,
			ReviewStatus:   status,
		})
	}
	return lines, nil
}

// CheckoutLoad restores the wizard, resolving provider return parameters
// when the request carries them.
func CheckoutLoad(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contextID := middleware.BrowsingContextFromContext(r.Context())
		state, err := svc.Load(r.Context(), contextID, r.URL.Query())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}

func CheckoutShipping(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var form checkout.ShippingForm
		if err := decodeBody(r, &form); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contextID := middleware.BrowsingContextFromContext(r.Context())
		state, err := svc.SubmitShipping(r.Context(), contextID, form)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}

func CheckoutSelectRate(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req selectRateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contextID := middleware.BrowsingContextFromContext(r.Context())
		state, err := svc.SelectRate(r.Context(), contextID, req.ServiceCode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}

func CheckoutNavigate(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req navigateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contextID := middleware.BrowsingContextFromContext(r.Context())
		state, err := svc.Navigate(r.Context(), contextID, req.Step)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}

func CheckoutTerms(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req termsRequest
		if err := decodeBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contextID := middleware.BrowsingContextFromContext(r.Context())
		state, err := svc.SetTerms(r.Context(), contextID, req.Accepted)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}

// CheckoutSubmit starts the payment attempt and returns the provider
// redirect URL.
func CheckoutSubmit(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentProvider(req.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method"))
			return
		}

		contextID := middleware.BrowsingContextFromContext(r.Context())
		redirectURL, err := svc.Submit(r.Context(), contextID, method, req.Form)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"redirect_url": redirectURL})
	}
}

// decodeBody is a plain JSON decode for payloads the service layer
// validates itself.
func decodeBody(r *http.Request, dest any) error {
	defer func() {
		io.Copy(io.Discard, r.Body)
	}()
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body")
	}
	return nil
}
