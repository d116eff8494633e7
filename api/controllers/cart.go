package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/madebyloom/loomline-backend/api/middleware"
	"github.com/madebyloom/loomline-backend/api/responses"
	"github.com/madebyloom/loomline-backend/api/validators"
	"github.com/madebyloom/loomline-backend/internal/cart"
	pkgerrors "github.com/madebyloom/loomline-backend/pkg/errors"
	"github.com/madebyloom/loomline-backend/pkg/logger"
	"github.com/madebyloom/loomline-backend/pkg/types"
)

type cartAddRequest struct {
	ProductID     uuid.UUID            `json:"product_id" validate:"required"`
	Quantity      int                  `json:"quantity" validate:"required,min=1"`
	Customization *types.Customization `json:"customization"`
}

type cartQuantityRequest struct {
	Quantity int `json:"quantity" validate:"min=0"`
}

func cartSession(r *http.Request) cart.Session {
	return cart.Session{
		ContextID: middleware.BrowsingContextFromContext(r.Context()),
		AccountID: middleware.AccountIDFromContext(r.Context()),
	}
}

func CartFetch(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.Get(r.Context(), cartSession(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CartAddItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req cartAddRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.AddItem(r.Context(), cartSession(r), cart.AddItemInput{
			ProductID:     req.ProductID,
			Quantity:      req.Quantity,
			Customization: req.Customization,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CartUpdateItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid item id"))
			return
		}

		var req cartQuantityRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.UpdateQuantity(r.Context(), cartSession(r), itemID, req.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CartRemoveItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid item id"))
			return
		}

		view, err := svc.RemoveItem(r.Context(), cartSession(r), itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CartClear(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Clear(r.Context(), cartSession(r)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}

// CartSync runs the identity-transition merge after a login. The guest
// snapshot folds into the account cart at most once per transition.
func CartSync(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := cartSession(r)
		if !sess.Authenticated() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "login required"))
			return
		}

		view, err := svc.SyncOnLogin(r.Context(), sess)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartLogout clears the guest snapshot so the next guest on this browser
// does not inherit the previous account's cart.
func CartLogout(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contextID := middleware.BrowsingContextFromContext(r.Context())
		if err := svc.HandleLogout(r.Context(), contextID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}

// CartCleanup drops lines whose products vanished or went inactive, keeping
// custom creations. The removed local ids let the storefront explain what
// disappeared.
func CartCleanup(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, removed, err := svc.CleanupUnavailable(r.Context(), cartSession(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"cart":    view,
			"removed": removed,
		})
	}
}
