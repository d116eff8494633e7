package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/madebyloom/loomline-backend/pkg/logger"
)

const (
	browsingContextCookie = "ll_ctx"
	browsingContextMaxAge = 30 * 24 * time.Hour
)

// BrowsingContext ensures every request carries a browsing-context id. The
// id lives in a cookie so guest carts and checkout drafts survive reloads;
// a request without one gets a fresh id minted and set.
func BrowsingContext(logg *logger.Logger, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			contextID := ""
			if cookie, err := r.Cookie(browsingContextCookie); err == nil {
				if _, parseErr := uuid.Parse(cookie.Value); parseErr == nil {
					contextID = cookie.Value
				}
			}
			if contextID == "" {
				contextID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     browsingContextCookie,
					Value:    contextID,
					Path:     "/",
					MaxAge:   int(browsingContextMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := WithBrowsingContext(r.Context(), contextID)
			if logg != nil {
				ctx = logg.WithBrowsingContext(ctx, contextID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
