package middleware

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	ctxBrowsingContext contextKey = "browsing_context"
	ctxAccountID       contextKey = "account_id"
)

// BrowsingContextFromContext returns the browsing-context id seeded by the
// cookie middleware. Empty only when the middleware did not run.
func BrowsingContextFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxBrowsingContext).(string); ok {
		return v
	}
	return ""
}

// AccountIDFromContext returns the authenticated account id, or nil for
// guests.
func AccountIDFromContext(ctx context.Context) *uuid.UUID {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxAccountID).(uuid.UUID); ok {
		return &v
	}
	return nil
}

// WithBrowsingContext injects the browsing-context id for downstream handlers.
func WithBrowsingContext(ctx context.Context, contextID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxBrowsingContext, contextID)
}

// WithAccountID injects the account id for downstream handlers.
func WithAccountID(ctx context.Context, accountID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxAccountID, accountID)
}
