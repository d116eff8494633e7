package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/madebyloom/loomline-backend/pkg/config"
	"github.com/madebyloom/loomline-backend/pkg/enums"
	pkgerrors "github.com/madebyloom/loomline-backend/pkg/errors"
	"github.com/madebyloom/loomline-backend/pkg/redis"
	"github.com/madebyloom/loomline-backend/pkg/types"
)

// Draft is the checkout wizard state checkpointed per browsing context. It
// survives page reloads and provider redirects.
type Draft struct {
	OrderID       uuid.UUID            `json:"order_id"`
	Step          enums.CheckoutStep   `json:"step"`
	Customer      *types.CustomerInfo  `json:"customer,omitempty"`
	Address       *types.Address       `json:"address,omitempty"`
	Rates         []types.ShippingRate `json:"rates,omitempty"`
	SelectedRate  *types.ShippingRate  `json:"selected_rate,omitempty"`
	TermsAccepted bool                 `json:"terms_accepted"`
}

type draftBackend interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	CheckoutDraftKey(contextID string) string
	CheckoutFormKey(contextID string) string
	ReturnGuardKey(contextID, token string) string
}

// DraftStore checkpoints checkout drafts and pre-redirect form values in
// redis, and tracks one-shot consumption of provider return parameters.
type DraftStore struct {
	backend draftBackend
	ttl     time.Duration
}

// NewDraftStore builds the draft store.
func NewDraftStore(backend draftBackend, cfg config.CheckoutConfig) (*DraftStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("draft backend required")
	}
	return &DraftStore{backend: backend, ttl: cfg.DraftTTL}, nil
}

// Save checkpoints the draft.
func (d *DraftStore) Save(ctx context.Context, contextID string, draft *Draft) error {
	encoded, err := json.Marshal(draft)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode checkout draft")
	}
	if err := d.backend.Set(ctx, d.backend.CheckoutDraftKey(contextID), string(encoded), d.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist checkout draft")
	}
	return nil
}

// Load returns the checkpointed draft, or nil when none exists.
func (d *DraftStore) Load(ctx context.Context, contextID string) (*Draft, error) {
	raw, err := d.backend.Get(ctx, d.backend.CheckoutDraftKey(contextID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout draft")
	}
	var draft Draft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode checkout draft")
	}
	return &draft, nil
}

// Clear drops the draft and any checkpointed form values.
func (d *DraftStore) Clear(ctx context.Context, contextID string) error {
	err := d.backend.Del(ctx,
		d.backend.CheckoutDraftKey(contextID),
		d.backend.CheckoutFormKey(contextID),
	)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear checkout draft")
	}
	return nil
}

// SaveForm checkpoints form values right before a provider redirect.
func (d *DraftStore) SaveForm(ctx context.Context, contextID string, form map[string]string) error {
	if len(form) == 0 {
		return nil
	}
	encoded, err := json.Marshal(form)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode form values")
	}
	if err := d.backend.Set(ctx, d.backend.CheckoutFormKey(contextID), string(encoded), d.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist form values")
	}
	return nil
}

// LoadForm returns the checkpointed form values, or nil when none exist.
func (d *DraftStore) LoadForm(ctx context.Context, contextID string) (map[string]string, error) {
	raw, err := d.backend.Get(ctx, d.backend.CheckoutFormKey(contextID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load form values")
	}
	var form map[string]string
	if err := json.Unmarshal([]byte(raw), &form); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode form values")
	}
	return form, nil
}

// ConsumeReturn marks the given return token consumed. It reports false when
// the token was already consumed; the caller must then ignore the parameters.
func (d *DraftStore) ConsumeReturn(ctx context.Context, contextID, token string) (bool, error) {
	acquired, err := d.backend.SetNX(ctx, d.backend.ReturnGuardKey(contextID, token), "1", d.ttl)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark return consumed")
	}
	return acquired, nil
}
