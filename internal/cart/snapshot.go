package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/madebyloom/loomline-backend/pkg/config"
	pkgerrors "github.com/madebyloom/loomline-backend/pkg/errors"
	"github.com/madebyloom/loomline-backend/pkg/redis"
	"github.com/madebyloom/loomline-backend/pkg/types"
)

// SnapshotItem is one guest-tier cart slot. LocalID is a client-held handle;
// a server-assigned id only exists once the item reaches the authoritative
// tier.
type SnapshotItem struct {
	LocalID          uuid.UUID            `json:"local_id"`
	ProductID        uuid.UUID            `json:"product_id"`
	Quantity         int                  `json:"quantity"`
	UnitPriceCents   int64                `json:"unit_price_cents"`
	IsCustomCreation bool                 `json:"is_custom_creation,omitempty"`
	Customization    *types.Customization `json:"customization,omitempty"`
}

// Customized reports whether this slot carries a customization payload.
func (s SnapshotItem) Customized() bool {
	return s.Customization != nil
}

type snapshotStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	CartSnapshotKey(contextID string) string
}

// GuestStore persists the guest-tier cart snapshot: a size-bounded, lossy
// projection keyed per browsing context. Design previews are truncated above
// a per-field byte threshold; a snapshot that would still exceed the hard
// ceiling is rejected rather than silently corrupted.
type GuestStore struct {
	store        snapshotStore
	ttl          time.Duration
	ceilingBytes int
	fieldBytes   int
}

// NewGuestStore builds the guest-tier store.
func NewGuestStore(store snapshotStore, cfg config.CartConfig) (*GuestStore, error) {
	if store == nil {
		return nil, fmt.Errorf("snapshot store required")
	}
	return &GuestStore{
		store:        store,
		ttl:          cfg.GuestSnapshotTTL,
		ceilingBytes: cfg.SnapshotCeilingBytes,
		fieldBytes:   cfg.FieldTruncationBytes,
	}, nil
}

// Load returns the snapshot for the browsing context, or an empty list.
func (g *GuestStore) Load(ctx context.Context, contextID string) ([]SnapshotItem, error) {
	raw, err := g.store.Get(ctx, g.store.CartSnapshotKey(contextID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guest cart")
	}

	var items []SnapshotItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode guest cart")
	}
	return items, nil
}

// Save writes the snapshot. Oversized preview fields are truncated (lossy,
// per-field); an encoded snapshot above the hard ceiling is not written and
// a capacity error is returned so the caller can surface a warning while the
// in-memory mutation stands.
func (g *GuestStore) Save(ctx context.Context, contextID string, items []SnapshotItem) error {
	projected := g.project(items)

	encoded, err := json.Marshal(projected)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode guest cart")
	}
	if g.ceilingBytes > 0 && len(encoded) > g.ceilingBytes {
		return pkgerrors.New(pkgerrors.CodeCapacity, "cart snapshot exceeds storage ceiling").
			WithDetails(map[string]any{"bytes": len(encoded), "ceiling": g.ceilingBytes})
	}

	if err := g.store.Set(ctx, g.store.CartSnapshotKey(contextID), string(encoded), g.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist guest cart")
	}
	return nil
}

// Clear drops the snapshot for the browsing context.
func (g *GuestStore) Clear(ctx context.Context, contextID string) error {
	if err := g.store.Del(ctx, g.store.CartSnapshotKey(contextID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear guest cart")
	}
	return nil
}

// project truncates large binary preview payloads. Identity, quantity and
// pricing fields are never touched; only previews are lossy.
func (g *GuestStore) project(items []SnapshotItem) []SnapshotItem {
	if g.fieldBytes <= 0 {
		return items
	}
	projected := make([]SnapshotItem, len(items))
	for i, item := range items {
		projected[i] = item
		if item.Customization == nil {
			continue
		}
		cust := *item.Customization
		cust.Designs = truncateDesigns(cust.Designs, g.fieldBytes)
		if cust.Design != nil {
			trimmed := truncateDesigns([]types.Design{*cust.Design}, g.fieldBytes)
			cust.Design = &trimmed[0]
		}
		projected[i].Customization = &cust
	}
	return projected
}

func truncateDesigns(designs []types.Design, limit int) []types.Design {
	out := make([]types.Design, len(designs))
	for i, design := range designs {
		out[i] = design
		if len(design.PreviewB64) > limit {
			out[i].PreviewB64 = design.PreviewB64[:limit]
		}
	}
	return out
}
