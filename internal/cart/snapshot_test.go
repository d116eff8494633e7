package cart

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/madebyloom/loomline-backend/pkg/config"
	pkgerrors "github.com/madebyloom/loomline-backend/pkg/errors"
	"github.com/madebyloom/loomline-backend/pkg/redis"
	"github.com/madebyloom/loomline-backend/pkg/types"
)

// fakeStore is an in-memory stand-in for the redis client. It implements
// both the snapshot and guard surfaces.
type fakeStore struct {
	mu      sync.Mutex
	data    map[string]string
	setErr  error
	nxErr   error
	blockNX bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}}
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value.(string)
	return nil
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if f.nxErr != nil {
		return false, f.nxErr
	}
	if f.blockNX {
		return false, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = "1"
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) CartSnapshotKey(contextID string) string {
	return "ll:cart_snapshot:" + contextID
}

func (f *fakeStore) SyncGuardKey(contextID, accountID string) string {
	return "ll:cart_sync:" + contextID + ":" + accountID
}

func (f *fakeStore) MutationGuardKey(contextID, kind string) string {
	return "ll:cart_mutation:" + contextID + ":" + kind
}

func testCartConfig() config.CartConfig {
	return config.CartConfig{
		GuestSnapshotTTL:      time.Hour,
		SnapshotCeilingBytes:  65536,
		FieldTruncationBytes:  64,
		SyncGuardTTL:          time.Minute,
		MutationInFlightGuard: 30 * time.Second,
	}
}

func TestGuestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	guests, err := NewGuestStore(store, testCartConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	items := []SnapshotItem{plainItem(uuid.New(), 2)}
	if err := guests.Save(context.Background(), "bc-1", items); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := guests.Load(context.Background(), "bc-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Quantity != 2 {
		t.Fatalf("unexpected snapshot: %+v", loaded)
	}
}

func TestGuestStoreLoadMissingIsEmpty(t *testing.T) {
	t.Parallel()

	guests, _ := NewGuestStore(newFakeStore(), testCartConfig())
	items, err := guests.Load(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if items != nil {
		t.Fatalf("expected empty snapshot, got %+v", items)
	}
}

func TestGuestStoreTruncatesPreviews(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	guests, _ := NewGuestStore(store, testCartConfig())

	item := customizedItem(uuid.New(), 1)
	item.Customization.Designs = []types.Design{{
		ID:         "d1",
		PreviewB64: strings.Repeat("A", 500),
	}}

	if err := guests.Save(context.Background(), "bc-1", []SnapshotItem{item}); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := guests.Load(context.Background(), "bc-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := len(loaded[0].Customization.Designs[0].PreviewB64); got != 64 {
		t.Fatalf("preview length = %d, want 64", got)
	}
	// Truncation must not touch the caller's copy.
	if len(item.Customization.Designs[0].PreviewB64) != 500 {
		t.Fatal("caller's customization was mutated")
	}
}

func TestGuestStoreRejectsOversizedSnapshot(t *testing.T) {
	t.Parallel()

	cfg := testCartConfig()
	cfg.SnapshotCeilingBytes = 128
	cfg.FieldTruncationBytes = 0
	guests, _ := NewGuestStore(newFakeStore(), cfg)

	item := customizedItem(uuid.New(), 1)
	item.Customization.Notes = strings.Repeat("x", 1024)

	err := guests.Save(context.Background(), "bc-1", []SnapshotItem{item})
	if !pkgerrors.IsCode(err, pkgerrors.CodeCapacity) {
		t.Fatalf("expected capacity error, got %v", err)
	}
}
