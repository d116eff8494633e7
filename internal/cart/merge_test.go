package cart

import (
	"testing"

	"github.com/google/uuid"

	"github.com/madebyloom/loomline-backend/pkg/types"
)

func plainItem(productID uuid.UUID, qty int) SnapshotItem {
	return SnapshotItem{LocalID: uuid.New(), ProductID: productID, Quantity: qty}
}

func customizedItem(productID uuid.UUID, qty int) SnapshotItem {
	return SnapshotItem{
		LocalID:       uuid.New(),
		ProductID:     productID,
		Quantity:      qty,
		Customization: &types.Customization{Placement: "front"},
	}
}

func TestAddMergesPlainSlots(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	items := []SnapshotItem{plainItem(productID, 2)}

	items, qty := addToItems(items, plainItem(productID, 3))
	if len(items) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(items))
	}
	if qty != 5 {
		t.Fatalf("resulting quantity = %d, want 5", qty)
	}
}

func TestCustomizedItemsNeverMerge(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	first := customizedItem(productID, 1)
	second := customizedItem(productID, 1)
	second.Customization = &types.Customization{Placement: "front"}

	items, _ := addToItems(nil, first)
	items, _ = addToItems(items, second)
	if len(items) != 2 {
		t.Fatalf("expected 2 slots for identical customizations, got %d", len(items))
	}

	// A plain add for the same product opens its own slot too.
	items, _ = addToItems(items, plainItem(productID, 1))
	if len(items) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(items))
	}
}

func TestAddAssignsLocalID(t *testing.T) {
	t.Parallel()

	items, _ := addToItems(nil, SnapshotItem{ProductID: uuid.New(), Quantity: 1})
	if items[0].LocalID == uuid.Nil {
		t.Fatal("expected a local id to be assigned")
	}
}

func TestRemoveZeroQuantity(t *testing.T) {
	t.Parallel()

	keep := plainItem(uuid.New(), 1)
	items := []SnapshotItem{keep, plainItem(uuid.New(), 0)}

	items = removeZeroQuantity(items)
	if len(items) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(items))
	}
	if items[0].LocalID != keep.LocalID {
		t.Fatal("wrong slot survived")
	}
}
