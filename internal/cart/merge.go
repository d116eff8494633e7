package cart

import "github.com/google/uuid"

// sameSlot implements the slot identity rule: two items share a slot only
// when they reference the same product and neither is customized. Customized
// purchases are unique and never merge, even with identical content.
func sameSlot(a, b SnapshotItem) bool {
	if a.Customized() || b.Customized() {
		return false
	}
	return a.ProductID == b.ProductID
}

// addToItems applies the add semantics to a slot list: customized items
// always append; plain items merge into an existing plain slot for the same
// product or append when none exists. Returns the resulting list and the
// quantity the affected slot ends up holding.
func addToItems(items []SnapshotItem, item SnapshotItem) ([]SnapshotItem, int) {
	if !item.Customized() {
		for i := range items {
			if sameSlot(items[i], item) {
				items[i].Quantity += item.Quantity
				return items, items[i].Quantity
			}
		}
	}
	if item.LocalID == uuid.Nil {
		item.LocalID = uuid.New()
	}
	return append(items, item), item.Quantity
}

// removeZeroQuantity drops any slot that reached zero; a zero-quantity item
// is removed, never stored.
func removeZeroQuantity(items []SnapshotItem) []SnapshotItem {
	out := items[:0]
	for _, item := range items {
		if item.Quantity >= 1 {
			out = append(out, item)
		}
	}
	return out
}
