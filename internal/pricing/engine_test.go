package pricing

import (
	"testing"

	"github.com/madebyloom/loomline-backend/pkg/config"
	"github.com/madebyloom/loomline-backend/pkg/types"
)

func defaultConfig() config.PricingConfig {
	return config.PricingConfig{
		TaxRate:                    0.08,
		FreeShippingThresholdCents: 5000,
		FlatShippingRateCents:      999,
		MaterialRatePerSqInCents:   12,
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestUnitPriceNoCustomization(t *testing.T) {
	t.Parallel()

	engine := NewEngine(defaultConfig(), nil)
	if got := engine.UnitPriceCents(2000, nil); got != 2000 {
		t.Fatalf("expected base price, got %d", got)
	}
}

func TestUnitPriceFlatAddOnsOrderIndependent(t *testing.T) {
	t.Parallel()

	engine := NewEngine(defaultConfig(), nil)

	forward := &types.Customization{
		Styles: types.StyleSelections{
			Coverage: &types.AddOn{ID: "cov", Name: "Full", PriceCents: 300},
			Threads:  []types.AddOn{{ID: "t1", PriceCents: 100}, {ID: "t2", PriceCents: 250}},
			Upgrades: []types.AddOn{{ID: "u1", PriceCents: 500}},
		},
	}
	reversed := &types.Customization{
		Styles: types.StyleSelections{
			Coverage: &types.AddOn{ID: "cov", Name: "Full", PriceCents: 300},
			Threads:  []types.AddOn{{ID: "t2", PriceCents: 250}, {ID: "t1", PriceCents: 100}},
			Upgrades: []types.AddOn{{ID: "u1", PriceCents: 500}},
		},
	}

	want := int64(1500 + 300 + 100 + 250 + 500)
	if got := engine.UnitPriceCents(1500, forward); got != want {
		t.Fatalf("forward: got %d want %d", got, want)
	}
	if got := engine.UnitPriceCents(1500, reversed); got != want {
		t.Fatalf("reversed: got %d want %d", got, want)
	}
}

func TestUnitPriceDimensionedDesignSurcharge(t *testing.T) {
	t.Parallel()

	engine := NewEngine(defaultConfig(), func(w, h float64) int64 {
		return int64(w*h) * 10
	})

	cust := &types.Customization{
		Designs: []types.Design{
			{ID: "d1", WidthIn: floatPtr(4), HeightIn: floatPtr(3)},
			{ID: "d2"}, // no dimensions, no surcharge
		},
	}
	if got := engine.UnitPriceCents(1000, cust); got != 1000+120 {
		t.Fatalf("got %d", got)
	}
}

func TestUnitPriceLegacySingleDesignShape(t *testing.T) {
	t.Parallel()

	engine := NewEngine(defaultConfig(), func(w, h float64) int64 {
		return int64(w*h) * 10
	})

	legacy := &types.Customization{
		Design: &types.Design{ID: "d1", WidthIn: floatPtr(2), HeightIn: floatPtr(5)},
	}
	multi := &types.Customization{
		Designs: []types.Design{{ID: "d1", WidthIn: floatPtr(2), HeightIn: floatPtr(5)}},
	}
	if engine.UnitPriceCents(1000, legacy) != engine.UnitPriceCents(1000, multi) {
		t.Fatal("legacy shape must price identically to one-design list")
	}
}

func TestUnitPriceDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	engine := NewEngine(defaultConfig(), nil)
	cust := &types.Customization{
		Designs: []types.Design{{ID: "d1", WidthIn: floatPtr(4), HeightIn: floatPtr(3)}},
		Styles:  types.StyleSelections{Threads: []types.AddOn{{ID: "t1", PriceCents: 100}}},
	}
	engine.UnitPriceCents(1000, cust)

	if len(cust.Designs) != 1 || cust.Designs[0].ID != "d1" {
		t.Fatal("designs mutated")
	}
	if len(cust.Styles.Threads) != 1 || cust.Styles.Threads[0].PriceCents != 100 {
		t.Fatal("threads mutated")
	}
}

func TestShippingSelection(t *testing.T) {
	t.Parallel()

	engine := NewEngine(defaultConfig(), nil)

	rate := &types.ShippingRate{ShipmentCostCents: 700, OtherCostCents: 100, TotalCostCents: 800}
	if got := engine.ShippingCents(10000, rate); got != 800 {
		t.Fatalf("selected rate: got %d", got)
	}
	if got := engine.ShippingCents(6000, nil); got != 0 {
		t.Fatalf("free threshold: got %d", got)
	}
	if got := engine.ShippingCents(4000, nil); got != 999 {
		t.Fatalf("flat rate: got %d", got)
	}
	// Threshold is strict: exactly at the threshold still pays flat rate.
	if got := engine.ShippingCents(5000, nil); got != 999 {
		t.Fatalf("at threshold: got %d", got)
	}
}

// Mirrors the storefront's canonical checkout example: one plain item at $20
// x2 plus one customized item (base $15, dimensionless design, $5 upgrade).
func TestEndToEndTotals(t *testing.T) {
	t.Parallel()

	engine := NewEngine(defaultConfig(), nil)

	customized := &types.Customization{
		Designs: []types.Design{{ID: "d1"}},
		Styles:  types.StyleSelections{Upgrades: []types.AddOn{{ID: "u1", Name: "Rush", PriceCents: 500}}},
	}

	lines := []Line{
		{UnitPriceCents: engine.UnitPriceCents(2000, nil), Quantity: 2},
		{UnitPriceCents: engine.UnitPriceCents(1500, customized), Quantity: 1},
	}

	subtotal := engine.SubtotalCents(lines)
	if subtotal != 6000 {
		t.Fatalf("subtotal: got %d want 6000", subtotal)
	}
	tax := engine.TaxCents(subtotal)
	if tax != 480 {
		t.Fatalf("tax: got %d want 480", tax)
	}
	shipping := engine.ShippingCents(subtotal, nil)
	if shipping != 0 {
		t.Fatalf("shipping: got %d want 0", shipping)
	}
	if total := engine.TotalCents(subtotal, tax, shipping); total != 6480 {
		t.Fatalf("total: got %d want 6480", total)
	}
}
