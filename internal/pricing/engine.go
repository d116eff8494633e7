package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/madebyloom/loomline-backend/pkg/config"
	"github.com/madebyloom/loomline-backend/pkg/types"
)

// MaterialCostFn prices the material consumed by one design from its
// dimensions in inches. It is an external collaborator; the engine only
// calls it when both dimensions are present.
type MaterialCostFn func(widthIn, heightIn float64) int64

// DefaultMaterialCost charges a flat per-square-inch rate.
func DefaultMaterialCost(ratePerSqInCents int64) MaterialCostFn {
	rate := decimal.NewFromInt(ratePerSqInCents)
	return func(widthIn, heightIn float64) int64 {
		area := decimal.NewFromFloat(widthIn).Mul(decimal.NewFromFloat(heightIn))
		return area.Mul(rate).Round(0).IntPart()
	}
}

// Engine computes derived prices. It is pure: no I/O, no mutation of inputs.
type Engine struct {
	taxRate               decimal.Decimal
	freeShippingThreshold int64
	flatShippingRate      int64
	materialCost          MaterialCostFn
}

// NewEngine builds a price engine from configuration. A nil material cost
// function falls back to the configured per-square-inch rate.
func NewEngine(cfg config.PricingConfig, materialCost MaterialCostFn) *Engine {
	if materialCost == nil {
		materialCost = DefaultMaterialCost(cfg.MaterialRatePerSqInCents)
	}
	return &Engine{
		taxRate:               decimal.NewFromFloat(cfg.TaxRate),
		freeShippingThreshold: cfg.FreeShippingThresholdCents,
		flatShippingRate:      cfg.FlatShippingRateCents,
		materialCost:          materialCost,
	}
}

// UnitPriceCents derives the effective unit price of a line item: the base
// price, plus a material surcharge per dimensioned design, plus every flat
// style/thread/upgrade add-on. Designs without dimensions contribute nothing.
func (e *Engine) UnitPriceCents(basePriceCents int64, customization *types.Customization) int64 {
	if customization == nil {
		return basePriceCents
	}

	price := basePriceCents
	for _, design := range customization.AllDesigns() {
		if design.HasDimensions() {
			price += e.materialCost(*design.WidthIn, *design.HeightIn)
		}
	}
	for _, addOn := range customization.Styles.FlatAddOns() {
		price += addOn.PriceCents
	}
	return price
}

// Line pairs a derived unit price with a quantity for subtotal computation.
type Line struct {
	UnitPriceCents int64
	Quantity       int
}

// SubtotalCents sums unit price times quantity across lines.
func (e *Engine) SubtotalCents(lines []Line) int64 {
	var subtotal int64
	for _, line := range lines {
		subtotal += line.UnitPriceCents * int64(line.Quantity)
	}
	return subtotal
}

// TaxCents applies the configured tax rate, rounding to whole cents only
// here, at total-materialization time.
func (e *Engine) TaxCents(subtotalCents int64) int64 {
	return decimal.NewFromInt(subtotalCents).Mul(e.taxRate).Round(0).IntPart()
}

// ShippingCents prefers the selected rate; without one, orders above the
// free-shipping threshold ship free and everything else pays the flat rate.
func (e *Engine) ShippingCents(subtotalCents int64, selected *types.ShippingRate) int64 {
	if selected != nil {
		return selected.TotalCostCents
	}
	if subtotalCents > e.freeShippingThreshold {
		return 0
	}
	return e.flatShippingRate
}

// TotalCents is subtotal + tax + shipping.
func (e *Engine) TotalCents(subtotalCents, taxCents, shippingCents int64) int64 {
	return subtotalCents + taxCents + shippingCents
}
