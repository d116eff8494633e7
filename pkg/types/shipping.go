package types

// ShippingRate is one quoted shipping option. TotalCents is always recomputed
// from shipment + other costs on receipt, never trusted from a cached value.
type ShippingRate struct {
	ServiceName           string `json:"service_name"`
	ServiceCode           string `json:"service_code"`
	Carrier               string `json:"carrier"`
	ShipmentCostCents     int64  `json:"shipment_cost_cents"`
	OtherCostCents        int64  `json:"other_cost_cents"`
	TotalCostCents        int64  `json:"total_cost_cents"`
	EstimatedDeliveryDays *int   `json:"estimated_delivery_days,omitempty"`
}

// Normalize recomputes the total from its parts.
func (r *ShippingRate) Normalize() {
	r.TotalCostCents = r.ShipmentCostCents + r.OtherCostCents
}
