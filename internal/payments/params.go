package payments

import "net/url"

// ReturnKind classifies the query-parameter set a provider redirect carries.
type ReturnKind int

const (
	// ReturnNone means the parameters match no recognized provider return.
	ReturnNone ReturnKind = iota
	// ReturnStripeSuccess is ?success=true&orderId=<id>.
	ReturnStripeSuccess
	// ReturnStripeCancel is ?canceled=true.
	ReturnStripeCancel
	// ReturnPayPalApproved is ?paypal_success=true&token=<providerOrderID>;
	// the payment is approved but not yet captured.
	ReturnPayPalApproved
	// ReturnPayPalCancel is ?paypal_canceled=true.
	ReturnPayPalCancel
)

// Return is a parsed provider redirect.
type Return struct {
	Kind            ReturnKind
	OrderID         string
	ProviderOrderID string
}

// ParseReturn classifies provider return parameters. Unrecognized or
// incomplete parameter sets yield ReturnNone; resolving them is a no-op.
func ParseReturn(params url.Values) Return {
	switch {
	case params.Get("success") == "true":
		orderID := params.Get("orderId")
		if orderID == "" {
			return Return{Kind: ReturnNone}
		}
		return Return{Kind: ReturnStripeSuccess, OrderID: orderID}
	case params.Get("canceled") == "true":
		return Return{Kind: ReturnStripeCancel}
	case params.Get("paypal_success") == "true":
		token := params.Get("token")
		if token == "" {
			return Return{Kind: ReturnNone}
		}
		return Return{Kind: ReturnPayPalApproved, ProviderOrderID: token}
	case params.Get("paypal_canceled") == "true":
		return Return{Kind: ReturnPayPalCancel}
	default:
		return Return{Kind: ReturnNone}
	}
}
