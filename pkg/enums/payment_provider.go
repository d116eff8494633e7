package enums

import "fmt"

// PaymentProvider identifies which integration processes a payment attempt.
// Google Pay is surfaced through the Stripe hosted session, so the google
// method resolves to the stripe provider at orchestration time.
type PaymentProvider string

const (
	PaymentProviderStripe PaymentProvider = "stripe"
	PaymentProviderPayPal PaymentProvider = "paypal"
	PaymentProviderGoogle PaymentProvider = "google"
)

var validPaymentProviders = []PaymentProvider{
	PaymentProviderStripe,
	PaymentProviderPayPal,
	PaymentProviderGoogle,
}

// IsValid reports whether the value matches the canonical provider enum.
func (p PaymentProvider) IsValid() bool {
	for _, candidate := range validPaymentProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// Integration maps the customer-facing method onto the provider integration
// that actually executes it.
func (p PaymentProvider) Integration() PaymentProvider {
	if p == PaymentProviderGoogle {
		return PaymentProviderStripe
	}
	return p
}

// ParsePaymentProvider converts the raw string to PaymentProvider.
func ParsePaymentProvider(value string) (PaymentProvider, error) {
	for _, candidate := range validPaymentProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment provider %q", value)
}
