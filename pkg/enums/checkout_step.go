package enums

import "fmt"

// CheckoutStep is the wizard position. Submitted is a display state reached
// only through a successful payment outcome, never by navigation.
type CheckoutStep int

const (
	CheckoutStepShipping CheckoutStep = 1
	CheckoutStepPayment  CheckoutStep = 2
	CheckoutStepReview   CheckoutStep = 3
)

// IsValid reports whether the value is a navigable wizard step.
func (s CheckoutStep) IsValid() bool {
	return s >= CheckoutStepShipping && s <= CheckoutStepReview
}

// ParseCheckoutStep converts the raw step number to CheckoutStep.
func ParseCheckoutStep(value int) (CheckoutStep, error) {
	step := CheckoutStep(value)
	if !step.IsValid() {
		return 0, fmt.Errorf("invalid checkout step %d", value)
	}
	return step, nil
}
