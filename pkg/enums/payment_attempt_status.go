package enums

import "fmt"

// PaymentAttemptStatus tracks a provider attempt from creation to a terminal
// outcome. pending_capture applies only to the create-then-capture model.
type PaymentAttemptStatus string

const (
	PaymentAttemptStatusCreated        PaymentAttemptStatus = "created"
	PaymentAttemptStatusPendingCapture PaymentAttemptStatus = "pending_capture"
	PaymentAttemptStatusSucceeded      PaymentAttemptStatus = "succeeded"
	PaymentAttemptStatusCanceled       PaymentAttemptStatus = "canceled"
	PaymentAttemptStatusFailed         PaymentAttemptStatus = "failed"
	PaymentAttemptStatusSuperseded     PaymentAttemptStatus = "superseded"
)

var validPaymentAttemptStatuses = []PaymentAttemptStatus{
	PaymentAttemptStatusCreated,
	PaymentAttemptStatusPendingCapture,
	PaymentAttemptStatusSucceeded,
	PaymentAttemptStatusCanceled,
	PaymentAttemptStatusFailed,
	PaymentAttemptStatusSuperseded,
}

// Resolved reports whether the attempt can never change state again. A
// canceled attempt is resolved even though the draft it belongs to remains
// recoverable; retrying creates a new attempt.
func (s PaymentAttemptStatus) Resolved() bool {
	switch s {
	case PaymentAttemptStatusSucceeded, PaymentAttemptStatusCanceled,
		PaymentAttemptStatusFailed, PaymentAttemptStatusSuperseded:
		return true
	default:
		return false
	}
}

// IsValid reports whether the value matches the canonical attempt status enum.
func (s PaymentAttemptStatus) IsValid() bool {
	for _, candidate := range validPaymentAttemptStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePaymentAttemptStatus converts the raw string to PaymentAttemptStatus.
func ParsePaymentAttemptStatus(value string) (PaymentAttemptStatus, error) {
	for _, candidate := range validPaymentAttemptStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment attempt status %q", value)
}
