package enums

import "fmt"

// PaymentAttemptStatus tracks one attempt to collect payment for an order.
// Expired attempts are recoverable (a fresh intent may be created); failed is
// a gateway-reported decline, terminal for that attempt only. An integrity
// hold freezes the whole order's payment path until an operator intervenes.
type PaymentAttemptStatus string

const (
	PaymentAttemptStatusPending       PaymentAttemptStatus = "pending"
	PaymentAttemptStatusCompleted     PaymentAttemptStatus = "completed"
	PaymentAttemptStatusFailed        PaymentAttemptStatus = "failed"
	PaymentAttemptStatusExpired       PaymentAttemptStatus = "expired"
	PaymentAttemptStatusIntegrityHold PaymentAttemptStatus = "integrity_hold"
)

var validPaymentAttemptStatuses = []PaymentAttemptStatus{
	PaymentAttemptStatusPending,
	PaymentAttemptStatusCompleted,
	PaymentAttemptStatusFailed,
	PaymentAttemptStatusExpired,
	PaymentAttemptStatusIntegrityHold,
}

// String implements fmt.Stringer.
func (p PaymentAttemptStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentAttemptStatus.
func (p PaymentAttemptStatus) IsValid() bool {
	for _, candidate := range validPaymentAttemptStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentAttemptStatus converts raw input into a PaymentAttemptStatus.
func ParsePaymentAttemptStatus(value string) (PaymentAttemptStatus, error) {
	for _, candidate := range validPaymentAttemptStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment attempt status %q", value)
}
