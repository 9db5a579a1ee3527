package enums

import "fmt"

// PaymentChannel is how a collect-on-delivery payment is taken at the door.
// The qr channel routes through the gateway; cash is agent-attested.
type PaymentChannel string

const (
	PaymentChannelQR   PaymentChannel = "qr"
	PaymentChannelCash PaymentChannel = "cash"
)

var validPaymentChannels = []PaymentChannel{
	PaymentChannelQR,
	PaymentChannelCash,
}

// String implements fmt.Stringer.
func (p PaymentChannel) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentChannel.
func (p PaymentChannel) IsValid() bool {
	for _, candidate := range validPaymentChannels {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentChannel converts raw input into a PaymentChannel.
func ParsePaymentChannel(value string) (PaymentChannel, error) {
	for _, candidate := range validPaymentChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment channel %q", value)
}
