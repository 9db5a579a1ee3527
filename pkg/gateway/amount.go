package gateway

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var paisePerRupee = decimal.NewFromInt(100)

// PaiseToRupees renders a paise amount as a rupee string with two decimal
// places, the format both providers expect on the wire.
func PaiseToRupees(paise int64) string {
	return decimal.NewFromInt(paise).Div(paisePerRupee).StringFixed(2)
}

// RupeesToPaise parses a provider-reported rupee amount back into paise.
// Fractional paise are rejected rather than rounded.
func RupeesToPaise(rupees string) (int64, error) {
	d, err := decimal.NewFromString(rupees)
	if err != nil {
		return 0, fmt.Errorf("parsing amount %q: %w", rupees, err)
	}
	paise := d.Mul(paisePerRupee)
	if !paise.IsInteger() {
		return 0, fmt.Errorf("amount %q has sub-paise precision", rupees)
	}
	return paise.IntPart(), nil
}
