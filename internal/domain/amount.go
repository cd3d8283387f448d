package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AmountScale is the fixed-point scale of every monetary column (numeric 19,4).
const AmountScale = 4

// ParseAmount converts a boundary decimal string into the fixed-point amount
// used internally. It rejects malformed input, non-positive values, and
// amounts finer than the ledger's scale. Money never passes through binary
// floating point.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	if !d.Equal(d.Truncate(AmountScale)) {
		return decimal.Decimal{}, fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, AmountScale)
	}
	return d, nil
}
