// Package money wraps shopspring/decimal with the fixed-precision rules
// every amount in this service follows: at most 18 fractional digits,
// truncation (round toward zero) as the only rounding mode, and no
// float64 anywhere in a money path.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"

	"referral-service/pkg/xerrors"
)

// MaxFractionDigits matches the NUMERIC(38,18) columns amounts are stored in.
const MaxFractionDigits = 18

var Zero = decimal.Zero

// MulRate multiplies an amount by a rate and truncates toward zero at the
// configured precision. This is the single truncation point for share
// computation; callers must not round the result again.
func MulRate(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Truncate(MaxFractionDigits)
}

// Parse reads a decimal string, rejecting anything that cannot round-trip
// at the configured precision.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a decimal", xerrors.ErrInvalidInput, s)
	}
	if d.Exponent() < -MaxFractionDigits {
		return decimal.Zero, fmt.Errorf("%w: %q exceeds %d fractional digits", xerrors.ErrInvalidInput, s, MaxFractionDigits)
	}
	return d, nil
}

// ParsePositive is Parse plus a > 0 check, for trade volumes.
func ParsePositive(s string) (decimal.Decimal, error) {
	d, err := Parse(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: amount must be positive, got %q", xerrors.ErrInvalidInput, s)
	}
	return d, nil
}

// ParseNonNegative is Parse plus a >= 0 check, for fee amounts.
func ParseNonNegative(s string) (decimal.Decimal, error) {
	d, err := Parse(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.Sign() < 0 {
		return decimal.Zero, fmt.Errorf("%w: amount must not be negative, got %q", xerrors.ErrInvalidInput, s)
	}
	return d, nil
}

// Sum adds any number of amounts. Decimal addition is exact, no truncation.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
