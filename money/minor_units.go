// Package money converts decimal order totals into the integer minor units
// the payment gateway accepts.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// exponents maps ISO 4217 codes to the number of minor-unit digits
var exponents = map[string]int32{
	"INR": 2,
	"USD": 2,
	"EUR": 2,
	"GBP": 2,
	"AUD": 2,
	"CAD": 2,
	"SGD": 2,
	"AED": 2,
	"JPY": 0,
	"KRW": 0,
	"BHD": 3,
	"KWD": 3,
	"OMR": 3,
}

// Exponent returns the minor-unit digits for a currency
func Exponent(currency string) (int32, error) {
	exp, ok := exponents[strings.ToUpper(strings.TrimSpace(currency))]
	if !ok {
		return 0, fmt.Errorf("unsupported currency %q", currency)
	}
	return exp, nil
}

// ToMinorUnits converts a decimal amount into minor units (e.g. 220.00 INR
// -> 22000 paise). Amounts with more precision than the currency allows are
// rejected rather than rounded.
func ToMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	exp, err := Exponent(currency)
	if err != nil {
		return 0, err
	}
	if amount.IsNegative() {
		return 0, fmt.Errorf("amount %s is negative", amount)
	}
	shifted := amount.Shift(exp)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places for %s", amount, exp, currency)
	}
	bi := shifted.BigInt()
	if !bi.IsInt64() {
		return 0, fmt.Errorf("amount %s overflows minor units", amount)
	}
	return bi.Int64(), nil
}

// FromMinorUnits converts minor units back into a decimal amount
func FromMinorUnits(minor int64, currency string) (decimal.Decimal, error) {
	exp, err := Exponent(currency)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.New(minor, -exp), nil
}
