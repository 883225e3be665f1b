// Package money converts between SAR decimal amounts and the integer halala
// values persisted in every *_cents column.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is the only settlement currency supported by the platform.
const Currency = "SAR"

var hundred = decimal.NewFromInt(100)

// ParseSAR parses a decimal string such as "3.75" into halalas. More than two
// fractional digits is rejected rather than rounded.
func ParseSAR(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("amount is required")
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return FromDecimal(d)
}

// FromDecimal converts a SAR amount into halalas.
func FromDecimal(d decimal.Decimal) (int64, error) {
	cents := d.Mul(hundred)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("amount %s has more than two decimal places", d.String())
	}
	return cents.IntPart(), nil
}

// ToDecimal converts halalas into a SAR decimal.
func ToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Format renders halalas as "SAR 6.25".
func Format(cents int64) string {
	return Currency + " " + ToDecimal(cents).StringFixed(2)
}
