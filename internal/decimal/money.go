package decimal

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Zero is decimal zero
var Zero = decimal.Zero

// Tolerance is the rounding tolerance for all monetary consistency and
// conservation checks: one kopeck. Vendors round line amounts differently,
// so exact equality is never required.
var Tolerance = decimal.New(1, -2) // 0.01

// FromInt creates decimal from int
func FromInt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// FromString parses decimal from string
func FromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// MustFromString parses decimal from string, panics on error
func MustFromString(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ParseRussian parses a numeric string as written by Russian accounting
// software: comma or dot decimal separator, optional space / NBSP / thin
// space group separators.
func ParseRussian(s string) (decimal.Decimal, error) {
	r := strings.NewReplacer(
		" ", "",
		"\u00a0", "", // NBSP
		"\u2009", "", // thin space
		",", ".",
	)
	return decimal.NewFromString(r.Replace(strings.TrimSpace(s)))
}

// ApproxEqual reports whether a and b differ by no more than Tolerance.
func ApproxEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}

// WithinTolerance reports whether value stays under limit with only
// sub-kopeck rounding slack. Conservation is strict at kopeck granularity:
// a fully allocated line cannot absorb even one more kopeck.
func WithinTolerance(value, limit decimal.Decimal) bool {
	return value.Sub(limit).LessThan(Tolerance)
}

// Mul multiplies two decimals, rounds to 2 places
func Mul(a, b decimal.Decimal) decimal.Decimal {
	return a.Mul(b).Round(2)
}

// Div divides a by b, rounds to 2 places
func Div(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return Zero
	}
	return a.Div(b).Round(2)
}

// VATFromRate computes VAT amount: amount * (percent/100), kopeck rounded.
func VATFromRate(amount, percent decimal.Decimal) decimal.Decimal {
	if percent.IsZero() {
		return Zero
	}
	return amount.Mul(percent).Div(decimal.NewFromInt(100)).Round(2)
}

// Sum sums a slice of decimals
func Sum(values []decimal.Decimal) decimal.Decimal {
	result := Zero
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}

// IsPositive returns true if decimal is greater than zero
func IsPositive(d decimal.Decimal) bool {
	return d.GreaterThan(Zero)
}

// IsNonNegative returns true if decimal is >= zero
func IsNonNegative(d decimal.Decimal) bool {
	return d.GreaterThanOrEqual(Zero)
}

// RoundMoney rounds to kopecks.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
