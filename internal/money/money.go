// Package money bounds and formats peso amounts.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmount is the largest value a NUMERIC(12,2) money column holds.
var MaxAmount = decimal.RequireFromString("9999999999.99")

// InRange reports whether d, rounded to cents, is non-negative and fits the
// money columns.
func InRange(d decimal.Decimal) bool {
	d = d.Round(2)
	return !d.IsNegative() && d.LessThanOrEqual(MaxAmount)
}

// Format renders d as "$60,000.00". Negative amounts get a leading minus sign.
func Format(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	fixed := d.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + "." + frac
}

// FormatMXN appends the currency code, as used in notification bodies.
func FormatMXN(d decimal.Decimal) string {
	return Format(d) + " MXN"
}
