// Package core provides money parsing and handling utilities.
//
// This file contains the display formatting for amounts and the parser used by
// the add-transaction form.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrencySymbol is used when CURRENCY_SYMBOL is not configured.
const DefaultCurrencySymbol = "₹"

// FormatMoney renders an amount with grouped thousands. Two decimals are shown
// only when the value has a fractional part.
//
// Examples:
//
//	FormatMoney(decimal.NewFromInt(1500), "₹")       -> "₹1,500"
//	FormatMoney(decimal.NewFromInt(-200), "₹")       -> "-₹200"
//	FormatMoney(decimal.RequireFromString("12.5"), "₹") -> "₹12.50"
func FormatMoney(d decimal.Decimal, symbol string) string {
	neg := d.IsNegative()
	d = d.Abs()

	var s string
	if d.Equal(d.Truncate(0)) {
		s = d.StringFixed(0)
	} else {
		s = d.StringFixed(2)
	}
	intPart, frac, _ := strings.Cut(s, ".")
	grouped := groupThousands(intPart)
	if frac != "" {
		grouped += "." + frac
	}
	if neg {
		return "-" + symbol + grouped
	}
	return symbol + grouped
}

// FormatFloat is FormatMoney for float inputs such as projections.
func FormatFloat(f float64, symbol string) string {
	return FormatMoney(decimal.NewFromFloat(f).Round(0), symbol)
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// ParseAmount parses user input such as "12.34", "12,34" or "1 200". Signs are
// rejected; the caller decides the sign from the income/expense toggle.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
