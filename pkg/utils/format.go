// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatIndianCurrency formats an amount in Indian currency format
// (lakhs, crores grouping).
func FormatIndianCurrency(amount decimal.Decimal) string {
	negative := amount.IsNegative()
	if negative {
		amount = amount.Neg()
	}

	str := amount.StringFixed(2)
	parts := strings.Split(str, ".")
	intPart := parts[0]
	decPart := parts[1]

	result := "₹" + formatIndianNumber(intPart) + "." + decPart
	if negative {
		result = "-" + result
	}
	return result
}

// formatIndianNumber groups an integer string in the Indian numbering
// system: last three digits, then groups of two.
func formatIndianNumber(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	result := s[n-3:]
	s = s[:n-3]

	for len(s) > 0 {
		if len(s) >= 2 {
			result = s[len(s)-2:] + "," + result
			s = s[:len(s)-2]
		} else {
			result = s + "," + result
			s = ""
		}
	}

	return result
}

// FormatPercent formats a percentage with an explicit sign for gains.
func FormatPercent(value decimal.Decimal) string {
	sign := ""
	if value.IsPositive() {
		sign = "+"
	}
	return sign + value.StringFixed(2) + "%"
}

// FormatQuantity formats a share quantity with Indian grouping.
func FormatQuantity(qty int) string {
	return formatIndianNumber(fmt.Sprintf("%d", qty))
}

// FormatCompact formats an amount in compact form (L/Cr) for large values.
func FormatCompact(amount decimal.Decimal) string {
	abs := amount.Abs()

	if abs.GreaterThanOrEqual(decimal.NewFromInt(10000000)) {
		return amount.Div(decimal.NewFromInt(10000000)).StringFixed(2) + " Cr"
	}
	if abs.GreaterThanOrEqual(decimal.NewFromInt(100000)) {
		return amount.Div(decimal.NewFromInt(100000)).StringFixed(2) + " L"
	}
	return FormatIndianCurrency(amount)
}
