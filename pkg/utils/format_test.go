package utils

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatIndianCurrency(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   string
	}{
		{"zero", "0", "₹0.00"},
		{"hundreds", "500", "₹500.00"},
		{"thousands", "1500.5", "₹1,500.50"},
		{"lakh", "100000", "₹1,00,000.00"},
		{"ten lakh", "1000000", "₹10,00,000.00"},
		{"crore", "10000000", "₹1,00,00,000.00"},
		{"negative", "-2500", "-₹2,500.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatIndianCurrency(decimal.RequireFromString(tt.amount))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatCompact(t *testing.T) {
	assert.Equal(t, "2.50 L", FormatCompact(decimal.RequireFromString("250000")))
	assert.Equal(t, "1.50 Cr", FormatCompact(decimal.RequireFromString("15000000")))
	assert.Equal(t, "₹99,999.00", FormatCompact(decimal.RequireFromString("99999")))
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "+5.25%", FormatPercent(decimal.RequireFromString("5.25")))
	assert.Equal(t, "-3.10%", FormatPercent(decimal.RequireFromString("-3.1")))
	assert.Equal(t, "0.00%", FormatPercent(decimal.Zero))
}

func TestProperty_IndianFormattingPreservesDigits(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("removing separators restores the plain amount", prop.ForAll(
		func(paise int64) bool {
			amount := decimal.NewFromInt(paise).Div(decimal.NewFromInt(100))
			formatted := FormatIndianCurrency(amount)

			stripped := strings.NewReplacer("₹", "", ",", "").Replace(formatted)
			return stripped == amount.StringFixed(2)
		},
		gen.Int64Range(-1e15, 1e15),
	))

	properties.TestingRun(t)
}
