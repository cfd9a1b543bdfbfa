package engine

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"basket-trader/internal/models"
)

// dw parses a decimal literal for test tables.
func dw(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// testBasket builds a basket with synthetic NSE symbols S1, S2, ... and
// the given weights.
func testBasket(weights ...string) models.Basket {
	b := models.Basket{ID: "BSK-TEST", Name: "test"}
	for i, w := range weights {
		b.Constituents = append(b.Constituents, models.Constituent{
			Symbol:        fmt.Sprintf("S%d", i+1),
			Exchange:      models.NSE,
			WeightPercent: dw(w),
		})
	}
	return b
}

// testPrices maps the synthetic symbols of testBasket to prices, in
// constituent order.
func testPrices(prices ...string) models.PriceSnapshot {
	snap := make(models.PriceSnapshot, len(prices))
	for i, p := range prices {
		snap[models.Instrument{Exchange: models.NSE, Symbol: fmt.Sprintf("S%d", i+1)}] = dw(p)
	}
	return snap
}

// assertWeight asserts a constituent weight equals the expected literal.
func assertWeight(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(dw(want)), "want weight %s, got %s", want, got)
}

// assertDecimal asserts a decimal equals the expected literal.
func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(dw(want)), "want %s, got %s", want, got)
}
