package engine

import (
	"github.com/shopspring/decimal"

	"basket-trader/internal/models"
)

// MinimumInvestment returns the smallest cash amount guaranteed to buy
// at least one share of every priced constituent. For each constituent
// the binding cash level is price/(weight/100); the overall minimum is
// the maximum across constituents, rounded up to the nearest 100 rupees.
// Constituents with no price contribute nothing; if no price is known
// the result is zero.
func MinimumInvestment(b models.Basket, prices models.PriceSnapshot) decimal.Decimal {
	required := decimal.Zero
	for _, c := range b.Constituents {
		price, ok := prices.Price(c.Exchange, c.Symbol)
		if !ok || !price.IsPositive() || !c.WeightPercent.IsPositive() {
			continue
		}
		cashLevel := price.Mul(hundred).Div(c.WeightPercent)
		if cashLevel.GreaterThan(required) {
			required = cashLevel
		}
	}
	if required.IsZero() {
		return decimal.Zero
	}
	return roundUpToHundred(required)
}

// roundUpToHundred rounds up to the nearest multiple of 100.
func roundUpToHundred(d decimal.Decimal) decimal.Decimal {
	return d.Div(hundred).Ceil().Mul(hundred)
}
