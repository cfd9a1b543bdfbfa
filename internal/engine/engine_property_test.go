package engine

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"basket-trader/internal/models"
)

// Property: for any sequence of add/remove/adjust operations the basket
// keeps |sum(weights) - 100| <= 0.01 and every weight within [0.5, 100],
// for baskets of size 1-20. An empty basket is the only exception and is
// itself a valid state.
func TestProperty_WeightInvariantUnderOperations(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("weight invariant holds after every operation", prop.ForAll(
		func(kinds []int, indices []int, weights []float64) bool {
			basket := testBasket("40", "30", "30")
			for step := range kinds {
				var err error
				switch kinds[step] {
				case 0:
					basket, err = AddConstituent(basket, models.Constituent{
						Symbol:   fmt.Sprintf("GEN%d", step),
						Exchange: models.NSE,
					})
				case 1:
					basket, err = RemoveConstituent(basket, indices[step])
				case 2:
					basket, err = AdjustWeight(basket, indices[step], decimal.NewFromFloat(weights[step]))
				default:
					basket, err = ApplyEqualWeights(basket)
				}
				if err != nil {
					// Rejected operations leave the basket unchanged;
					// the invariant must still hold.
					continue
				}
				if verr := ValidateWeights(basket); verr != nil {
					t.Logf("invariant broken at step %d (op %d): %v", step, kinds[step], verr)
					return false
				}
			}
			return true
		},
		gen.SliceOfN(15, gen.IntRange(0, 3)),
		gen.SliceOfN(15, gen.IntRange(0, MaxConstituents-1)),
		gen.SliceOfN(15, gen.Float64Range(0, 150)),
	))

	properties.TestingRun(t)
}

// Property: a single-constituent basket is pinned at weight 100 no
// matter what weight an adjustment requests.
func TestProperty_SingleConstituentPinnedAt100(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("single stock always weighs 100", prop.ForAll(
		func(requested float64) bool {
			basket := testBasket("100")
			out, err := AdjustWeight(basket, 0, decimal.NewFromFloat(requested))
			if err != nil {
				return false
			}
			return out.Constituents[0].WeightPercent.Equal(decimal.NewFromInt(100))
		},
		gen.Float64Range(0, 500),
	))

	properties.TestingRun(t)
}

// Property: PlanBuy conserves cash exactly: spent + leftover == cash,
// spent <= cash, and every emitted order has positive quantity.
func TestProperty_AllocationConservation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("spent + leftover equals cash", prop.ForAll(
		func(w1, p1, p2, cash float64) bool {
			// Weights must sum to 100 for the basket to be valid.
			first := decimal.NewFromFloat(w1).Round(2)
			second := decimal.NewFromInt(100).Sub(first)
			basket := models.Basket{Constituents: []models.Constituent{
				{Symbol: "S1", Exchange: models.NSE, WeightPercent: first},
				{Symbol: "S2", Exchange: models.NSE, WeightPercent: second},
			}}
			prices := testPrices(
				decimal.NewFromFloat(p1).Round(2).String(),
				decimal.NewFromFloat(p2).Round(2).String(),
			)
			amount := decimal.NewFromFloat(cash).Round(2)

			plan := PlanBuy(basket, prices, amount)

			if !plan.SpentAmount.Add(plan.LeftoverCash).Equal(amount) {
				return false
			}
			if plan.SpentAmount.GreaterThan(amount) {
				return false
			}
			for _, o := range plan.Orders {
				if o.Quantity <= 0 {
					return false
				}
			}
			return true
		},
		gen.Float64Range(0.5, 99.5),
		gen.Float64Range(0.05, 50000),
		gen.Float64Range(0.05, 50000),
		gen.Float64Range(1, 10000000),
	))

	properties.TestingRun(t)
}

// Property: PlanRebalance never emits an order for a constituent whose
// actual-vs-target deviation is within the threshold.
func TestProperty_RebalanceThresholdSilence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("no order inside the threshold band", prop.ForAll(
		func(q1, q2 int, p1, p2, threshold float64) bool {
			holdings := []models.Holding{
				{Symbol: "S1", Exchange: models.NSE, Quantity: q1},
				{Symbol: "S2", Exchange: models.NSE, Quantity: q2},
			}
			basket := testBasket("50", "50")
			price1 := decimal.NewFromFloat(p1).Round(2)
			price2 := decimal.NewFromFloat(p2).Round(2)
			prices := testPrices(price1.String(), price2.String())
			thr := decimal.NewFromFloat(threshold).Round(2)

			plan := PlanRebalance(holdings, basket, prices, thr)

			total := price1.Mul(decimal.NewFromInt(int64(q1))).
				Add(price2.Mul(decimal.NewFromInt(int64(q2))))
			if !total.IsPositive() {
				return len(plan.Orders) == 0
			}

			for _, o := range plan.Orders {
				var value decimal.Decimal
				if o.Symbol == "S1" {
					value = price1.Mul(decimal.NewFromInt(int64(q1)))
				} else {
					value = price2.Mul(decimal.NewFromInt(int64(q2)))
				}
				deviation := value.Div(total).Mul(decimal.NewFromInt(100)).Sub(dw("50"))
				if deviation.Abs().LessThanOrEqual(thr) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 200),
		gen.IntRange(0, 200),
		gen.Float64Range(0.05, 5000),
		gen.Float64Range(0.05, 5000),
		gen.Float64Range(0, 60),
	))

	properties.TestingRun(t)
}

// Property: raising a constituent's weight never raises the cash level
// that constituent demands from the minimum investment.
func TestProperty_MinimumInvestmentMonotone(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("higher weight never needs more cash", prop.ForAll(
		func(price, weight, bump float64) bool {
			prices := testPrices(decimal.NewFromFloat(price).Round(2).String())

			lower := models.Basket{Constituents: []models.Constituent{
				{Symbol: "S1", Exchange: models.NSE, WeightPercent: decimal.NewFromFloat(weight)},
			}}
			higher := models.Basket{Constituents: []models.Constituent{
				{Symbol: "S1", Exchange: models.NSE, WeightPercent: decimal.NewFromFloat(weight + bump)},
			}}

			return MinimumInvestment(higher, prices).LessThanOrEqual(MinimumInvestment(lower, prices))
		},
		gen.Float64Range(0.05, 100000),
		gen.Float64Range(0.5, 99),
		gen.Float64Range(0.01, 1),
	))

	properties.TestingRun(t)
}
