package engine

import (
	"github.com/shopspring/decimal"

	"basket-trader/internal/models"
)

// RebalancePlan is the result of comparing actual holding weights
// against a basket's target weights.
type RebalancePlan struct {
	Orders          []models.Order
	TotalBuyAmount  decimal.Decimal
	TotalSellAmount decimal.Decimal
}

// PlanRebalance emits the buy/sell orders needed to pull each basket
// constituent's actual weight back to its target, once the deviation
// exceeds thresholdPercent. Holdings and prices are read-only; total
// portfolio value is computed over holdings with a known price, and a
// zero total yields an empty plan rather than a division by zero.
//
// A constituent with no matching holding has actual weight 0 and falls
// out as a pure buy. A held symbol absent from the target basket is
// never iterated and therefore never sold here; dropping a stock from a
// basket requires an explicit exit.
func PlanRebalance(holdings []models.Holding, b models.Basket, prices models.PriceSnapshot, thresholdPercent decimal.Decimal) RebalancePlan {
	plan := RebalancePlan{
		TotalBuyAmount:  decimal.Zero,
		TotalSellAmount: decimal.Zero,
	}

	held := make(map[models.Instrument]models.Holding, len(holdings))
	totalValue := decimal.Zero
	for _, h := range holdings {
		held[h.Instrument()] = h
		price, ok := prices.Price(h.Exchange, h.Symbol)
		if !ok {
			continue
		}
		totalValue = totalValue.Add(price.Mul(decimal.NewFromInt(int64(h.Quantity))))
	}
	if !totalValue.IsPositive() {
		return plan
	}

	for _, c := range b.Constituents {
		price, ok := prices.Price(c.Exchange, c.Symbol)
		if !ok || !price.IsPositive() {
			continue
		}

		holding, owned := held[c.Instrument()]
		currentQty := 0
		if owned {
			currentQty = holding.Quantity
		}
		currentValue := price.Mul(decimal.NewFromInt(int64(currentQty)))

		actualWeight := currentValue.Div(totalValue).Mul(hundred)
		deviation := actualWeight.Sub(c.WeightPercent)
		if deviation.Abs().LessThanOrEqual(thresholdPercent) {
			continue
		}

		targetValue := c.WeightPercent.Div(hundred).Mul(totalValue)
		valueDiff := targetValue.Sub(currentValue)
		quantityDiff := int(valueDiff.Abs().Div(price).IntPart())
		if quantityDiff <= 0 {
			continue
		}

		if deviation.IsPositive() {
			sellQty := quantityDiff
			if sellQty > currentQty {
				sellQty = currentQty
			}
			if sellQty <= 0 {
				continue
			}
			plan.Orders = append(plan.Orders, models.Order{
				Symbol:   c.Symbol,
				Exchange: c.Exchange,
				Side:     models.OrderSideSell,
				Type:     models.OrderTypeMarket,
				Product:  models.ProductCNC,
				Quantity: sellQty,
				Price:    price,
			})
			plan.TotalSellAmount = plan.TotalSellAmount.Add(price.Mul(decimal.NewFromInt(int64(sellQty))))
		} else {
			plan.Orders = append(plan.Orders, models.Order{
				Symbol:   c.Symbol,
				Exchange: c.Exchange,
				Side:     models.OrderSideBuy,
				Type:     models.OrderTypeMarket,
				Product:  models.ProductCNC,
				Quantity: quantityDiff,
				Price:    price,
			})
			plan.TotalBuyAmount = plan.TotalBuyAmount.Add(price.Mul(decimal.NewFromInt(int64(quantityDiff))))
		}
	}

	return plan
}
