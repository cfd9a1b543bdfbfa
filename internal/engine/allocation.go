package engine

import (
	"github.com/shopspring/decimal"

	"basket-trader/internal/models"
)

// BuyPlan is the result of allocating a cash amount across a basket.
type BuyPlan struct {
	Orders       []models.Order
	SpentAmount  decimal.Decimal
	LeftoverCash decimal.Decimal
}

// Empty reports whether the plan contains no orders. An empty plan for a
// positive cash amount means the amount is below the minimum investment;
// the caller must treat it as a rejection, not a silent success.
func (p BuyPlan) Empty() bool {
	return len(p.Orders) == 0
}

// PlanBuy converts a cash amount into per-constituent integer buy
// quantities: allocation = cash * weight/100, quantity = floor(allocation
// / price). Constituents with no known price are skipped. Conservation
// holds exactly: SpentAmount + LeftoverCash == cashAmount.
func PlanBuy(b models.Basket, prices models.PriceSnapshot, cashAmount decimal.Decimal) BuyPlan {
	plan := BuyPlan{
		SpentAmount:  decimal.Zero,
		LeftoverCash: cashAmount,
	}
	if !cashAmount.IsPositive() {
		return plan
	}

	for _, c := range b.Constituents {
		price, ok := prices.Price(c.Exchange, c.Symbol)
		if !ok || !price.IsPositive() {
			continue
		}
		allocation := cashAmount.Mul(c.WeightPercent).Div(hundred)
		quantity := int(allocation.Div(price).IntPart())
		if quantity <= 0 {
			continue
		}
		plan.Orders = append(plan.Orders, models.Order{
			Symbol:   c.Symbol,
			Exchange: c.Exchange,
			Side:     models.OrderSideBuy,
			Type:     models.OrderTypeMarket,
			Product:  models.ProductCNC,
			Quantity: quantity,
			Price:    price,
		})
		plan.SpentAmount = plan.SpentAmount.Add(price.Mul(decimal.NewFromInt(int64(quantity))))
	}

	plan.LeftoverCash = cashAmount.Sub(plan.SpentAmount)
	return plan
}
