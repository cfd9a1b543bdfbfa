package engine

import (
	"github.com/shopspring/decimal"

	"basket-trader/internal/models"
)

// PlanSell computes a partial or full liquidation order set. Each
// holding sells floor(quantity * percentage/100) shares; 100 sells the
// full position. Zero-quantity orders are omitted. Tax-lot selection is
// the broker's responsibility.
func PlanSell(holdings []models.Holding, percentage decimal.Decimal) []models.Order {
	if !percentage.IsPositive() {
		return nil
	}
	if percentage.GreaterThan(hundred) {
		percentage = hundred
	}

	var orders []models.Order
	for _, h := range holdings {
		sellQty := int(decimal.NewFromInt(int64(h.Quantity)).Mul(percentage).Div(hundred).IntPart())
		if sellQty <= 0 {
			continue
		}
		orders = append(orders, models.Order{
			Symbol:   h.Symbol,
			Exchange: h.Exchange,
			Side:     models.OrderSideSell,
			Type:     models.OrderTypeMarket,
			Product:  models.ProductCNC,
			Quantity: sellQty,
		})
	}
	return orders
}
