package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basket-trader/internal/models"
)

func TestPlanSell(t *testing.T) {
	holdings := []models.Holding{
		holding("S1", 10, "100"),
		holding("S2", 3, "50"),
		holding("S3", 1, "200"),
	}

	t.Run("full exit sells every share", func(t *testing.T) {
		orders := PlanSell(holdings, dw("100"))
		require.Len(t, orders, 3)
		assert.Equal(t, 10, orders[0].Quantity)
		assert.Equal(t, 3, orders[1].Quantity)
		assert.Equal(t, 1, orders[2].Quantity)
		for _, o := range orders {
			assert.Equal(t, models.OrderSideSell, o.Side)
			assert.Equal(t, models.OrderTypeMarket, o.Type)
		}
	})

	t.Run("partial exit floors quantities and omits zeros", func(t *testing.T) {
		orders := PlanSell(holdings, dw("50"))
		// S1: 5, S2: floor(1.5) = 1, S3: floor(0.5) = 0 omitted.
		require.Len(t, orders, 2)
		assert.Equal(t, 5, orders[0].Quantity)
		assert.Equal(t, 1, orders[1].Quantity)
	})

	t.Run("zero percentage sells nothing", func(t *testing.T) {
		assert.Empty(t, PlanSell(holdings, dw("0")))
	})

	t.Run("percentage above 100 clamps to full exit", func(t *testing.T) {
		orders := PlanSell(holdings, dw("150"))
		require.Len(t, orders, 3)
		assert.Equal(t, 10, orders[0].Quantity)
	})

	t.Run("no holdings no orders", func(t *testing.T) {
		assert.Empty(t, PlanSell(nil, dw("100")))
	})
}
