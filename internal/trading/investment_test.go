package trading

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basket-trader/internal/broker"
	errs "basket-trader/internal/errors"
	"basket-trader/internal/models"
)

func testFixture(t *testing.T) (*InvestmentService, *broker.PaperBroker, *memStore) {
	t.Helper()

	paper := broker.NewPaperBroker(broker.PaperBrokerConfig{})
	ds := newMemStore()
	svc := NewInvestmentService(paper, ds, zerolog.Nop())
	return svc, paper, ds
}

func seedBasket(t *testing.T, ds *memStore, weights ...string) models.Basket {
	t.Helper()

	basket := models.Basket{ID: "basket-1", Name: "test", CreatedAt: time.Now()}
	symbols := []string{"A", "B", "C", "D"}
	for i, w := range weights {
		basket.Constituents = append(basket.Constituents, models.Constituent{
			Symbol:        symbols[i],
			Exchange:      models.NSE,
			WeightPercent: decimal.RequireFromString(w),
		})
	}
	require.NoError(t, ds.SaveBasket(context.Background(), &basket))
	return basket
}

func inst(symbol string) models.Instrument {
	return models.Instrument{Exchange: models.NSE, Symbol: symbol}
}

func TestInvest(t *testing.T) {
	ctx := context.Background()

	t.Run("buys whole shares per weight and records holdings", func(t *testing.T) {
		svc, paper, ds := testFixture(t)
		basket := seedBasket(t, ds, "60", "40")
		paper.SetPrice(inst("A"), decimal.NewFromInt(100))
		paper.SetPrice(inst("B"), decimal.NewFromInt(50))

		result, err := svc.Invest(ctx, basket.ID, decimal.NewFromInt(1000))
		require.NoError(t, err)

		// 600 buys 6 of A at 100, 400 buys 8 of B at 50
		require.Len(t, result.Orders, 2)
		for _, r := range result.Orders {
			assert.True(t, r.Accepted)
		}
		assert.True(t, result.Plan.SpentAmount.Equal(decimal.NewFromInt(1000)))
		assert.True(t, result.Plan.LeftoverCash.IsZero())

		inv, err := ds.GetInvestmentByBasket(ctx, basket.ID)
		require.NoError(t, err)
		require.Len(t, inv.Holdings, 2)
		assert.Equal(t, 6, inv.Holdings[0].Quantity)
		assert.Equal(t, 8, inv.Holdings[1].Quantity)
		assert.True(t, inv.InvestedAmount.Equal(decimal.NewFromInt(1000)))
	})

	t.Run("rejects amount below minimum investment", func(t *testing.T) {
		svc, paper, ds := testFixture(t)
		basket := seedBasket(t, ds, "60", "40")
		paper.SetPrice(inst("A"), decimal.NewFromInt(100))
		paper.SetPrice(inst("B"), decimal.NewFromInt(50))

		// min is ceil(100*100/60)=167 -> 200 rounded to hundred
		_, err := svc.Invest(ctx, basket.ID, decimal.NewFromInt(100))
		assert.ErrorIs(t, err, errs.ErrBelowMinInvestment)

		_, err = ds.GetInvestmentByBasket(ctx, basket.ID)
		assert.ErrorIs(t, err, errs.ErrInvestmentNotFound)
	})

	t.Run("rejects empty basket", func(t *testing.T) {
		svc, _, ds := testFixture(t)
		basket := seedBasket(t, ds)

		_, err := svc.Invest(ctx, basket.ID, decimal.NewFromInt(1000))
		assert.ErrorIs(t, err, errs.ErrBasketEmpty)
	})

	t.Run("second investment tops up existing holdings", func(t *testing.T) {
		svc, paper, ds := testFixture(t)
		basket := seedBasket(t, ds, "60", "40")
		paper.SetPrice(inst("A"), decimal.NewFromInt(100))
		paper.SetPrice(inst("B"), decimal.NewFromInt(50))

		_, err := svc.Invest(ctx, basket.ID, decimal.NewFromInt(1000))
		require.NoError(t, err)
		_, err = svc.Invest(ctx, basket.ID, decimal.NewFromInt(1000))
		require.NoError(t, err)

		inv, err := ds.GetInvestmentByBasket(ctx, basket.ID)
		require.NoError(t, err)
		assert.Equal(t, 12, inv.Holdings[0].Quantity)
		assert.Equal(t, 16, inv.Holdings[1].Quantity)
		assert.True(t, inv.InvestedAmount.Equal(decimal.NewFromInt(2000)))
	})
}

func TestMinimumInvestment(t *testing.T) {
	ctx := context.Background()
	svc, paper, ds := testFixture(t)
	basket := seedBasket(t, ds, "60", "40")
	paper.SetPrice(inst("A"), decimal.NewFromInt(100))
	paper.SetPrice(inst("B"), decimal.NewFromInt(50))

	min, err := svc.MinimumInvestment(ctx, basket.ID)
	require.NoError(t, err)
	assert.True(t, min.Equal(decimal.NewFromInt(200)), "got %s", min)
}

func TestRebalance(t *testing.T) {
	ctx := context.Background()

	t.Run("sells overweight and buys underweight beyond threshold", func(t *testing.T) {
		svc, paper, ds := testFixture(t)
		basket := seedBasket(t, ds, "60", "40")
		paper.SetPrice(inst("A"), decimal.NewFromInt(100))
		paper.SetPrice(inst("B"), decimal.NewFromInt(50))

		_, err := svc.Invest(ctx, basket.ID, decimal.NewFromInt(1000))
		require.NoError(t, err)
		inv, err := ds.GetInvestmentByBasket(ctx, basket.ID)
		require.NoError(t, err)

		// A doubles: 6x200=1200 vs B 8x50=400, total 1600.
		// A is 75% vs 60% target: sell floor(240/200)=1.
		// B is 25% vs 40% target: buy floor(240/50)=4.
		paper.SetPrice(inst("A"), decimal.NewFromInt(200))

		result, err := svc.Rebalance(ctx, inv.ID, decimal.NewFromInt(5))
		require.NoError(t, err)
		require.Len(t, result.Plan.Orders, 2)

		updated, err := ds.GetInvestment(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, updated.Holdings[0].Quantity)
		assert.Equal(t, 12, updated.Holdings[1].Quantity)
		require.NotNil(t, updated.LastRebalancedAt)
	})

	t.Run("no orders when deviations stay inside the band", func(t *testing.T) {
		svc, paper, ds := testFixture(t)
		basket := seedBasket(t, ds, "60", "40")
		paper.SetPrice(inst("A"), decimal.NewFromInt(100))
		paper.SetPrice(inst("B"), decimal.NewFromInt(50))

		_, err := svc.Invest(ctx, basket.ID, decimal.NewFromInt(1000))
		require.NoError(t, err)
		inv, err := ds.GetInvestmentByBasket(ctx, basket.ID)
		require.NoError(t, err)

		result, err := svc.Rebalance(ctx, inv.ID, decimal.NewFromInt(5))
		require.NoError(t, err)
		assert.Empty(t, result.Plan.Orders)

		updated, err := ds.GetInvestment(ctx, inv.ID)
		require.NoError(t, err)
		assert.Nil(t, updated.LastRebalancedAt)
	})
}

func TestExit(t *testing.T) {
	ctx := context.Background()

	t.Run("full exit sells everything and closes the investment", func(t *testing.T) {
		svc, paper, ds := testFixture(t)
		basket := seedBasket(t, ds, "60", "40")
		paper.SetPrice(inst("A"), decimal.NewFromInt(100))
		paper.SetPrice(inst("B"), decimal.NewFromInt(50))

		_, err := svc.Invest(ctx, basket.ID, decimal.NewFromInt(1000))
		require.NoError(t, err)
		inv, err := ds.GetInvestmentByBasket(ctx, basket.ID)
		require.NoError(t, err)

		result, err := svc.Exit(ctx, inv.ID, decimal.NewFromInt(100))
		require.NoError(t, err)
		assert.True(t, result.FullExit)
		assert.True(t, result.SoldValue.Equal(decimal.NewFromInt(1000)))

		_, err = ds.GetInvestment(ctx, inv.ID)
		assert.ErrorIs(t, err, errs.ErrInvestmentNotFound)
	})

	t.Run("partial exit floors share counts", func(t *testing.T) {
		svc, paper, ds := testFixture(t)
		basket := seedBasket(t, ds, "60", "40")
		paper.SetPrice(inst("A"), decimal.NewFromInt(100))
		paper.SetPrice(inst("B"), decimal.NewFromInt(50))

		_, err := svc.Invest(ctx, basket.ID, decimal.NewFromInt(1000))
		require.NoError(t, err)
		inv, err := ds.GetInvestmentByBasket(ctx, basket.ID)
		require.NoError(t, err)

		// 50% of 6 -> 3, 50% of 8 -> 4
		result, err := svc.Exit(ctx, inv.ID, decimal.NewFromInt(50))
		require.NoError(t, err)
		assert.False(t, result.FullExit)

		updated, err := ds.GetInvestment(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, updated.Holdings[0].Quantity)
		assert.Equal(t, 4, updated.Holdings[1].Quantity)
	})

	t.Run("exit without holdings fails", func(t *testing.T) {
		svc, _, ds := testFixture(t)
		seedBasket(t, ds, "60", "40")
		inv := models.Investment{ID: "inv-1", BasketID: "basket-1"}
		require.NoError(t, ds.SaveInvestment(ctx, &inv))

		_, err := svc.Exit(ctx, inv.ID, decimal.NewFromInt(100))
		assert.ErrorIs(t, err, errs.ErrNoHoldings)
	})
}
