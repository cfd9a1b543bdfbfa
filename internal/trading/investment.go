// Package trading implements the investment workflows: funding a basket,
// rebalancing drifted holdings, exiting positions, and running SIP
// installments. It composes the pure planning engine with a broker for
// quotes and order placement and a store for persistence.
package trading

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"basket-trader/internal/broker"
	"basket-trader/internal/engine"
	errs "basket-trader/internal/errors"
	"basket-trader/internal/logging"
	"basket-trader/internal/models"
	"basket-trader/internal/store"
	"basket-trader/pkg/utils"
)

// InvestmentService coordinates invest, rebalance, and exit flows.
// Operations on the same basket are serialized with a per-basket lock so
// a rebalance never plans against holdings mid-mutation.
type InvestmentService struct {
	broker broker.Broker
	store  store.DataStore
	log    zerolog.Logger
	retry  utils.RetryConfig
	now    func() time.Time

	locks sync.Map // basket ID -> *sync.Mutex
}

// NewInvestmentService creates a new investment service.
func NewInvestmentService(b broker.Broker, ds store.DataStore, log zerolog.Logger) *InvestmentService {
	return &InvestmentService{
		broker: b,
		store:  ds,
		log:    log.With().Str("component", "investment").Logger(),
		retry:  utils.DefaultRetryConfig(),
		now:    time.Now,
	}
}

// InvestResult reports the outcome of funding a basket.
type InvestResult struct {
	Investment *models.Investment
	Plan       engine.BuyPlan
	Orders     []broker.SubmitResult
}

// RebalanceResult reports the outcome of a rebalance run.
type RebalanceResult struct {
	Investment *models.Investment
	Plan       engine.RebalancePlan
	Orders     []broker.SubmitResult
}

// ExitResult reports the outcome of an exit.
type ExitResult struct {
	Investment *models.Investment
	Orders     []broker.SubmitResult
	SoldValue  decimal.Decimal
	FullExit   bool
}

func (s *InvestmentService) lockBasket(basketID string) func() {
	v, _ := s.locks.LoadOrStore(basketID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// fetchPrices fetches a quote snapshot with retry. An empty snapshot is
// an error: nothing can be planned without at least one price.
func (s *InvestmentService) fetchPrices(ctx context.Context, instruments []models.Instrument) (models.PriceSnapshot, error) {
	prices, err := utils.RetryWithResult(ctx, s.retry, func() (models.PriceSnapshot, error) {
		return s.broker.GetQuotes(ctx, instruments)
	})
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, errs.ErrNoPricesAvailable
	}
	return prices, nil
}

// MinimumInvestment computes the minimum amount needed to buy at least
// one share of every constituent at current prices.
func (s *InvestmentService) MinimumInvestment(ctx context.Context, basketID string) (decimal.Decimal, error) {
	basket, err := s.store.GetBasket(ctx, basketID)
	if err != nil {
		return decimal.Zero, err
	}
	if len(basket.Constituents) == 0 {
		return decimal.Zero, errs.ErrBasketEmpty
	}

	prices, err := s.fetchPrices(ctx, basketInstruments(*basket))
	if err != nil {
		return decimal.Zero, err
	}
	return engine.MinimumInvestment(*basket, prices), nil
}

// Invest funds a basket with the given cash amount: fetches quotes,
// verifies the amount clears the minimum, plans the buys, submits them,
// and records the resulting holdings against the basket's investment.
func (s *InvestmentService) Invest(ctx context.Context, basketID string, amount decimal.Decimal) (*InvestResult, error) {
	basket, err := s.store.GetBasket(ctx, basketID)
	if err != nil {
		return nil, err
	}
	if len(basket.Constituents) == 0 {
		return nil, errs.ErrBasketEmpty
	}
	if err := engine.ValidateWeights(*basket); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, errs.NewValidationError("amount", amount.String(), "must be positive")
	}

	unlock := s.lockBasket(basketID)
	defer unlock()

	prices, err := s.fetchPrices(ctx, basketInstruments(*basket))
	if err != nil {
		return nil, err
	}

	min := engine.MinimumInvestment(*basket, prices)
	if min.IsPositive() && amount.LessThan(min) {
		return nil, fmt.Errorf("%w: need at least %s", errs.ErrBelowMinInvestment, utils.FormatIndianCurrency(min))
	}

	plan := engine.PlanBuy(*basket, prices, amount)
	if plan.Empty() {
		return nil, fmt.Errorf("%w: amount buys zero shares of every constituent", errs.ErrBelowMinInvestment)
	}

	results := s.submitOrders(ctx, plan.Orders, "basket:"+basket.ID)

	inv, err := s.store.GetInvestmentByBasket(ctx, basketID)
	if err != nil {
		now := s.now()
		inv = &models.Investment{
			ID:        uuid.NewString(),
			BasketID:  basketID,
			CreatedAt: now,
		}
	}

	spent := decimal.Zero
	for _, r := range results {
		if !r.Accepted {
			continue
		}
		price := prices[models.Instrument{Exchange: r.Order.Exchange, Symbol: r.Order.Symbol}]
		applyBuy(inv, r.Order, price)
		spent = spent.Add(price.Mul(decimal.NewFromInt(int64(r.Order.Quantity))))
	}

	inv.InvestedAmount = inv.InvestedAmount.Add(spent)
	inv.CurrentValue = holdingsValue(inv.Holdings, prices)
	inv.UpdatedAt = s.now()

	if err := s.store.SaveInvestment(ctx, inv); err != nil {
		return nil, fmt.Errorf("saving investment: %w", err)
	}

	investLog := logging.WithBasket(s.log, basketID)
	investLog.Info().
		Str("amount", amount.String()).
		Str("spent", spent.String()).
		Int("orders", len(results)).
		Msg("Basket invested")

	return &InvestResult{Investment: inv, Plan: plan, Orders: results}, nil
}

// Rebalance realigns an investment's holdings with its basket's target
// weights. Only deviations beyond the threshold band produce orders;
// sells are submitted before buys so the freed cash funds them.
func (s *InvestmentService) Rebalance(ctx context.Context, investmentID string, thresholdPercent decimal.Decimal) (*RebalanceResult, error) {
	inv, err := s.store.GetInvestment(ctx, investmentID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockBasket(inv.BasketID)
	defer unlock()

	basket, err := s.store.GetBasket(ctx, inv.BasketID)
	if err != nil {
		return nil, err
	}

	prices, err := s.fetchPrices(ctx, unionInstruments(*basket, inv.Holdings))
	if err != nil {
		return nil, err
	}

	plan := engine.PlanRebalance(inv.Holdings, *basket, prices, thresholdPercent)
	if len(plan.Orders) == 0 {
		inv.CurrentValue = holdingsValue(inv.Holdings, prices)
		return &RebalanceResult{Investment: inv, Plan: plan}, nil
	}

	tag := "rebalance:" + inv.ID
	var results []broker.SubmitResult
	for _, side := range []models.OrderSide{models.OrderSideSell, models.OrderSideBuy} {
		for _, o := range plan.Orders {
			if o.Side != side {
				continue
			}
			results = append(results, s.submitOrder(ctx, o, tag))
		}
	}

	for _, r := range results {
		if !r.Accepted {
			continue
		}
		price := prices[models.Instrument{Exchange: r.Order.Exchange, Symbol: r.Order.Symbol}]
		if r.Order.Side == models.OrderSideBuy {
			applyBuy(inv, r.Order, price)
		} else {
			applySell(inv, r.Order)
		}
	}

	now := s.now()
	inv.LastRebalancedAt = &now
	inv.CurrentValue = holdingsValue(inv.Holdings, prices)
	inv.UpdatedAt = now

	if err := s.store.SaveInvestment(ctx, inv); err != nil {
		return nil, fmt.Errorf("saving investment: %w", err)
	}

	rebalanceLog := logging.WithInvestment(s.log, inv.ID)
	rebalanceLog.Info().
		Str("threshold", thresholdPercent.String()).
		Int("orders", len(results)).
		Msg("Investment rebalanced")

	return &RebalanceResult{Investment: inv, Plan: plan, Orders: results}, nil
}

// Exit sells the given percentage of every holding. A 100% exit that
// fills completely deletes the investment record.
func (s *InvestmentService) Exit(ctx context.Context, investmentID string, percentage decimal.Decimal) (*ExitResult, error) {
	inv, err := s.store.GetInvestment(ctx, investmentID)
	if err != nil {
		return nil, err
	}
	if len(inv.Holdings) == 0 {
		return nil, errs.ErrNoHoldings
	}

	unlock := s.lockBasket(inv.BasketID)
	defer unlock()

	orders := engine.PlanSell(inv.Holdings, percentage)
	if len(orders) == 0 {
		return &ExitResult{Investment: inv}, nil
	}

	instruments := make([]models.Instrument, len(orders))
	for i, o := range orders {
		instruments[i] = models.Instrument{Exchange: o.Exchange, Symbol: o.Symbol}
	}
	prices, err := s.fetchPrices(ctx, instruments)
	if err != nil {
		return nil, err
	}

	results := s.submitOrders(ctx, orders, "exit:"+inv.ID)

	soldValue := decimal.Zero
	for _, r := range results {
		if !r.Accepted {
			continue
		}
		applySell(inv, r.Order)
		price := prices[models.Instrument{Exchange: r.Order.Exchange, Symbol: r.Order.Symbol}]
		soldValue = soldValue.Add(price.Mul(decimal.NewFromInt(int64(r.Order.Quantity))))
	}

	fullExit := len(inv.Holdings) == 0
	if fullExit {
		if err := s.store.DeleteInvestment(ctx, inv.ID); err != nil {
			return nil, fmt.Errorf("deleting investment: %w", err)
		}
	} else {
		inv.CurrentValue = holdingsValue(inv.Holdings, prices)
		inv.UpdatedAt = s.now()
		if err := s.store.SaveInvestment(ctx, inv); err != nil {
			return nil, fmt.Errorf("saving investment: %w", err)
		}
	}

	exitLog := logging.WithInvestment(s.log, inv.ID)
	exitLog.Info().
		Str("percentage", percentage.String()).
		Str("sold_value", soldValue.String()).
		Bool("full_exit", fullExit).
		Msg("Investment exited")

	return &ExitResult{Investment: inv, Orders: results, SoldValue: soldValue, FullExit: fullExit}, nil
}

// SyncHoldings replaces an investment's recorded holdings with the
// broker's view, restricted to the basket's constituents. Useful after
// off-platform trades or partial fills.
func (s *InvestmentService) SyncHoldings(ctx context.Context, investmentID string) (*models.Investment, error) {
	inv, err := s.store.GetInvestment(ctx, investmentID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockBasket(inv.BasketID)
	defer unlock()

	basket, err := s.store.GetBasket(ctx, inv.BasketID)
	if err != nil {
		return nil, err
	}

	brokerHoldings, err := s.broker.GetHoldings(ctx)
	if err != nil {
		return nil, err
	}

	members := make(map[models.Instrument]bool, len(basket.Constituents))
	for _, c := range basket.Constituents {
		members[c.Instrument()] = true
	}

	synced := inv.Holdings[:0]
	for _, h := range brokerHoldings {
		if members[h.Instrument()] && h.Quantity > 0 {
			synced = append(synced, h)
		}
	}
	inv.Holdings = synced
	inv.UpdatedAt = s.now()

	if err := s.store.SaveInvestment(ctx, inv); err != nil {
		return nil, fmt.Errorf("saving investment: %w", err)
	}
	return inv, nil
}

func (s *InvestmentService) submitOrders(ctx context.Context, orders []models.Order, tag string) []broker.SubmitResult {
	results := make([]broker.SubmitResult, 0, len(orders))
	for _, o := range orders {
		results = append(results, s.submitOrder(ctx, o, tag))
	}
	return results
}

func (s *InvestmentService) submitOrder(ctx context.Context, o models.Order, tag string) broker.SubmitResult {
	o.Tag = tag
	res, err := s.broker.PlaceOrder(ctx, &o)
	if err != nil {
		s.log.Warn().
			Str("symbol", o.Symbol).
			Str("side", string(o.Side)).
			Int("quantity", o.Quantity).
			Err(err).
			Msg("Order rejected")
		return broker.SubmitResult{Order: o, Err: err}
	}

	logging.LogOrder(s.log, res.OrderID, o.Symbol, string(o.Side), o.Quantity, res.Status)
	return broker.SubmitResult{Order: o, Accepted: true, BrokerOrderID: res.OrderID}
}

// applyBuy folds a filled buy into the investment's holdings,
// recomputing the average price.
func applyBuy(inv *models.Investment, o models.Order, price decimal.Decimal) {
	for i := range inv.Holdings {
		h := &inv.Holdings[i]
		if h.Symbol != o.Symbol || h.Exchange != o.Exchange {
			continue
		}
		oldQty := decimal.NewFromInt(int64(h.Quantity))
		newQty := decimal.NewFromInt(int64(o.Quantity))
		totalCost := h.AveragePrice.Mul(oldQty).Add(price.Mul(newQty))
		h.Quantity += o.Quantity
		h.AveragePrice = totalCost.Div(decimal.NewFromInt(int64(h.Quantity))).Round(2)
		return
	}

	inv.Holdings = append(inv.Holdings, models.Holding{
		Symbol:       o.Symbol,
		Exchange:     o.Exchange,
		Quantity:     o.Quantity,
		AveragePrice: price,
	})
}

// applySell reduces a holding by a filled sell, dropping it at zero.
func applySell(inv *models.Investment, o models.Order) {
	for i := range inv.Holdings {
		h := &inv.Holdings[i]
		if h.Symbol != o.Symbol || h.Exchange != o.Exchange {
			continue
		}
		h.Quantity -= o.Quantity
		if h.Quantity <= 0 {
			inv.Holdings = append(inv.Holdings[:i], inv.Holdings[i+1:]...)
		}
		return
	}
}

func holdingsValue(holdings []models.Holding, prices models.PriceSnapshot) decimal.Decimal {
	total := decimal.Zero
	for _, h := range holdings {
		price, ok := prices[h.Instrument()]
		if !ok {
			continue
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(h.Quantity))))
	}
	return total
}

func basketInstruments(b models.Basket) []models.Instrument {
	instruments := make([]models.Instrument, len(b.Constituents))
	for i, c := range b.Constituents {
		instruments[i] = c.Instrument()
	}
	return instruments
}

// unionInstruments merges basket constituents and held instruments so a
// rebalance can price holdings that were dropped from the basket.
func unionInstruments(b models.Basket, holdings []models.Holding) []models.Instrument {
	seen := make(map[models.Instrument]bool)
	var instruments []models.Instrument
	for _, c := range b.Constituents {
		inst := c.Instrument()
		if !seen[inst] {
			seen[inst] = true
			instruments = append(instruments, inst)
		}
	}
	for _, h := range holdings {
		inst := h.Instrument()
		if !seen[inst] {
			seen[inst] = true
			instruments = append(instruments, inst)
		}
	}
	return instruments
}
