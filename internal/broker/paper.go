// Package broker provides broker integration implementations.
package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	errs "basket-trader/internal/errors"
	"basket-trader/internal/models"
)

// PaperBroker implements the Broker interface for paper trading
// simulation. Orders fill instantly at the cached price and mutate the
// simulated holdings, so invest/rebalance/exit flows can be exercised
// end to end without a live session.
type PaperBroker struct {
	// Optional real broker for market data
	dataBroker Broker

	holdings map[models.Instrument]*models.Holding
	prices   models.PriceSnapshot
	cash     decimal.Decimal

	orderCounter int
	mu           sync.RWMutex
}

// PaperBrokerConfig holds configuration for the paper broker.
type PaperBrokerConfig struct {
	DataBroker     Broker
	InitialBalance decimal.Decimal
}

// NewPaperBroker creates a new paper trading broker.
func NewPaperBroker(cfg PaperBrokerConfig) *PaperBroker {
	balance := cfg.InitialBalance
	if balance.IsZero() {
		balance = decimal.NewFromInt(1000000) // 10 lakhs default
	}

	return &PaperBroker{
		dataBroker: cfg.DataBroker,
		holdings:   make(map[models.Instrument]*models.Holding),
		prices:     make(models.PriceSnapshot),
		cash:       balance,
	}
}

// SetPrice seeds the simulated price for an instrument.
func (p *PaperBroker) SetPrice(inst models.Instrument, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[inst] = price
}

// AvailableCash returns the remaining simulated cash balance.
func (p *PaperBroker) AvailableCash() decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cash
}

// Login is a no-op for paper trading.
func (p *PaperBroker) Login(ctx context.Context) error {
	return nil
}

// Logout is a no-op for paper trading.
func (p *PaperBroker) Logout(ctx context.Context) error {
	return nil
}

// IsAuthenticated always returns true for paper trading.
func (p *PaperBroker) IsAuthenticated() bool {
	return true
}

// GetQuotes returns simulated prices, falling back to the data broker
// for instruments without a seeded price. Unknown instruments are
// absent from the snapshot.
func (p *PaperBroker) GetQuotes(ctx context.Context, instruments []models.Instrument) (models.PriceSnapshot, error) {
	snapshot := make(models.PriceSnapshot, len(instruments))

	var missing []models.Instrument
	p.mu.RLock()
	for _, inst := range instruments {
		if price, ok := p.prices[inst]; ok {
			snapshot[inst] = price
		} else {
			missing = append(missing, inst)
		}
	}
	p.mu.RUnlock()

	if len(missing) > 0 && p.dataBroker != nil {
		live, err := p.dataBroker.GetQuotes(ctx, missing)
		if err == nil {
			p.mu.Lock()
			for inst, price := range live {
				p.prices[inst] = price
				snapshot[inst] = price
			}
			p.mu.Unlock()
		}
	}

	return snapshot, nil
}

// GetHoldings returns the simulated holdings.
func (p *PaperBroker) GetHoldings(ctx context.Context) ([]models.Holding, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]models.Holding, 0, len(p.holdings))
	for _, h := range p.holdings {
		result = append(result, *h)
	}
	return result, nil
}

// PlaceOrder simulates order placement with an instant fill at the
// cached price.
func (p *PaperBroker) PlaceOrder(ctx context.Context, order *models.Order) (*OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	inst := models.Instrument{Exchange: order.Exchange, Symbol: order.Symbol}
	price, ok := p.prices[inst]
	if !ok || !price.IsPositive() {
		return nil, errs.NewOrderError(order.Symbol, string(order.Side), "no price available", errs.ErrOrderRejected)
	}

	p.orderCounter++
	orderID := fmt.Sprintf("PAPER_%d_%d", time.Now().Unix(), p.orderCounter)
	value := price.Mul(decimal.NewFromInt(int64(order.Quantity)))

	switch order.Side {
	case models.OrderSideBuy:
		if p.cash.LessThan(value) {
			return nil, errs.NewOrderError(order.Symbol, string(order.Side),
				fmt.Sprintf("insufficient funds: need %s, have %s", value, p.cash), errs.ErrOrderRejected)
		}
		p.cash = p.cash.Sub(value)
		p.fillBuy(inst, order.Quantity, price)

	case models.OrderSideSell:
		h, owned := p.holdings[inst]
		if !owned || h.Quantity < order.Quantity {
			return nil, errs.NewOrderError(order.Symbol, string(order.Side), "insufficient holdings", errs.ErrOrderRejected)
		}
		p.cash = p.cash.Add(value)
		h.Quantity -= order.Quantity
		if h.Quantity == 0 {
			delete(p.holdings, inst)
		}
	}

	return &OrderResult{
		OrderID: orderID,
		Status:  "COMPLETE",
		Message: "Paper order filled",
	}, nil
}

// fillBuy adds shares to a simulated holding, recomputing the average price.
func (p *PaperBroker) fillBuy(inst models.Instrument, quantity int, price decimal.Decimal) {
	h, owned := p.holdings[inst]
	if !owned {
		p.holdings[inst] = &models.Holding{
			Symbol:       inst.Symbol,
			Exchange:     inst.Exchange,
			Quantity:     quantity,
			AveragePrice: price,
		}
		return
	}

	oldQty := decimal.NewFromInt(int64(h.Quantity))
	newQty := decimal.NewFromInt(int64(quantity))
	totalCost := h.AveragePrice.Mul(oldQty).Add(price.Mul(newQty))
	h.Quantity += quantity
	h.AveragePrice = totalCost.Div(decimal.NewFromInt(int64(h.Quantity))).Round(2)
}
