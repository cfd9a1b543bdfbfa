// Package models provides domain models for the basket trading application.
package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Exchange represents a stock exchange.
type Exchange string

const (
	NSE Exchange = "NSE"
	BSE Exchange = "BSE"
)

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType represents the type of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// ProductType represents the product type of an order.
type ProductType string

const (
	ProductCNC ProductType = "CNC" // Delivery
	ProductMIS ProductType = "MIS" // Intraday
)

// Instrument identifies a tradeable instrument on an exchange.
type Instrument struct {
	Exchange Exchange
	Symbol   string
}

// String returns the instrument in EXCHANGE:SYMBOL form.
func (i Instrument) String() string {
	return fmt.Sprintf("%s:%s", i.Exchange, i.Symbol)
}

// Constituent represents one stock entry in a basket with its target weight.
type Constituent struct {
	Symbol        string
	Exchange      Exchange
	WeightPercent decimal.Decimal
}

// Instrument returns the constituent's instrument key.
func (c Constituent) Instrument() Instrument {
	return Instrument{Exchange: c.Exchange, Symbol: c.Symbol}
}

// Basket represents a named, user-defined set of stock constituents
// with percentage weights summing to 100.
type Basket struct {
	ID           string
	Name         string
	Constituents []Constituent
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Clone returns a deep copy of the basket. The weight engine operates on
// copies so the caller's basket is never mutated on failure.
func (b Basket) Clone() Basket {
	out := b
	out.Constituents = make([]Constituent, len(b.Constituents))
	copy(out.Constituents, b.Constituents)
	return out
}

// TotalWeight returns the sum of all constituent weights.
func (b Basket) TotalWeight() decimal.Decimal {
	total := decimal.Zero
	for _, c := range b.Constituents {
		total = total.Add(c.WeightPercent)
	}
	return total
}

// PriceSnapshot maps instruments to their last traded price. Entries may
// be absent for stale or unknown instruments; consumers skip gaps.
type PriceSnapshot map[Instrument]decimal.Decimal

// Price returns the last traded price for an instrument.
func (p PriceSnapshot) Price(exchange Exchange, symbol string) (decimal.Decimal, bool) {
	ltp, ok := p[Instrument{Exchange: exchange, Symbol: symbol}]
	return ltp, ok
}

// Holding represents a delivery holding owned by an investment.
type Holding struct {
	Symbol       string
	Exchange     Exchange
	Quantity     int
	AveragePrice decimal.Decimal
}

// Instrument returns the holding's instrument key.
func (h Holding) Instrument() Instrument {
	return Instrument{Exchange: h.Exchange, Symbol: h.Symbol}
}

// Investment represents a user's position in a basket. Holdings are
// mutated only by confirmed order execution or a broker sync, never by
// the planning engine.
type Investment struct {
	ID               string
	BasketID         string
	Holdings         []Holding
	InvestedAmount   decimal.Decimal
	CurrentValue     decimal.Decimal
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastRebalancedAt *time.Time
}

// Order represents a broker-submittable order. Orders are output-only
// values produced by the planning engine, never persisted as state.
type Order struct {
	Symbol   string
	Exchange Exchange
	Side     OrderSide
	Type     OrderType
	Product  ProductType
	Quantity int
	Price    decimal.Decimal // reference price at planning time
	Tag      string
}

// Value returns quantity times the reference price.
func (o Order) Value() decimal.Decimal {
	return o.Price.Mul(decimal.NewFromInt(int64(o.Quantity)))
}
