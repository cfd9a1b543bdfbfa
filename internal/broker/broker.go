// Package broker provides broker integration interfaces and implementations.
package broker

import (
	"context"

	"basket-trader/internal/models"
)

// Broker defines the interface for broker operations: the price provider
// and order submitter the planning engine's callers depend on. A quote
// snapshot may contain fewer entries than requested; callers must
// tolerate the gaps.
type Broker interface {
	// Authentication
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	IsAuthenticated() bool

	// Market data
	GetQuotes(ctx context.Context, instruments []models.Instrument) (models.PriceSnapshot, error)

	// Holdings
	GetHoldings(ctx context.Context) ([]models.Holding, error)

	// Orders
	PlaceOrder(ctx context.Context, order *models.Order) (*OrderResult, error)
}

// OrderResult represents the result of an order placement.
type OrderResult struct {
	OrderID string
	Status  string
	Message string
}

// SubmitResult reports the per-order outcome of a plan submission.
type SubmitResult struct {
	Order         models.Order
	Accepted      bool
	BrokerOrderID string
	Err           error
}
