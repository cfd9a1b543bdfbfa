// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"basket-trader/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Baskets
	SaveBasket(ctx context.Context, basket *models.Basket) error
	GetBasket(ctx context.Context, id string) (*models.Basket, error)
	GetBasketByName(ctx context.Context, name string) (*models.Basket, error)
	ListBaskets(ctx context.Context) ([]models.Basket, error)
	DeleteBasket(ctx context.Context, id string) error

	// Investments & holdings
	SaveInvestment(ctx context.Context, inv *models.Investment) error
	GetInvestment(ctx context.Context, id string) (*models.Investment, error)
	GetInvestmentByBasket(ctx context.Context, basketID string) (*models.Investment, error)
	ListInvestments(ctx context.Context) ([]models.Investment, error)
	DeleteInvestment(ctx context.Context, id string) error

	// SIP schedules
	SaveSIP(ctx context.Context, sip *models.SIPSchedule) error
	GetSIP(ctx context.Context, id string) (*models.SIPSchedule, error)
	ListSIPs(ctx context.Context, status models.SIPStatus) ([]models.SIPSchedule, error)

	// SIP executions (idempotency log)
	RecordSIPExecution(ctx context.Context, exec *models.SIPExecution) error
	HasSIPExecution(ctx context.Context, sipID string, day time.Time) (bool, error)

	// Lifecycle
	Close() error
}
