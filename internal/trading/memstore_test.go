package trading

import (
	"context"
	"sync"
	"time"

	"basket-trader/internal/engine"
	errs "basket-trader/internal/errors"
	"basket-trader/internal/models"
)

// memStore is an in-memory DataStore for exercising the trading
// workflows without SQLite.
type memStore struct {
	mu          sync.Mutex
	baskets     map[string]models.Basket
	investments map[string]models.Investment
	sips        map[string]models.SIPSchedule
	executions  map[string]bool // sipID + "|" + date
}

func newMemStore() *memStore {
	return &memStore{
		baskets:     make(map[string]models.Basket),
		investments: make(map[string]models.Investment),
		sips:        make(map[string]models.SIPSchedule),
		executions:  make(map[string]bool),
	}
}

func (m *memStore) SaveBasket(ctx context.Context, basket *models.Basket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baskets[basket.ID] = basket.Clone()
	return nil
}

func (m *memStore) GetBasket(ctx context.Context, id string) (*models.Basket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.baskets[id]
	if !ok {
		return nil, errs.ErrBasketNotFound
	}
	clone := b.Clone()
	return &clone, nil
}

func (m *memStore) GetBasketByName(ctx context.Context, name string) (*models.Basket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.baskets {
		if b.Name == name {
			clone := b.Clone()
			return &clone, nil
		}
	}
	return nil, errs.ErrBasketNotFound
}

func (m *memStore) ListBaskets(ctx context.Context) ([]models.Basket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Basket, 0, len(m.baskets))
	for _, b := range m.baskets {
		out = append(out, b.Clone())
	}
	return out, nil
}

func (m *memStore) DeleteBasket(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.baskets, id)
	return nil
}

func (m *memStore) SaveInvestment(ctx context.Context, inv *models.Investment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *inv
	copied.Holdings = append([]models.Holding(nil), inv.Holdings...)
	m.investments[inv.ID] = copied
	return nil
}

func (m *memStore) GetInvestment(ctx context.Context, id string) (*models.Investment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.investments[id]
	if !ok {
		return nil, errs.ErrInvestmentNotFound
	}
	copied := inv
	copied.Holdings = append([]models.Holding(nil), inv.Holdings...)
	return &copied, nil
}

func (m *memStore) GetInvestmentByBasket(ctx context.Context, basketID string) (*models.Investment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.investments {
		if inv.BasketID == basketID {
			copied := inv
			copied.Holdings = append([]models.Holding(nil), inv.Holdings...)
			return &copied, nil
		}
	}
	return nil, errs.ErrInvestmentNotFound
}

func (m *memStore) ListInvestments(ctx context.Context) ([]models.Investment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Investment, 0, len(m.investments))
	for _, inv := range m.investments {
		out = append(out, inv)
	}
	return out, nil
}

func (m *memStore) DeleteInvestment(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.investments, id)
	return nil
}

func (m *memStore) SaveSIP(ctx context.Context, sip *models.SIPSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sips[sip.ID] = *sip
	return nil
}

func (m *memStore) GetSIP(ctx context.Context, id string) (*models.SIPSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sip, ok := m.sips[id]
	if !ok {
		return nil, errs.ErrSIPNotFound
	}
	copied := sip
	return &copied, nil
}

func (m *memStore) ListSIPs(ctx context.Context, status models.SIPStatus) ([]models.SIPSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.SIPSchedule, 0, len(m.sips))
	for _, sip := range m.sips {
		if status == "" || sip.Status == status {
			out = append(out, sip)
		}
	}
	return out, nil
}

func (m *memStore) RecordSIPExecution(ctx context.Context, exec *models.SIPExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := exec.SIPID + "|" + engine.DateOnly(exec.ExecutionDate).Format("2006-01-02")
	if m.executions[key] {
		return errs.ErrAlreadyExecutedToday
	}
	m.executions[key] = true
	return nil
}

func (m *memStore) HasSIPExecution(ctx context.Context, sipID string, day time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sipID + "|" + engine.DateOnly(day).Format("2006-01-02")
	return m.executions[key], nil
}

func (m *memStore) Close() error { return nil }
