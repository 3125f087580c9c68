// Package mock provides in-memory test doubles for the exchange and price
// feed interfaces.
package mock

import (
	"context"
	"fmt"
	"sync"

	"trade_engine/internal/core"
	apperrors "trade_engine/pkg/errors"

	"github.com/shopspring/decimal"
)

// Exchange implements core.ExchangeClient with configurable behavior.
type Exchange struct {
	name string

	mu             sync.RWMutex
	orders         map[string]*core.ExchangeOrder
	orderRequests  []*core.OrderRequest
	orderIDCounter int64
	balances       map[string]core.BalanceInfo

	// NativeStatus stamped on created orders; defaults to "filled".
	CreateStatus string
	// FillRatio of the requested amount reported as filled on create.
	// Defaults to 1 (full fill).
	FillRatio decimal.Decimal

	CreateErr  error
	CancelErr  error
	BalanceErr error
	// BalanceFailures makes FetchBalance fail that many times before
	// succeeding. Used to exercise retry paths.
	BalanceFailures int
	balanceCalls    int
}

// NewExchange returns a mock exchange that fully fills every order.
func NewExchange(name string) *Exchange {
	return &Exchange{
		name:           name,
		orders:         make(map[string]*core.ExchangeOrder),
		orderIDCounter: 1000,
		balances:       make(map[string]core.BalanceInfo),
		CreateStatus:   "filled",
		FillRatio:      decimal.NewFromInt(1),
	}
}

func (m *Exchange) GetName() string { return m.name }

// SetBalance seeds the exchange-side balance for a currency.
func (m *Exchange) SetBalance(currency string, available, inOrders decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[currency] = core.BalanceInfo{
		Available: available,
		InOrders:  inOrders,
		Total:     available.Add(inOrders),
	}
}

func (m *Exchange) CreateOrder(ctx context.Context, req *core.OrderRequest) (*core.ExchangeOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.orderRequests = append(m.orderRequests, req)
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}

	m.orderIDCounter++
	filled := req.Amount.Mul(m.FillRatio)
	order := &core.ExchangeOrder{
		ID:           fmt.Sprintf("mock-%d", m.orderIDCounter),
		NativeStatus: m.CreateStatus,
		Price:        req.Price,
		Average:      req.Price,
		Filled:       filled,
		Remaining:    req.Amount.Sub(filled),
		Cost:         filled.Mul(req.Price),
	}
	m.orders[order.ID] = order
	return order, nil
}

func (m *Exchange) CancelOrder(ctx context.Context, exchangeOrderID, symbol string) (*core.ExchangeOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CancelErr != nil {
		return nil, m.CancelErr
	}
	order, ok := m.orders[exchangeOrderID]
	if !ok {
		return nil, apperrors.ErrOrderNotFound
	}
	canceled := *order
	canceled.NativeStatus = "canceled"
	m.orders[exchangeOrderID] = &canceled
	return &canceled, nil
}

func (m *Exchange) FetchBalance(ctx context.Context, currency string) (map[string]core.BalanceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.balanceCalls++
	if m.BalanceErr != nil {
		return nil, m.BalanceErr
	}
	if m.balanceCalls <= m.BalanceFailures {
		return nil, apperrors.ErrNetwork
	}

	out := make(map[string]core.BalanceInfo, len(m.balances))
	if currency != "" {
		if b, ok := m.balances[currency]; ok {
			out[currency] = b
		}
		return out, nil
	}
	for c, b := range m.balances {
		out[c] = b
	}
	return out, nil
}

// OrderRequests returns every order request received, oldest first.
func (m *Exchange) OrderRequests() []*core.OrderRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*core.OrderRequest, len(m.orderRequests))
	copy(out, m.orderRequests)
	return out
}

// BalanceCalls returns how many times FetchBalance was invoked.
func (m *Exchange) BalanceCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balanceCalls
}
