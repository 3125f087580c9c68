// Package core defines the shared types and interfaces for the trading engine
package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a signal or order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType identifies the order family sent to the exchange.
type OrderType string

const (
	OrderTypeMarket          OrderType = "market"
	OrderTypeLimit           OrderType = "limit"
	OrderTypeStopLoss        OrderType = "stop_loss"
	OrderTypeStopLossLimit   OrderType = "stop_loss_limit"
	OrderTypeTakeProfit      OrderType = "take_profit"
	OrderTypeTakeProfitLimit OrderType = "take_profit_limit"
)

// RequiresPrice reports whether the order family needs a limit price.
func (t OrderType) RequiresPrice() bool {
	switch t {
	case OrderTypeLimit, OrderTypeStopLossLimit, OrderTypeTakeProfitLimit:
		return true
	}
	return false
}

// RequiresStopPrice reports whether the order family needs a trigger price.
func (t OrderType) RequiresStopPrice() bool {
	switch t {
	case OrderTypeStopLoss, OrderTypeStopLossLimit, OrderTypeTakeProfit, OrderTypeTakeProfitLimit:
		return true
	}
	return false
}

// OrderStatus is the engine's canonical status vocabulary, independent of any
// exchange's native terms.
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusClosed   OrderStatus = "closed"
	OrderStatusCanceled OrderStatus = "canceled"
	OrderStatusExpired  OrderStatus = "expired"
	OrderStatusRejected OrderStatus = "rejected"
)

// IsTerminal reports whether no further transitions are allowed.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusClosed, OrderStatusCanceled, OrderStatusExpired, OrderStatusRejected:
		return true
	}
	return false
}

// Signal is a proposed buy or sell action produced by a strategy for one tick.
// Signals are transient: produced per evaluation cycle and consumed immediately
// by the order executor.
type Signal struct {
	Symbol string
	Action Side
	Amount decimal.Decimal
	Price  decimal.Decimal
	Reason string
}

// Order is the locally persisted record of a single order's lifecycle.
// Created with status pending on submission, mutated only by the order
// executor on exchange responses, terminal once closed/canceled/expired/rejected.
type Order struct {
	ID              string
	ExchangeOrderID string
	Symbol          string
	Type            OrderType
	Side            Side
	Amount          decimal.Decimal
	Price           decimal.Decimal
	StopPrice       decimal.Decimal
	Status          OrderStatus
	Filled          decimal.Decimal
	Remaining       decimal.Decimal
	Cost            decimal.Decimal
	Fee             decimal.Decimal
	Reason          string
	CreatedAt       time.Time
	ClosedAt        *time.Time
}

// OrderEvent is one row of the append-only order-event log, written on every
// status transition.
type OrderEvent struct {
	OrderID    string
	FromStatus OrderStatus
	ToStatus   OrderStatus
	Note       string
	CreatedAt  time.Time
}

// WalletBalance is a per-currency balance row. Invariant:
// Total == Available + InOrders after any update.
type WalletBalance struct {
	ExchangeID  string
	Currency    string
	Available   decimal.Decimal
	InOrders    decimal.Decimal
	Total       decimal.Decimal
	LastUpdated time.Time
}

// TransactionType classifies a wallet transaction by the sign of its amount.
type TransactionType string

const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
)

// WalletTransaction is an append-only audit record. Invariant:
// BalanceAfter - BalanceBefore == signed Amount.
type WalletTransaction struct {
	ExchangeID    string
	Currency      string
	Type          TransactionType
	Amount        decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	CreatedAt     time.Time
}

// Position is an open holding in a symbol, tracked from buy fill to sell fill.
// HighestPrice is monotonically non-decreasing for the lifetime of the
// position. At most one open position per symbol exists at any time.
type Position struct {
	Symbol        string
	BuyPrice      decimal.Decimal
	Amount        decimal.Decimal
	BuyTime       time.Time
	HighestPrice  decimal.Decimal
	PeakDropStart *time.Time
	OrderID       string
}

// PnLPct returns the profit percentage of the position at the given price.
func (p *Position) PnLPct(currentPrice decimal.Decimal) decimal.Decimal {
	if p.BuyPrice.IsZero() {
		return decimal.Zero
	}
	return currentPrice.Sub(p.BuyPrice).Div(p.BuyPrice).Mul(decimal.NewFromInt(100))
}

// CoinMeta is the per-symbol metadata slice of a market snapshot.
type CoinMeta struct {
	AgeHours        float64
	MarketCap       float64
	Volume24h       float64
	VolumeChange24h float64
	IsTrending      bool
}

// Snapshot is one tick's view of the market: current prices plus coin
// metadata for every tracked symbol.
type Snapshot struct {
	Prices map[string]decimal.Decimal
	Meta   map[string]CoinMeta
	At     time.Time
}

// Price returns the snapshot price for a symbol, or zero if unknown.
func (s *Snapshot) Price(symbol string) decimal.Decimal {
	if s == nil || s.Prices == nil {
		return decimal.Zero
	}
	return s.Prices[symbol]
}

// CandidateResult records why a single candidate symbol was included in or
// excluded from a strategy's buy set for one evaluation cycle.
type CandidateResult struct {
	Symbol   string
	Included bool
	Reason   string
}

// EvaluationReport is the structured per-cycle report a strategy produces
// instead of relying on caught errors for skip-and-continue control flow.
type EvaluationReport struct {
	Strategy   string
	At         time.Time
	Candidates []CandidateResult
}

// Include appends an included candidate to the report.
func (r *EvaluationReport) Include(symbol, reason string) {
	r.Candidates = append(r.Candidates, CandidateResult{Symbol: symbol, Included: true, Reason: reason})
}

// Skip appends a skipped candidate to the report.
func (r *EvaluationReport) Skip(symbol, reason string) {
	r.Candidates = append(r.Candidates, CandidateResult{Symbol: symbol, Included: false, Reason: reason})
}

// ExchangeOrder is the exchange's view of an order as returned by create or
// cancel calls, still carrying the exchange's native status string.
type ExchangeOrder struct {
	ID           string
	NativeStatus string
	Price        decimal.Decimal
	Average      decimal.Decimal
	Filled       decimal.Decimal
	Remaining    decimal.Decimal
	Cost         decimal.Decimal
	Fee          decimal.Decimal
}

// BalanceInfo is the exchange-reported balance for one currency.
type BalanceInfo struct {
	Available decimal.Decimal
	InOrders  decimal.Decimal
	Total     decimal.Decimal
}

// OrderRequest carries the parameters of a single order submission.
type OrderRequest struct {
	Symbol        string
	Type          OrderType
	Side          Side
	Amount        decimal.Decimal
	Price         decimal.Decimal
	StopPrice     decimal.Decimal
	ClientOrderID string
	Reason        string
}
