// Package paper implements a simulated exchange that fills orders at the
// current feed price against an in-memory account.
package paper

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"trade_engine/internal/config"
	"trade_engine/internal/core"
	"trade_engine/internal/trading/order"
	apperrors "trade_engine/pkg/errors"
	"trade_engine/pkg/tradingutils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultQuoteFunding = 10000

// PaperExchange simulates order execution. Market orders fill immediately and
// in full at the feed price; balances are debited and credited locally so
// insufficient-funds behavior matches a real venue.
type PaperExchange struct {
	cfg    *config.ExchangeConfig
	feed   core.PriceFeed
	logger core.ILogger

	mu       sync.Mutex
	balances map[string]decimal.Decimal
	orders   map[string]*core.ExchangeOrder
	symbols  map[string]string // order id -> symbol
}

// NewPaperExchange creates a paper exchange funded with the default quote
// balance in USDT.
func NewPaperExchange(cfg *config.ExchangeConfig, feed core.PriceFeed, logger core.ILogger) *PaperExchange {
	return &PaperExchange{
		cfg:    cfg,
		feed:   feed,
		logger: logger.WithField("component", "paper_exchange"),
		balances: map[string]decimal.Decimal{
			"USDT": decimal.NewFromInt(defaultQuoteFunding),
		},
		orders:  make(map[string]*core.ExchangeOrder),
		symbols: make(map[string]string),
	}
}

func (p *PaperExchange) GetName() string { return "paper" }

// Fund sets the available balance for a currency.
func (p *PaperExchange) Fund(currency string, amount decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances[strings.ToUpper(currency)] = amount
}

func (p *PaperExchange) CreateOrder(ctx context.Context, req *core.OrderRequest) (*core.ExchangeOrder, error) {
	price := req.Price
	if !price.IsPositive() {
		prices, err := p.feed.GetCurrentPrices(ctx)
		if err != nil {
			return nil, &apperrors.ExchangeError{Op: "create_order", Err: err}
		}
		var ok bool
		price, ok = prices[req.Symbol]
		if !ok || !price.IsPositive() {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrNoPrice, req.Symbol)
		}
	}

	base, quote, err := order.SplitSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}

	amount := tradingutils.RoundAmount(req.Amount)
	cost := amount.Mul(price)
	fee := cost.Mul(decimal.NewFromFloat(p.cfg.FeeRate))

	p.mu.Lock()
	defer p.mu.Unlock()

	switch req.Side {
	case core.SideBuy:
		needed := cost.Add(fee)
		if p.balances[quote].LessThan(needed) {
			return nil, fmt.Errorf("%w: need %s %s, have %s",
				apperrors.ErrInsufficientFunds, needed.String(), quote, p.balances[quote].String())
		}
		p.balances[quote] = p.balances[quote].Sub(needed)
		p.balances[base] = p.balances[base].Add(amount)
	case core.SideSell:
		if p.balances[base].LessThan(amount) {
			return nil, fmt.Errorf("%w: need %s %s, have %s",
				apperrors.ErrInsufficientFunds, amount.String(), base, p.balances[base].String())
		}
		p.balances[base] = p.balances[base].Sub(amount)
		p.balances[quote] = p.balances[quote].Add(cost.Sub(fee))
	default:
		return nil, &apperrors.ValidationError{Field: "side", Value: string(req.Side), Message: "must be buy or sell"}
	}

	order := &core.ExchangeOrder{
		ID:           uuid.New().String(),
		NativeStatus: "filled",
		Price:        price,
		Average:      price,
		Filled:       amount,
		Remaining:    decimal.Zero,
		Cost:         cost,
		Fee:          fee,
	}
	p.orders[order.ID] = order
	p.symbols[order.ID] = req.Symbol

	p.logger.Debug("Paper order filled",
		"symbol", req.Symbol,
		"side", string(req.Side),
		"amount", amount.String(),
		"price", price.String())
	return order, nil
}

// CancelOrder always reports the order in its terminal state since paper
// fills are immediate.
func (p *PaperExchange) CancelOrder(ctx context.Context, exchangeOrderID, symbol string) (*core.ExchangeOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	order, ok := p.orders[exchangeOrderID]
	if !ok {
		return nil, apperrors.ErrOrderNotFound
	}
	return order, nil
}

func (p *PaperExchange) FetchBalance(ctx context.Context, currency string) (map[string]core.BalanceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]core.BalanceInfo)
	if currency != "" {
		c := strings.ToUpper(currency)
		if b, ok := p.balances[c]; ok {
			out[c] = core.BalanceInfo{Available: b, Total: b}
		}
		return out, nil
	}
	for c, b := range p.balances {
		out[c] = core.BalanceInfo{Available: b, Total: b}
	}
	return out, nil
}
