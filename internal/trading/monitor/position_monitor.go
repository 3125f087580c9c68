// Package monitor tracks open positions and computes trailing exit conditions
package monitor

import (
	"context"
	"sync"
	"time"
	"trade_engine/internal/core"
	"trade_engine/pkg/ring"
	"trade_engine/pkg/telemetry"
	"trade_engine/pkg/tradingutils"

	"github.com/shopspring/decimal"
)

// Config holds the monitor thresholds.
type Config struct {
	// PeakDropWait is how long the price must stay below the observed peak
	// before the trailing exit fires.
	PeakDropWait time.Duration
	// StopLossPct is the safety override threshold, evaluated every tick
	// regardless of the trailing-exit timer.
	StopLossPct decimal.Decimal
	// HistorySize is the per-symbol price history capacity. Oldest samples
	// are evicted once full.
	HistorySize int
}

// PositionMonitor is the per-symbol state machine NoPosition -> Holding ->
// Closed. Position state is mutated only by the engine loop goroutine; the
// mutex guards the occasional cross-goroutine read (metrics, status).
type PositionMonitor struct {
	cfg    Config
	store  core.PositionStore
	logger core.ILogger

	mu        sync.RWMutex
	positions map[string]*core.Position
	history   map[string]*ring.Buffer[decimal.Decimal]
	realized  decimal.Decimal

	now func() time.Time
}

// NewPositionMonitor creates a position monitor.
func NewPositionMonitor(cfg Config, store core.PositionStore, logger core.ILogger) *PositionMonitor {
	if cfg.PeakDropWait <= 0 {
		cfg.PeakDropWait = 30 * time.Second
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 288
	}
	return &PositionMonitor{
		cfg:       cfg,
		store:     store,
		logger:    logger.WithField("component", "position_monitor"),
		positions: make(map[string]*core.Position),
		history:   make(map[string]*ring.Buffer[decimal.Decimal]),
		now:       time.Now,
	}
}

// Restore loads persisted positions after a restart.
func (m *PositionMonitor) Restore(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	positions, err := m.store.ListPositions(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range positions {
		m.positions[p.Symbol] = p
		telemetry.GetGlobalMetrics().SetPositionOpen(p.Symbol, true)
		m.logger.Info("Restored open position",
			"symbol", p.Symbol,
			"buy_price", p.BuyPrice.String(),
			"highest_price", p.HighestPrice.String())
	}
	return nil
}

// OnBuyFill transitions NoPosition -> Holding for the order's symbol.
func (m *PositionMonitor) OnBuyFill(ctx context.Context, o *core.Order) (*core.Position, error) {
	buyPrice := o.Price
	if o.Filled.IsPositive() && o.Cost.IsPositive() {
		buyPrice = o.Cost.Div(o.Filled)
	}

	p := &core.Position{
		Symbol:       o.Symbol,
		BuyPrice:     buyPrice,
		Amount:       o.Filled,
		BuyTime:      m.now(),
		HighestPrice: buyPrice,
		OrderID:      o.ID,
	}

	m.mu.Lock()
	m.positions[o.Symbol] = p
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.SavePosition(ctx, p); err != nil {
			return p, err
		}
	}

	telemetry.GetGlobalMetrics().SetPositionOpen(o.Symbol, true)
	m.logger.Info("Position opened",
		"symbol", o.Symbol,
		"buy_price", p.BuyPrice.String(),
		"amount", p.Amount.String())
	return p, nil
}

// OnSellFill settles the exit order for a symbol: records realized profit and
// destroys the position, returning the symbol to NoPosition.
func (m *PositionMonitor) OnSellFill(ctx context.Context, o *core.Order) (decimal.Decimal, error) {
	m.mu.Lock()
	p, ok := m.positions[o.Symbol]
	if !ok {
		m.mu.Unlock()
		return decimal.Zero, nil
	}
	delete(m.positions, o.Symbol)
	delete(m.history, o.Symbol)

	sellPrice := o.Price
	if o.Filled.IsPositive() && o.Cost.IsPositive() {
		sellPrice = o.Cost.Div(o.Filled)
	}
	profit := tradingutils.RealizedProfit(p.BuyPrice, sellPrice, p.Amount)
	m.realized = m.realized.Add(profit)
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.DeletePosition(ctx, o.Symbol); err != nil {
			return profit, err
		}
	}

	metrics := telemetry.GetGlobalMetrics()
	metrics.SetPositionOpen(o.Symbol, false)
	metrics.SetUnrealizedPnL(o.Symbol, 0)
	if metrics.PnLRealizedTotal != nil {
		pnl, _ := profit.Float64()
		metrics.PnLRealizedTotal.Add(ctx, pnl)
	}

	m.logger.Info("Position closed",
		"symbol", o.Symbol,
		"sell_price", sellPrice.String(),
		"profit", profit.String())
	return profit, nil
}

// Advance runs one tick of the state machine for every held symbol and
// returns the exit signals to execute this tick. Only the engine loop
// goroutine may call Advance.
func (m *PositionMonitor) Advance(ctx context.Context, now time.Time, prices map[string]decimal.Decimal) []core.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()

	var exits []core.Signal
	for symbol, p := range m.positions {
		price, ok := prices[symbol]
		if !ok || !price.IsPositive() {
			continue
		}
		m.recordPrice(symbol, price)

		if sig, fired := m.evaluate(p, price, now); fired {
			exits = append(exits, sig)
			continue
		}

		if m.store != nil {
			if err := m.store.SavePosition(ctx, p); err != nil {
				m.logger.Error("Position snapshot persist failed", "symbol", symbol, "error", err.Error())
			}
		}
	}
	return exits
}

// evaluate runs the per-tick transition rules for one holding. The stop-loss
// safety override is checked first: when it and the trailing exit could both
// fire on the same tick, stop loss wins.
func (m *PositionMonitor) evaluate(p *core.Position, price decimal.Decimal, now time.Time) (core.Signal, bool) {
	pnlPct := tradingutils.PnLPct(p.BuyPrice, price)
	pnl, _ := pnlPct.Float64()
	telemetry.GetGlobalMetrics().SetUnrealizedPnL(p.Symbol, pnl)

	if m.cfg.StopLossPct.IsPositive() && pnlPct.LessThanOrEqual(m.cfg.StopLossPct.Neg()) {
		m.logger.Warn("Stop loss breached",
			"symbol", p.Symbol,
			"pnl_pct", pnlPct.StringFixed(2))
		return core.Signal{
			Symbol: p.Symbol,
			Action: core.SideSell,
			Amount: p.Amount,
			Price:  price,
			Reason: "stop loss",
		}, true
	}

	// A return to the peak clears the drop timer, not only a new high.
	if price.GreaterThanOrEqual(p.HighestPrice) {
		if price.GreaterThan(p.HighestPrice) {
			p.HighestPrice = price
		}
		p.PeakDropStart = nil
		return core.Signal{}, false
	}

	dropFromHigh := tradingutils.DropFromHighPct(p.HighestPrice, price)
	if dropFromHigh.IsPositive() && p.PeakDropStart == nil {
		t := now
		p.PeakDropStart = &t
	}

	if p.PeakDropStart != nil && now.Sub(*p.PeakDropStart) >= m.cfg.PeakDropWait {
		m.logger.Info("Trailing exit triggered",
			"symbol", p.Symbol,
			"highest_price", p.HighestPrice.String(),
			"drop_pct", dropFromHigh.StringFixed(2),
			"held_below_peak", now.Sub(*p.PeakDropStart).String())
		return core.Signal{
			Symbol: p.Symbol,
			Action: core.SideSell,
			Amount: p.Amount,
			Price:  price,
			Reason: "trailing exit after sustained drop from peak",
		}, true
	}

	return core.Signal{}, false
}

func (m *PositionMonitor) recordPrice(symbol string, price decimal.Decimal) {
	buf, ok := m.history[symbol]
	if !ok {
		buf = ring.New[decimal.Decimal](m.cfg.HistorySize)
		m.history[symbol] = buf
	}
	buf.Push(price)
}

// Open returns the open position for a symbol, if any.
func (m *PositionMonitor) Open(symbol string) (*core.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[symbol]
	return p, ok
}

// OpenPositions returns a copy of the open position set keyed by symbol.
func (m *PositionMonitor) OpenPositions() map[string]*core.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*core.Position, len(m.positions))
	for symbol, p := range m.positions {
		cp := *p
		out[symbol] = &cp
	}
	return out
}

// RealizedPnL returns the cumulative realized profit since start.
func (m *PositionMonitor) RealizedPnL() decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.realized
}

// PriceHistory returns the recorded prices for a symbol, oldest first.
func (m *PositionMonitor) PriceHistory(symbol string) []decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	buf, ok := m.history[symbol]
	if !ok {
		return nil
	}
	return buf.Values()
}
