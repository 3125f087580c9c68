package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricPnLRealizedTotal  = "trade_engine_pnl_realized_total"
	MetricPnLUnrealized     = "trade_engine_pnl_unrealized"
	MetricPositionsOpen     = "trade_engine_positions_open"
	MetricOrdersPlacedTotal = "trade_engine_orders_placed_total"
	MetricOrdersFilledTotal = "trade_engine_orders_filled_total"
	MetricOrdersRejected    = "trade_engine_orders_rejected_total"
	MetricSignalsTotal      = "trade_engine_signals_total"
	MetricTicksTotal        = "trade_engine_ticks_total"
	MetricTickErrorsTotal   = "trade_engine_tick_errors_total"
	MetricLedgerTxnsTotal   = "trade_engine_ledger_transactions_total"
	MetricTickDuration      = "trade_engine_tick_duration_ms"
	MetricLatencyExchange   = "trade_engine_latency_exchange_ms"
)

// MetricsHolder holds initialized instruments
type MetricsHolder struct {
	PnLRealizedTotal  metric.Float64Counter
	PnLUnrealized     metric.Float64ObservableGauge
	PositionsOpen     metric.Int64ObservableGauge
	OrdersPlacedTotal metric.Int64Counter
	OrdersFilledTotal metric.Int64Counter
	OrdersRejected    metric.Int64Counter
	SignalsTotal      metric.Int64Counter
	TicksTotal        metric.Int64Counter
	TickErrorsTotal   metric.Int64Counter
	LedgerTxnsTotal   metric.Int64Counter
	TickDuration      metric.Float64Histogram
	LatencyExchange   metric.Float64Histogram

	// State for observable gauges
	mu               sync.RWMutex
	unrealizedPnLMap map[string]float64
	openPositionsMap map[string]int64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			unrealizedPnLMap: make(map[string]float64),
			openPositionsMap: make(map[string]int64),
		}
		// Initialization of instruments happens in InitMetrics
	})
	return globalMetrics
}

// InitMetrics creates every instrument on the given meter. The first creation
// failure wins; callers treat any error as fatal at startup.
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var firstErr error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return c
	}
	histogram := func(name, desc string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("ms"))
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return h
	}

	realized, err := meter.Float64Counter(MetricPnLRealizedTotal,
		metric.WithDescription("Cumulative realized profit/loss"))
	if err != nil {
		return err
	}
	m.PnLRealizedTotal = realized

	m.OrdersPlacedTotal = counter(MetricOrdersPlacedTotal, "Total orders placed")
	m.OrdersFilledTotal = counter(MetricOrdersFilledTotal, "Total orders filled")
	m.OrdersRejected = counter(MetricOrdersRejected, "Total orders rejected")
	m.SignalsTotal = counter(MetricSignalsTotal, "Total signals emitted by strategies and the position monitor")
	m.TicksTotal = counter(MetricTicksTotal, "Total evaluation ticks processed")
	m.TickErrorsTotal = counter(MetricTickErrorsTotal, "Total ticks that failed and triggered backoff")
	m.LedgerTxnsTotal = counter(MetricLedgerTxnsTotal, "Total wallet transactions appended")
	m.TickDuration = histogram(MetricTickDuration, "Duration of one evaluation tick")
	m.LatencyExchange = histogram(MetricLatencyExchange, "Latency of exchange API calls")

	m.PnLUnrealized, err = meter.Float64ObservableGauge(MetricPnLUnrealized,
		metric.WithDescription("Current unrealized PnL"),
		metric.WithFloat64Callback(func(_ context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for sym, val := range m.unrealizedPnLMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("symbol", sym)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.PositionsOpen, err = meter.Int64ObservableGauge(MetricPositionsOpen,
		metric.WithDescription("Number of currently open positions"),
		metric.WithInt64Callback(func(_ context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for sym, val := range m.openPositionsMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("symbol", sym)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	return firstErr
}

// SetUnrealizedPnL records the current unrealized PnL for a symbol
func (m *MetricsHolder) SetUnrealizedPnL(symbol string, pnl float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unrealizedPnLMap[symbol] = pnl
}

// SetPositionOpen records whether a position is currently held for a symbol
func (m *MetricsHolder) SetPositionOpen(symbol string, open bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if open {
		m.openPositionsMap[symbol] = 1
	} else {
		m.openPositionsMap[symbol] = 0
	}
}
