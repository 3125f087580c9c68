// Package engine runs the polling evaluation loop that drives strategies,
// order execution and position monitoring.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trade_engine/internal/core"
	"trade_engine/internal/trading/monitor"
	"trade_engine/internal/trading/order"
	"trade_engine/pkg/concurrency"
	"trade_engine/pkg/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Config holds the loop timing parameters.
type Config struct {
	PollInterval  time.Duration
	MaxBackoff    time.Duration
	QuoteCurrency string
}

// Engine owns the single evaluation goroutine. One tick fetches a market
// snapshot, evaluates every strategy, executes the resulting orders
// sequentially, and advances the position monitor. A failed tick doubles the
// sleep before the next one, capped at MaxBackoff; a clean tick resets it.
type Engine struct {
	cfg        Config
	feed       core.PriceFeed
	strategies []core.SignalGenerator
	executor   *order.Executor
	monitor    *monitor.PositionMonitor
	fetchPool  *concurrency.WorkerPool
	logger     core.ILogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool

	sleep func(ctx context.Context, d time.Duration) bool
	now   func() time.Time
}

// NewEngine creates the engine. Strategies are evaluated in the given order.
func NewEngine(
	cfg Config,
	feed core.PriceFeed,
	strategies []core.SignalGenerator,
	executor *order.Executor,
	posMonitor *monitor.PositionMonitor,
	fetchPool *concurrency.WorkerPool,
	logger core.ILogger,
) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 80 * time.Second
	}
	return &Engine{
		cfg:        cfg,
		feed:       feed,
		strategies: strategies,
		executor:   executor,
		monitor:    posMonitor,
		fetchPool:  fetchPool,
		logger:     logger.WithField("component", "engine"),
		sleep:      sleepCtx,
		now:        time.Now,
	}
}

// Start launches the evaluation loop.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return fmt.Errorf("engine already running")
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.running = true

	if err := e.monitor.Restore(e.ctx); err != nil {
		e.running = false
		e.cancel()
		return fmt.Errorf("restore positions: %w", err)
	}

	e.wg.Add(1)
	go e.run()
	e.logger.Info("Engine started",
		"poll_interval", e.cfg.PollInterval.String(),
		"max_backoff", e.cfg.MaxBackoff.String(),
		"strategies", len(e.strategies))
	return nil
}

// Stop halts the loop and waits for the in-flight tick to finish.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	e.cancel()
	e.mu.Unlock()

	e.wg.Wait()
	e.logger.Info("Engine stopped")
	return nil
}

func (e *Engine) run() {
	defer e.wg.Done()

	delay := e.cfg.PollInterval
	for {
		if !e.sleep(e.ctx, delay) {
			return
		}

		if err := e.safeTick(e.ctx); err != nil {
			delay = delay * 2
			if delay > e.cfg.MaxBackoff {
				delay = e.cfg.MaxBackoff
			}
			e.logger.Error("Tick failed, backing off",
				"error", err.Error(),
				"next_delay", delay.String())
			if m := telemetry.GetGlobalMetrics(); m.TickErrorsTotal != nil {
				m.TickErrorsTotal.Add(e.ctx, 1)
			}
			continue
		}
		delay = e.cfg.PollInterval
	}
}

// safeTick shields the loop from panics in strategy or exchange code. A panic
// is converted into a tick error so the backoff path handles it.
func (e *Engine) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panicked: %v", r)
		}
	}()
	return e.tick(ctx)
}

func (e *Engine) tick(ctx context.Context) error {
	start := e.now()
	metrics := telemetry.GetGlobalMetrics()
	defer func() {
		if metrics.TickDuration != nil {
			metrics.TickDuration.Record(ctx, float64(e.now().Sub(start).Milliseconds()))
		}
	}()

	snap, err := e.fetchSnapshot(ctx)
	if err != nil {
		return err
	}

	positions := e.monitor.OpenPositions()

	// Exit conditions first: monitor signals are safety-critical and must not
	// be starved by a long buy queue.
	exits := e.monitor.Advance(ctx, e.now(), snap.Prices)
	for i := range exits {
		if execErr := e.execute(ctx, &exits[i], "monitor"); execErr != nil {
			e.logger.Error("Exit order failed", "symbol", exits[i].Symbol, "error", execErr.Error())
		}
	}

	for _, strat := range e.strategies {
		signals, report := strat.GetSignals(ctx, snap, positions)
		if report != nil {
			e.logReport(strat.Name(), report)
		}
		for i := range signals {
			sig := &signals[i]
			// Re-check against live monitor state: the positions snapshot was
			// taken before this tick's exits and earlier executions.
			_, held := e.monitor.Open(sig.Symbol)
			if sig.Action == core.SideBuy && held {
				continue
			}
			if sig.Action == core.SideSell && !held {
				continue
			}
			if execErr := e.execute(ctx, sig, strat.Name()); execErr != nil {
				e.logger.Error("Order execution failed",
					"strategy", strat.Name(),
					"symbol", sig.Symbol,
					"side", string(sig.Action),
					"error", execErr.Error())
				continue
			}
			// refresh so later strategies see the new holding
			positions = e.monitor.OpenPositions()
		}
	}

	if metrics.TicksTotal != nil {
		metrics.TicksTotal.Add(ctx, 1)
	}
	return nil
}

// fetchSnapshot fans prices and metadata out to the worker pool and joins the
// results into one snapshot.
func (e *Engine) fetchSnapshot(ctx context.Context) (*core.Snapshot, error) {
	snap := &core.Snapshot{At: e.now()}
	var priceErr, metaErr error

	group := e.fetchPool.Group()
	group.Submit(func() {
		snap.Prices, priceErr = e.feed.GetCurrentPrices(ctx)
	})
	group.Submit(func() {
		snap.Meta, metaErr = e.feed.GetCoinMetadata(ctx)
	})
	group.Wait()

	if priceErr != nil {
		return nil, fmt.Errorf("fetch prices: %w", priceErr)
	}
	if metaErr != nil {
		return nil, fmt.Errorf("fetch metadata: %w", metaErr)
	}
	if len(snap.Prices) == 0 {
		return nil, fmt.Errorf("empty price snapshot")
	}
	return snap, nil
}

// execute submits one signal as a market order and feeds fills back into the
// monitor.
func (e *Engine) execute(ctx context.Context, sig *core.Signal, source string) error {
	if m := telemetry.GetGlobalMetrics(); m.SignalsTotal != nil {
		m.SignalsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("side", string(sig.Action)),
		))
	}

	o, err := e.executor.Create(ctx, &core.OrderRequest{
		Symbol:        sig.Symbol,
		Type:          core.OrderTypeMarket,
		Side:          sig.Action,
		Amount:        sig.Amount,
		Price:         sig.Price,
		ClientOrderID: uuid.New().String(),
		Reason:        sig.Reason,
	})
	if err != nil {
		return err
	}

	if !o.Filled.IsPositive() {
		return nil
	}
	switch sig.Action {
	case core.SideBuy:
		if _, err := e.monitor.OnBuyFill(ctx, o); err != nil {
			return fmt.Errorf("record buy fill: %w", err)
		}
	case core.SideSell:
		if _, err := e.monitor.OnSellFill(ctx, o); err != nil {
			return fmt.Errorf("record sell fill: %w", err)
		}
	}
	return nil
}

func (e *Engine) logReport(strategyName string, report *core.EvaluationReport) {
	included, skipped := 0, 0
	for _, c := range report.Candidates {
		if c.Included {
			included++
		} else {
			skipped++
		}
	}
	if included == 0 && skipped == 0 {
		return
	}
	e.logger.Debug("Strategy evaluation",
		"strategy", strategyName,
		"included", included,
		"skipped", skipped)
}

// sleepCtx sleeps for d or until the context is done. Returns false when the
// context ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
