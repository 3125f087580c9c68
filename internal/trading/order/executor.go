// Package order provides order lifecycle execution with ledger reconciliation
package order

import (
	"context"
	"fmt"
	"sync"
	"time"
	"trade_engine/internal/core"
	"trade_engine/pkg/telemetry"

	apperrors "trade_engine/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Executor validates, submits, and tracks the lifecycle of individual orders,
// and drives the ledger updates implied by fills.
//
// Exchange write calls are never retried here: a blind retry risks duplicate
// order submission. Failures surface to the caller with the original
// parameters intact for explicit reconciliation.
type Executor struct {
	exchange core.ExchangeClient
	ledger   core.Ledger
	store    core.OrderStore
	logger   core.ILogger

	// Rate limiting for exchange submissions
	rateLimiter *rate.Limiter

	// Per-call timeout on exchange writes
	callTimeout time.Duration

	now func() time.Time

	// Health status (ring buffer of recent error timestamps)
	errorTimestamps []time.Time
	errorIndex      int
	errorCapacity   int
	errorMu         sync.Mutex

	// OTel
	tracer        trace.Tracer
	placedCounter metric.Int64Counter
	filledCounter metric.Int64Counter
	rejectCounter metric.Int64Counter
	latencyHist   metric.Float64Histogram
}

// Config holds executor tuning knobs.
type Config struct {
	RateLimit   float64
	RateBurst   int
	CallTimeout time.Duration
}

// NewExecutor creates a new order executor instance.
func NewExecutor(exchange core.ExchangeClient, ledger core.Ledger, store core.OrderStore, logger core.ILogger, cfg Config) *Executor {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 25
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 30
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}

	tracer := telemetry.GetTracer("order-executor")
	meter := telemetry.GetMeter("order-executor")

	placedCounter, _ := meter.Int64Counter(telemetry.MetricOrdersPlacedTotal,
		metric.WithDescription("Total orders placed"))
	filledCounter, _ := meter.Int64Counter(telemetry.MetricOrdersFilledTotal,
		metric.WithDescription("Total orders filled"))
	rejectCounter, _ := meter.Int64Counter(telemetry.MetricOrdersRejected,
		metric.WithDescription("Total orders rejected"))
	latencyHist, _ := meter.Float64Histogram(telemetry.MetricLatencyExchange,
		metric.WithDescription("Latency of exchange API calls"), metric.WithUnit("ms"))

	return &Executor{
		exchange:        exchange,
		ledger:          ledger,
		store:           store,
		logger:          logger.WithField("component", "order_executor"),
		rateLimiter:     rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		callTimeout:     cfg.CallTimeout,
		now:             time.Now,
		errorCapacity:   1000,
		errorTimestamps: make([]time.Time, 0, 1000),
		tracer:          tracer,
		placedCounter:   placedCounter,
		filledCounter:   filledCounter,
		rejectCounter:   rejectCounter,
		latencyHist:     latencyHist,
	}
}

// Create validates the request, persists the order as pending, submits it to
// the exchange, and realizes the resulting balance deltas in the ledger. The
// post-persist sequence is one logical unit: any failure rolls the persisted
// order back to rejected with the failure reason recorded, and no
// partially-applied ledger mutation is retained.
func (e *Executor) Create(ctx context.Context, req *core.OrderRequest) (*core.Order, error) {
	ctx, span := e.tracer.Start(ctx, "CreateOrder",
		trace.WithAttributes(
			attribute.String("symbol", req.Symbol),
			attribute.String("side", string(req.Side)),
			attribute.String("type", string(req.Type)),
		),
	)
	defer span.End()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	base, quote, err := SplitSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}

	now := e.now()
	o := &core.Order{
		ID:        uuid.NewString(),
		Symbol:    req.Symbol,
		Type:      req.Type,
		Side:      req.Side,
		Amount:    req.Amount,
		Price:     req.Price,
		StopPrice: req.StopPrice,
		Status:    core.OrderStatusPending,
		Remaining: req.Amount,
		Reason:    req.Reason,
		CreatedAt: now,
	}

	if err := e.store.InsertOrder(ctx, o); err != nil {
		return nil, err
	}
	e.appendEvent(ctx, o.ID, "", core.OrderStatusPending, req.Reason)

	if err := e.rateLimiter.Wait(ctx); err != nil {
		e.rollback(ctx, o, core.OrderStatusPending, fmt.Sprintf("rate limit wait failed: %v", err))
		return o, fmt.Errorf("rate limit wait failed: %w", err)
	}

	start := e.now()
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	result, err := e.exchange.CreateOrder(callCtx, req)
	cancel()
	e.latencyHist.Record(ctx, float64(e.now().Sub(start).Milliseconds()),
		metric.WithAttributes(attribute.String("op", "create_order")))

	e.placedCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("symbol", req.Symbol),
		attribute.String("side", string(req.Side)),
	))

	if err != nil {
		e.recordError()
		span.RecordError(err)
		e.rollback(ctx, o, core.OrderStatusPending, err.Error())
		return o, &apperrors.ExchangeError{Op: "create order", Err: err}
	}

	prev := o.Status
	o.ExchangeOrderID = result.ID
	o.Status = MapStatus(result.NativeStatus)
	o.Filled = result.Filled
	o.Remaining = result.Remaining
	if o.Remaining.IsZero() && o.Filled.LessThan(o.Amount) {
		o.Remaining = o.Amount.Sub(o.Filled)
	}
	o.Cost = fillCost(result)
	o.Fee = result.Fee
	if o.Status.IsTerminal() {
		closed := e.now()
		o.ClosedAt = &closed
	}

	if err := e.store.UpdateOrder(ctx, o); err != nil {
		e.recordError()
		e.rollback(ctx, o, prev, fmt.Sprintf("post-submit persist failed: %v", err))
		return o, err
	}
	e.appendEvent(ctx, o.ID, prev, o.Status, "exchange status: "+result.NativeStatus)

	if o.Status == core.OrderStatusRejected {
		e.rejectCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("symbol", req.Symbol)))
		return o, &apperrors.ExchangeError{Op: "create order", Err: apperrors.ErrOrderRejected}
	}

	if o.Filled.IsPositive() {
		fill := fillDelta(o, base, quote, o.Filled, o.Cost)
		if err := e.ledger.ApplyFill(ctx, fill); err != nil {
			e.recordError()
			e.rollback(ctx, o, o.Status, fmt.Sprintf("ledger update failed: %v", err))
			return o, err
		}
		e.filledCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("symbol", req.Symbol),
			attribute.String("side", string(req.Side)),
		))
	}

	e.logger.Info("Order executed",
		"order_id", o.ID,
		"symbol", o.Symbol,
		"side", o.Side,
		"status", o.Status,
		"filled", o.Filled.String(),
		"cost", o.Cost.String())
	return o, nil
}

// Cancel cancels an open order and reconciles the ledger for any partial fill
// recorded before cancellation.
func (e *Executor) Cancel(ctx context.Context, id string) (*core.Order, error) {
	o, err := e.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status != core.OrderStatusOpen {
		return o, &apperrors.ValidationError{
			Field:   "status",
			Value:   o.Status,
			Message: "only open orders can be canceled",
		}
	}

	base, quote, err := SplitSymbol(o.Symbol)
	if err != nil {
		return o, err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	result, err := e.exchange.CancelOrder(callCtx, o.ExchangeOrderID, o.Symbol)
	cancel()
	if err != nil {
		e.recordError()
		return o, &apperrors.ExchangeError{Op: "cancel order", Err: err}
	}

	// Reconcile any fill that happened between submission and cancellation.
	if result != nil && result.Filled.GreaterThan(o.Filled) {
		newlyFilled := result.Filled.Sub(o.Filled)
		newCost := fillCost(result).Sub(o.Cost)
		if err := e.ledger.ApplyFill(ctx, fillDelta(o, base, quote, newlyFilled, newCost)); err != nil {
			return o, err
		}
		o.Filled = result.Filled
		o.Cost = fillCost(result)
		o.Remaining = o.Amount.Sub(o.Filled)
	}

	prev := o.Status
	o.Status = core.OrderStatusCanceled
	closed := e.now()
	o.ClosedAt = &closed
	if err := e.store.UpdateOrder(ctx, o); err != nil {
		return o, err
	}
	e.appendEvent(ctx, o.ID, prev, o.Status, "canceled by request")

	e.logger.Info("Order canceled", "order_id", o.ID, "filled", o.Filled.String())
	return o, nil
}

// CheckHealth returns an error if the executor has seen an abnormal error
// rate recently.
func (e *Executor) CheckHealth() error {
	errCount := e.getRecentErrorCount(5 * time.Minute)
	if errCount > 50 {
		return fmt.Errorf("high error rate: %d errors in last 5 minutes", errCount)
	}
	return nil
}

// validateRequest fails fast, before any external call.
func validateRequest(req *core.OrderRequest) error {
	if req.Symbol == "" {
		return &apperrors.ValidationError{Field: "symbol", Message: "symbol is required"}
	}
	if !req.Amount.IsPositive() {
		return &apperrors.ValidationError{Field: "amount", Value: req.Amount.String(), Message: "amount must be positive"}
	}
	if req.Type.RequiresPrice() && !req.Price.IsPositive() {
		return &apperrors.ValidationError{Field: "price", Value: req.Price.String(), Message: "price must be positive for limit-family orders"}
	}
	if req.Type.RequiresStopPrice() && !req.StopPrice.IsPositive() {
		return &apperrors.ValidationError{Field: "stopPrice", Value: req.StopPrice.String(), Message: "stop price must be positive for stop-family orders"}
	}
	return nil
}

// fillDelta computes the ledger mutation for a fill: buy decreases quote by
// cost and increases base by filled; sell is the inverse.
func fillDelta(o *core.Order, base, quote string, filled, cost decimal.Decimal) *core.FillDelta {
	fd := &core.FillDelta{
		OrderID:       o.ID,
		BaseCurrency:  base,
		QuoteCurrency: quote,
	}
	if o.Side == core.SideBuy {
		fd.BaseDelta = filled
		fd.QuoteDelta = cost.Neg()
	} else {
		fd.BaseDelta = filled.Neg()
		fd.QuoteDelta = cost
	}
	return fd
}

// fillCost derives the quote-currency cost of the filled part, falling back
// to filled*average (then filled*price) when the exchange omits it.
func fillCost(result *core.ExchangeOrder) decimal.Decimal {
	if result.Cost.IsPositive() {
		return result.Cost
	}
	if result.Average.IsPositive() {
		return result.Filled.Mul(result.Average)
	}
	return result.Filled.Mul(result.Price)
}

// rollback forces a persisted order to rejected with the failure reason
// recorded. Rollback failures are logged but do not mask the original error.
func (e *Executor) rollback(ctx context.Context, o *core.Order, from core.OrderStatus, reason string) {
	o.Status = core.OrderStatusRejected
	o.Reason = reason
	closed := e.now()
	o.ClosedAt = &closed

	if err := e.store.UpdateOrder(ctx, o); err != nil {
		e.logger.Error("Order rollback persist failed",
			"order_id", o.ID, "reason", reason, "error", err.Error())
		return
	}
	e.appendEvent(ctx, o.ID, from, core.OrderStatusRejected, reason)
	e.rejectCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("symbol", o.Symbol)))
	e.logger.Warn("Order rolled back to rejected", "order_id", o.ID, "reason", reason)
}

func (e *Executor) appendEvent(ctx context.Context, orderID string, from, to core.OrderStatus, note string) {
	err := e.store.AppendOrderEvent(ctx, &core.OrderEvent{
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
		Note:       note,
		CreatedAt:  e.now(),
	})
	if err != nil {
		e.logger.Error("Order event append failed", "order_id", orderID, "error", err.Error())
	}
}

// recordError adds an error timestamp to track recent errors (ring buffer)
func (e *Executor) recordError() {
	e.errorMu.Lock()
	defer e.errorMu.Unlock()

	if e.errorCapacity == 0 {
		e.errorCapacity = 1000
	}

	if len(e.errorTimestamps) < e.errorCapacity {
		e.errorTimestamps = append(e.errorTimestamps, e.now())
	} else {
		e.errorTimestamps[e.errorIndex] = e.now()
		e.errorIndex = (e.errorIndex + 1) % e.errorCapacity
	}
}

// getRecentErrorCount returns number of errors within duration
func (e *Executor) getRecentErrorCount(duration time.Duration) int {
	e.errorMu.Lock()
	defer e.errorMu.Unlock()

	cutoff := e.now().Add(-duration)
	count := 0
	for _, t := range e.errorTimestamps {
		if t.After(cutoff) {
			count++
		}
	}
	return count
}
