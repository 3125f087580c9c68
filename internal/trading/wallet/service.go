// Package wallet owns per-currency balances and their audit trail, kept
// consistent with exchange-reported state.
package wallet

import (
	"context"
	"sync"
	"time"
	"trade_engine/internal/core"
	"trade_engine/pkg/retry"
	"trade_engine/pkg/telemetry"

	apperrors "trade_engine/pkg/errors"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// StalenessThreshold is how old a cached balance may be before a read
// refreshes it from the exchange.
const StalenessThreshold = 5 * time.Minute

// Service implements core.Ledger on top of the wallet store and the exchange
// balance API.
type Service struct {
	exchange core.ExchangeClient
	store    core.WalletStore
	logger   core.ILogger

	mu    sync.RWMutex
	cache map[string]*core.WalletBalance

	now func() time.Time

	txnCounter metric.Int64Counter
}

// NewService creates a ledger service for one exchange.
func NewService(exchange core.ExchangeClient, store core.WalletStore, logger core.ILogger) *Service {
	meter := telemetry.GetMeter("ledger")
	txnCounter, _ := meter.Int64Counter(telemetry.MetricLedgerTxnsTotal,
		metric.WithDescription("Total wallet transactions appended"))

	return &Service{
		exchange:   exchange,
		store:      store,
		logger:     logger.WithField("component", "ledger"),
		cache:      make(map[string]*core.WalletBalance),
		now:        time.Now,
		txnCounter: txnCounter,
	}
}

// GetBalance returns the balance for one currency. The cached row is served
// unless it is older than the staleness threshold or forceUpdate is set.
func (s *Service) GetBalance(ctx context.Context, currency string, forceUpdate bool) (*core.WalletBalance, error) {
	s.mu.RLock()
	cached, ok := s.cache[currency]
	s.mu.RUnlock()

	if ok && !forceUpdate && s.now().Sub(cached.LastUpdated) < StalenessThreshold {
		return cached, nil
	}

	if !ok && !forceUpdate {
		// Cold cache: try the store before hitting the exchange.
		stored, err := s.store.GetWallet(ctx, s.exchange.GetName(), currency)
		if err != nil {
			return nil, err
		}
		if stored != nil && s.now().Sub(stored.LastUpdated) < StalenessThreshold {
			s.mu.Lock()
			s.cache[currency] = stored
			s.mu.Unlock()
			return stored, nil
		}
	}

	if err := s.refresh(ctx, currency); err != nil {
		// Serve the stale row rather than nothing when the exchange is down.
		if ok {
			s.logger.Warn("Balance refresh failed, serving stale balance",
				"currency", currency, "error", err.Error())
			return cached, nil
		}
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache[currency], nil
}

// GetAllBalances returns every known balance keyed by currency.
func (s *Service) GetAllBalances(ctx context.Context, forceUpdate bool) (map[string]*core.WalletBalance, error) {
	if forceUpdate {
		if err := s.refresh(ctx, ""); err != nil {
			return nil, err
		}
	} else {
		wallets, err := s.store.ListWallets(ctx, s.exchange.GetName())
		if err != nil {
			return nil, err
		}
		stale := len(wallets) == 0
		for _, w := range wallets {
			if s.now().Sub(w.LastUpdated) >= StalenessThreshold {
				stale = true
				break
			}
		}
		if stale {
			if err := s.refresh(ctx, ""); err != nil {
				return nil, err
			}
		} else {
			s.mu.Lock()
			for _, w := range wallets {
				s.cache[w.Currency] = w
			}
			s.mu.Unlock()
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*core.WalletBalance, len(s.cache))
	for currency, w := range s.cache {
		out[currency] = w
	}
	return out, nil
}

// UpdateBalance upserts one balance row and, when the available or in-orders
// amount changed (or the row is new), appends a wallet transaction capturing
// the delta.
func (s *Service) UpdateBalance(ctx context.Context, currency string, available, inOrders, total decimal.Decimal) (*core.WalletBalance, error) {
	// total == available + inOrders must hold after every update; recompute
	// rather than trust the caller's arithmetic.
	if !total.Equal(available.Add(inOrders)) {
		total = available.Add(inOrders)
	}

	exchangeID := s.exchange.GetName()
	existing, err := s.store.GetWallet(ctx, exchangeID, currency)
	if err != nil {
		return nil, err
	}

	now := s.now()
	w := &core.WalletBalance{
		ExchangeID:  exchangeID,
		Currency:    currency,
		Available:   available,
		InOrders:    inOrders,
		Total:       total,
		LastUpdated: now,
	}

	var txn *core.WalletTransaction
	changed := existing == nil ||
		!existing.Available.Equal(available) ||
		!existing.InOrders.Equal(inOrders)
	if changed {
		before := decimal.Zero
		if existing != nil {
			before = existing.Available
		}
		amount := available.Sub(before)
		txnType := core.TransactionDeposit
		if amount.IsNegative() {
			txnType = core.TransactionWithdrawal
		}
		txn = &core.WalletTransaction{
			ExchangeID:    exchangeID,
			Currency:      currency,
			Type:          txnType,
			Amount:        amount,
			BalanceBefore: before,
			BalanceAfter:  available,
			CreatedAt:     now,
		}
	}

	if err := s.store.UpsertWallet(ctx, w, txn); err != nil {
		return nil, err
	}
	if txn != nil {
		s.txnCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("currency", currency),
			attribute.String("type", string(txn.Type)),
		))
	}

	s.mu.Lock()
	s.cache[currency] = w
	s.mu.Unlock()

	return w, nil
}

// ApplyFill realizes the dual-currency balance deltas implied by one filled
// order. Both legs commit atomically; a failure leaves the ledger untouched
// and surfaces as a state-inconsistency error for explicit reconciliation.
func (s *Service) ApplyFill(ctx context.Context, fill *core.FillDelta) error {
	now := s.now()
	if err := s.store.ApplyFillTx(ctx, s.exchange.GetName(), fill, now); err != nil {
		s.logger.Error("Ledger fill application failed",
			"order_id", fill.OrderID,
			"base", fill.BaseCurrency,
			"quote", fill.QuoteCurrency,
			"error", err.Error())
		return err
	}

	s.txnCounter.Add(ctx, 2, metric.WithAttributes(attribute.String("source", "fill")))

	// Reload both legs into the cache from the committed rows.
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, currency := range []string{fill.BaseCurrency, fill.QuoteCurrency} {
		w, err := s.store.GetWallet(ctx, s.exchange.GetName(), currency)
		if err == nil && w != nil {
			s.cache[currency] = w
		}
	}

	s.logger.Info("Ledger updated for fill",
		"order_id", fill.OrderID,
		"base", fill.BaseCurrency, "base_delta", fill.BaseDelta.String(),
		"quote", fill.QuoteCurrency, "quote_delta", fill.QuoteDelta.String())
	return nil
}

// refresh pulls exchange-reported balances (one currency, or all when
// currency is empty) and writes them through UpdateBalance.
func (s *Service) refresh(ctx context.Context, currency string) error {
	var balances map[string]core.BalanceInfo
	err := retry.Do(ctx, retry.DefaultPolicy, apperrors.IsTransient, func() error {
		var fetchErr error
		balances, fetchErr = s.exchange.FetchBalance(ctx, currency)
		return fetchErr
	})
	if err != nil {
		return &apperrors.ExchangeError{Op: "fetch balance", Err: err}
	}

	for cur, info := range balances {
		if _, err := s.UpdateBalance(ctx, cur, info.Available, info.InOrders, info.Total); err != nil {
			return err
		}
	}
	return nil
}
