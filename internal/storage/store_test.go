package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"trade_engine/internal/core"
	apperrors "trade_engine/pkg/errors"

	"github.com/shopspring/decimal"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_OrderRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := time.Now().UTC().Truncate(time.Second)
	o := &core.Order{
		ID:        "o-1",
		Symbol:    "BTC/USDT",
		Type:      core.OrderTypeMarket,
		Side:      core.SideBuy,
		Amount:    decimal.RequireFromString("0.12345678"),
		Price:     decimal.RequireFromString("27123.45"),
		Status:    core.OrderStatusPending,
		Remaining: decimal.RequireFromString("0.12345678"),
		Reason:    "volume spike",
		CreatedAt: created,
	}
	if err := s.InsertOrder(ctx, o); err != nil {
		t.Fatalf("InsertOrder: %v", err)
	}

	got, err := s.GetOrder(ctx, "o-1")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	// decimals survive the TEXT round trip exactly, including 8 dp amounts
	if !got.Amount.Equal(o.Amount) || got.Amount.String() != "0.12345678" {
		t.Errorf("Amount round trip: %s", got.Amount)
	}
	if !got.Price.Equal(o.Price) {
		t.Errorf("Price round trip: %s", got.Price)
	}
	if got.Status != core.OrderStatusPending {
		t.Errorf("Status round trip: %s", got.Status)
	}
	if got.ClosedAt != nil {
		t.Error("ClosedAt should be nil for a pending order")
	}

	closed := created.Add(time.Second)
	o.Status = core.OrderStatusClosed
	o.Filled = o.Amount
	o.Remaining = decimal.Zero
	o.Cost = decimal.RequireFromString("3348.44")
	o.ExchangeOrderID = "ex-99"
	o.ClosedAt = &closed
	if err := s.UpdateOrder(ctx, o); err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}

	got, err = s.GetOrder(ctx, "o-1")
	if err != nil {
		t.Fatalf("GetOrder after update: %v", err)
	}
	if got.Status != core.OrderStatusClosed || got.ExchangeOrderID != "ex-99" {
		t.Errorf("Update not persisted: %+v", got)
	}
	if got.ClosedAt == nil {
		t.Error("ClosedAt lost on update")
	}
}

func TestStore_UpdateMissingOrder(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateOrder(context.Background(), &core.Order{ID: "nope"})
	if !errors.Is(err, apperrors.ErrOrderNotFound) {
		t.Errorf("Expected ErrOrderNotFound, got %v", err)
	}
	_, err = s.GetOrder(context.Background(), "nope")
	if !errors.Is(err, apperrors.ErrOrderNotFound) {
		t.Errorf("Expected ErrOrderNotFound, got %v", err)
	}
}

func TestStore_OrderEventsAppendOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	transitions := []struct {
		from core.OrderStatus
		to   core.OrderStatus
	}{
		{"", core.OrderStatusPending},
		{core.OrderStatusPending, core.OrderStatusOpen},
		{core.OrderStatusOpen, core.OrderStatusClosed},
	}
	for i, tr := range transitions {
		err := s.AppendOrderEvent(ctx, &core.OrderEvent{
			OrderID:    "o-1",
			FromStatus: tr.from,
			ToStatus:   tr.to,
			CreatedAt:  now.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("AppendOrderEvent: %v", err)
		}
	}

	events, err := s.ListOrderEvents(ctx, "o-1")
	if err != nil {
		t.Fatalf("ListOrderEvents: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	for i, tr := range transitions {
		if events[i].FromStatus != tr.from || events[i].ToStatus != tr.to {
			t.Errorf("Event %d: %s->%s, want %s->%s",
				i, events[i].FromStatus, events[i].ToStatus, tr.from, tr.to)
		}
	}
}

func TestStore_WalletUpsertAndInvariant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w := &core.WalletBalance{
		ExchangeID:  "paper",
		Currency:    "USDT",
		Available:   decimal.NewFromInt(900),
		InOrders:    decimal.NewFromInt(100),
		Total:       decimal.NewFromInt(1000),
		LastUpdated: time.Now().UTC(),
	}
	if err := s.UpsertWallet(ctx, w, nil); err != nil {
		t.Fatalf("UpsertWallet: %v", err)
	}

	got, err := s.GetWallet(ctx, "paper", "USDT")
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	if got == nil {
		t.Fatal("Expected wallet row")
	}
	if !got.Total.Equal(got.Available.Add(got.InOrders)) {
		t.Errorf("total != available + inOrders: %s != %s + %s", got.Total, got.Available, got.InOrders)
	}

	missing, err := s.GetWallet(ctx, "paper", "DOGE")
	if err != nil {
		t.Fatalf("GetWallet missing: %v", err)
	}
	if missing != nil {
		t.Error("Missing wallet must be nil, not an error")
	}
}

func TestStore_ApplyFillTxBothLegs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedWallet(t, s, "paper", "USDT", 1000)

	// Buy 2 BTC for 200 USDT.
	fill := &core.FillDelta{
		OrderID:       "o-1",
		BaseCurrency:  "BTC",
		QuoteCurrency: "USDT",
		BaseDelta:     decimal.NewFromInt(2),
		QuoteDelta:    decimal.NewFromInt(-200),
	}
	if err := s.ApplyFillTx(ctx, "paper", fill, now); err != nil {
		t.Fatalf("ApplyFillTx: %v", err)
	}

	usdt, _ := s.GetWallet(ctx, "paper", "USDT")
	if !usdt.Available.Equal(decimal.NewFromInt(800)) {
		t.Errorf("USDT available: %s", usdt.Available)
	}
	btc, _ := s.GetWallet(ctx, "paper", "BTC")
	if btc == nil || !btc.Available.Equal(decimal.NewFromInt(2)) {
		t.Errorf("BTC leg not applied: %+v", btc)
	}

	// Each leg leaves one audit row with consistent arithmetic.
	for _, currency := range []string{"USDT", "BTC"} {
		txns, err := s.ListTransactions(ctx, "paper", currency)
		if err != nil {
			t.Fatalf("ListTransactions(%s): %v", currency, err)
		}
		if len(txns) != 1 {
			t.Fatalf("Expected 1 txn for %s, got %d", currency, len(txns))
		}
		txn := txns[0]
		if !txn.BalanceAfter.Equal(txn.BalanceBefore.Add(txn.Amount)) {
			t.Errorf("%s txn arithmetic: %s != %s + %s",
				currency, txn.BalanceAfter, txn.BalanceBefore, txn.Amount)
		}
	}

	usdtTxns, _ := s.ListTransactions(ctx, "paper", "USDT")
	if usdtTxns[0].Type != core.TransactionWithdrawal {
		t.Errorf("Negative delta must be a withdrawal, got %s", usdtTxns[0].Type)
	}
	btcTxns, _ := s.ListTransactions(ctx, "paper", "BTC")
	if btcTxns[0].Type != core.TransactionDeposit {
		t.Errorf("Positive delta must be a deposit, got %s", btcTxns[0].Type)
	}
}

func TestStore_ApplyFillTxZeroDeltaSkipsLeg(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fill := &core.FillDelta{
		OrderID:       "o-1",
		BaseCurrency:  "BTC",
		QuoteCurrency: "USDT",
		BaseDelta:     decimal.NewFromInt(1),
		QuoteDelta:    decimal.Zero,
	}
	if err := s.ApplyFillTx(ctx, "paper", fill, time.Now().UTC()); err != nil {
		t.Fatalf("ApplyFillTx: %v", err)
	}
	txns, _ := s.ListTransactions(ctx, "paper", "USDT")
	if len(txns) != 0 {
		t.Errorf("Zero delta must not produce a txn, got %d", len(txns))
	}
}

func TestStore_PositionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dropStart := time.Now().UTC().Truncate(time.Second)
	p := &core.Position{
		Symbol:        "BTC/USDT",
		BuyPrice:      decimal.NewFromInt(100),
		Amount:        decimal.NewFromInt(2),
		BuyTime:       dropStart.Add(-time.Hour),
		HighestPrice:  decimal.NewFromInt(120),
		PeakDropStart: &dropStart,
		OrderID:       "o-1",
	}
	if err := s.SavePosition(ctx, p); err != nil {
		t.Fatalf("SavePosition: %v", err)
	}

	// Upsert replaces, not duplicates.
	p.HighestPrice = decimal.NewFromInt(125)
	if err := s.SavePosition(ctx, p); err != nil {
		t.Fatalf("SavePosition update: %v", err)
	}

	positions, err := s.ListPositions(ctx)
	if err != nil {
		t.Fatalf("ListPositions: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("Expected 1 position, got %d", len(positions))
	}
	got := positions[0]
	if !got.HighestPrice.Equal(decimal.NewFromInt(125)) {
		t.Errorf("HighestPrice: %s", got.HighestPrice)
	}
	if got.PeakDropStart == nil {
		t.Error("PeakDropStart lost in round trip")
	}

	if err := s.DeletePosition(ctx, "BTC/USDT"); err != nil {
		t.Fatalf("DeletePosition: %v", err)
	}
	positions, _ = s.ListPositions(ctx)
	if len(positions) != 0 {
		t.Errorf("Expected empty after delete, got %d", len(positions))
	}
}

func seedWallet(t *testing.T, s *Store, exchangeID, currency string, available int64) {
	t.Helper()
	err := s.UpsertWallet(context.Background(), &core.WalletBalance{
		ExchangeID:  exchangeID,
		Currency:    currency,
		Available:   decimal.NewFromInt(available),
		InOrders:    decimal.Zero,
		Total:       decimal.NewFromInt(available),
		LastUpdated: time.Now().UTC(),
	}, nil)
	if err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
}
