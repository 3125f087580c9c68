package strategy

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"trade_engine/internal/core"

	"github.com/shopspring/decimal"
)

type mockLogger struct {
	core.ILogger
}

func (m *mockLogger) Debug(msg string, args ...interface{})                 {}
func (m *mockLogger) Info(msg string, args ...interface{})                  {}
func (m *mockLogger) Warn(msg string, args ...interface{})                  {}
func (m *mockLogger) Error(msg string, args ...interface{})                 {}
func (m *mockLogger) Fatal(msg string, args ...interface{})                 {}
func (m *mockLogger) WithField(key string, value interface{}) core.ILogger  { return m }
func (m *mockLogger) WithFields(fields map[string]interface{}) core.ILogger { return m }

func testParams() Params {
	return Params{
		MinMarketCap:      1_000_000,
		MaxAgeHours:       48,
		MaxInvestment:     decimal.NewFromInt(100),
		MinVolumeIncrease: 50,
		StopLossPct:       decimal.NewFromInt(5),
		TakeProfitPct:     decimal.NewFromInt(10),
	}
}

func snapshot() *core.Snapshot {
	return &core.Snapshot{
		Prices: make(map[string]decimal.Decimal),
		Meta:   make(map[string]core.CoinMeta),
		At:     time.Now(),
	}
}

func addCoin(snap *core.Snapshot, symbol string, price float64, meta core.CoinMeta) {
	snap.Prices[symbol] = decimal.NewFromFloat(price)
	snap.Meta[symbol] = meta
}

func TestVolumeSpike_FiltersBelowThreshold(t *testing.T) {
	snap := snapshot()
	addCoin(snap, "HOT/USDT", 2, core.CoinMeta{VolumeChange24h: 120})
	addCoin(snap, "COLD/USDT", 3, core.CoinMeta{VolumeChange24h: 10})

	s := NewVolumeSpike(testParams(), &mockLogger{})
	signals, report := s.GetSignals(context.Background(), snap, nil)

	if len(signals) != 1 {
		t.Fatalf("Expected 1 signal, got %d", len(signals))
	}
	if signals[0].Symbol != "HOT/USDT" || signals[0].Action != core.SideBuy {
		t.Errorf("Unexpected signal: %+v", signals[0])
	}
	// amount = 100 / 2 = 50
	if !signals[0].Amount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected amount 50, got %s", signals[0].Amount)
	}

	var coldSkipped bool
	for _, c := range report.Candidates {
		if c.Symbol == "COLD/USDT" && !c.Included {
			coldSkipped = true
		}
	}
	if !coldSkipped {
		t.Error("Skipped candidate must appear in the report with a reason")
	}
}

func TestVolumeSpike_TopFiveRankedByMetric(t *testing.T) {
	snap := snapshot()
	for i := 0; i < 8; i++ {
		addCoin(snap, fmt.Sprintf("C%d/USDT", i), 1, core.CoinMeta{VolumeChange24h: float64(60 + i*10)})
	}

	s := NewVolumeSpike(testParams(), &mockLogger{})
	signals, report := s.GetSignals(context.Background(), snap, nil)

	if len(signals) != 5 {
		t.Fatalf("Expected top-5 cap, got %d signals", len(signals))
	}
	// Highest metric first: C7 has 130.
	if signals[0].Symbol != "C7/USDT" {
		t.Errorf("Expected C7/USDT first, got %s", signals[0].Symbol)
	}

	cutoff := 0
	for _, c := range report.Candidates {
		if !c.Included && c.Reason == "below top candidate cutoff" {
			cutoff++
		}
	}
	if cutoff != 3 {
		t.Errorf("Expected 3 cutoff skips, got %d", cutoff)
	}
}

func TestVolumeSpike_SkipsHeldPositions(t *testing.T) {
	snap := snapshot()
	addCoin(snap, "HOT/USDT", 2, core.CoinMeta{VolumeChange24h: 120})

	positions := map[string]*core.Position{
		"HOT/USDT": {Symbol: "HOT/USDT", BuyPrice: decimal.NewFromInt(2), Amount: decimal.NewFromInt(50)},
	}
	s := NewVolumeSpike(testParams(), &mockLogger{})
	signals, _ := s.GetSignals(context.Background(), snap, positions)

	for _, sig := range signals {
		if sig.Action == core.SideBuy && sig.Symbol == "HOT/USDT" {
			t.Error("Must not emit a buy for an already-held symbol")
		}
	}
}

func TestTrendingCoins_Filters(t *testing.T) {
	snap := snapshot()
	addCoin(snap, "GOOD/USDT", 1, core.CoinMeta{IsTrending: true, MarketCap: 5_000_000, AgeHours: 10})
	addCoin(snap, "NOTTREND/USDT", 1, core.CoinMeta{IsTrending: false, MarketCap: 5_000_000, AgeHours: 10})
	addCoin(snap, "SMALL/USDT", 1, core.CoinMeta{IsTrending: true, MarketCap: 500, AgeHours: 10})
	addCoin(snap, "OLD/USDT", 1, core.CoinMeta{IsTrending: true, MarketCap: 5_000_000, AgeHours: 100})

	s := NewTrendingCoins(testParams(), &mockLogger{})
	signals, _ := s.GetSignals(context.Background(), snap, nil)

	if len(signals) != 1 {
		t.Fatalf("Expected 1 signal, got %d", len(signals))
	}
	if signals[0].Symbol != "GOOD/USDT" {
		t.Errorf("Expected GOOD/USDT, got %s", signals[0].Symbol)
	}
}

func TestSellSignals_StopLossBeforeTakeProfit(t *testing.T) {
	snap := snapshot()
	// -6% breaches the 5% stop loss.
	addCoin(snap, "DOWN/USDT", 94, core.CoinMeta{})
	// +12% clears the 10% take profit.
	addCoin(snap, "UP/USDT", 112, core.CoinMeta{})

	positions := map[string]*core.Position{
		"DOWN/USDT": {Symbol: "DOWN/USDT", BuyPrice: decimal.NewFromInt(100), Amount: decimal.NewFromInt(1)},
		"UP/USDT":   {Symbol: "UP/USDT", BuyPrice: decimal.NewFromInt(100), Amount: decimal.NewFromInt(1)},
	}
	signals := sellSignals(snap, positions, testParams())

	if len(signals) != 2 {
		t.Fatalf("Expected 2 sell signals, got %d", len(signals))
	}
	bySymbol := map[string]core.Signal{}
	for _, sig := range signals {
		bySymbol[sig.Symbol] = sig
	}
	if !strings.HasPrefix(bySymbol["DOWN/USDT"].Reason, "stop loss") {
		t.Errorf("Expected stop loss reason, got %q", bySymbol["DOWN/USDT"].Reason)
	}
	if !strings.HasPrefix(bySymbol["UP/USDT"].Reason, "take profit") {
		t.Errorf("Expected take profit reason, got %q", bySymbol["UP/USDT"].Reason)
	}
}

func TestSellSignals_OneSignalPerPosition(t *testing.T) {
	// A deep loss must produce exactly one exit, attributed to the stop loss.
	snap := snapshot()
	addCoin(snap, "X/USDT", 80, core.CoinMeta{}) // -20%

	positions := map[string]*core.Position{
		"X/USDT": {Symbol: "X/USDT", BuyPrice: decimal.NewFromInt(100), Amount: decimal.NewFromInt(1)},
	}
	signals := sellSignals(snap, positions, testParams())
	if len(signals) != 1 {
		t.Fatalf("Expected exactly one signal, got %d", len(signals))
	}
	if !strings.HasPrefix(signals[0].Reason, "stop loss") {
		t.Errorf("Stop loss must take precedence, got %q", signals[0].Reason)
	}
}

func TestSellSignals_NoPriceNoSignal(t *testing.T) {
	snap := snapshot()
	positions := map[string]*core.Position{
		"GHOST/USDT": {Symbol: "GHOST/USDT", BuyPrice: decimal.NewFromInt(100), Amount: decimal.NewFromInt(1)},
	}
	if signals := sellSignals(snap, positions, testParams()); len(signals) != 0 {
		t.Errorf("Expected no signals without a price, got %d", len(signals))
	}
}

func TestRegistry_ClosedSet(t *testing.T) {
	r := NewRegistry()

	for _, kind := range []Kind{KindVolumeSpike, KindTrendingCoins} {
		s, err := r.Create(kind, testParams(), &mockLogger{})
		if err != nil {
			t.Fatalf("Create(%s): %v", kind, err)
		}
		if s.Name() != string(kind) {
			t.Errorf("Name mismatch: %s vs %s", s.Name(), kind)
		}
	}

	if _, err := r.Create(Kind("momentum"), testParams(), &mockLogger{}); err == nil {
		t.Error("Unknown kind must be an error")
	}
	if len(r.Kinds()) != 2 {
		t.Errorf("Expected 2 registered kinds, got %d", len(r.Kinds()))
	}
}

func TestVolumeSpike_ZeroPriceSkipped(t *testing.T) {
	snap := snapshot()
	snap.Meta["ZERO/USDT"] = core.CoinMeta{VolumeChange24h: 120}
	// no price entry for ZERO/USDT

	s := NewVolumeSpike(testParams(), &mockLogger{})
	signals, report := s.GetSignals(context.Background(), snap, nil)
	if len(signals) != 0 {
		t.Fatalf("Expected no signals, got %d", len(signals))
	}
	if len(report.Candidates) != 1 || report.Candidates[0].Included {
		t.Error("Priceless symbol must be reported as skipped")
	}
}
