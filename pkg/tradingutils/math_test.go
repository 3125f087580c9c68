package tradingutils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRoundAmount(t *testing.T) {
	in := decimal.RequireFromString("0.123456789123")
	got := RoundAmount(in)
	if got.String() != "0.12345679" {
		t.Errorf("RoundAmount: %s", got)
	}

	// 8 decimal places survive a string round trip exactly.
	back, err := decimal.NewFromString(got.String())
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if !back.Equal(got) {
		t.Errorf("Round trip changed the value: %s vs %s", back, got)
	}
}

func TestInvestmentAmount(t *testing.T) {
	got := InvestmentAmount(decimal.NewFromInt(100), decimal.NewFromInt(3))
	if got.String() != "33.33333333" {
		t.Errorf("InvestmentAmount: %s", got)
	}

	if !InvestmentAmount(decimal.NewFromInt(100), decimal.Zero).IsZero() {
		t.Error("Zero price must yield zero amount")
	}
	if !InvestmentAmount(decimal.NewFromInt(100), decimal.NewFromInt(-1)).IsZero() {
		t.Error("Negative price must yield zero amount")
	}
}

func TestPnLPct(t *testing.T) {
	cases := []struct {
		buy, current, want string
	}{
		{"100", "94", "-6"},
		{"100", "112", "12"},
		{"100", "100", "0"},
		{"0", "50", "0"},
	}
	for _, c := range cases {
		got := PnLPct(decimal.RequireFromString(c.buy), decimal.RequireFromString(c.current))
		if !got.Equal(decimal.RequireFromString(c.want)) {
			t.Errorf("PnLPct(%s, %s) = %s, want %s", c.buy, c.current, got, c.want)
		}
	}
}

func TestDropFromHighPct(t *testing.T) {
	got := DropFromHighPct(decimal.NewFromInt(120), decimal.NewFromInt(110))
	want := decimal.RequireFromString("8.3333333333333333")
	if got.Sub(want).Abs().GreaterThan(decimal.RequireFromString("0.0001")) {
		t.Errorf("DropFromHighPct: %s", got)
	}
	if !DropFromHighPct(decimal.Zero, decimal.NewFromInt(10)).IsZero() {
		t.Error("Zero high must yield zero drop")
	}
}

func TestRealizedProfit(t *testing.T) {
	got := RealizedProfit(decimal.NewFromInt(100), decimal.NewFromInt(110), decimal.NewFromInt(2))
	if !got.Equal(decimal.NewFromInt(20)) {
		t.Errorf("RealizedProfit: %s", got)
	}
	loss := RealizedProfit(decimal.NewFromInt(100), decimal.NewFromInt(90), decimal.NewFromInt(2))
	if !loss.Equal(decimal.NewFromInt(-20)) {
		t.Errorf("RealizedProfit loss: %s", loss)
	}
}
