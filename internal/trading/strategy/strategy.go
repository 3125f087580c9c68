// Package strategy implements the pluggable signal generators and their registry.
package strategy

import (
	"fmt"
	"sort"
	"time"
	"trade_engine/internal/config"
	"trade_engine/internal/core"
	"trade_engine/pkg/tradingutils"

	"github.com/shopspring/decimal"
)

// maxBuyCandidates caps how many buy signals a variant emits per cycle.
const maxBuyCandidates = 5

// Params are the strategy tuning parameters. Owned by configuration,
// read-only to strategies.
type Params struct {
	MinMarketCap      float64
	MaxAgeHours       float64
	MaxInvestment     decimal.Decimal
	MinVolumeIncrease float64
	StopLossPct       decimal.Decimal
	TakeProfitPct     decimal.Decimal
}

// ParamsFromConfig converts the yaml strategy section into strategy params.
func ParamsFromConfig(c config.StrategyConfig) Params {
	return Params{
		MinMarketCap:      c.MinMarketCap,
		MaxAgeHours:       c.MaxAgeHours,
		MaxInvestment:     decimal.NewFromFloat(c.MaxInvestment),
		MinVolumeIncrease: c.MinVolumeIncrease,
		StopLossPct:       decimal.NewFromFloat(c.StopLossPct),
		TakeProfitPct:     decimal.NewFromFloat(c.TakeProfitPct),
	}
}

// candidate is one symbol that passed a variant's filter, carrying the
// discriminating metric used for ranking.
type candidate struct {
	symbol string
	metric float64
}

// buySignals turns the filtered candidate set into buy signals: rank by the
// discriminating metric descending, cap to the top candidates, skip symbols
// that already have an open position, size the order as
// maxInvestment / price rounded to 8 decimal places.
func buySignals(
	snap *core.Snapshot,
	positions map[string]*core.Position,
	candidates []candidate,
	params Params,
	report *core.EvaluationReport,
	reasonFn func(c candidate) string,
) []core.Signal {
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].metric > candidates[j].metric
	})
	if len(candidates) > maxBuyCandidates {
		for _, c := range candidates[maxBuyCandidates:] {
			report.Skip(c.symbol, "below top candidate cutoff")
		}
		candidates = candidates[:maxBuyCandidates]
	}

	signals := make([]core.Signal, 0, len(candidates))
	for _, c := range candidates {
		if _, held := positions[c.symbol]; held {
			report.Skip(c.symbol, "position already open")
			continue
		}
		price := snap.Price(c.symbol)
		amount := tradingutils.InvestmentAmount(params.MaxInvestment, price)
		if !amount.IsPositive() {
			report.Skip(c.symbol, "computed amount not positive")
			continue
		}
		report.Include(c.symbol, "buy candidate")
		signals = append(signals, core.Signal{
			Symbol: c.symbol,
			Action: core.SideBuy,
			Amount: amount,
			Price:  price,
			Reason: reasonFn(c),
		})
	}
	return signals
}

// sellSignals evaluates the fixed threshold exits shared across variants,
// independent of the position monitor's trailing exit. Stop loss is checked
// before take profit: when both thresholds could fire on the same tick, the
// safety-critical exit wins.
func sellSignals(snap *core.Snapshot, positions map[string]*core.Position, params Params) []core.Signal {
	symbols := make([]string, 0, len(positions))
	for symbol := range positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	var signals []core.Signal
	for _, symbol := range symbols {
		pos := positions[symbol]
		price := snap.Price(symbol)
		if !price.IsPositive() {
			continue
		}
		pnlPct := tradingutils.PnLPct(pos.BuyPrice, price)

		switch {
		case params.StopLossPct.IsPositive() && pnlPct.LessThanOrEqual(params.StopLossPct.Neg()):
			signals = append(signals, core.Signal{
				Symbol: symbol,
				Action: core.SideSell,
				Amount: pos.Amount,
				Price:  price,
				Reason: fmt.Sprintf("stop loss: pnl %s%% breached -%s%%", pnlPct.StringFixed(2), params.StopLossPct.String()),
			})
		case params.TakeProfitPct.IsPositive() && pnlPct.GreaterThanOrEqual(params.TakeProfitPct):
			signals = append(signals, core.Signal{
				Symbol: symbol,
				Action: core.SideSell,
				Amount: pos.Amount,
				Price:  price,
				Reason: fmt.Sprintf("take profit: pnl %s%% reached %s%%", pnlPct.StringFixed(2), params.TakeProfitPct.String()),
			})
		}
	}
	return signals
}

// newReport starts an evaluation report for one cycle.
func newReport(name string, at time.Time) *core.EvaluationReport {
	return &core.EvaluationReport{Strategy: name, At: at}
}
