package strategy

import (
	"context"
	"fmt"
	"trade_engine/internal/core"
)

// TrendingCoins buys symbols flagged as trending that also clear a market-cap
// floor and an age ceiling, ranked by market cap.
type TrendingCoins struct {
	params Params
	logger core.ILogger
}

// NewTrendingCoins creates the trending coins variant.
func NewTrendingCoins(params Params, logger core.ILogger) *TrendingCoins {
	return &TrendingCoins{
		params: params,
		logger: logger.WithField("strategy", string(KindTrendingCoins)),
	}
}

// Name returns the variant name.
func (s *TrendingCoins) Name() string { return string(KindTrendingCoins) }

// GetSignals evaluates one snapshot. Internal failures degrade to an empty
// signal list for the cycle; they never abort the loop.
func (s *TrendingCoins) GetSignals(ctx context.Context, snap *core.Snapshot, positions map[string]*core.Position) (signals []core.Signal, report *core.EvaluationReport) {
	report = newReport(s.Name(), snap.At)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Strategy evaluation failed, emitting no signals", "panic", r)
			signals = nil
		}
	}()

	var candidates []candidate
	for symbol, meta := range snap.Meta {
		if !snap.Price(symbol).IsPositive() {
			report.Skip(symbol, "price not positive")
			continue
		}
		if !meta.IsTrending {
			report.Skip(symbol, "not trending")
			continue
		}
		if meta.MarketCap < s.params.MinMarketCap {
			report.Skip(symbol, fmt.Sprintf("market cap %.0f below floor %.0f", meta.MarketCap, s.params.MinMarketCap))
			continue
		}
		if s.params.MaxAgeHours > 0 && meta.AgeHours > s.params.MaxAgeHours {
			report.Skip(symbol, fmt.Sprintf("age %.1fh over ceiling %.1fh", meta.AgeHours, s.params.MaxAgeHours))
			continue
		}
		candidates = append(candidates, candidate{symbol: symbol, metric: meta.MarketCap})
	}

	signals = buySignals(snap, positions, candidates, s.params, report, func(c candidate) string {
		return fmt.Sprintf("trending coin with market cap %.0f", c.metric)
	})
	signals = append(signals, sellSignals(snap, positions, s.params)...)
	return signals, report
}
