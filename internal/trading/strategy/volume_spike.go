package strategy

import (
	"context"
	"fmt"
	"trade_engine/internal/core"
)

// VolumeSpike buys symbols whose 24h volume increased by at least the
// configured percentage, ranked by that increase.
type VolumeSpike struct {
	params Params
	logger core.ILogger
}

// NewVolumeSpike creates the volume spike variant.
func NewVolumeSpike(params Params, logger core.ILogger) *VolumeSpike {
	return &VolumeSpike{
		params: params,
		logger: logger.WithField("strategy", string(KindVolumeSpike)),
	}
}

// Name returns the variant name.
func (s *VolumeSpike) Name() string { return string(KindVolumeSpike) }

// GetSignals evaluates one snapshot. Internal failures degrade to an empty
// signal list for the cycle; they never abort the loop.
func (s *VolumeSpike) GetSignals(ctx context.Context, snap *core.Snapshot, positions map[string]*core.Position) (signals []core.Signal, report *core.EvaluationReport) {
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
		if meta.VolumeChange24h < s.params.MinVolumeIncrease {
			report.Skip(symbol, fmt.Sprintf("volume change %.2f%% below threshold %.2f%%", meta.VolumeChange24h, s.params.MinVolumeIncrease))
			continue
		}
		candidates = append(candidates, candidate{symbol: symbol, metric: meta.VolumeChange24h})
	}

	signals = buySignals(snap, positions, candidates, s.params, report, func(c candidate) string {
		return fmt.Sprintf("volume spike: 24h volume up %.2f%%", c.metric)
	})
	signals = append(signals, sellSignals(snap, positions, s.params)...)
	return signals, report
}
