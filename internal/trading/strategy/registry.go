package strategy

import (
	"fmt"
	"trade_engine/internal/core"
)

// Kind identifies a strategy variant. The set is closed: variants register
// explicitly at construction, there is no runtime string-to-type resolution.
type Kind string

const (
	KindVolumeSpike   Kind = "volume_spike"
	KindTrendingCoins Kind = "trending_coins"
)

// Factory builds a signal generator from parameters.
type Factory func(params Params, logger core.ILogger) core.SignalGenerator

// Registry maps strategy kinds to factories.
type Registry struct {
	factories map[Kind]Factory
}

// NewRegistry creates a registry with the built-in variants registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[Kind]Factory)}
	r.register(KindVolumeSpike, func(params Params, logger core.ILogger) core.SignalGenerator {
		return NewVolumeSpike(params, logger)
	})
	r.register(KindTrendingCoins, func(params Params, logger core.ILogger) core.SignalGenerator {
		return NewTrendingCoins(params, logger)
	})
	return r
}

func (r *Registry) register(kind Kind, f Factory) {
	r.factories[kind] = f
}

// Create instantiates the generator for a kind. An unknown kind is a startup
// error, not a runtime fallback.
func (r *Registry) Create(kind Kind, params Params, logger core.ILogger) (core.SignalGenerator, error) {
	f, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("unknown strategy kind: %s", kind)
	}
	return f(params, logger), nil
}

// Kinds returns the registered kinds.
func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	return kinds
}
