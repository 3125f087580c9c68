package mock

import (
	"context"
	"sync"

	"trade_engine/internal/core"

	"github.com/shopspring/decimal"
)

// Feed implements core.PriceFeed backed by fixed maps.
type Feed struct {
	mu       sync.RWMutex
	prices   map[string]decimal.Decimal
	metadata map[string]core.CoinMeta

	PricesErr   error
	MetadataErr error
}

func NewFeed() *Feed {
	return &Feed{
		prices:   make(map[string]decimal.Decimal),
		metadata: make(map[string]core.CoinMeta),
	}
}

func (f *Feed) SetPrice(symbol string, price decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = price
}

func (f *Feed) SetMetadata(symbol string, meta core.CoinMeta) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metadata[symbol] = meta
}

func (f *Feed) GetCurrentPrices(ctx context.Context) (map[string]decimal.Decimal, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.PricesErr != nil {
		return nil, f.PricesErr
	}
	out := make(map[string]decimal.Decimal, len(f.prices))
	for s, p := range f.prices {
		out[s] = p
	}
	return out, nil
}

func (f *Feed) GetCoinMetadata(ctx context.Context) (map[string]core.CoinMeta, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.MetadataErr != nil {
		return nil, f.MetadataErr
	}
	out := make(map[string]core.CoinMeta, len(f.metadata))
	for s, m := range f.metadata {
		out[s] = m
	}
	return out, nil
}
