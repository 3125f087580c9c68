// Package feed implements the HTTP market-data source for the engine tick.
package feed

import (
	"context"
	"fmt"
	"time"

	"trade_engine/internal/core"
	"trade_engine/pkg/httpclient"

	"github.com/shopspring/decimal"
)

// tickerEntry is one row of the feed's /tickers response.
type tickerEntry struct {
	Symbol          string  `json:"symbol"`
	Price           string  `json:"price"`
	MarketCap       float64 `json:"market_cap"`
	Volume24h       float64 `json:"volume_24h"`
	VolumeChange24h float64 `json:"volume_change_24h"`
	ListedAt        int64   `json:"listed_at"`
	IsTrending      bool    `json:"is_trending"`
}

// HTTPFeed implements core.PriceFeed against a JSON ticker endpoint. The
// underlying client retries transient failures and trips a circuit breaker on
// sustained ones.
type HTTPFeed struct {
	client *httpclient.Client
	logger core.ILogger
	now    func() time.Time
}

// NewHTTPFeed creates a feed against the given base URL.
func NewHTTPFeed(baseURL string, timeout time.Duration, logger core.ILogger) *HTTPFeed {
	return &HTTPFeed{
		client: httpclient.NewClient(baseURL, timeout),
		logger: logger.WithField("component", "price_feed"),
		now:    time.Now,
	}
}

// GetCurrentPrices fetches the latest price for every tracked symbol.
func (f *HTTPFeed) GetCurrentPrices(ctx context.Context) (map[string]decimal.Decimal, error) {
	entries, err := f.fetchTickers(ctx)
	if err != nil {
		return nil, err
	}

	prices := make(map[string]decimal.Decimal, len(entries))
	for _, e := range entries {
		price, err := decimal.NewFromString(e.Price)
		if err != nil {
			f.logger.Warn("Skipping ticker with unparseable price", "symbol", e.Symbol, "price", e.Price)
			continue
		}
		if !price.IsPositive() {
			continue
		}
		prices[e.Symbol] = price
	}
	return prices, nil
}

// GetCoinMetadata fetches the per-coin metadata used by strategy filters.
func (f *HTTPFeed) GetCoinMetadata(ctx context.Context) (map[string]core.CoinMeta, error) {
	entries, err := f.fetchTickers(ctx)
	if err != nil {
		return nil, err
	}

	now := f.now()
	metadata := make(map[string]core.CoinMeta, len(entries))
	for _, e := range entries {
		var ageHours float64
		if e.ListedAt > 0 {
			ageHours = now.Sub(time.Unix(e.ListedAt, 0)).Hours()
		}
		metadata[e.Symbol] = core.CoinMeta{
			AgeHours:        ageHours,
			MarketCap:       e.MarketCap,
			Volume24h:       e.Volume24h,
			VolumeChange24h: e.VolumeChange24h,
			IsTrending:      e.IsTrending,
		}
	}
	return metadata, nil
}

func (f *HTTPFeed) fetchTickers(ctx context.Context) ([]tickerEntry, error) {
	var entries []tickerEntry
	if err := f.client.GetJSON(ctx, "/tickers", nil, &entries); err != nil {
		return nil, fmt.Errorf("fetch tickers: %w", err)
	}
	return entries, nil
}
