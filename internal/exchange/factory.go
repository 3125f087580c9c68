// Package exchange provides exchange client implementations
package exchange

import (
	"fmt"
	"strings"

	"trade_engine/internal/config"
	"trade_engine/internal/core"
	"trade_engine/internal/exchange/paper"
	"trade_engine/internal/mock"
)

// Kind identifies a supported exchange implementation. The set is closed:
// every usable kind is a declared constant and NewExchange rejects anything
// else at startup.
type Kind string

const (
	KindPaper Kind = "paper"
	KindMock  Kind = "mock"
)

// Kinds returns the supported exchange kinds.
func Kinds() []Kind {
	return []Kind{KindPaper, KindMock}
}

// NewExchange creates an exchange client based on configuration. An unknown
// kind is a startup error, not a runtime fallback.
func NewExchange(exchangeName string, cfg *config.Config, feed core.PriceFeed, logger core.ILogger) (core.ExchangeClient, error) {
	exchangeConfig, exists := cfg.Exchanges[exchangeName]
	if !exists {
		return nil, fmt.Errorf("configuration not found for exchange: %s", exchangeName)
	}

	switch Kind(strings.ToLower(exchangeName)) {
	case KindPaper:
		return paper.NewPaperExchange(&exchangeConfig, feed, logger), nil
	case KindMock:
		return mock.NewExchange(exchangeName), nil
	default:
		return nil, fmt.Errorf("unsupported exchange: %s (supported: %v)", exchangeName, Kinds())
	}
}
