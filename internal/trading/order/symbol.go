package order

import (
	"strings"

	apperrors "trade_engine/pkg/errors"
)

// quoteCurrencies is the known quote list for delimiter-less symbols, ordered
// longest first so that longest-match wins.
var quoteCurrencies = []string{
	"USDT", "USDC", "BUSD", "TUSD", "EUR", "USD", "BTC", "ETH", "BNB",
}

// SplitSymbol decomposes a composite symbol into base and quote currencies.
// A delimiter ("/" or "-") wins when present; otherwise the symbol is split
// by longest-match against the known quote-currency list.
func SplitSymbol(symbol string) (base, quote string, err error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))

	for _, sep := range []string{"/", "-"} {
		if idx := strings.Index(s, sep); idx > 0 && idx < len(s)-1 {
			return s[:idx], s[idx+1:], nil
		}
	}

	for _, q := range quoteCurrencies {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return s[:len(s)-len(q)], q, nil
		}
	}

	return "", "", &apperrors.ParseError{Symbol: symbol}
}
