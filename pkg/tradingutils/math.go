package tradingutils

import (
	"github.com/shopspring/decimal"
)

// AmountDecimals is the precision used for order amounts.
const AmountDecimals = 8

var hundred = decimal.NewFromInt(100)

// RoundPrice rounds a price to the specified decimals
func RoundPrice(price decimal.Decimal, priceDecimals int) decimal.Decimal {
	return price.Round(int32(priceDecimals))
}

// RoundAmount rounds an order amount to 8 decimal places
func RoundAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(AmountDecimals)
}

// InvestmentAmount converts a quote-currency budget into a base-currency
// amount at the given price, rounded to 8 decimal places. Returns zero when
// the price is not positive.
func InvestmentAmount(maxInvestment, price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}
	return RoundAmount(maxInvestment.Div(price))
}

// PnLPct computes (currentPrice - buyPrice) / buyPrice * 100
func PnLPct(buyPrice, currentPrice decimal.Decimal) decimal.Decimal {
	if buyPrice.IsZero() {
		return decimal.Zero
	}
	return currentPrice.Sub(buyPrice).Div(buyPrice).Mul(hundred)
}

// DropFromHighPct computes (highestPrice - currentPrice) / highestPrice * 100
func DropFromHighPct(highestPrice, currentPrice decimal.Decimal) decimal.Decimal {
	if highestPrice.IsZero() {
		return decimal.Zero
	}
	return highestPrice.Sub(currentPrice).Div(highestPrice).Mul(hundred)
}

// RealizedProfit computes (sellPrice - buyPrice) * amount
func RealizedProfit(buyPrice, sellPrice, amount decimal.Decimal) decimal.Decimal {
	return sellPrice.Sub(buyPrice).Mul(amount)
}
