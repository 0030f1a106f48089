package escrow

import (
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/custody-core/internal/ledger"
	"github.com/sheikh-saqib/custody-core/internal/models"
)

const defaultPrecision int32 = 8

var currencyPrecision = map[string]int32{
	"BTC":  8,
	"ETH":  8,
	"LTC":  8,
	"BCH":  8,
	"USDT": 6,
	"USDC": 6,
	"GBP":  2,
	"USD":  2,
	"EUR":  2,
}

var hundred = decimal.NewFromInt(100)

// Precision is the number of decimal places amounts in currency are kept to.
func Precision(currency string) int32 {
	if p, ok := currencyPrecision[ledger.NormalizeCurrency(currency)]; ok {
		return p
	}
	return defaultPrecision
}

// CalculateFee rounds gross*pct/100 half-up to the currency precision once and
// derives net from it, so fee+net always equals gross.
func CalculateFee(gross, feePercent decimal.Decimal, currency string) (fee, net decimal.Decimal) {
	fee = gross.Mul(feePercent).Div(hundred).Round(Precision(currency))
	return fee, gross.Sub(fee)
}

func validateFeePercent(pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return models.Invalid("fee_percent", "must be between 0 and 100")
	}
	return nil
}
