package currency

import (
	"github.com/aristath/divtrack/internal/domain"
	"github.com/shopspring/decimal"
)

// fallbackDKK holds approximate DKK per unit of each supported currency.
// Used only when the live rate cannot be fetched.
var fallbackDKK = map[domain.Currency]decimal.Decimal{
	domain.CurrencyDKK: decimal.NewFromInt(1),
	domain.CurrencyUSD: decimal.RequireFromString("6.90"),
	domain.CurrencyEUR: decimal.RequireFromString("7.46"),
	domain.CurrencyGBP: decimal.RequireFromString("8.70"),
	domain.CurrencySEK: decimal.RequireFromString("0.65"),
	domain.CurrencyNOK: decimal.RequireFromString("0.64"),
	domain.CurrencyCHF: decimal.RequireFromString("7.80"),
	domain.CurrencyCAD: decimal.RequireFromString("5.00"),
	domain.CurrencyJPY: decimal.RequireFromString("0.046"),
	domain.CurrencyHKD: decimal.RequireFromString("0.88"),
	domain.CurrencyAUD: decimal.RequireFromString("4.50"),
}

// FallbackRate returns the static rate code -> base. Codes missing from the
// table use the entry for defaultCode. The result is always positive.
func FallbackRate(code, base, defaultCode domain.Currency) decimal.Decimal {
	if code == base {
		return decimal.NewFromInt(1)
	}

	codeDKK, ok := fallbackDKK[code]
	if !ok {
		codeDKK, ok = fallbackDKK[defaultCode]
		if !ok {
			codeDKK = fallbackDKK[domain.CurrencyUSD]
		}
	}

	baseDKK, ok := fallbackDKK[base]
	if !ok {
		baseDKK = decimal.NewFromInt(1)
	}

	return codeDKK.Div(baseDKK)
}
