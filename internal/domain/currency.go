package domain

import (
	"strings"
)

// Currency is an upper-case ISO 4217 currency code.
type Currency string

const (
	CurrencyDKK Currency = "DKK"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencySEK Currency = "SEK"
	CurrencyNOK Currency = "NOK"
	CurrencyCHF Currency = "CHF"
	CurrencyCAD Currency = "CAD"
	CurrencyJPY Currency = "JPY"
	CurrencyHKD Currency = "HKD"
	CurrencyAUD Currency = "AUD"
)

// SupportedCurrencies lists every currency the fallback rate table knows.
var SupportedCurrencies = []Currency{
	CurrencyDKK, CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencySEK, CurrencyNOK,
	CurrencyCHF, CurrencyCAD, CurrencyJPY, CurrencyHKD, CurrencyAUD,
}

// ParseCurrency normalizes a currency code (trims, upper-cases).
func ParseCurrency(s string) Currency {
	return Currency(strings.ToUpper(strings.TrimSpace(s)))
}

// Supported reports whether c is in SupportedCurrencies.
func (c Currency) Supported() bool {
	for _, s := range SupportedCurrencies {
		if s == c {
			return true
		}
	}
	return false
}

func (c Currency) String() string {
	return string(c)
}

// tickerSuffixCurrencies maps exchange suffixes (Yahoo convention) to the
// currency the exchange quotes in. Longer suffixes are matched first.
var tickerSuffixCurrencies = []struct {
	suffix   string
	currency Currency
}{
	{".CO", CurrencyDKK}, // Copenhagen
	{".ST", CurrencySEK}, // Stockholm
	{".OL", CurrencyNOK}, // Oslo
	{".HE", CurrencyEUR}, // Helsinki
	{".DE", CurrencyEUR}, // XETRA
	{".PA", CurrencyEUR}, // Paris
	{".AS", CurrencyEUR}, // Amsterdam
	{".MI", CurrencyEUR}, // Milan
	{".MC", CurrencyEUR}, // Madrid
	{".BR", CurrencyEUR}, // Brussels
	{".LS", CurrencyEUR}, // Lisbon
	{".VI", CurrencyEUR}, // Vienna
	{".SW", CurrencyCHF}, // SIX
	{".TO", CurrencyCAD}, // Toronto
	{".HK", CurrencyHKD},
	{".AX", CurrencyAUD},
	{".F", CurrencyEUR}, // Frankfurt
	{".L", CurrencyGBP}, // London
	{".T", CurrencyJPY}, // Tokyo
	{".V", CurrencyCAD}, // TSX Venture
}

// InferCurrency guesses the quote currency of a ticker from its exchange
// suffix. Tickers without a known suffix are assumed to be US listings.
func InferCurrency(ticker string) Currency {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	for _, e := range tickerSuffixCurrencies {
		if strings.HasSuffix(t, e.suffix) {
			return e.currency
		}
	}
	return CurrencyUSD
}

// ResolveCurrency returns stored when set, otherwise the currency inferred
// from the ticker suffix.
func ResolveCurrency(stored Currency, ticker string) Currency {
	if stored != "" {
		return stored
	}
	return InferCurrency(ticker)
}
