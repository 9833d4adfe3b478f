package currency

import (
	"context"

	"github.com/aristath/divtrack/internal/domain"
	"github.com/shopspring/decimal"
)

// RateProvider returns the positive rate code -> base currency.
type RateProvider interface {
	Rate(ctx context.Context, code domain.Currency) decimal.Decimal
	Base() domain.Currency
}

// Converter converts amounts into the base currency using cached rates.
// Stateless apart from the shared rate provider.
type Converter struct {
	rates RateProvider
}

// NewConverter creates a new converter
func NewConverter(rates RateProvider) *Converter {
	return &Converter{rates: rates}
}

// Base returns the base currency
func (c *Converter) Base() domain.Currency {
	return c.rates.Base()
}

// Convert converts amount in from to the base currency, rounded half-up to
// 2 decimals. Non-positive amounts convert to zero.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from domain.Currency) decimal.Decimal {
	return c.convert(ctx, amount, from, 2)
}

// ConvertPerShare is Convert with 4 decimals, for per-share figures.
func (c *Converter) ConvertPerShare(ctx context.Context, amount decimal.Decimal, from domain.Currency) decimal.Decimal {
	return c.convert(ctx, amount, from, 4)
}

func (c *Converter) convert(ctx context.Context, amount decimal.Decimal, from domain.Currency, places int32) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	// Amounts are positive here, so Round (half away from zero) is half-up
	return amount.Mul(c.rates.Rate(ctx, from)).Round(places)
}
