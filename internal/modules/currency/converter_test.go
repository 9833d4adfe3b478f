package currency

import (
	"context"
	"testing"

	"github.com/aristath/divtrack/internal/domain"
	testingpkg "github.com/aristath/divtrack/internal/testing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newTestConverter(rates map[domain.Currency]float64) *Converter {
	return NewConverter(newTestCache(testingpkg.NewStaticRates(rates), testingpkg.NewFakeClock(t0)))
}

func TestConvert(t *testing.T) {
	conv := newTestConverter(map[domain.Currency]float64{
		domain.CurrencyUSD: 6.5,
		domain.CurrencyEUR: 7.4612,
	})
	ctx := context.Background()

	tests := []struct {
		name   string
		amount string
		from   domain.Currency
		want   string
	}{
		{"base currency is rounded amount", "123.456", domain.CurrencyDKK, "123.46"},
		{"usd", "1000", domain.CurrencyUSD, "6500"},
		{"eur rounds half up", "0.335", domain.CurrencyEUR, "2.5"},
		{"half up at the boundary", "0.125", domain.CurrencyDKK, "0.13"},
		{"zero", "0", domain.CurrencyUSD, "0"},
		{"negative", "-5", domain.CurrencyUSD, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := conv.Convert(ctx, decimal.RequireFromString(tt.amount), tt.from)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestConvert_BaseEqualsRoundedAmount(t *testing.T) {
	conv := newTestConverter(nil)
	ctx := context.Background()

	for _, s := range []string{"0.001", "0.005", "1", "99.994", "99.995", "123456.789"} {
		amount := decimal.RequireFromString(s)
		assert.True(t, conv.Convert(ctx, amount, domain.CurrencyDKK).Equal(amount.Round(2)), s)
	}
}

func TestConvertPerShare(t *testing.T) {
	conv := newTestConverter(map[domain.Currency]float64{domain.CurrencyUSD: 6.8912})
	got := conv.ConvertPerShare(context.Background(), decimal.RequireFromString("0.485"), domain.CurrencyUSD)
	// 0.485 * 6.8912 = 3.342232
	assert.Equal(t, "3.3422", got.String())
}

func TestConvert_FallbackWhenProviderDown(t *testing.T) {
	rates := testingpkg.NewStaticRates(nil)
	rates.Fail = domain.FailureTimeout
	conv := NewConverter(newTestCache(rates, testingpkg.NewFakeClock(t0)))

	got := conv.Convert(context.Background(), decimal.NewFromInt(100), domain.CurrencyUSD)
	assert.Equal(t, "690", got.String())
	assert.Equal(t, domain.CurrencyDKK, conv.Base())
}
