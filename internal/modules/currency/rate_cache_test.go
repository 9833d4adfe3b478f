package currency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aristath/divtrack/internal/domain"
	testingpkg "github.com/aristath/divtrack/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestCache(fetcher domain.RateFetcher, clock domain.Clock) *RateCache {
	return NewRateCache(fetcher, RateCacheConfig{
		Base:            domain.CurrencyDKK,
		DefaultCurrency: domain.CurrencyUSD,
		TTL:             time.Hour,
		Timeout:         time.Second,
	}, clock, zerolog.Nop())
}

func TestRateCache_BaseIsOneWithoutFetch(t *testing.T) {
	rates := testingpkg.NewStaticRates(nil)
	c := newTestCache(rates, testingpkg.NewFakeClock(t0))

	entry := c.Lookup(context.Background(), domain.CurrencyDKK)
	assert.True(t, entry.RateToBase.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, domain.RateSourceBase, entry.Source)
	assert.Equal(t, 0, rates.Calls())
}

func TestRateCache_LiveRateIsCachedForTTL(t *testing.T) {
	rates := testingpkg.NewStaticRates(map[domain.Currency]float64{domain.CurrencyUSD: 6.5})
	clock := testingpkg.NewFakeClock(t0)
	c := newTestCache(rates, clock)
	ctx := context.Background()

	assert.Equal(t, "6.5", c.Rate(ctx, domain.CurrencyUSD).String())
	assert.Equal(t, domain.RateSourceLive, c.Lookup(ctx, domain.CurrencyUSD).Source)
	assert.Equal(t, 1, rates.Calls())

	clock.Advance(59 * time.Minute)
	c.Rate(ctx, domain.CurrencyUSD)
	assert.Equal(t, 1, rates.Calls())

	// Expired entry is refetched on the next lookup
	clock.Advance(time.Minute)
	rates.Rates[domain.CurrencyUSD] = decimal.RequireFromString("6.6")
	assert.Equal(t, "6.6", c.Rate(ctx, domain.CurrencyUSD).String())
	assert.Equal(t, 2, rates.Calls())
}

// deadlineRates answers only while the fetch context is still live.
type deadlineRates struct{ rate decimal.Decimal }

func (d deadlineRates) FetchRate(ctx context.Context, _, _ domain.Currency) domain.Result[decimal.Decimal] {
	if err := ctx.Err(); err != nil {
		return domain.Fail[decimal.Decimal](domain.FailureTimeout, err)
	}
	return domain.OK(d.rate)
}

func TestRateCache_ZeroConfigUsesDefaults(t *testing.T) {
	clock := testingpkg.NewFakeClock(t0)
	c := NewRateCache(deadlineRates{rate: decimal.RequireFromString("6.5")}, RateCacheConfig{}, clock, zerolog.Nop())
	ctx := context.Background()

	assert.Equal(t, domain.CurrencyDKK, c.Base())

	entry := c.Lookup(ctx, domain.CurrencyUSD)
	assert.Equal(t, domain.RateSourceLive, entry.Source)
	assert.Equal(t, "6.5", entry.RateToBase.String())

	// Still cached just inside the default TTL
	clock.Advance(DefaultRateTTL - time.Minute)
	assert.Equal(t, entry.FetchedAt, c.Lookup(ctx, domain.CurrencyUSD).FetchedAt)

	clock.Advance(time.Minute)
	assert.True(t, c.Lookup(ctx, domain.CurrencyUSD).FetchedAt.After(entry.FetchedAt))
}

func TestRateCache_FallbackOnFailure(t *testing.T) {
	reasons := []domain.FailureReason{
		domain.FailureTimeout,
		domain.FailureNetwork,
		domain.FailureStatus,
		domain.FailureMalformed,
		domain.FailureMissing,
	}

	for _, reason := range reasons {
		t.Run(string(reason), func(t *testing.T) {
			rates := testingpkg.NewStaticRates(nil)
			rates.Fail = reason
			c := newTestCache(rates, testingpkg.NewFakeClock(t0))

			entry := c.Lookup(context.Background(), domain.CurrencyUSD)
			assert.Equal(t, domain.RateSourceFallback, entry.Source)
			assert.Equal(t, reason, entry.Failure)
			assert.Equal(t, "6.9", entry.RateToBase.String())
		})
	}
}

func TestRateCache_FallbackIsCachedForTTL(t *testing.T) {
	rates := testingpkg.NewStaticRates(nil)
	rates.Fail = domain.FailureTimeout
	clock := testingpkg.NewFakeClock(t0)
	c := newTestCache(rates, clock)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		c.Rate(ctx, domain.CurrencyEUR)
	}
	assert.Equal(t, 1, rates.Calls())

	clock.Advance(time.Hour)
	c.Rate(ctx, domain.CurrencyEUR)
	assert.Equal(t, 2, rates.Calls())
}

func TestRateCache_NonPositiveLiveRateFallsBack(t *testing.T) {
	fetcher := &testingpkg.MockRateFetcher{}
	fetcher.On("FetchRate", mock.Anything, domain.CurrencyGBP, domain.CurrencyDKK).
		Return(domain.OK(decimal.Zero))

	c := newTestCache(fetcher, testingpkg.NewFakeClock(t0))
	entry := c.Lookup(context.Background(), domain.CurrencyGBP)

	assert.Equal(t, domain.RateSourceFallback, entry.Source)
	assert.Equal(t, domain.FailureInvalid, entry.Failure)
	assert.Equal(t, "8.7", entry.RateToBase.String())
	fetcher.AssertExpectations(t)
}

func TestRateCache_UnknownCodeUsesDefaultEntry(t *testing.T) {
	rates := testingpkg.NewStaticRates(nil)
	c := newTestCache(rates, testingpkg.NewFakeClock(t0))

	entry := c.Lookup(context.Background(), "XYZ")
	assert.Equal(t, domain.RateSourceFallback, entry.Source)
	assert.True(t, entry.RateToBase.Equal(FallbackRate(domain.CurrencyUSD, domain.CurrencyDKK, domain.CurrencyUSD)))

	empty := c.Lookup(context.Background(), "")
	assert.Equal(t, domain.FailureInvalid, empty.Failure)
	assert.True(t, empty.RateToBase.IsPositive())
}

func TestRateCache_NeverReturnsNonPositive(t *testing.T) {
	rates := testingpkg.NewStaticRates(nil)
	rates.Fail = domain.FailureNetwork
	ctx := context.Background()

	codes := append([]domain.Currency{"XYZ", "", "usd"}, domain.SupportedCurrencies...)
	for _, base := range domain.SupportedCurrencies {
		c := NewRateCache(rates, RateCacheConfig{Base: base, TTL: time.Hour, Timeout: time.Second}, nil, zerolog.Nop())
		for _, code := range codes {
			assert.True(t, c.Rate(ctx, code).IsPositive(), "base %s code %q", base, code)
		}
	}
}

func TestRateCache_Invalidate(t *testing.T) {
	rates := testingpkg.NewStaticRates(map[domain.Currency]float64{domain.CurrencyUSD: 6.5})
	c := newTestCache(rates, testingpkg.NewFakeClock(t0))
	ctx := context.Background()

	c.Rate(ctx, domain.CurrencyUSD)
	require.Len(t, c.Snapshot(), 1)

	c.Invalidate()
	assert.Empty(t, c.Snapshot())

	c.Rate(ctx, domain.CurrencyUSD)
	assert.Equal(t, 2, rates.Calls())
}

func TestRateCache_ConcurrentLookupsCollapse(t *testing.T) {
	rates := testingpkg.NewStaticRates(map[domain.Currency]float64{domain.CurrencyUSD: 6.5})
	c := newTestCache(rates, testingpkg.NewFakeClock(t0))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "6.5", c.Rate(ctx, domain.CurrencyUSD).String())
		}()
	}
	wg.Wait()

	// singleflight plus the re-check keep this well below one fetch per caller
	assert.LessOrEqual(t, rates.Calls(), 2)
}

func TestRateCache_Warm(t *testing.T) {
	rates := testingpkg.NewStaticRates(map[domain.Currency]float64{
		domain.CurrencyUSD: 6.5,
		domain.CurrencyEUR: 7.45,
	})
	c := newTestCache(rates, testingpkg.NewFakeClock(t0))

	c.Warm(context.Background(), []domain.Currency{"USD", "EUR", "usd", "DKK"})
	assert.Equal(t, 2, rates.Calls())

	snapshot := c.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, domain.CurrencyEUR, snapshot[0].Currency)
	assert.Equal(t, domain.CurrencyUSD, snapshot[1].Currency)
}

func TestFallbackRate_CrossComputed(t *testing.T) {
	// EUR base: USD -> EUR = 6.90 / 7.46
	got := FallbackRate(domain.CurrencyUSD, domain.CurrencyEUR, domain.CurrencyUSD)
	want := decimal.RequireFromString("6.90").Div(decimal.RequireFromString("7.46"))
	assert.True(t, got.Equal(want))

	assert.Equal(t, "1", FallbackRate(domain.CurrencyEUR, domain.CurrencyEUR, domain.CurrencyUSD).String())
	assert.Equal(t, "7.46", FallbackRate(domain.CurrencyEUR, domain.CurrencyDKK, domain.CurrencyUSD).String())
}
