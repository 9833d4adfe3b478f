package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// MarketDataProvider defines the contract for quote and dividend data sources.
// Implementations must be safe for concurrent use.
type MarketDataProvider interface {
	// Quotes fetches current prices for a batch of tickers. Tickers the
	// provider has no price for are absent from the returned map.
	Quotes(ctx context.Context, tickers []string) (map[string]Quote, error)

	// DividendData fetches declared rate, trailing yield and payment history.
	DividendData(ctx context.Context, ticker string) Result[DividendData]
}

// RateFetcher fetches a single live exchange rate: how many units of `to`
// one unit of `from` buys.
type RateFetcher interface {
	FetchRate(ctx context.Context, from, to Currency) Result[decimal.Decimal]
}

// Clock abstracts time.Now so TTL and "this year" logic can be tested.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }
