package testing

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/divtrack/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockMarketDataProvider is a testify mock of domain.MarketDataProvider.
type MockMarketDataProvider struct {
	mock.Mock
}

// Quotes returns the configured quote map
func (m *MockMarketDataProvider) Quotes(ctx context.Context, tickers []string) (map[string]domain.Quote, error) {
	args := m.Called(ctx, tickers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.Quote), args.Error(1)
}

// DividendData returns the configured result
func (m *MockMarketDataProvider) DividendData(ctx context.Context, ticker string) domain.Result[domain.DividendData] {
	args := m.Called(ctx, ticker)
	return args.Get(0).(domain.Result[domain.DividendData])
}

// StaticMarketData is a concurrency-safe in-memory MarketDataProvider.
// Tickers absent from Prices have no quote; absent from Dividends report FailureMissing.
type StaticMarketData struct {
	mu        sync.RWMutex
	Prices    map[string]domain.Quote
	Dividends map[string]domain.DividendData
	QuoteErr  error
}

// NewStaticMarketData creates an empty provider
func NewStaticMarketData() *StaticMarketData {
	return &StaticMarketData{
		Prices:    make(map[string]domain.Quote),
		Dividends: make(map[string]domain.DividendData),
	}
}

// SetQuote sets the quote for a ticker
func (s *StaticMarketData) SetQuote(ticker string, price float64, currency domain.Currency) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Prices[ticker] = domain.Quote{Ticker: ticker, Price: decimal.NewFromFloat(price), Currency: currency}
}

// SetDividends sets the dividend data for a ticker
func (s *StaticMarketData) SetDividends(ticker string, data domain.DividendData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Dividends[ticker] = data
}

// Quotes implements domain.MarketDataProvider
func (s *StaticMarketData) Quotes(_ context.Context, tickers []string) (map[string]domain.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.QuoteErr != nil {
		return nil, s.QuoteErr
	}
	out := make(map[string]domain.Quote, len(tickers))
	for _, t := range tickers {
		if q, ok := s.Prices[t]; ok {
			out[t] = q
		}
	}
	return out, nil
}

// DividendData implements domain.MarketDataProvider
func (s *StaticMarketData) DividendData(_ context.Context, ticker string) domain.Result[domain.DividendData] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.Dividends[ticker]
	if !ok {
		return domain.Fail[domain.DividendData](domain.FailureMissing, &domain.MissingError{Key: ticker})
	}
	return domain.OK(data)
}

// MockRateFetcher is a testify mock of domain.RateFetcher.
type MockRateFetcher struct {
	mock.Mock
}

// FetchRate returns the configured result
func (m *MockRateFetcher) FetchRate(ctx context.Context, from, to domain.Currency) domain.Result[decimal.Decimal] {
	args := m.Called(ctx, from, to)
	return args.Get(0).(domain.Result[decimal.Decimal])
}

// StaticRates is a RateFetcher backed by a fixed table of currency -> base rates.
// It counts calls so tests can assert on caching.
type StaticRates struct {
	mu    sync.Mutex
	Rates map[domain.Currency]decimal.Decimal
	Fail  domain.FailureReason // When set, every fetch fails with this reason
	calls int
}

// NewStaticRates builds a StaticRates from float rates
func NewStaticRates(rates map[domain.Currency]float64) *StaticRates {
	s := &StaticRates{Rates: make(map[domain.Currency]decimal.Decimal, len(rates))}
	for c, r := range rates {
		s.Rates[c] = decimal.NewFromFloat(r)
	}
	return s
}

// FetchRate implements domain.RateFetcher
func (s *StaticRates) FetchRate(_ context.Context, from, _ domain.Currency) domain.Result[decimal.Decimal] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.Fail != domain.FailureNone {
		return domain.Fail[decimal.Decimal](s.Fail, nil)
	}
	r, ok := s.Rates[from]
	if !ok {
		return domain.Fail[decimal.Decimal](domain.FailureMissing, &domain.MissingError{Key: string(from)})
	}
	return domain.OK(r)
}

// Calls returns how many fetches have been made
func (s *StaticRates) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// FakeClock is a settable domain.Clock
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a clock frozen at now
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

// Now implements domain.Clock
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
