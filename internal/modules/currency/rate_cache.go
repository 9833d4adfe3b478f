// Package currency provides the exchange rate cache and currency conversion.
package currency

import (
	"context"
	"sort"
	"time"

	"github.com/aristath/divtrack/internal/domain"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Applied by NewRateCache to zero config fields
const (
	DefaultRateTTL     = time.Hour
	DefaultRateTimeout = 4 * time.Second
)

// RateCacheConfig configures a RateCache. Zero fields take the defaults:
// DKK base, USD default currency, DefaultRateTTL and DefaultRateTimeout.
type RateCacheConfig struct {
	Base            domain.Currency
	DefaultCurrency domain.Currency // Fallback table entry for unknown codes
	TTL             time.Duration
	Timeout         time.Duration // Bound on a single live fetch
}

// RateCache memoizes currency -> base rates for TTL. Expired entries are
// refreshed lazily on the next lookup; failed fetches store a fallback entry
// that is also kept for TTL. Safe for concurrent use.
type RateCache struct {
	fetcher domain.RateFetcher
	store   *cache.Cache
	group   singleflight.Group
	clock   domain.Clock
	cfg     RateCacheConfig
	log     zerolog.Logger
}

// NewRateCache creates a new rate cache
func NewRateCache(fetcher domain.RateFetcher, cfg RateCacheConfig, clock domain.Clock, log zerolog.Logger) *RateCache {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if cfg.Base == "" {
		cfg.Base = domain.CurrencyDKK
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = domain.CurrencyUSD
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultRateTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRateTimeout
	}
	return &RateCache{
		fetcher: fetcher,
		// Age is checked against the injected clock, so entries never expire inside go-cache
		store: cache.New(cache.NoExpiration, 0),
		clock: clock,
		cfg:   cfg,
		log:   log.With().Str("service", "rate_cache").Logger(),
	}
}

// Base returns the base currency
func (c *RateCache) Base() domain.Currency {
	return c.cfg.Base
}

// Rate returns the rate code -> base. Never <= 0.
func (c *RateCache) Rate(ctx context.Context, code domain.Currency) decimal.Decimal {
	return c.Lookup(ctx, code).RateToBase
}

// Lookup returns the cache entry for code, fetching it when missing or
// older than TTL.
func (c *RateCache) Lookup(ctx context.Context, code domain.Currency) domain.ExchangeRate {
	code = domain.ParseCurrency(string(code))

	if code == c.cfg.Base {
		return domain.ExchangeRate{
			Currency:   code,
			RateToBase: decimal.NewFromInt(1),
			Source:     domain.RateSourceBase,
			FetchedAt:  c.clock.Now(),
		}
	}

	if entry, ok := c.fresh(code); ok {
		return entry
	}

	v, _, _ := c.group.Do(string(code), func() (interface{}, error) {
		// Another caller may have refreshed while we waited
		if entry, ok := c.fresh(code); ok {
			return entry, nil
		}
		entry := c.fetch(ctx, code)
		c.store.Set(string(code), entry, cache.NoExpiration)
		return entry, nil
	})

	return v.(domain.ExchangeRate)
}

func (c *RateCache) fresh(code domain.Currency) (domain.ExchangeRate, bool) {
	v, ok := c.store.Get(string(code))
	if !ok {
		return domain.ExchangeRate{}, false
	}
	entry := v.(domain.ExchangeRate)
	if c.clock.Now().Sub(entry.FetchedAt) >= c.cfg.TTL {
		return domain.ExchangeRate{}, false
	}
	c.log.Debug().Str("currency", string(code)).Str("source", string(entry.Source)).Msg("Rate cache hit")
	return entry, true
}

// fetch asks the live source for a rate and builds the entry to store,
// falling back to the static table on any failure.
func (c *RateCache) fetch(ctx context.Context, code domain.Currency) domain.ExchangeRate {
	var res domain.Result[decimal.Decimal]

	if code == "" {
		res = domain.Fail[decimal.Decimal](domain.FailureInvalid, nil)
	} else if c.fetcher == nil {
		res = domain.Fail[decimal.Decimal](domain.FailureMissing, nil)
	} else {
		// Shared by every waiter on this key, so detach from the first caller's cancellation
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
		res = c.fetcher.FetchRate(fetchCtx, code, c.cfg.Base)
		cancel()
		if res.Ok() && !res.Value.IsPositive() {
			res = domain.Fail[decimal.Decimal](domain.FailureInvalid, nil)
		}
	}

	now := c.clock.Now()
	if res.Ok() {
		c.log.Debug().
			Str("currency", string(code)).
			Str("rate", res.Value.String()).
			Msg("Fetched live rate")
		return domain.ExchangeRate{
			Currency:   code,
			RateToBase: res.Value,
			Source:     domain.RateSourceLive,
			FetchedAt:  now,
		}
	}

	rate := FallbackRate(code, c.cfg.Base, c.cfg.DefaultCurrency)
	c.log.Warn().
		Err(res.Err).
		Str("currency", string(code)).
		Str("reason", string(res.Reason)).
		Str("fallback_rate", rate.String()).
		Msg("Live rate unavailable, using fallback rate")

	return domain.ExchangeRate{
		Currency:   code,
		RateToBase: rate,
		Source:     domain.RateSourceFallback,
		Failure:    res.Reason,
		FetchedAt:  now,
	}
}

// Warm looks up every code concurrently so later conversions hit the cache.
func (c *RateCache) Warm(ctx context.Context, codes []domain.Currency) {
	seen := make(map[domain.Currency]bool, len(codes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for _, code := range codes {
		code = domain.ParseCurrency(string(code))
		if seen[code] || code == c.cfg.Base {
			continue
		}
		seen[code] = true
		g.Go(func() error {
			c.Lookup(gctx, code)
			return nil
		})
	}
	_ = g.Wait()
}

// Invalidate drops every cached entry
func (c *RateCache) Invalidate() {
	c.store.Flush()
	c.log.Info().Msg("Rate cache invalidated")
}

// Snapshot returns the cached entries sorted by currency
func (c *RateCache) Snapshot() []domain.ExchangeRate {
	items := c.store.Items()
	out := make([]domain.ExchangeRate, 0, len(items))
	for _, item := range items {
		out = append(out, item.Object.(domain.ExchangeRate))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}
