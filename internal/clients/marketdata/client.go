// Package marketdata provides a Yahoo Finance style quote and dividend client.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aristath/divtrack/internal/clientdata"
	"github.com/aristath/divtrack/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public Yahoo Finance query host
const DefaultBaseURL = "https://query1.finance.yahoo.com"

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	// maxSymbolsPerRequest caps the size of one batched quote request
	maxSymbolsPerRequest = 100
)

// Config configures the client
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // Requests per second, 0 = unlimited
}

// Client fetches quotes and dividend data. Safe for concurrent use.
type Client struct {
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
	cacheRepo *clientdata.Repository
	log       zerolog.Logger
}

// NewClient creates a new market data client.
// cacheRepo is optional - if nil, dividend data caching is disabled.
func NewClient(cfg Config, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	limit := rate.Inf
	burst := 1
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
		burst = int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(limit, burst),
		cacheRepo: cacheRepo,
		log:       log.With().Str("client", "marketdata").Logger(),
	}
}

type quoteResult struct {
	Symbol                      string           `json:"symbol"`
	Currency                    string           `json:"currency"`
	RegularMarketPrice          *decimal.Decimal `json:"regularMarketPrice"`
	DividendRate                *decimal.Decimal `json:"dividendRate"`
	TrailingAnnualDividendYield *decimal.Decimal `json:"trailingAnnualDividendYield"`
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []quoteResult `json:"result"`
		Error  interface{}   `json:"error"`
	} `json:"quoteResponse"`
}

type chartEventsResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency string `json:"currency"`
			} `json:"meta"`
			Events struct {
				Dividends map[string]struct {
					Amount decimal.Decimal `json:"amount"`
					Date   int64           `json:"date"`
				} `json:"dividends"`
			} `json:"events"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

// getJSON performs a rate-limited GET and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &domain.StatusError{URL: req.URL.Path, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func (c *Client) fetchQuoteResults(ctx context.Context, symbols []string) ([]quoteResult, error) {
	endpoint := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", c.baseURL, url.QueryEscape(strings.Join(symbols, ",")))

	var resp quoteResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("%w: quote API error: %v", domain.ErrMalformedResponse, resp.QuoteResponse.Error)
	}
	return resp.QuoteResponse.Result, nil
}

// Quotes fetches current prices for tickers in one batched request (chunked
// for very large portfolios). Tickers without a positive price are omitted.
func (c *Client) Quotes(ctx context.Context, tickers []string) (map[string]domain.Quote, error) {
	quotes := make(map[string]domain.Quote, len(tickers))
	if len(tickers) == 0 {
		return quotes, nil
	}

	for start := 0; start < len(tickers); start += maxSymbolsPerRequest {
		end := start + maxSymbolsPerRequest
		if end > len(tickers) {
			end = len(tickers)
		}

		results, err := c.fetchQuoteResults(ctx, tickers[start:end])
		if err != nil {
			return quotes, err
		}

		for _, r := range results {
			if r.RegularMarketPrice == nil || !r.RegularMarketPrice.IsPositive() {
				c.log.Debug().Str("ticker", r.Symbol).Msg("Quote without usable price")
				continue
			}
			cur, divisor := normalizeCurrency(r.Currency)
			quotes[r.Symbol] = domain.Quote{
				Ticker:   r.Symbol,
				Price:    r.RegularMarketPrice.Div(divisor),
				Currency: cur,
			}
		}
	}

	c.log.Debug().
		Int("requested", len(tickers)).
		Int("received", len(quotes)).
		Msg("Fetched quotes")

	return quotes, nil
}

func (c *Client) fetchDividendHistory(ctx context.Context, ticker string) ([]domain.DividendHistoryPoint, domain.Currency, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?range=2y&interval=1d&events=div", c.baseURL, url.PathEscape(ticker))

	var resp chartEventsResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, "", err
	}
	if resp.Chart.Error != nil {
		return nil, "", fmt.Errorf("%w: chart API error: %v", domain.ErrMalformedResponse, resp.Chart.Error)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, "", &domain.MissingError{Key: ticker}
	}

	result := resp.Chart.Result[0]
	cur, divisor := normalizeCurrency(result.Meta.Currency)
	history := make([]domain.DividendHistoryPoint, 0, len(result.Events.Dividends))
	for _, d := range result.Events.Dividends {
		if !d.Amount.IsPositive() {
			continue
		}
		history = append(history, domain.DividendHistoryPoint{
			Date:           time.Unix(d.Date, 0).UTC(),
			AmountPerShare: d.Amount.Div(divisor),
		})
	}
	sort.Slice(history, func(i, j int) bool { return history[i].Date.Before(history[j].Date) })

	return history, cur, nil
}

// DividendData fetches declared rate, trailing yield, price and payout
// history for one ticker. Fresh cached data is served without a request; when
// the upstream fails, stale cached data is returned if present.
func (c *Client) DividendData(ctx context.Context, ticker string) domain.Result[domain.DividendData] {
	if cached, ok := c.getCached(ticker, false); ok {
		c.log.Debug().Str("ticker", ticker).Msg("Cache hit")
		return domain.OK(cached)
	}

	data, err := c.fetchDividendData(ctx, ticker)
	if err != nil {
		if stale, ok := c.getCached(ticker, true); ok {
			c.log.Warn().
				Err(err).
				Str("ticker", ticker).
				Msg("API failed, using stale cached dividend data")
			return domain.OK(stale)
		}
		return domain.FailWith[domain.DividendData](err)
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(clientdata.TableDividendData, ticker, toCached(data), clientdata.TTLDividends); err != nil {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache dividend data")
		}
	}

	return domain.OK(data)
}

// fetchDividendData combines the quote fields with the chart dividend events.
// Either half may fail on its own; only when both fail is the ticker an error.
func (c *Client) fetchDividendData(ctx context.Context, ticker string) (domain.DividendData, error) {
	var data domain.DividendData

	results, quoteErr := c.fetchQuoteResults(ctx, []string{ticker})
	if quoteErr == nil {
		for _, r := range results {
			if r.Symbol != ticker {
				continue
			}
			// The yield is a ratio and needs no scaling
			cur, divisor := normalizeCurrency(r.Currency)
			data.DividendRate = scaled(r.DividendRate, divisor)
			data.TrailingYield = r.TrailingAnnualDividendYield
			data.CurrentPrice = scaled(r.RegularMarketPrice, divisor)
			data.Currency = cur
		}
	}

	history, chartCurrency, chartErr := c.fetchDividendHistory(ctx, ticker)
	if chartErr == nil {
		data.History = history
		if data.Currency == "" {
			data.Currency = chartCurrency
		}
	}

	if quoteErr != nil && chartErr != nil {
		return domain.DividendData{}, chartErr
	}
	if quoteErr != nil {
		c.log.Warn().Err(quoteErr).Str("ticker", ticker).Msg("Quote fields unavailable, using history only")
	}
	if chartErr != nil {
		c.log.Warn().Err(chartErr).Str("ticker", ticker).Msg("Dividend history unavailable")
	}

	return data, nil
}

// minorUnits maps the subunit codes Yahoo quotes some exchanges in to the
// major currency. Matching is case-sensitive: "GBp" is pence, "GBP" pounds.
var minorUnits = map[string]domain.Currency{
	"GBp": domain.CurrencyGBP,
	"GBX": domain.CurrencyGBP,
	"ZAc": "ZAR",
	"ZAC": "ZAR",
	"ILA": "ILS",
}

var hundred = decimal.NewFromInt(100)

// normalizeCurrency returns the major currency for code and the divisor that
// converts amounts quoted in code into it.
func normalizeCurrency(code string) (domain.Currency, decimal.Decimal) {
	code = strings.TrimSpace(code)
	if major, ok := minorUnits[code]; ok {
		return major, hundred
	}
	return domain.ParseCurrency(code), decimal.NewFromInt(1)
}

func scaled(v *decimal.Decimal, divisor decimal.Decimal) *decimal.Decimal {
	if v == nil {
		return nil
	}
	out := v.Div(divisor)
	return &out
}

func (c *Client) getCached(ticker string, allowStale bool) (domain.DividendData, bool) {
	if c.cacheRepo == nil {
		return domain.DividendData{}, false
	}

	var cached cachedDividendData
	var found bool
	var err error
	if allowStale {
		found, err = c.cacheRepo.Get(clientdata.TableDividendData, ticker, &cached)
	} else {
		found, err = c.cacheRepo.GetIfFresh(clientdata.TableDividendData, ticker, &cached)
	}
	if err != nil {
		c.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to read cached dividend data")
		return domain.DividendData{}, false
	}
	if !found {
		return domain.DividendData{}, false
	}

	data, err := cached.toDomain()
	if err != nil {
		c.log.Warn().Err(err).Str("ticker", ticker).Msg("Discarding unreadable cached dividend data")
		return domain.DividendData{}, false
	}
	return data, true
}
