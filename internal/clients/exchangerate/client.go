// Package exchangerate provides a client for exchangerate-api.com.
package exchangerate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/divtrack/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultBaseURL is the public exchangerate-api.com endpoint
const DefaultBaseURL = "https://api.exchangerate-api.com"

// Client for exchangerate-api.com
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new exchangerate-api.com client.
// timeout bounds every request.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log.With().Str("client", "exchangerate-api").Logger(),
	}
}

type latestResponse struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// FetchRate returns how many units of `to` one unit of `from` buys.
// Every failure is returned as a tagged result; the caller decides on fallback.
func (c *Client) FetchRate(ctx context.Context, from, to domain.Currency) domain.Result[decimal.Decimal] {
	if from == to {
		return domain.OK(decimal.NewFromInt(1))
	}

	url := fmt.Sprintf("%s/v4/latest/%s", c.baseURL, from)
	c.log.Debug().Str("url", url).Msg("Fetching rates")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Fail[decimal.Decimal](domain.FailureInvalid, fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.FailWith[decimal.Decimal](fmt.Errorf("API request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.FailWith[decimal.Decimal](&domain.StatusError{URL: url, StatusCode: resp.StatusCode})
	}

	var result latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.Fail[decimal.Decimal](domain.FailureMalformed, fmt.Errorf("failed to parse response: %w", err))
	}

	rate, exists := result.Rates[string(to)]
	if !exists {
		return domain.Fail[decimal.Decimal](domain.FailureMissing, &domain.MissingError{Key: string(from) + "->" + string(to)})
	}
	if !rate.IsPositive() {
		return domain.Fail[decimal.Decimal](domain.FailureInvalid, fmt.Errorf("non-positive rate %s for %s->%s", rate, from, to))
	}

	c.log.Debug().
		Str("from", string(from)).
		Str("to", string(to)).
		Str("rate", rate.String()).
		Msg("Fetched rate")

	return domain.OK(rate)
}
