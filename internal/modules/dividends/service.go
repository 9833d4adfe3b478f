package dividends

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aristath/divtrack/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// HoldingLister reads current holdings.
type HoldingLister interface {
	GetAll(ctx context.Context) ([]domain.Holding, error)
}

// CashBooker books entries in the cash ledger.
type CashBooker interface {
	Create(ctx context.Context, entry *domain.CashEntry) error
}

// RateWarmer pre-loads exchange rates for a set of currencies.
type RateWarmer interface {
	Warm(ctx context.Context, codes []domain.Currency)
}

// EstimateDetail is an estimate plus the context a caller needs to judge it.
type EstimateDetail struct {
	domain.DividendEstimate
	Currency           domain.Currency      `json:"currency"`
	AnnualPerShareBase decimal.Decimal      `json:"annual_per_share_in_base"`
	TrailingTotal      decimal.Decimal      `json:"trailing_12m_total"`
	PayoutVariation    float64              `json:"payout_variation"`
	HistoryPoints      int                  `json:"history_points"`
	ProviderFailure    domain.FailureReason `json:"provider_failure,omitempty"`
}

// RecordReceivedRequest is the input for booking a received dividend.
type RecordReceivedRequest struct {
	PaidAt   time.Time
	Ticker   string
	Currency domain.Currency
	Note     string
	Amount   decimal.Decimal
}

// Service coordinates dividend estimation, the summary and received bookings.
type Service struct {
	repo        *DividendRepository
	holdings    HoldingLister
	cash        CashBooker
	provider    domain.MarketDataProvider
	rates       RateWarmer
	estimator   *Estimator
	aggregator  *Aggregator
	converter   Converter
	clock       domain.Clock
	concurrency int
	log         zerolog.Logger
}

// ServiceConfig carries the collaborators of a Service.
type ServiceConfig struct {
	Repo        *DividendRepository
	Holdings    HoldingLister
	Cash        CashBooker
	Provider    domain.MarketDataProvider
	Rates       RateWarmer
	Converter   Converter
	Clock       domain.Clock
	Concurrency int
}

// NewService creates a new dividend service
func NewService(cfg ServiceConfig, log zerolog.Logger) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = domain.SystemClock{}
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 8
	}
	estimator := NewEstimator(clock)

	return &Service{
		repo:        cfg.Repo,
		holdings:    cfg.Holdings,
		cash:        cfg.Cash,
		provider:    cfg.Provider,
		rates:       cfg.Rates,
		estimator:   estimator,
		aggregator:  NewAggregator(estimator, cfg.Converter),
		converter:   cfg.Converter,
		clock:       clock,
		concurrency: concurrency,
		log:         log.With().Str("service", "dividends").Logger(),
	}
}

// Summary builds the dividend summary for the current holdings. Provider
// failures degrade the affected holding to no estimate; they never fail the
// summary.
func (s *Service) Summary(ctx context.Context) (domain.DividendSummary, error) {
	holdings, err := s.holdings.GetAll(ctx)
	if err != nil {
		return domain.DividendSummary{}, fmt.Errorf("failed to load holdings: %w", err)
	}

	received, err := s.repo.ListReceived(ctx)
	if err != nil {
		return domain.DividendSummary{}, fmt.Errorf("failed to load received dividends: %w", err)
	}

	manual, err := s.repo.ListExpected(ctx, domain.ExpectedSourceManual)
	if err != nil {
		return domain.DividendSummary{}, fmt.Errorf("failed to load manual expectations: %w", err)
	}

	data := s.fetchDividendData(ctx, uniqueTickers(holdings))
	s.warmRates(ctx, holdings, data)

	return s.aggregator.Summarize(ctx, SummaryInput{
		Holdings:     holdings,
		DividendData: data,
		Received:     received,
		Manual:       manual,
		Now:          s.clock.Now(),
	}), nil
}

// Estimate returns the estimate for a single ticker with its trailing total.
func (s *Service) Estimate(ctx context.Context, ticker string) EstimateDetail {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	result := s.provider.DividendData(ctx, ticker)

	data := result.OrElse(domain.DividendData{})
	est := s.estimator.Estimate(ticker, data)
	cur := data.Currency
	if cur == "" {
		cur = domain.InferCurrency(ticker)
	}

	detail := EstimateDetail{
		DividendEstimate:   est,
		Currency:           cur,
		AnnualPerShareBase: s.converter.ConvertPerShare(ctx, est.AnnualAmountPerShare, cur),
		TrailingTotal:      TrailingTotal(data.History, s.clock.Now()),
		PayoutVariation:    PayoutVariation(data.History, s.clock.Now()),
		HistoryPoints:      len(data.History),
	}
	if !result.Ok() {
		detail.ProviderFailure = result.Reason
	}
	return detail
}

// RecordReceived converts the payment into the base currency once, stores it
// and books the matching dividend cash entry.
func (s *Service) RecordReceived(ctx context.Context, req RecordReceivedRequest) (*domain.ReceivedDividend, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidInput)
	}
	cur := req.Currency
	if cur == "" {
		cur = domain.InferCurrency(req.Ticker)
	}
	paidAt := req.PaidAt
	if paidAt.IsZero() {
		paidAt = s.clock.Now()
	}

	d := &domain.ReceivedDividend{
		PaidAt:     paidAt.UTC(),
		Ticker:     req.Ticker,
		Currency:   cur,
		Note:       req.Note,
		Amount:     req.Amount,
		AmountBase: s.converter.Convert(ctx, req.Amount, cur),
	}
	if err := s.repo.CreateReceived(ctx, d); err != nil {
		return nil, err
	}

	if s.cash != nil {
		entry := &domain.CashEntry{
			BookedAt: d.PaidAt,
			Kind:     domain.CashDividend,
			Currency: cur,
			Amount:   req.Amount,
			Note:     "dividend " + d.Ticker,
		}
		if err := s.cash.Create(ctx, entry); err != nil {
			s.log.Warn().Err(err).Str("ticker", d.Ticker).Msg("Failed to book dividend cash entry")
		}
	}

	return d, nil
}

// ListReceived returns all received dividends
func (s *Service) ListReceived(ctx context.Context) ([]domain.ReceivedDividend, error) {
	return s.repo.ListReceived(ctx)
}

// DeleteReceived removes a received dividend
func (s *Service) DeleteReceived(ctx context.Context, id string) error {
	return s.repo.DeleteReceived(ctx, id)
}

// ListExpected returns stored expectations, optionally filtered by source
func (s *Service) ListExpected(ctx context.Context, source string) ([]domain.ExpectedDividend, error) {
	return s.repo.ListExpected(ctx, source)
}

// SetManualExpected stores a hand-entered annual expectation in base currency.
func (s *Service) SetManualExpected(ctx context.Context, ticker string, annualBase decimal.Decimal) (*domain.ExpectedDividend, error) {
	if annualBase.IsNegative() {
		return nil, fmt.Errorf("%w: annual amount must not be negative", domain.ErrInvalidInput)
	}
	e := &domain.ExpectedDividend{
		Ticker:           ticker,
		Source:           domain.ExpectedSourceManual,
		AnnualAmountBase: annualBase.Round(2),
	}
	if err := s.repo.UpsertExpected(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// DeleteExpected removes an expected dividend record
func (s *Service) DeleteExpected(ctx context.Context, id string) error {
	return s.repo.DeleteExpected(ctx, id)
}

// RefreshExpected recomputes estimate-sourced expectations for every held
// ticker and prunes those of tickers no longer held. Returns the number of
// records written.
func (s *Service) RefreshExpected(ctx context.Context) (int, error) {
	summary, err := s.Summary(ctx)
	if err != nil {
		return 0, err
	}

	perTicker := make(map[string]domain.ExpectedPosition)
	for _, p := range summary.ExpectedPositions {
		if p.Source != domain.ExpectedSourceEstimate {
			continue
		}
		if prev, ok := perTicker[p.Ticker]; ok {
			p.AnnualTotalInBase = p.AnnualTotalInBase.Add(prev.AnnualTotalInBase)
		}
		perTicker[p.Ticker] = p
	}

	keep := make([]string, 0, len(perTicker))
	for ticker, p := range perTicker {
		e := &domain.ExpectedDividend{
			Ticker:           ticker,
			Source:           domain.ExpectedSourceEstimate,
			Method:           p.Method,
			AnnualAmountBase: p.AnnualTotalInBase,
		}
		if err := s.repo.UpsertExpected(ctx, e); err != nil {
			return 0, err
		}
		keep = append(keep, ticker)
	}

	pruned, err := s.repo.DeleteExpectedBySourceExcept(ctx, domain.ExpectedSourceEstimate, keep)
	if err != nil {
		return 0, err
	}

	s.log.Info().
		Int("updated", len(keep)).
		Int64("pruned", pruned).
		Msg("Expected dividends refreshed")

	return len(keep), nil
}

// fetchDividendData loads dividend data for each ticker with bounded
// concurrency. Failed lookups are logged and left out of the map.
func (s *Service) fetchDividendData(ctx context.Context, tickers []string) map[string]domain.DividendData {
	out := make(map[string]domain.DividendData, len(tickers))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, ticker := range tickers {
		ticker := ticker
		g.Go(func() error {
			result := s.provider.DividendData(gctx, ticker)
			if !result.Ok() {
				s.log.Warn().
					Err(result.Err).
					Str("ticker", ticker).
					Str("reason", string(result.Reason)).
					Msg("Dividend data unavailable")
				return nil
			}
			mu.Lock()
			out[ticker] = result.Value
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// warmRates loads every rate the summary will need in parallel so the
// aggregator does not fetch them one by one.
func (s *Service) warmRates(ctx context.Context, holdings []domain.Holding, data map[string]domain.DividendData) {
	if s.rates == nil {
		return
	}
	seen := make(map[domain.Currency]bool)
	var codes []domain.Currency
	for _, h := range holdings {
		cur := dividendCurrency(data[h.Ticker], h)
		if !seen[cur] {
			seen[cur] = true
			codes = append(codes, cur)
		}
	}
	s.rates.Warm(ctx, codes)
}

func uniqueTickers(holdings []domain.Holding) []string {
	seen := make(map[string]bool, len(holdings))
	out := make([]string, 0, len(holdings))
	for _, h := range holdings {
		if !seen[h.Ticker] {
			seen[h.Ticker] = true
			out = append(out, h.Ticker)
		}
	}
	return out
}
