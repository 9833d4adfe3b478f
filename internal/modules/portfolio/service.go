package portfolio

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/divtrack/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CashLedger is the part of the cash service the portfolio books trades into.
type CashLedger interface {
	Create(ctx context.Context, entry *domain.CashEntry) error
	BalanceInBase(ctx context.Context) (decimal.Decimal, error)
}

// RateWarmer pre-loads exchange rates for a set of currencies.
type RateWarmer interface {
	Warm(ctx context.Context, codes []domain.Currency)
}

// Valuation is the full portfolio picture in the base currency.
type Valuation struct {
	ValuedAt     time.Time               `json:"valued_at"`
	BaseCurrency domain.Currency         `json:"base_currency"`
	Positions    []domain.ValuedPosition `json:"positions"`
	Totals       domain.PortfolioTotals  `json:"totals"`
	CashInBase   decimal.Decimal         `json:"cash_in_base"`
	NetWorth     decimal.Decimal         `json:"net_worth"`
	QuotesFailed bool                    `json:"quotes_failed,omitempty"` // Batch quote request failed; every price is degraded
}

// BuyRequest adds a holding lot.
type BuyRequest struct {
	AcquiredAt time.Time
	Ticker     string
	Currency   domain.Currency
	Shares     decimal.Decimal
	Price      decimal.Decimal // Per share, in Currency
	BookCash   bool            // Book a buy cash entry for shares x price
}

// SellRequest disposes shares of a ticker.
type SellRequest struct {
	Ticker   string
	Currency domain.Currency
	Shares   decimal.Decimal
	Price    *decimal.Decimal // When set, a sell cash entry is booked
}

// Service coordinates holdings, quotes and valuation.
type Service struct {
	repo     *HoldingRepository
	engine   *Engine
	provider domain.MarketDataProvider
	cash     CashLedger
	rates    RateWarmer
	clock    domain.Clock
	log      zerolog.Logger
}

// NewService creates a new portfolio service. cash and rates may be nil.
func NewService(
	repo *HoldingRepository,
	engine *Engine,
	provider domain.MarketDataProvider,
	cash CashLedger,
	rates RateWarmer,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:     repo,
		engine:   engine,
		provider: provider,
		cash:     cash,
		rates:    rates,
		clock:    domain.SystemClock{},
		log:      log.With().Str("service", "portfolio").Logger(),
	}
}

// Holdings returns all stored holdings
func (s *Service) Holdings(ctx context.Context) ([]domain.Holding, error) {
	return s.repo.GetAll(ctx)
}

// Valuation values every holding against live quotes in one batch request.
// A failed quote request degrades prices per the missing price policy; it
// never fails the valuation.
func (s *Service) Valuation(ctx context.Context) (*Valuation, error) {
	holdings, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings: %w", err)
	}

	v := &Valuation{
		ValuedAt:     s.clock.Now().UTC(),
		BaseCurrency: s.engine.converter.Base(),
		CashInBase:   decimal.Zero,
	}

	quotes := map[string]domain.Quote{}
	if len(holdings) > 0 {
		tickers := make([]string, 0, len(holdings))
		seen := make(map[string]bool)
		codes := make([]domain.Currency, 0)
		seenCur := make(map[domain.Currency]bool)
		for _, h := range holdings {
			if !seen[h.Ticker] {
				seen[h.Ticker] = true
				tickers = append(tickers, h.Ticker)
			}
			if cur := domain.ResolveCurrency(h.CostCurrency, h.Ticker); !seenCur[cur] {
				seenCur[cur] = true
				codes = append(codes, cur)
			}
		}

		if s.rates != nil {
			s.rates.Warm(ctx, codes)
		}

		q, err := s.provider.Quotes(ctx, tickers)
		if err != nil {
			s.log.Warn().
				Err(err).
				Str("reason", string(domain.Classify(err))).
				Int("tickers", len(tickers)).
				Msg("Quote request failed, valuing without live prices")
			v.QuotesFailed = true
		} else {
			quotes = q
		}
	}

	v.Positions = s.engine.Value(ctx, holdings, quotes)
	v.Totals = Summarize(v.Positions)

	if s.cash != nil {
		cash, err := s.cash.BalanceInBase(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load cash balance: %w", err)
		}
		v.CashInBase = cash
	}
	v.NetWorth = v.Totals.TotalValue.Add(v.CashInBase)

	return v, nil
}

// Buy stores a new holding lot and optionally books the cash outflow.
func (s *Service) Buy(ctx context.Context, req BuyRequest) (*domain.Holding, error) {
	if req.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", domain.ErrInvalidInput)
	}

	h := &domain.Holding{
		AcquiredAt:        req.AcquiredAt,
		Ticker:            req.Ticker,
		CostCurrency:      req.Currency,
		Shares:            req.Shares,
		CostBasisPerShare: req.Price,
	}
	if err := s.repo.Create(ctx, h); err != nil {
		return nil, err
	}

	if req.BookCash && s.cash != nil && req.Price.IsPositive() {
		s.book(ctx, domain.CashBuy, h.Ticker, req.Currency, req.Shares.Mul(req.Price), h.AcquiredAt)
	}

	return h, nil
}

// Sell disposes shares oldest lot first and optionally books the proceeds.
func (s *Service) Sell(ctx context.Context, req SellRequest) error {
	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if err := s.repo.Dispose(ctx, ticker, req.Shares); err != nil {
		return err
	}

	if req.Price != nil && req.Price.IsPositive() && s.cash != nil {
		s.book(ctx, domain.CashSell, ticker, req.Currency, req.Shares.Mul(*req.Price), s.clock.Now())
	}
	return nil
}

// Delete removes a holding lot without booking cash.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) book(ctx context.Context, kind domain.CashKind, ticker string, cur domain.Currency, amount decimal.Decimal, at time.Time) {
	if cur == "" {
		cur = domain.InferCurrency(ticker)
	}
	entry := &domain.CashEntry{
		BookedAt: at,
		Kind:     kind,
		Currency: cur,
		Amount:   amount.Round(2),
		Note:     string(kind) + " " + ticker,
	}
	if err := s.cash.Create(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Str("kind", string(kind)).Msg("Failed to book cash entry")
	}
}
