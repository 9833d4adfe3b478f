package cash_flows

import (
	"context"
	"sort"

	"github.com/aristath/divtrack/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Converter converts amounts into the base currency.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from domain.Currency) decimal.Decimal
	Base() domain.Currency
}

// CurrencyBalance is the cash held in one currency.
type CurrencyBalance struct {
	Currency     domain.Currency `json:"currency"`
	Amount       decimal.Decimal `json:"amount"`
	AmountInBase decimal.Decimal `json:"amount_in_base"`
}

// Balance is the cash position across currencies.
type Balance struct {
	BaseCurrency domain.Currency   `json:"base_currency"`
	Currencies   []CurrencyBalance `json:"currencies"`
	TotalInBase  decimal.Decimal   `json:"total_in_base"`
}

// Service exposes the cash ledger and its balances in the base currency.
type Service struct {
	repo      *Repository
	converter Converter
	log       zerolog.Logger
}

// NewService creates a new cash service
func NewService(repo *Repository, converter Converter, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		converter: converter,
		log:       log.With().Str("service", "cash_flows").Logger(),
	}
}

// Create books a cash entry
func (s *Service) Create(ctx context.Context, entry *domain.CashEntry) error {
	return s.repo.Create(ctx, entry)
}

// List returns cash entries
func (s *Service) List(ctx context.Context, filter ListFilter) ([]domain.CashEntry, error) {
	return s.repo.List(ctx, filter)
}

// Delete removes a cash entry
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Balance returns per-currency balances and their base-currency total.
// Overdrawn currencies convert with their sign kept.
func (s *Service) Balance(ctx context.Context) (Balance, error) {
	balances, err := s.repo.Balances(ctx)
	if err != nil {
		return Balance{}, err
	}

	out := Balance{
		BaseCurrency: s.converter.Base(),
		Currencies:   make([]CurrencyBalance, 0, len(balances)),
		TotalInBase:  decimal.Zero,
	}
	for cur, amount := range balances {
		if amount.IsZero() {
			continue
		}
		inBase := s.converter.Convert(ctx, amount.Abs(), cur)
		if amount.IsNegative() {
			inBase = inBase.Neg()
		}
		out.Currencies = append(out.Currencies, CurrencyBalance{Currency: cur, Amount: amount, AmountInBase: inBase})
		out.TotalInBase = out.TotalInBase.Add(inBase)
	}

	sort.Slice(out.Currencies, func(i, j int) bool {
		return out.Currencies[i].Currency < out.Currencies[j].Currency
	})

	return out, nil
}

// BalanceInBase returns the total cash in the base currency
func (s *Service) BalanceInBase(ctx context.Context) (decimal.Decimal, error) {
	b, err := s.Balance(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return b.TotalInBase, nil
}
