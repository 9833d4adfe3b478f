package dividends

import (
	"context"
	"time"

	"github.com/aristath/divtrack/internal/domain"
	"github.com/shopspring/decimal"
)

// Converter converts amounts into the base currency.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from domain.Currency) decimal.Decimal
	ConvertPerShare(ctx context.Context, amount decimal.Decimal, from domain.Currency) decimal.Decimal
	Base() domain.Currency
}

// Aggregator builds the expected vs received dividend summary.
type Aggregator struct {
	estimator *Estimator
	converter Converter
}

// NewAggregator creates a new aggregator
func NewAggregator(estimator *Estimator, converter Converter) *Aggregator {
	return &Aggregator{estimator: estimator, converter: converter}
}

// SummaryInput carries everything Summarize needs. Holdings and received
// dividends come from storage; DividendData from the provider.
type SummaryInput struct {
	Holdings     []domain.Holding
	DividendData map[string]domain.DividendData // Missing tickers estimate to none
	Received     []domain.ReceivedDividend
	Manual       []domain.ExpectedDividend // Already in base currency
	Now          time.Time
}

// Summarize estimates expected annual income per holding, adds manual
// expectations and sums received dividends. Received amounts are never
// recomputed.
func (a *Aggregator) Summarize(ctx context.Context, in SummaryInput) domain.DividendSummary {
	summary := domain.DividendSummary{
		BaseCurrency:         a.converter.Base(),
		ExpectedPositions:    []domain.ExpectedPosition{},
		EstimatedAnnualTotal: decimal.Zero,
		ReceivedTotal:        decimal.Zero,
		ThisYearTotal:        decimal.Zero,
	}

	for _, h := range in.Holdings {
		data := in.DividendData[h.Ticker]
		est := a.estimator.Estimate(h.Ticker, data)
		if est.Method == domain.MethodNone {
			continue
		}

		cur := dividendCurrency(data, h)
		annual := est.AnnualAmountPerShare.Mul(h.Shares)
		inBase := a.converter.Convert(ctx, annual, cur)

		summary.ExpectedPositions = append(summary.ExpectedPositions, domain.ExpectedPosition{
			Ticker:               h.Ticker,
			Source:               domain.ExpectedSourceEstimate,
			Method:               est.Method,
			Currency:             cur,
			Shares:               h.Shares,
			AnnualAmountPerShare: est.AnnualAmountPerShare,
			AnnualTotalInBase:    inBase,
		})
		summary.EstimatedAnnualTotal = summary.EstimatedAnnualTotal.Add(inBase)
	}

	for _, m := range in.Manual {
		if !m.AnnualAmountBase.IsPositive() {
			continue
		}
		summary.ExpectedPositions = append(summary.ExpectedPositions, domain.ExpectedPosition{
			Ticker:            m.Ticker,
			Source:            domain.ExpectedSourceManual,
			Currency:          summary.BaseCurrency,
			Shares:            decimal.Zero,
			AnnualTotalInBase: m.AnnualAmountBase,
		})
		summary.EstimatedAnnualTotal = summary.EstimatedAnnualTotal.Add(m.AnnualAmountBase)
	}

	summary.EstimatedAnnualTotal = summary.EstimatedAnnualTotal.Round(2)
	summary.MonthlyAverage = summary.EstimatedAnnualTotal.Div(decimal.NewFromInt(12)).Round(2)

	yearStart := time.Date(in.Now.Year(), time.January, 1, 0, 0, 0, 0, in.Now.Location())
	for _, r := range in.Received {
		summary.ReceivedTotal = summary.ReceivedTotal.Add(r.AmountBase)
		if !r.PaidAt.Before(yearStart) && !r.PaidAt.After(in.Now) {
			summary.ThisYearTotal = summary.ThisYearTotal.Add(r.AmountBase)
		}
	}
	summary.ReceivedTotal = summary.ReceivedTotal.Round(2)
	summary.ThisYearTotal = summary.ThisYearTotal.Round(2)

	return summary
}

// dividendCurrency picks the currency dividends are paid in: the provider's,
// else the holding's stored currency, else the one inferred from the ticker.
func dividendCurrency(data domain.DividendData, h domain.Holding) domain.Currency {
	if data.Currency != "" {
		return data.Currency
	}
	return domain.ResolveCurrency(h.CostCurrency, h.Ticker)
}
