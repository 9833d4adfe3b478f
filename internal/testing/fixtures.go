package testing

import (
	"time"

	"github.com/aristath/divtrack/internal/domain"
	"github.com/shopspring/decimal"
)

// Dec parses a decimal literal, panicking on malformed input. Test use only.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// NewHolding builds a holding fixture
func NewHolding(ticker string, shares, costBasis string, currency domain.Currency) domain.Holding {
	return domain.Holding{
		ID:                "h-" + ticker,
		Ticker:            ticker,
		Shares:            Dec(shares),
		CostBasisPerShare: Dec(costBasis),
		CostCurrency:      currency,
		AcquiredAt:        time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

// NewHoldingFixtures returns a small mixed-currency portfolio
func NewHoldingFixtures() []domain.Holding {
	return []domain.Holding{
		NewHolding("AAPL", "10", "150", domain.CurrencyUSD),
		NewHolding("NOVO-B.CO", "20", "600", ""),
		NewHolding("ASML.AS", "2", "550", domain.CurrencyEUR),
	}
}

// QuarterlyHistory returns count payments of amount, one every three months,
// ending at last.
func QuarterlyHistory(last time.Time, amount string, count int) []domain.DividendHistoryPoint {
	points := make([]domain.DividendHistoryPoint, 0, count)
	for i := count - 1; i >= 0; i-- {
		points = append(points, domain.DividendHistoryPoint{
			Date:           last.AddDate(0, -3*i, 0),
			AmountPerShare: Dec(amount),
		})
	}
	return points
}
