// Package portfolio provides holdings storage and base-currency valuation.
package portfolio

import (
	"context"
	"sort"

	"github.com/aristath/divtrack/internal/domain"
	"github.com/shopspring/decimal"
)

// Missing price policies: what a position without a live quote is valued at.
const (
	MissingPriceZero      = "zero"
	MissingPriceCostBasis = "cost_basis"
)

var hundred = decimal.NewFromInt(100)

// Converter converts amounts into the base currency.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from domain.Currency) decimal.Decimal
	Base() domain.Currency
}

// Engine values holdings against live quotes. It has no side effects.
type Engine struct {
	converter     Converter
	missingPolicy string
}

// NewEngine creates a valuation engine. An unknown policy behaves as MissingPriceZero.
func NewEngine(converter Converter, missingPolicy string) *Engine {
	if missingPolicy != MissingPriceCostBasis {
		missingPolicy = MissingPriceZero
	}
	return &Engine{converter: converter, missingPolicy: missingPolicy}
}

// Value produces one valued position per holding, ordered by descending
// allocation. Ties keep holding order. A holding without a quote is still
// listed, priced per the missing price policy.
func (e *Engine) Value(ctx context.Context, holdings []domain.Holding, quotes map[string]domain.Quote) []domain.ValuedPosition {
	positions := make([]domain.ValuedPosition, 0, len(holdings))
	totalValue := decimal.Zero

	for _, h := range holdings {
		cur := domain.ResolveCurrency(h.CostCurrency, h.Ticker)
		costPerShare := e.converter.Convert(ctx, h.CostBasisPerShare, cur)

		pos := domain.ValuedPosition{
			Holding:     h,
			Currency:    cur,
			PriceSource: domain.PriceSourceLive,
		}

		if q, ok := quotes[h.Ticker]; ok {
			pos.CurrentPriceInBase = e.converter.Convert(ctx, q.Price, cur)
		} else if e.missingPolicy == MissingPriceCostBasis {
			pos.PriceSource = domain.PriceSourceCostBasis
			pos.CurrentPriceInBase = costPerShare
		} else {
			pos.PriceSource = domain.PriceSourceMissing
			pos.CurrentPriceInBase = decimal.Zero
		}

		pos.CostInBase = costPerShare.Mul(h.Shares).Round(2)
		pos.CurrentValueInBase = pos.CurrentPriceInBase.Mul(h.Shares).Round(2)
		pos.GainInBase = pos.CurrentValueInBase.Sub(pos.CostInBase)
		pos.GainPercent = percentOf(pos.GainInBase, pos.CostInBase)
		pos.AllocationPercent = decimal.Zero

		totalValue = totalValue.Add(pos.CurrentValueInBase)
		positions = append(positions, pos)
	}

	if totalValue.IsPositive() {
		for i := range positions {
			positions[i].AllocationPercent = percentOf(positions[i].CurrentValueInBase, totalValue)
		}
	}

	sort.SliceStable(positions, func(i, j int) bool {
		return positions[i].AllocationPercent.GreaterThan(positions[j].AllocationPercent)
	})

	return positions
}

// Summarize sums valued positions.
func Summarize(positions []domain.ValuedPosition) domain.PortfolioTotals {
	totals := domain.PortfolioTotals{
		TotalCost:  decimal.Zero,
		TotalValue: decimal.Zero,
		Count:      len(positions),
	}
	for _, p := range positions {
		totals.TotalCost = totals.TotalCost.Add(p.CostInBase)
		totals.TotalValue = totals.TotalValue.Add(p.CurrentValueInBase)
	}
	totals.TotalGain = totals.TotalValue.Sub(totals.TotalCost)
	totals.GainPercent = percentOf(totals.TotalGain, totals.TotalCost)
	return totals
}

// percentOf returns part/whole*100 rounded to 2 places, or 0 when whole is not positive.
func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(2)
}
