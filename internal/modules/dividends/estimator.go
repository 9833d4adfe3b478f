package dividends

import (
	"math"
	"sort"
	"time"

	"github.com/aristath/divtrack/internal/domain"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

const (
	minHistoryPoints   = 4
	minTrailingPoints  = 2
	quarterlyWindow    = 4
	minQuarterlyPoints = 3
	perSharePlaces     = 4
)

var (
	iqrMultiplier     = decimal.RequireFromString("1.5")
	specialMultiplier = decimal.RequireFromString("2.5") // Payments this many times the median are special
)

// Estimator estimates the regular annual dividend per share of a security,
// excluding special payouts. It has no side effects.
type Estimator struct {
	clock domain.Clock
}

// NewEstimator creates a new estimator. The clock sets the end of the
// trailing 12 month window.
func NewEstimator(clock domain.Clock) *Estimator {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Estimator{clock: clock}
}

// Estimate resolves the annual dividend per share. The first applicable
// method wins: declared rate, trailing yield, outlier-filtered trailing
// history, quarterly fallback. Anything that resolves to zero is reported
// as MethodNone.
func (e *Estimator) Estimate(ticker string, data domain.DividendData) domain.DividendEstimate {
	amount, method := e.resolve(data)
	amount = amount.Round(perSharePlaces)
	if !amount.IsPositive() {
		return domain.DividendEstimate{Ticker: ticker, AnnualAmountPerShare: decimal.Zero, Method: domain.MethodNone}
	}
	return domain.DividendEstimate{Ticker: ticker, AnnualAmountPerShare: amount, Method: method}
}

func (e *Estimator) resolve(data domain.DividendData) (decimal.Decimal, domain.EstimateMethod) {
	if data.DividendRate != nil && data.DividendRate.IsPositive() {
		return *data.DividendRate, domain.MethodDeclaredRate
	}

	if data.TrailingYield != nil && data.CurrentPrice != nil {
		if product := data.TrailingYield.Mul(*data.CurrentPrice); product.IsPositive() {
			return product, domain.MethodTrailingYield
		}
	}

	if len(data.History) < minHistoryPoints {
		return decimal.Zero, domain.MethodNone
	}

	if sum, ok := e.outlierFilteredSum(data.History); ok {
		return sum, domain.MethodOutlierFiltered
	}

	if annual, ok := quarterlyFallback(data.History); ok {
		return annual, domain.MethodQuarterlyFallback
	}

	return decimal.Zero, domain.MethodNone
}

// outlierFilteredSum sums the payments of the trailing 12 months that fall
// inside the Tukey fences. A payment exactly on a fence is kept. ok is false
// when fewer than two payments are in the window.
func (e *Estimator) outlierFilteredSum(history []domain.DividendHistoryPoint) (decimal.Decimal, bool) {
	amounts := trailingAmounts(history, e.clock.Now())
	if len(amounts) < minTrailingPoints {
		return decimal.Zero, false
	}

	sorted := sortedCopy(amounts)
	q1 := Percentile(sorted, 25)
	q3 := Percentile(sorted, 75)
	reach := q3.Sub(q1).Mul(iqrMultiplier)
	lower := q1.Sub(reach)
	upper := q3.Add(reach)

	sum := decimal.Zero
	for _, a := range amounts {
		if a.LessThan(lower) || a.GreaterThan(upper) {
			continue
		}
		sum = sum.Add(a)
	}
	return sum, true
}

// quarterlyFallback annualizes the last four payments after dropping any at
// or above 2.5x their median. ok is false when fewer than three remain.
func quarterlyFallback(history []domain.DividendHistoryPoint) (decimal.Decimal, bool) {
	points := make([]domain.DividendHistoryPoint, len(history))
	copy(points, history)
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	last := points[len(points)-quarterlyWindow:]

	amounts := make([]decimal.Decimal, 0, len(last))
	for _, p := range last {
		amounts = append(amounts, p.AmountPerShare)
	}
	threshold := Percentile(sortedCopy(amounts), 50).Mul(specialMultiplier)

	var kept []decimal.Decimal
	for _, a := range amounts {
		if a.GreaterThanOrEqual(threshold) {
			continue
		}
		kept = append(kept, a)
	}
	if len(kept) < minQuarterlyPoints {
		return decimal.Zero, false
	}

	sum := decimal.Sum(kept[0], kept[1:]...)
	return sum.Mul(decimal.NewFromInt(quarterlyWindow)).Div(decimal.NewFromInt(int64(len(kept)))), true
}

// trailingAmounts returns the payments dated within the 12 months up to now.
func trailingAmounts(history []domain.DividendHistoryPoint, now time.Time) []decimal.Decimal {
	cutoff := now.AddDate(-1, 0, 0)
	var out []decimal.Decimal
	for _, p := range history {
		if p.Date.Before(cutoff) || p.Date.After(now) {
			continue
		}
		out = append(out, p.AmountPerShare)
	}
	return out
}

func sortedCopy(amounts []decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(amounts))
	copy(out, amounts)
	sort.Slice(out, func(i, j int) bool { return out[i].LessThan(out[j]) })
	return out
}

// Percentile returns the p-th percentile (0-100) of ascending sorted values,
// interpolating linearly between the ranks around p/100*(n-1). The result is
// exact. An empty slice gives zero.
func Percentile(sorted []decimal.Decimal, p int64) decimal.Decimal {
	n := int64(len(sorted))
	if n == 0 {
		return decimal.Zero
	}
	if n == 1 {
		return sorted[0]
	}

	idx := decimal.NewFromInt(p * (n - 1)).Shift(-2)
	lo := idx.Floor().IntPart()
	frac := idx.Sub(decimal.NewFromInt(lo))
	if frac.IsZero() {
		return sorted[lo]
	}
	return sorted[lo].Add(frac.Mul(sorted[lo+1].Sub(sorted[lo])))
}

// TrailingTotal sums payments dated within the 12 months before now, for
// display next to an estimate.
func TrailingTotal(history []domain.DividendHistoryPoint, now time.Time) decimal.Decimal {
	amounts := trailingAmounts(history, now)
	if len(amounts) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(amounts[0], amounts[1:]...).Round(perSharePlaces)
}

// PayoutVariation is the coefficient of variation (sample standard deviation
// over mean) of the trailing 12 month payments. A steady payer scores near
// zero; special payouts push it up. Fewer than two payments give zero.
func PayoutVariation(history []domain.DividendHistoryPoint, now time.Time) float64 {
	amounts := trailingAmounts(history, now)
	if len(amounts) < 2 {
		return 0
	}
	xs := make([]float64, len(amounts))
	for i, a := range amounts {
		xs[i] = a.InexactFloat64()
	}
	mean, std := stat.MeanStdDev(xs, nil)
	if mean <= 0 {
		return 0
	}
	return math.Round(std/mean*10000) / 10000
}
