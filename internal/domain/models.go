// Package domain provides core domain models and types.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is a stored equity position. Shares are always positive; a full
// disposal removes the holding instead of keeping a zero row.
type Holding struct {
	AcquiredAt        time.Time       `json:"acquired_at"`
	ID                string          `json:"id"`
	Ticker            string          `json:"ticker"`
	CostCurrency      Currency        `json:"cost_currency,omitempty"` // Empty means "infer from ticker"
	Shares            decimal.Decimal `json:"shares"`
	CostBasisPerShare decimal.Decimal `json:"cost_basis_per_share"`
}

// Quote is a live price for a ticker. Never persisted.
type Quote struct {
	Ticker   string          `json:"ticker"`
	Currency Currency        `json:"currency"`
	Price    decimal.Decimal `json:"price"`
}

// DividendHistoryPoint is a single historical dividend payment.
type DividendHistoryPoint struct {
	Date           time.Time       `json:"date"`
	AmountPerShare decimal.Decimal `json:"amount_per_share"`
}

// DividendData is everything the market data provider knows about a ticker's
// dividends. Every field is optional.
type DividendData struct {
	DividendRate  *decimal.Decimal       `json:"dividend_rate,omitempty"`  // Declared forward annual rate
	TrailingYield *decimal.Decimal       `json:"trailing_yield,omitempty"` // Fraction, e.g. 0.0123
	CurrentPrice  *decimal.Decimal       `json:"current_price,omitempty"`
	Currency      Currency               `json:"currency,omitempty"`
	History       []DividendHistoryPoint `json:"history,omitempty"`
}

// EstimateMethod records which rule produced a dividend estimate.
type EstimateMethod string

const (
	MethodDeclaredRate      EstimateMethod = "declared-rate"
	MethodTrailingYield     EstimateMethod = "trailing-yield"
	MethodOutlierFiltered   EstimateMethod = "outlier-filtered-history"
	MethodQuarterlyFallback EstimateMethod = "quarterly-fallback"
	MethodNone              EstimateMethod = "none"
)

// DividendEstimate is the regular (non-special) annual dividend per share.
type DividendEstimate struct {
	Ticker               string          `json:"ticker"`
	Method               EstimateMethod  `json:"method"`
	AnnualAmountPerShare decimal.Decimal `json:"annual_amount_per_share"`
}

// RateSource tells where a cached exchange rate came from.
type RateSource string

const (
	RateSourceBase     RateSource = "base"
	RateSourceLive     RateSource = "live"
	RateSourceFallback RateSource = "fallback"
)

// ExchangeRate is an immutable cache entry: currency -> base currency.
type ExchangeRate struct {
	FetchedAt  time.Time       `json:"fetched_at"`
	Currency   Currency        `json:"currency"`
	Source     RateSource      `json:"source"`
	Failure    FailureReason   `json:"failure,omitempty"` // Why the live fetch failed, for fallback entries
	RateToBase decimal.Decimal `json:"rate_to_base"`
}

// PriceSource tells how a valued position got its current price.
type PriceSource string

const (
	PriceSourceLive      PriceSource = "live"
	PriceSourceMissing   PriceSource = "missing"
	PriceSourceCostBasis PriceSource = "cost_basis"
)

// ValuedPosition is a holding enriched with base-currency valuation. Derived, never stored.
type ValuedPosition struct {
	Holding
	Currency           Currency        `json:"currency"`
	PriceSource        PriceSource     `json:"price_source"`
	CurrentPriceInBase decimal.Decimal `json:"current_price_in_base"`
	CurrentValueInBase decimal.Decimal `json:"current_value_in_base"`
	CostInBase         decimal.Decimal `json:"cost_in_base"`
	GainInBase         decimal.Decimal `json:"gain_in_base"`
	GainPercent        decimal.Decimal `json:"gain_percent"`
	AllocationPercent  decimal.Decimal `json:"allocation_percent"`
}

// PortfolioTotals aggregates a set of valued positions.
type PortfolioTotals struct {
	TotalCost   decimal.Decimal `json:"total_cost"`
	TotalValue  decimal.Decimal `json:"total_value"`
	TotalGain   decimal.Decimal `json:"total_gain"`
	GainPercent decimal.Decimal `json:"gain_percent"`
	Count       int             `json:"count"`
}

// ReceivedDividend is a dividend actually paid out. AmountBase is fixed when
// the record is created and never recomputed.
type ReceivedDividend struct {
	PaidAt     time.Time       `json:"paid_at"`
	CreatedAt  time.Time       `json:"created_at"`
	ID         string          `json:"id"`
	Ticker     string          `json:"ticker"`
	Currency   Currency        `json:"currency"`
	Note       string          `json:"note,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	AmountBase decimal.Decimal `json:"amount_base"`
}

// Expected dividend record sources.
const (
	ExpectedSourceManual   = "manual"
	ExpectedSourceEstimate = "estimate"
)

// ExpectedDividend is a stored expectation of annual dividend income for a
// ticker, either entered by hand or cached from the estimator.
type ExpectedDividend struct {
	UpdatedAt        time.Time       `json:"updated_at"`
	ID               string          `json:"id"`
	Ticker           string          `json:"ticker"`
	Source           string          `json:"source"`
	Method           EstimateMethod  `json:"method,omitempty"`
	AnnualAmountBase decimal.Decimal `json:"annual_amount_base"`
}

// ExpectedPosition is one line of the expected dividend income breakdown.
type ExpectedPosition struct {
	Ticker               string          `json:"ticker"`
	Source               string          `json:"source"`
	Method               EstimateMethod  `json:"method,omitempty"`
	Currency             Currency        `json:"currency,omitempty"`
	Shares               decimal.Decimal `json:"shares"`
	AnnualAmountPerShare decimal.Decimal `json:"annual_amount_per_share"`
	AnnualTotalInBase    decimal.Decimal `json:"annual_total_in_base"`
}

// DividendSummary is expected vs received dividend income in the base currency.
type DividendSummary struct {
	BaseCurrency         Currency           `json:"base_currency"`
	ExpectedPositions    []ExpectedPosition `json:"expected_positions"`
	EstimatedAnnualTotal decimal.Decimal    `json:"estimated_annual_total"`
	MonthlyAverage       decimal.Decimal    `json:"monthly_average"`
	ReceivedTotal        decimal.Decimal    `json:"received_total"`
	ThisYearTotal        decimal.Decimal    `json:"this_year_total"`
}

// CashKind classifies a cash ledger entry.
type CashKind string

const (
	CashDeposit    CashKind = "deposit"
	CashWithdrawal CashKind = "withdrawal"
	CashDividend   CashKind = "dividend"
	CashBuy        CashKind = "buy"
	CashSell       CashKind = "sell"
	CashAdjustment CashKind = "adjustment"
)

// Outflow reports whether entries of this kind reduce the balance.
func (k CashKind) Outflow() bool {
	return k == CashWithdrawal || k == CashBuy
}

// Valid reports whether k is a known kind.
func (k CashKind) Valid() bool {
	switch k {
	case CashDeposit, CashWithdrawal, CashDividend, CashBuy, CashSell, CashAdjustment:
		return true
	}
	return false
}

// CashEntry is a bookkeeping entry in the cash ledger. Amount is always
// non-negative except for adjustments, the sign comes from Kind.
type CashEntry struct {
	BookedAt time.Time       `json:"booked_at"`
	ID       string          `json:"id"`
	Kind     CashKind        `json:"kind"`
	Currency Currency        `json:"currency"`
	Note     string          `json:"note,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
}

// SignedAmount returns the entry amount with the sign implied by its kind.
func (e CashEntry) SignedAmount() decimal.Decimal {
	if e.Kind.Outflow() {
		return e.Amount.Neg()
	}
	return e.Amount
}
