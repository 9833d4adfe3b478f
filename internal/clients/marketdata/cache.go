package marketdata

import (
	"fmt"
	"time"

	"github.com/aristath/divtrack/internal/domain"
	"github.com/shopspring/decimal"
)

// cachedDividendData is the msgpack shape stored in client_data.db.
// Decimals are kept as strings so the encoding does not depend on decimal internals.
type cachedDividendData struct {
	DividendRate  string         `msgpack:"dividend_rate,omitempty"`
	TrailingYield string         `msgpack:"trailing_yield,omitempty"`
	CurrentPrice  string         `msgpack:"current_price,omitempty"`
	Currency      string         `msgpack:"currency,omitempty"`
	History       []cachedPayout `msgpack:"history,omitempty"`
}

type cachedPayout struct {
	Date   int64  `msgpack:"date"`
	Amount string `msgpack:"amount"`
}

func optString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func optDecimal(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func toCached(d domain.DividendData) cachedDividendData {
	c := cachedDividendData{
		DividendRate:  optString(d.DividendRate),
		TrailingYield: optString(d.TrailingYield),
		CurrentPrice:  optString(d.CurrentPrice),
		Currency:      string(d.Currency),
		History:       make([]cachedPayout, 0, len(d.History)),
	}
	for _, p := range d.History {
		c.History = append(c.History, cachedPayout{Date: p.Date.Unix(), Amount: p.AmountPerShare.String()})
	}
	return c
}

func (c cachedDividendData) toDomain() (domain.DividendData, error) {
	var (
		d   domain.DividendData
		err error
	)
	if d.DividendRate, err = optDecimal(c.DividendRate); err != nil {
		return d, fmt.Errorf("dividend rate: %w", err)
	}
	if d.TrailingYield, err = optDecimal(c.TrailingYield); err != nil {
		return d, fmt.Errorf("trailing yield: %w", err)
	}
	if d.CurrentPrice, err = optDecimal(c.CurrentPrice); err != nil {
		return d, fmt.Errorf("current price: %w", err)
	}
	d.Currency = domain.Currency(c.Currency)

	for _, p := range c.History {
		amount, err := decimal.NewFromString(p.Amount)
		if err != nil {
			return d, fmt.Errorf("history amount: %w", err)
		}
		d.History = append(d.History, domain.DividendHistoryPoint{
			Date:           time.Unix(p.Date, 0).UTC(),
			AmountPerShare: amount,
		})
	}
	return d, nil
}
