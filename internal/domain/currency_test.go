package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestInferCurrency(t *testing.T) {
	tests := []struct {
		ticker string
		want   Currency
	}{
		{"NOVO-B.CO", CurrencyDKK},
		{"VOLV-B.ST", CurrencySEK},
		{"EQNR.OL", CurrencyNOK},
		{"NOKIA.HE", CurrencyEUR},
		{"SAP.DE", CurrencyEUR},
		{"MC.PA", CurrencyEUR},
		{"ASML.AS", CurrencyEUR},
		{"ENI.MI", CurrencyEUR},
		{"SAN.MC", CurrencyEUR},
		{"ABI.BR", CurrencyEUR},
		{"EDP.LS", CurrencyEUR},
		{"OMV.VI", CurrencyEUR},
		{"BMW.F", CurrencyEUR},
		{"ULVR.L", CurrencyGBP},
		{"NESN.SW", CurrencyCHF},
		{"RY.TO", CurrencyCAD},
		{"ABC.V", CurrencyCAD},
		{"7203.T", CurrencyJPY},
		{"0005.HK", CurrencyHKD},
		{"BHP.AX", CurrencyAUD},
		{"AAPL", CurrencyUSD},
		{"brk.b", CurrencyUSD},
		{" novo-b.co ", CurrencyDKK},
	}

	for _, tt := range tests {
		t.Run(tt.ticker, func(t *testing.T) {
			assert.Equal(t, tt.want, InferCurrency(tt.ticker))
		})
	}
}

func TestResolveCurrency(t *testing.T) {
	assert.Equal(t, CurrencyEUR, ResolveCurrency(CurrencyEUR, "AAPL"))
	assert.Equal(t, CurrencyDKK, ResolveCurrency("", "NOVO-B.CO"))
}

func TestParseCurrencyAndSupported(t *testing.T) {
	assert.Equal(t, CurrencyUSD, ParseCurrency(" usd "))
	assert.True(t, CurrencyDKK.Supported())
	assert.False(t, Currency("XYZ").Supported())
	assert.False(t, Currency("").Supported())
}

func TestCashEntrySignedAmount(t *testing.T) {
	amount := decimal.NewFromInt(100)

	assert.True(t, CashEntry{Kind: CashDeposit, Amount: amount}.SignedAmount().Equal(amount))
	assert.True(t, CashEntry{Kind: CashDividend, Amount: amount}.SignedAmount().Equal(amount))
	assert.True(t, CashEntry{Kind: CashSell, Amount: amount}.SignedAmount().Equal(amount))
	assert.True(t, CashEntry{Kind: CashWithdrawal, Amount: amount}.SignedAmount().Equal(amount.Neg()))
	assert.True(t, CashEntry{Kind: CashBuy, Amount: amount}.SignedAmount().Equal(amount.Neg()))

	assert.True(t, CashAdjustment.Valid())
	assert.False(t, CashKind("gift").Valid())
}
