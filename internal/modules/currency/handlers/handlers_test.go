package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/divtrack/internal/domain"
	"github.com/aristath/divtrack/internal/modules/currency"
	testingpkg "github.com/aristath/divtrack/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestHandler(rates *testingpkg.StaticRates) (*Handler, *chi.Mux) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	cache := currency.NewRateCache(rates, currency.RateCacheConfig{
		Base:    domain.CurrencyDKK,
		TTL:     time.Hour,
		Timeout: time.Second,
	}, nil, logger)
	handler := NewHandler(cache, currency.NewConverter(cache), logger)

	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return handler, router
}

type envelope struct {
	Data     map[string]interface{} `json:"data"`
	Metadata map[string]interface{} `json:"metadata"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var resp envelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestHandleGetRate(t *testing.T) {
	_, router := setupTestHandler(testingpkg.NewStaticRates(map[domain.Currency]float64{domain.CurrencyUSD: 6.5}))

	req := httptest.NewRequest("GET", "/currency/rate/usd", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	resp := decode(t, w)
	assert.Equal(t, "USD", resp.Data["currency"])
	assert.Equal(t, "DKK", resp.Data["base_currency"])
	assert.Equal(t, "6.5", resp.Data["rate"])
	assert.Equal(t, "live", resp.Data["source"])
	assert.Contains(t, resp.Metadata, "timestamp")
}

func TestHandleGetRate_Fallback(t *testing.T) {
	rates := testingpkg.NewStaticRates(nil)
	rates.Fail = domain.FailureStatus
	_, router := setupTestHandler(rates)

	req := httptest.NewRequest("GET", "/currency/rate/EUR", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "fallback", resp.Data["source"])
	assert.Equal(t, "bad_status", resp.Data["failure"])
}

func TestHandleConvert(t *testing.T) {
	_, router := setupTestHandler(testingpkg.NewStaticRates(map[domain.Currency]float64{domain.CurrencyUSD: 6.5}))

	body, _ := json.Marshal(map[string]interface{}{"currency": "USD", "amount": 100})
	req := httptest.NewRequest("POST", "/currency/convert", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "650", resp.Data["to_amount"])
	assert.Equal(t, "DKK", resp.Data["to_currency"])
}

func TestHandleConvert_Validation(t *testing.T) {
	_, router := setupTestHandler(testingpkg.NewStaticRates(nil))

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing currency", `{"amount": 10}`},
		{"missing amount", `{"currency": "USD"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/currency/convert", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandleConvert_NegativeAmountIsZero(t *testing.T) {
	_, router := setupTestHandler(testingpkg.NewStaticRates(map[domain.Currency]float64{domain.CurrencyUSD: 6.5}))

	req := httptest.NewRequest("POST", "/currency/convert", strings.NewReader(`{"currency":"USD","amount":-5}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", decode(t, w).Data["to_amount"])
}

func TestHandleInvalidate(t *testing.T) {
	rates := testingpkg.NewStaticRates(map[domain.Currency]float64{domain.CurrencyUSD: 6.5})
	_, router := setupTestHandler(rates)

	get := func() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/currency/rate/USD", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	get()
	get()
	assert.Equal(t, 1, rates.Calls())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/currency/invalidate", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	get()
	assert.Equal(t, 2, rates.Calls())
}

func TestHandleGetRatesAndCurrencies(t *testing.T) {
	_, router := setupTestHandler(testingpkg.NewStaticRates(map[domain.Currency]float64{domain.CurrencyUSD: 6.5}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/currency/rate/USD", nil))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/currency/rates", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w).Data["count"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/currency/available-currencies", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, len(domain.SupportedCurrencies), decode(t, w).Data["count"])
}
