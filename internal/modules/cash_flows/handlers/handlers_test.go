package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/divtrack/internal/domain"
	"github.com/aristath/divtrack/internal/modules/cash_flows"
	"github.com/aristath/divtrack/internal/modules/currency"
	testingpkg "github.com/aristath/divtrack/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "ledger")
	t.Cleanup(cleanup)

	cache := currency.NewRateCache(testingpkg.NewStaticRates(map[domain.Currency]float64{domain.CurrencyUSD: 6.5}), currency.RateCacheConfig{
		Base:    domain.CurrencyDKK,
		TTL:     time.Hour,
		Timeout: time.Second,
	}, nil, zerolog.Nop())
	svc := cash_flows.NewService(cash_flows.NewRepository(db.Conn(), zerolog.Nop()), currency.NewConverter(cache), zerolog.Nop())

	router := chi.NewRouter()
	NewHandler(svc, zerolog.Nop()).RegisterRoutes(router)
	return router
}

func request(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func data(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp.Data
}

func TestCashLifecycle(t *testing.T) {
	router := setupTestRouter(t)

	w := request(router, "POST", "/cash", `{"kind":"deposit","currency":"usd","amount":"100"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := data(t, w)
	assert.Equal(t, "USD", created["currency"])
	id := created["id"].(string)

	w = request(router, "GET", "/cash/balance", "")
	require.Equal(t, http.StatusOK, w.Code)
	balance := data(t, w)
	assert.Equal(t, "DKK", balance["base_currency"])
	assert.Equal(t, "650", balance["total_in_base"])

	w = request(router, "GET", "/cash?kind=deposit", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, data(t, w)["count"])

	w = request(router, "DELETE", "/cash/"+id, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = request(router, "DELETE", "/cash/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleCreate_Validation(t *testing.T) {
	router := setupTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{`},
		{"missing amount", `{"kind":"deposit","currency":"DKK"}`},
		{"unknown kind", `{"kind":"gift","currency":"DKK","amount":"1"}`},
		{"negative withdrawal", `{"kind":"withdrawal","currency":"DKK","amount":"-1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := request(router, "POST", "/cash", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandleList_BadQuery(t *testing.T) {
	router := setupTestRouter(t)

	for _, q := range []string{"kind=gift", "since=yesterday", "limit=-1"} {
		w := request(router, "GET", "/cash?"+q, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}
