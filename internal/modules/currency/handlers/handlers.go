// Package handlers provides HTTP handlers for currency operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/divtrack/internal/domain"
	"github.com/aristath/divtrack/internal/modules/currency"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Handler handles currency HTTP requests
type Handler struct {
	rates     *currency.RateCache
	converter *currency.Converter
	log       zerolog.Logger
}

// NewHandler creates a new currency handler
func NewHandler(rates *currency.RateCache, converter *currency.Converter, log zerolog.Logger) *Handler {
	return &Handler{
		rates:     rates,
		converter: converter,
		log:       log.With().Str("handler", "currency").Logger(),
	}
}

// ConvertRequest represents a request to convert an amount into the base currency
type ConvertRequest struct {
	Currency string           `json:"currency"`
	Amount   *decimal.Decimal `json:"amount"`
}

// HandleGetRate handles GET /api/currency/rate/{code}
func (h *Handler) HandleGetRate(w http.ResponseWriter, r *http.Request) {
	code := domain.ParseCurrency(chi.URLParam(r, "code"))
	if code == "" {
		http.Error(w, "currency code is required", http.StatusBadRequest)
		return
	}

	entry := h.rates.Lookup(r.Context(), code)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"currency":      entry.Currency,
			"base_currency": h.rates.Base(),
			"rate":          entry.RateToBase,
			"source":        entry.Source,
			"failure":       entry.Failure,
			"fetched_at":    entry.FetchedAt.Format(time.RFC3339),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetRates handles GET /api/currency/rates
func (h *Handler) HandleGetRates(w http.ResponseWriter, r *http.Request) {
	entries := h.rates.Snapshot()

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"base_currency": h.rates.Base(),
			"rates":         entries,
			"count":         len(entries),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleConvert handles POST /api/currency/convert
func (h *Handler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	from := domain.ParseCurrency(req.Currency)
	if from == "" {
		http.Error(w, "currency is required", http.StatusBadRequest)
		return
	}
	if req.Amount == nil {
		http.Error(w, "amount is required", http.StatusBadRequest)
		return
	}

	converted := h.converter.Convert(r.Context(), *req.Amount, from)
	entry := h.rates.Lookup(r.Context(), from)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"from_currency": from,
			"to_currency":   h.converter.Base(),
			"from_amount":   req.Amount,
			"to_amount":     converted,
			"rate":          entry.RateToBase,
			"source":        entry.Source,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleInvalidate handles POST /api/currency/invalidate
func (h *Handler) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	h.rates.Invalidate()

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"invalidated": true,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetAvailableCurrencies handles GET /api/currency/available-currencies
func (h *Handler) HandleGetAvailableCurrencies(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"base_currency": h.rates.Base(),
			"currencies":    domain.SupportedCurrencies,
			"count":         len(domain.SupportedCurrencies),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
