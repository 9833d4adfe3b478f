// Package handlers provides HTTP handlers for portfolio management.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/divtrack/internal/domain"
	"github.com/aristath/divtrack/internal/modules/portfolio"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	service      *portfolio.Service
	liveInterval time.Duration
	log          zerolog.Logger
}

// NewHandler creates a new portfolio handler. liveInterval is how often the
// live feed pushes a fresh valuation.
func NewHandler(service *portfolio.Service, liveInterval time.Duration, log zerolog.Logger) *Handler {
	if liveInterval <= 0 {
		liveInterval = 30 * time.Second
	}
	return &Handler{
		service:      service,
		liveInterval: liveInterval,
		log:          log.With().Str("handler", "portfolio").Logger(),
	}
}

// BuyRequest is the body of POST /portfolio/holdings
type BuyRequest struct {
	AcquiredAt *time.Time       `json:"acquired_at"`
	Ticker     string           `json:"ticker"`
	Currency   string           `json:"currency"`
	Shares     *decimal.Decimal `json:"shares"`
	Price      *decimal.Decimal `json:"cost_basis_per_share"`
	BookCash   bool             `json:"book_cash"`
}

// DisposeRequest is the body of POST /portfolio/holdings/{ticker}/dispose
type DisposeRequest struct {
	Currency string           `json:"currency"`
	Shares   *decimal.Decimal `json:"shares"`
	Price    *decimal.Decimal `json:"price"`
}

// HandleGetPortfolio returns every position valued in the base currency
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.Valuation(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to value portfolio")
		h.writeError(w, http.StatusInternalServerError, "Failed to value portfolio")
		return
	}

	h.writeData(w, http.StatusOK, v)
}

// HandleGetSummary returns portfolio totals without the position list
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.Valuation(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to value portfolio")
		h.writeError(w, http.StatusInternalServerError, "Failed to value portfolio")
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"base_currency": v.BaseCurrency,
		"totals":        v.Totals,
		"cash_in_base":  v.CashInBase,
		"net_worth":     v.NetWorth,
		"quotes_failed": v.QuotesFailed,
		"valued_at":     v.ValuedAt.Format(time.RFC3339),
	})
}

// HandleListHoldings returns the stored holding lots
func (h *Handler) HandleListHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.service.Holdings(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list holdings")
		h.writeError(w, http.StatusInternalServerError, "Failed to list holdings")
		return
	}
	if holdings == nil {
		holdings = []domain.Holding{}
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"holdings": holdings,
		"count":    len(holdings),
	})
}

// HandleCreateHolding adds a holding lot
func (h *Handler) HandleCreateHolding(w http.ResponseWriter, r *http.Request) {
	var req BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Shares == nil || req.Price == nil {
		h.writeError(w, http.StatusBadRequest, "shares and cost_basis_per_share are required")
		return
	}

	in := portfolio.BuyRequest{
		Ticker:   req.Ticker,
		Currency: domain.ParseCurrency(req.Currency),
		Shares:   *req.Shares,
		Price:    *req.Price,
		BookCash: req.BookCash,
	}
	if req.AcquiredAt != nil {
		in.AcquiredAt = *req.AcquiredAt
	}

	holding, err := h.service.Buy(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, err, "Failed to create holding")
		return
	}

	h.writeData(w, http.StatusCreated, holding)
}

// HandleDispose removes shares of a ticker, oldest lot first
func (h *Handler) HandleDispose(w http.ResponseWriter, r *http.Request) {
	var req DisposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Shares == nil {
		h.writeError(w, http.StatusBadRequest, "shares is required")
		return
	}

	ticker := chi.URLParam(r, "ticker")
	err := h.service.Sell(r.Context(), portfolio.SellRequest{
		Ticker:   ticker,
		Currency: domain.ParseCurrency(req.Currency),
		Shares:   *req.Shares,
		Price:    req.Price,
	})
	if err != nil {
		h.writeServiceError(w, err, "Failed to dispose holding")
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"ticker":   ticker,
		"disposed": req.Shares,
	})
}

// HandleDeleteHolding removes a holding lot
func (h *Handler) HandleDeleteHolding(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err, "Failed to delete holding")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, domain.ErrInsufficientShares):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Msg(msg)
		h.writeError(w, http.StatusInternalServerError, msg)
	}
}

// writeData wraps data in the standard response envelope
func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": data,
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

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
