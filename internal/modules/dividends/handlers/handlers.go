// Package handlers provides HTTP handlers for dividend operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/divtrack/internal/domain"
	"github.com/aristath/divtrack/internal/modules/dividends"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Handler handles dividend HTTP requests
type Handler struct {
	service *dividends.Service
	log     zerolog.Logger
}

// NewHandler creates a new dividend handler
func NewHandler(service *dividends.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "dividends").Logger(),
	}
}

// ReceivedRequest is the body of POST /dividends/received
type ReceivedRequest struct {
	PaidAt   *time.Time       `json:"paid_at"`
	Ticker   string           `json:"ticker"`
	Currency string           `json:"currency"`
	Note     string           `json:"note"`
	Amount   *decimal.Decimal `json:"amount"`
}

// ExpectedRequest is the body of POST /dividends/expected
type ExpectedRequest struct {
	Ticker           string           `json:"ticker"`
	AnnualAmountBase *decimal.Decimal `json:"annual_amount_base"`
}

// HandleGetSummary handles GET /api/dividends/summary
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build dividend summary")
		http.Error(w, "Failed to build dividend summary", http.StatusInternalServerError)
		return
	}

	h.writeData(w, http.StatusOK, summary)
}

// HandleGetEstimate handles GET /api/dividends/estimate/{ticker}
func (h *Handler) HandleGetEstimate(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	if ticker == "" {
		http.Error(w, "ticker is required", http.StatusBadRequest)
		return
	}

	h.writeData(w, http.StatusOK, h.service.Estimate(r.Context(), ticker))
}

// HandleListReceived handles GET /api/dividends/received
func (h *Handler) HandleListReceived(w http.ResponseWriter, r *http.Request) {
	received, err := h.service.ListReceived(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list received dividends")
		http.Error(w, "Failed to list received dividends", http.StatusInternalServerError)
		return
	}
	if received == nil {
		received = []domain.ReceivedDividend{}
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"dividends": received,
		"count":     len(received),
	})
}

// HandleCreateReceived handles POST /api/dividends/received
func (h *Handler) HandleCreateReceived(w http.ResponseWriter, r *http.Request) {
	var req ReceivedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Ticker == "" {
		http.Error(w, "ticker is required", http.StatusBadRequest)
		return
	}
	if req.Amount == nil {
		http.Error(w, "amount is required", http.StatusBadRequest)
		return
	}

	in := dividends.RecordReceivedRequest{
		Ticker:   req.Ticker,
		Currency: domain.ParseCurrency(req.Currency),
		Note:     req.Note,
		Amount:   *req.Amount,
	}
	if req.PaidAt != nil {
		in.PaidAt = *req.PaidAt
	}

	d, err := h.service.RecordReceived(r.Context(), in)
	if err != nil {
		h.writeError(w, err, "Failed to record dividend")
		return
	}

	h.writeData(w, http.StatusCreated, d)
}

// HandleDeleteReceived handles DELETE /api/dividends/received/{id}
func (h *Handler) HandleDeleteReceived(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteReceived(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err, "Failed to delete dividend")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListExpected handles GET /api/dividends/expected?source=manual|estimate
func (h *Handler) HandleListExpected(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source != "" && source != domain.ExpectedSourceManual && source != domain.ExpectedSourceEstimate {
		http.Error(w, "source must be manual or estimate", http.StatusBadRequest)
		return
	}

	expected, err := h.service.ListExpected(r.Context(), source)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list expected dividends")
		http.Error(w, "Failed to list expected dividends", http.StatusInternalServerError)
		return
	}
	if expected == nil {
		expected = []domain.ExpectedDividend{}
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"expected": expected,
		"count":    len(expected),
	})
}

// HandleSetExpected handles POST /api/dividends/expected
func (h *Handler) HandleSetExpected(w http.ResponseWriter, r *http.Request) {
	var req ExpectedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Ticker == "" || req.AnnualAmountBase == nil {
		http.Error(w, "ticker and annual_amount_base are required", http.StatusBadRequest)
		return
	}

	e, err := h.service.SetManualExpected(r.Context(), req.Ticker, *req.AnnualAmountBase)
	if err != nil {
		h.writeError(w, err, "Failed to store expected dividend")
		return
	}

	h.writeData(w, http.StatusOK, e)
}

// HandleDeleteExpected handles DELETE /api/dividends/expected/{id}
func (h *Handler) HandleDeleteExpected(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteExpected(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err, "Failed to delete expected dividend")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRefreshExpected handles POST /api/dividends/expected/refresh
func (h *Handler) HandleRefreshExpected(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.RefreshExpected(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to refresh expected dividends")
		http.Error(w, "Failed to refresh expected dividends", http.StatusInternalServerError)
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"updated": n,
	})
}

// writeError maps domain errors to status codes
func (h *Handler) writeError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
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
