// Package handlers provides HTTP handlers for the cash ledger.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/divtrack/internal/domain"
	"github.com/aristath/divtrack/internal/modules/cash_flows"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Handler handles cash HTTP requests
type Handler struct {
	service *cash_flows.Service
	log     zerolog.Logger
}

// NewHandler creates a new cash handler
func NewHandler(service *cash_flows.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "cash_flows").Logger(),
	}
}

// CreateRequest is the body of POST /cash
type CreateRequest struct {
	BookedAt *time.Time       `json:"booked_at"`
	Kind     string           `json:"kind"`
	Currency string           `json:"currency"`
	Note     string           `json:"note"`
	Amount   *decimal.Decimal `json:"amount"`
}

// HandleList handles GET /api/cash?kind=&since=&until=&limit=
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := cash_flows.ListFilter{Kind: domain.CashKind(q.Get("kind"))}

	if filter.Kind != "" && !filter.Kind.Valid() {
		http.Error(w, "unknown kind", http.StatusBadRequest)
		return
	}
	for name, dst := range map[string]*time.Time{"since": &filter.Since, "until": &filter.Until} {
		if v := q.Get(name); v != "" {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				http.Error(w, name+" must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			*dst = t
		}
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}
	if !filter.Until.IsZero() {
		// Inclusive of the whole day
		filter.Until = filter.Until.Add(24*time.Hour - time.Second)
	}

	entries, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list cash entries")
		http.Error(w, "Failed to list cash entries", http.StatusInternalServerError)
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// HandleCreate handles POST /api/cash
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Amount == nil {
		http.Error(w, "amount is required", http.StatusBadRequest)
		return
	}

	entry := &domain.CashEntry{
		Kind:     domain.CashKind(req.Kind),
		Currency: domain.ParseCurrency(req.Currency),
		Note:     req.Note,
		Amount:   *req.Amount,
	}
	if req.BookedAt != nil {
		entry.BookedAt = *req.BookedAt
	}

	if err := h.service.Create(r.Context(), entry); err != nil {
		h.writeError(w, err, "Failed to book cash entry")
		return
	}

	h.writeData(w, http.StatusCreated, entry)
}

// HandleDelete handles DELETE /api/cash/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err, "Failed to delete cash entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetBalance handles GET /api/cash/balance
func (h *Handler) HandleGetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.service.Balance(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute cash balance")
		http.Error(w, "Failed to compute cash balance", http.StatusInternalServerError)
		return
	}

	h.writeData(w, http.StatusOK, balance)
}

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

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
