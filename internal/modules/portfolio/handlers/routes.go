package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/", h.HandleGetPortfolio)      // Valued positions, totals, cash
		r.Get("/summary", h.HandleGetSummary) // Totals only
		r.Get("/live", h.HandleLive)          // WebSocket valuation feed

		r.Route("/holdings", func(r chi.Router) {
			r.Get("/", h.HandleListHoldings)
			r.Post("/", h.HandleCreateHolding)
			r.Post("/{ticker}/dispose", h.HandleDispose)
			r.Delete("/{id}", h.HandleDeleteHolding)
		})
	})
}
