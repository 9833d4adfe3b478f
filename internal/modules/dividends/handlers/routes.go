package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all dividend routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/dividends", func(r chi.Router) {
		r.Get("/summary", h.HandleGetSummary)
		r.Get("/estimate/{ticker}", h.HandleGetEstimate)

		r.Route("/received", func(r chi.Router) {
			r.Get("/", h.HandleListReceived)
			r.Post("/", h.HandleCreateReceived)
			r.Delete("/{id}", h.HandleDeleteReceived)
		})

		r.Route("/expected", func(r chi.Router) {
			r.Get("/", h.HandleListExpected)
			r.Post("/", h.HandleSetExpected)
			r.Post("/refresh", h.HandleRefreshExpected)
			r.Delete("/{id}", h.HandleDeleteExpected)
		})
	})
}
