package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all cash routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/cash", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/balance", h.HandleGetBalance)
		r.Delete("/{id}", h.HandleDelete)
	})
}
