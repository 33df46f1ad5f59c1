package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers all recovery routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/recovery", func(r chi.Router) {
		r.Post("/optimize", h.HandleOptimize)
	})
}
