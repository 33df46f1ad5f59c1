package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers all cash-flow routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/cashflow", func(r chi.Router) {
		r.Post("/forecast", h.HandleForecast)
		r.Post("/scenarios", h.HandleScenarios)
	})
}
