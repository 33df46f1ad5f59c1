package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Post("/aggregate", h.HandleAggregate)
		r.Post("/risk-report", h.HandleRiskReport)
		r.Get("/snapshot", h.HandleGetSnapshot)

		r.Route("/loans", func(r chi.Router) {
			r.Get("/", h.HandleListLoans)
			r.Put("/", h.HandleSaveLoan)
			r.Get("/{id}", h.HandleGetLoan)
		})

		r.Put("/borrowers", h.HandleSaveBorrower)
		r.Put("/collateral", h.HandleSaveCollateral)
	})
}
