// Package handlers provides HTTP handlers for loan risk assessment.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/openlend/keel/internal/domain"
	"github.com/openlend/keel/internal/modules/risk"
)

// Handler handles loan risk HTTP requests
type Handler struct {
	model *risk.Model
	store domain.LoanStore
	log   zerolog.Logger
}

// NewHandler creates a new risk handler
func NewHandler(model *risk.Model, store domain.LoanStore, log zerolog.Logger) *Handler {
	return &Handler{
		model: model,
		store: store,
		log:   log.With().Str("handler", "risk").Logger(),
	}
}

// AssessRequest carries the full record set for an ad hoc assessment.
type AssessRequest struct {
	Loan       domain.LoanRecord        `json:"loan"`
	Collateral *domain.CollateralRecord `json:"collateral,omitempty"`
	Borrower   domain.BorrowerProfile   `json:"borrower"`
}

// HandleAssess handles POST /api/risk/assess
func (h *Handler) HandleAssess(w http.ResponseWriter, r *http.Request) {
	var req AssessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	assessment := h.model.Assess(req.Loan, req.Collateral, req.Borrower)

	h.writeJSON(w, http.StatusOK, envelope(assessment))
}

// HandleAssessLoan handles GET /api/risk/loans/{id} - assessment of a stored loan
func (h *Handler) HandleAssessLoan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	loan, err := h.store.GetLoan(id)
	if err != nil {
		h.log.Error().Err(err).Str("loan_id", id).Msg("Failed to load loan")
		http.Error(w, "Failed to load loan", http.StatusInternalServerError)
		return
	}
	if loan == nil {
		http.Error(w, "Loan not found", http.StatusNotFound)
		return
	}

	var borrower domain.BorrowerProfile
	if stored, err := h.store.GetBorrower(loan.BorrowerID); err == nil && stored != nil {
		borrower = *stored
	}

	var collateral *domain.CollateralRecord
	if loan.CollateralID != "" {
		collateral, err = h.store.GetCollateral(loan.CollateralID)
		if err != nil {
			h.log.Warn().Err(err).Str("loan_id", id).Msg("Failed to load collateral, assessing unsecured")
		}
	}

	assessment := h.model.Assess(*loan, collateral, borrower)

	h.writeJSON(w, http.StatusOK, envelope(assessment))
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
