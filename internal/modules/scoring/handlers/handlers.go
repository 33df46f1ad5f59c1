// Package handlers provides HTTP handlers for credit scoring operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/openlend/keel/internal/domain"
	"github.com/openlend/keel/internal/modules/scoring"
)

// Handler handles credit scoring HTTP requests
type Handler struct {
	engine *scoring.Engine
	log    zerolog.Logger
}

// NewHandler creates a new scoring handler
func NewHandler(engine *scoring.Engine, log zerolog.Logger) *Handler {
	return &Handler{
		engine: engine,
		log:    log.With().Str("handler", "scoring").Logger(),
	}
}

// ScoreRequest represents a request to score a loan application
type ScoreRequest struct {
	Borrower   domain.BorrowerProfile   `json:"borrower"`
	Amount     float64                  `json:"amount"`
	Collateral *domain.CollateralRecord `json:"collateral,omitempty"`
}

// HandleScore handles POST /api/scoring/score
func (h *Handler) HandleScore(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Amount <= 0 {
		http.Error(w, "Loan amount must be positive", http.StatusBadRequest)
		return
	}

	score := h.engine.Score(req.Borrower, scoring.LoanRequest{
		Amount:     req.Amount,
		Collateral: req.Collateral,
	})

	response := map[string]interface{}{
		"data": score,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
