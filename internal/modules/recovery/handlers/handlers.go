// Package handlers provides HTTP handlers for recovery-strategy optimization.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/openlend/keel/internal/domain"
	"github.com/openlend/keel/internal/modules/recovery"
)

// Handler handles recovery HTTP requests
type Handler struct {
	optimizer *recovery.Optimizer
	log       zerolog.Logger
}

// NewHandler creates a new recovery handler
func NewHandler(optimizer *recovery.Optimizer, log zerolog.Logger) *Handler {
	return &Handler{
		optimizer: optimizer,
		log:       log.With().Str("handler", "recovery").Logger(),
	}
}

// HandleOptimize handles POST /api/recovery/optimize
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	var recoveryCase domain.RecoveryCase
	if err := json.NewDecoder(r.Body).Decode(&recoveryCase); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if recoveryCase.OutstandingBalance <= 0 {
		http.Error(w, "Outstanding balance must be positive", http.StatusBadRequest)
		return
	}

	options := h.optimizer.Rank(recoveryCase)
	selection := h.optimizer.Select(options, recoveryCase)

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"loan_id":   recoveryCase.LoanID,
			"options":   options,
			"selection": selection,
		},
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
