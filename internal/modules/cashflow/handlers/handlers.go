// Package handlers provides HTTP handlers for cash-flow forecasting and
// scenario analysis.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/openlend/keel/internal/domain"
	"github.com/openlend/keel/internal/modules/cashflow"
)

// Handler handles cash-flow HTTP requests
type Handler struct {
	forecaster *cashflow.Forecaster
	scenarios  *cashflow.ScenarioEngine
	log        zerolog.Logger
}

// NewHandler creates a new cash-flow handler
func NewHandler(forecaster *cashflow.Forecaster, scenarios *cashflow.ScenarioEngine, log zerolog.Logger) *Handler {
	return &Handler{
		forecaster: forecaster,
		scenarios:  scenarios,
		log:        log.With().Str("handler", "cashflow").Logger(),
	}
}

// HandleForecast handles POST /api/cashflow/forecast
func (h *Handler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	assumptions, ok := h.decodeAssumptions(w, r)
	if !ok {
		return
	}

	projections := h.forecaster.Project(assumptions)

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"projections": projections,
		"months":      len(projections),
	}))
}

// HandleScenarios handles POST /api/cashflow/scenarios
func (h *Handler) HandleScenarios(w http.ResponseWriter, r *http.Request) {
	assumptions, ok := h.decodeAssumptions(w, r)
	if !ok {
		return
	}

	set := h.scenarios.Run(assumptions)

	h.writeJSON(w, http.StatusOK, envelope(set))
}

func (h *Handler) decodeAssumptions(w http.ResponseWriter, r *http.Request) (domain.CashFlowAssumptions, bool) {
	var assumptions domain.CashFlowAssumptions
	if err := json.NewDecoder(r.Body).Decode(&assumptions); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return assumptions, false
	}
	if assumptions.HorizonMonths <= 0 {
		http.Error(w, "Horizon must be at least one month", http.StatusBadRequest)
		return assumptions, false
	}
	return assumptions, true
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
