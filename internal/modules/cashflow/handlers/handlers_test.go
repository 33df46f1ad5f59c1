package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlend/keel/internal/config"
	"github.com/openlend/keel/internal/modules/cashflow"
)

func setupTestHandler() *Handler {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	params := config.DefaultRiskParameters()
	forecaster := cashflow.NewForecaster(params.CashFlow, logger)
	scenarios := cashflow.NewScenarioEngine(forecaster, params.Scenarios, logger)
	return NewHandler(forecaster, scenarios, logger)
}

func forecastRequestBody() []byte {
	bodyBytes, _ := json.Marshal(map[string]interface{}{
		"fund_size":                 50_000_000,
		"current_cash":              5_000_000,
		"annual_collections":        12_000_000,
		"annual_originations":       9_600_000,
		"annual_operating_expenses": 1_200_000,
		"annual_management_fees":    600_000,
		"scheduled_contributions":   3_000_000,
		"scheduled_distributions":   1_200_000,
		"horizon_months":            12,
		"start_month":               1,
	})
	return bodyBytes
}

func TestHandleForecast(t *testing.T) {
	handler := setupTestHandler()

	req := httptest.NewRequest("POST", "/api/cashflow/forecast", bytes.NewReader(forecastRequestBody()))
	w := httptest.NewRecorder()

	handler.HandleForecast(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)

	data := response["data"].(map[string]interface{})
	assert.Equal(t, 12.0, data["months"])
	projections := data["projections"].([]interface{})
	require.Len(t, projections, 12)

	first := projections[0].(map[string]interface{})
	assert.Equal(t, 1.0, first["month"])
	assert.Equal(t, 5_000_000.0, first["opening_cash"])
}

func TestHandleForecastRejectsZeroHorizon(t *testing.T) {
	handler := setupTestHandler()

	bodyBytes, _ := json.Marshal(map[string]interface{}{"horizon_months": 0})
	req := httptest.NewRequest("POST", "/api/cashflow/forecast", bytes.NewReader(bodyBytes))
	w := httptest.NewRecorder()

	handler.HandleForecast(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleScenarios(t *testing.T) {
	handler := setupTestHandler()

	req := httptest.NewRequest("POST", "/api/cashflow/scenarios", bytes.NewReader(forecastRequestBody()))
	w := httptest.NewRecorder()

	handler.HandleScenarios(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)

	data := response["data"].(map[string]interface{})
	results := data["results"].([]interface{})
	require.Len(t, results, 4)

	first := results[0].(map[string]interface{})
	assert.Equal(t, "base", first["name"])
	assert.Contains(t, first, "minimum_cash")
	assert.Contains(t, first, "liquidity_safe")
}
