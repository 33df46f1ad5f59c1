package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/openlend/keel/internal/config"
	"github.com/openlend/keel/internal/domain"
	"github.com/openlend/keel/internal/modules/cashflow"
	"github.com/openlend/keel/internal/modules/portfolio"
	"github.com/openlend/keel/internal/modules/recovery"
	"github.com/openlend/keel/internal/modules/risk"
	"github.com/openlend/keel/internal/modules/scoring"
	"github.com/openlend/keel/internal/reliability"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	log := zerolog.New(nil).Level(zerolog.Disabled)
	params := config.DefaultRiskParameters()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(portfolio.Schema)
	require.NoError(t, err)

	repo := portfolio.NewLoanRepository(db, log)
	forecaster := cashflow.NewForecaster(params.CashFlow, log)

	return New(Config{
		Log:        log,
		Config:     &config.Config{DataDir: t.TempDir()},
		Port:       0,
		DevMode:    true,
		LoanRepo:   repo,
		Scoring:    scoring.NewEngine(params.Credit, log),
		RiskModel:  risk.NewModel(params.Loan, log),
		Aggregator: portfolio.NewAggregator(params.Portfolio, log),
		Forecaster: forecaster,
		Scenarios:  cashflow.NewScenarioEngine(forecaster, params.Scenarios, log),
		Optimizer:  recovery.NewOptimizer(params.Recovery, log),
		Cache:      reliability.NewSnapshotCache(t.TempDir(), log),
	})
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestServer_ModuleRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	// A scoring request through the full router exercises middleware
	// and route registration together.
	payload := `{
		"borrower": {
			"id": "b-1",
			"type": "business",
			"industry": "services",
			"years_operating": 10,
			"annual_revenue": 1500000,
			"monthly_cash_flow": 30000,
			"net_worth": 2000000
		},
		"amount": 250000
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/scoring/score", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Contains(t, body, "data")
}

func TestServer_LatestReview(t *testing.T) {
	s := newTestServer(t)

	t.Run("404 before first review", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/portfolio/review/latest", nil)
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("serves cached review once stored", func(t *testing.T) {
		require.NoError(t, s.cfg.Cache.Store(reliability.CachedReview{
			Snapshot: domain.PortfolioSnapshot{TotalValue: 1_000_000, ActiveLoans: 4},
			Risk:     portfolio.RiskReport{OverallScore: 28, RiskLevel: "Low"},
			CachedAt: time.Now().UTC(),
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/portfolio/review/latest", nil)
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		data, ok := body["data"].(map[string]interface{})
		require.True(t, ok)
		risk, ok := data["risk"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "Low", risk["risk_level"])
	})
}

func TestSystemHandlers_HandleSystemInfo(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	h := NewSystemHandlers(log, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/api/system/info", nil)
	rec := httptest.NewRecorder()
	h.HandleSystemInfo(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var info SystemInfoResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&info))
	assert.NotEmpty(t, info.GoVersion)
	assert.Greater(t, info.NumGoroutines, 0)
	assert.GreaterOrEqual(t, info.UptimeSeconds, int64(0))
}

func TestSystemHandlers_TriggerJobNotRegistered(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	h := NewSystemHandlers(log, t.TempDir())

	req := httptest.NewRequest(http.MethodPost, "/api/system/jobs/portfolio-review", nil)
	rec := httptest.NewRecorder()
	h.HandleTriggerReview(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "error", body["status"])
}
