// Package server provides the HTTP server and routing for Keel.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/openlend/keel/internal/config"
	"github.com/openlend/keel/internal/modules/cashflow"
	cashflowhandlers "github.com/openlend/keel/internal/modules/cashflow/handlers"
	"github.com/openlend/keel/internal/modules/portfolio"
	portfoliohandlers "github.com/openlend/keel/internal/modules/portfolio/handlers"
	"github.com/openlend/keel/internal/modules/recovery"
	recoveryhandlers "github.com/openlend/keel/internal/modules/recovery/handlers"
	"github.com/openlend/keel/internal/modules/risk"
	riskhandlers "github.com/openlend/keel/internal/modules/risk/handlers"
	"github.com/openlend/keel/internal/modules/scoring"
	scoringhandlers "github.com/openlend/keel/internal/modules/scoring/handlers"
	"github.com/openlend/keel/internal/reliability"
	"github.com/openlend/keel/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Log        zerolog.Logger
	Config     *config.Config
	Port       int
	DevMode    bool
	LoanRepo   *portfolio.LoanRepository
	Scoring    *scoring.Engine
	RiskModel  *risk.Model
	Aggregator *portfolio.Aggregator
	Forecaster *cashflow.Forecaster
	Scenarios  *cashflow.ScenarioEngine
	Optimizer  *recovery.Optimizer
	Cache      *reliability.SnapshotCache
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            Config
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg,
		systemHandlers: NewSystemHandlers(cfg.Log, cfg.Config.DataDir),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// SetJobs registers job instances for manual triggering via API
func (s *Server) SetJobs(review, warningScan, backup scheduler.Job) {
	s.systemHandlers.SetJobs(review, warningScan, backup)
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// System monitoring and manual job triggers
		r.Route("/system", func(r chi.Router) {
			r.Get("/info", s.systemHandlers.HandleSystemInfo)
			r.Route("/jobs", func(r chi.Router) {
				r.Post("/portfolio-review", s.systemHandlers.HandleTriggerReview)
				r.Post("/early-warning-scan", s.systemHandlers.HandleTriggerWarningScan)
				r.Post("/backup", s.systemHandlers.HandleTriggerBackup)
			})
		})

		// Credit scoring module
		scoringHandler := scoringhandlers.NewHandler(s.cfg.Scoring, s.log)
		scoringHandler.RegisterRoutes(r)

		// Loan risk module
		riskHandler := riskhandlers.NewHandler(s.cfg.RiskModel, s.cfg.LoanRepo, s.log)
		riskHandler.RegisterRoutes(r)

		// Portfolio module
		portfolioHandler := portfoliohandlers.NewHandler(s.cfg.LoanRepo, s.cfg.Aggregator, s.log)
		portfolioHandler.RegisterRoutes(r)

		// Cached nightly review, served without recomputing
		r.Get("/portfolio/review/latest", s.handleLatestReview)

		// Cash-flow module
		cashflowHandler := cashflowhandlers.NewHandler(s.cfg.Forecaster, s.cfg.Scenarios, s.log)
		cashflowHandler.RegisterRoutes(r)

		// Recovery module
		recoveryHandler := recoveryhandlers.NewHandler(s.cfg.Optimizer, s.log)
		recoveryHandler.RegisterRoutes(r)
	})
}

// handleHealth reports process liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleLatestReview serves the cached result of the last scheduled
// portfolio review. 404 until the first review has run.
func (s *Server) handleLatestReview(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Cache == nil {
		http.Error(w, "review cache not configured", http.StatusNotFound)
		return
	}

	review, err := s.cfg.Cache.Load()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load cached review")
		http.Error(w, "failed to load cached review", http.StatusInternalServerError)
		return
	}
	if review == nil {
		http.Error(w, "no review available yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data": review,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Router returns the chi router, used by tests
func (s *Server) Router() chi.Router {
	return s.router
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
