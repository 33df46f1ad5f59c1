package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/openlend/keel/internal/clients/narrative"
	"github.com/openlend/keel/internal/config"
	"github.com/openlend/keel/internal/database"
	"github.com/openlend/keel/internal/domain"
	"github.com/openlend/keel/internal/modules/cashflow"
	"github.com/openlend/keel/internal/modules/portfolio"
	"github.com/openlend/keel/internal/modules/recovery"
	"github.com/openlend/keel/internal/modules/reports"
	"github.com/openlend/keel/internal/modules/risk"
	"github.com/openlend/keel/internal/modules/scoring"
	"github.com/openlend/keel/internal/reliability"
	"github.com/openlend/keel/internal/scheduler"
	"github.com/openlend/keel/internal/server"
	"github.com/openlend/keel/pkg/logger"
)

func main() {
	// Load configuration first so the logger picks up the configured level
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting Keel")

	// Parameter tables, falling back to defaults when no override file exists
	params := config.LoadRiskParameters(cfg.DataDir, log)

	// Loan book database
	db, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "loans.db"),
		Profile: database.ProfileLedger,
		Name:    "loans",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.ExecSchema(portfolio.Schema); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply loan schema")
	}

	// Repositories and engines
	loanRepo := portfolio.NewLoanRepository(db.Conn(), log)
	scoringEngine := scoring.NewEngine(params.Credit, log)
	riskModel := risk.NewModel(params.Loan, log)
	aggregator := portfolio.NewAggregator(params.Portfolio, log)
	forecaster := cashflow.NewForecaster(params.CashFlow, log)
	scenarioEngine := cashflow.NewScenarioEngine(forecaster, params.Scenarios, log)
	optimizer := recovery.NewOptimizer(params.Recovery, log)

	// Narrative generation is optional. A typed nil must not end up in the
	// interface, so only assign when the client was actually constructed.
	var generator domain.NarrativeGenerator
	if client := narrative.New(narrative.Config{
		APIKey: cfg.AnthropicAPIKey,
		Model:  cfg.NarrativeModel,
	}, log); client != nil {
		generator = client
		log.Info().Msg("Narrative generation enabled")
	} else {
		log.Info().Msg("Narrative generation disabled, no API key configured")
	}
	reportService := reports.NewService(generator, domain.NarrativeOptions{Tier: "standard"}, log)

	cache := reliability.NewSnapshotCache(cfg.DataDir, log)

	// Background jobs
	market := domain.MarketContext{
		InterestRateTrend: "stable",
		PropertyIndex:     1.0,
		EconomicOutlook:   "neutral",
	}
	reviewJob := scheduler.NewPortfolioReviewJob(loanRepo, aggregator, reportService, cache, cfg.AvailableCash, market, log)
	warningScanJob := scheduler.NewEarlyWarningScanJob(loanRepo, riskModel, log)

	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.ReviewSchedule, reviewJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register portfolio review job")
	}
	if err := sched.AddJob(cfg.WarningsSchedule, warningScanJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register early warning scan job")
	}

	// S3 backups are optional
	var backupJob scheduler.Job
	if cfg.BackupBucket != "" {
		s3Client, err := reliability.NewS3Client(
			context.Background(),
			cfg.BackupBucket,
			cfg.BackupRegion,
			cfg.BackupAccessKey,
			cfg.BackupSecretKey,
			log,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize S3 client")
		}

		backupService := reliability.NewBackupService(s3Client, cfg.DataDir, log)
		backupJob = scheduler.NewBackupJob(backupService, cfg.BackupRetention, log)
		if err := sched.AddJob(cfg.BackupSchedule, backupJob); err != nil {
			log.Fatal().Err(err).Msg("Failed to register backup job")
		}
	} else {
		log.Info().Msg("S3 backups disabled, no bucket configured")
	}

	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Log:        log,
		Config:     cfg,
		Port:       cfg.Port,
		DevMode:    cfg.DevMode,
		LoanRepo:   loanRepo,
		Scoring:    scoringEngine,
		RiskModel:  riskModel,
		Aggregator: aggregator,
		Forecaster: forecaster,
		Scenarios:  scenarioEngine,
		Optimizer:  optimizer,
		Cache:      cache,
	})
	srv.SetJobs(reviewJob, warningScanJob, backupJob)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
