package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/openlend/keel/internal/domain"
	"github.com/openlend/keel/internal/modules/portfolio"
	"github.com/openlend/keel/internal/modules/reports"
	"github.com/openlend/keel/internal/reliability"
)

// PortfolioReviewJob rebuilds the portfolio snapshot from the loan book,
// runs the full risk aggregation and caches the result for fast serving.
type PortfolioReviewJob struct {
	repo          *portfolio.LoanRepository
	aggregator    *portfolio.Aggregator
	reports       *reports.Service
	cache         *reliability.SnapshotCache
	availableCash float64
	market        domain.MarketContext
	log           zerolog.Logger
}

// NewPortfolioReviewJob creates a new portfolio review job
func NewPortfolioReviewJob(
	repo *portfolio.LoanRepository,
	aggregator *portfolio.Aggregator,
	reportService *reports.Service,
	cache *reliability.SnapshotCache,
	availableCash float64,
	market domain.MarketContext,
	log zerolog.Logger,
) *PortfolioReviewJob {
	return &PortfolioReviewJob{
		repo:          repo,
		aggregator:    aggregator,
		reports:       reportService,
		cache:         cache,
		availableCash: availableCash,
		market:        market,
		log:           log.With().Str("job", "portfolio_review").Logger(),
	}
}

// Name returns the job name
func (j *PortfolioReviewJob) Name() string {
	return "portfolio_review"
}

// Run executes the portfolio review
func (j *PortfolioReviewJob) Run() error {
	j.log.Info().Msg("Starting portfolio review")
	startTime := time.Now()

	book, err := j.repo.GetLoanBook()
	if err != nil {
		return fmt.Errorf("failed to load loan book: %w", err)
	}

	snapshot := portfolio.BuildSnapshot(book, j.availableCash, time.Now().UTC())
	risk := j.aggregator.Aggregate(snapshot, j.market)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	report := j.reports.BuildPortfolioReport(ctx, snapshot, risk)

	if err := j.cache.Store(reliability.CachedReview{
		Snapshot: snapshot,
		Risk:     risk,
		CachedAt: time.Now().UTC(),
	}); err != nil {
		j.log.Warn().Err(err).Msg("Failed to cache review")
	}

	event := j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Int("active_loans", snapshot.ActiveLoans).
		Float64("overall_score", risk.OverallScore).
		Str("risk_level", risk.RiskLevel).
		Bool("stress_passed", risk.StressPassed).
		Bool("narrative", report.NarrativeIncluded)

	if risk.EscalationRequired {
		event.Msg("Portfolio review completed, ESCALATION REQUIRED")
	} else {
		event.Msg("Portfolio review completed")
	}

	return nil
}
