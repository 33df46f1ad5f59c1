package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/openlend/keel/internal/domain"
	"github.com/openlend/keel/internal/modules/portfolio"
	"github.com/openlend/keel/internal/modules/risk"
)

// Delinquency threshold for the scan and the PD above which a loan is
// escalated to the recovery pipeline.
const (
	scanMinDaysPastDue = 30
	escalationPD       = 0.30
)

// EarlyWarningScanJob re-assesses every delinquent loan and flags the
// ones whose default probability has crossed the escalation threshold.
type EarlyWarningScanJob struct {
	repo  *portfolio.LoanRepository
	model *risk.Model
	log   zerolog.Logger
}

// NewEarlyWarningScanJob creates a new early warning scan job
func NewEarlyWarningScanJob(repo *portfolio.LoanRepository, model *risk.Model, log zerolog.Logger) *EarlyWarningScanJob {
	return &EarlyWarningScanJob{
		repo:  repo,
		model: model,
		log:   log.With().Str("job", "early_warning_scan").Logger(),
	}
}

// Name returns the job name
func (j *EarlyWarningScanJob) Name() string {
	return "early_warning_scan"
}

// Run executes the delinquency scan
func (j *EarlyWarningScanJob) Run() error {
	j.log.Info().Int("min_days_past_due", scanMinDaysPastDue).Msg("Starting early warning scan")
	startTime := time.Now()

	loans, err := j.repo.GetDelinquentLoans(scanMinDaysPastDue)
	if err != nil {
		return fmt.Errorf("failed to load delinquent loans: %w", err)
	}

	escalated := 0
	for _, loan := range loans {
		assessment, err := j.assess(loan)
		if err != nil {
			j.log.Error().Err(err).Str("loan_id", loan.ID).Msg("Failed to assess loan")
			continue
		}

		if assessment.ProbabilityOfDefault >= escalationPD {
			escalated++
			j.log.Warn().
				Str("loan_id", loan.ID).
				Int("days_past_due", loan.DaysPastDue).
				Float64("probability_of_default", assessment.ProbabilityOfDefault).
				Float64("expected_loss", assessment.ExpectedLoss).
				Str("risk_rating", assessment.RiskRating).
				Msg("Loan escalated to recovery review")
		} else {
			j.log.Debug().
				Str("loan_id", loan.ID).
				Int("days_past_due", loan.DaysPastDue).
				Float64("probability_of_default", assessment.ProbabilityOfDefault).
				Msg("Delinquent loan below escalation threshold")
		}
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Int("scanned", len(loans)).
		Int("escalated", escalated).
		Msg("Early warning scan completed")

	return nil
}

func (j *EarlyWarningScanJob) assess(loan domain.LoanRecord) (risk.LoanAssessment, error) {
	borrower, err := j.repo.GetBorrower(loan.BorrowerID)
	if err != nil {
		return risk.LoanAssessment{}, fmt.Errorf("failed to load borrower %s: %w", loan.BorrowerID, err)
	}
	if borrower == nil {
		return risk.LoanAssessment{}, fmt.Errorf("borrower %s not found", loan.BorrowerID)
	}

	var collateral *domain.CollateralRecord
	if loan.CollateralID != "" {
		collateral, err = j.repo.GetCollateral(loan.CollateralID)
		if err != nil {
			// Assess unsecured rather than skipping the loan entirely.
			j.log.Warn().Err(err).Str("loan_id", loan.ID).Msg("Failed to load collateral")
			collateral = nil
		}
	}

	return j.model.Assess(loan, collateral, *borrower), nil
}
