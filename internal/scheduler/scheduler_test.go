package scheduler

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/openlend/keel/internal/config"
	"github.com/openlend/keel/internal/domain"
	"github.com/openlend/keel/internal/modules/portfolio"
	"github.com/openlend/keel/internal/modules/reports"
	"github.com/openlend/keel/internal/modules/risk"
	"github.com/openlend/keel/internal/reliability"
)

type fakeJob struct {
	name string
	runs int
	err  error
}

func (j *fakeJob) Run() error   { j.runs++; return j.err }
func (j *fakeJob) Name() string { return j.name }

func TestScheduler_AddJob(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	s := New(log)

	t.Run("accepts standard 5-field schedule", func(t *testing.T) {
		err := s.AddJob("0 2 * * *", &fakeJob{name: "nightly"})
		assert.NoError(t, err)
	})

	t.Run("rejects malformed schedule", func(t *testing.T) {
		err := s.AddJob("not a schedule", &fakeJob{name: "broken"})
		assert.Error(t, err)
	})
}

func TestScheduler_RunNow(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	s := New(log)

	job := &fakeJob{name: "manual"}
	require.NoError(t, s.RunNow(job))
	assert.Equal(t, 1, job.runs)

	failing := &fakeJob{name: "failing", err: errors.New("boom")}
	assert.Error(t, s.RunNow(failing))
}

func setupTestRepo(t *testing.T) *portfolio.LoanRepository {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(portfolio.Schema)
	require.NoError(t, err)

	return portfolio.NewLoanRepository(db, zerolog.Nop())
}

func seedLoan(t *testing.T, repo *portfolio.LoanRepository, id string, daysPastDue int) {
	t.Helper()

	require.NoError(t, repo.SaveBorrower(domain.BorrowerProfile{
		ID:              "b-" + id,
		Type:            domain.BorrowerBusiness,
		Industry:        "services",
		YearsOperating:  8,
		AnnualRevenue:   2_000_000,
		MonthlyCashFlow: 40_000,
	}))

	status := domain.LoanStatusActive
	switch {
	case daysPastDue > 90:
		status = domain.LoanStatusDefaulted
	case daysPastDue > 0:
		status = domain.LoanStatusDelinquent
	}

	require.NoError(t, repo.SaveLoan(domain.LoanRecord{
		ID:                 id,
		Principal:          500_000,
		OutstandingBalance: 400_000,
		InterestRate:       9.5,
		OriginationDate:    time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		MaturityDate:       time.Date(2029, 6, 1, 0, 0, 0, 0, time.UTC),
		DaysPastDue:        daysPastDue,
		BorrowerID:         "b-" + id,
		PaymentHistory: domain.PaymentHistory{
			OnTimePayments:  18,
			LatePayments12M: 2,
		},
		Status: status,
	}))
}

func TestPortfolioReviewJob_Run(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	params := config.DefaultRiskParameters()

	repo := setupTestRepo(t)
	seedLoan(t, repo, "loan-1", 0)
	seedLoan(t, repo, "loan-2", 15)

	aggregator := portfolio.NewAggregator(params.Portfolio, log)
	reportService := reports.NewService(nil, domain.NarrativeOptions{}, log)
	cache := reliability.NewSnapshotCache(t.TempDir(), log)

	market := domain.MarketContext{
		InterestRateTrend: "stable",
		PropertyIndex:     1.0,
		EconomicOutlook:   "neutral",
	}

	job := NewPortfolioReviewJob(repo, aggregator, reportService, cache, 100_000, market, log)
	assert.Equal(t, "portfolio_review", job.Name())

	require.NoError(t, job.Run())

	cached, err := cache.Load()
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, 2, cached.Snapshot.ActiveLoans)
	assert.Equal(t, 800_000.0, cached.Snapshot.TotalValue)
	assert.NotEmpty(t, cached.Risk.RiskLevel)
	assert.False(t, cached.CachedAt.IsZero())
}

func TestPortfolioReviewJob_EmptyBook(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	params := config.DefaultRiskParameters()

	repo := setupTestRepo(t)
	aggregator := portfolio.NewAggregator(params.Portfolio, log)
	reportService := reports.NewService(nil, domain.NarrativeOptions{}, log)
	cache := reliability.NewSnapshotCache(t.TempDir(), log)

	job := NewPortfolioReviewJob(repo, aggregator, reportService, cache, 0, domain.MarketContext{}, log)
	require.NoError(t, job.Run())

	cached, err := cache.Load()
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, 0, cached.Snapshot.ActiveLoans)
}

func TestEarlyWarningScanJob_Run(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	params := config.DefaultRiskParameters()

	repo := setupTestRepo(t)
	seedLoan(t, repo, "current", 0)    // not delinquent, ignored
	seedLoan(t, repo, "late", 45)      // delinquent, below escalation
	seedLoan(t, repo, "troubled", 120) // defaulted, scanned and escalated

	model := risk.NewModel(params.Loan, log)
	job := NewEarlyWarningScanJob(repo, model, log)
	assert.Equal(t, "early_warning_scan", job.Name())

	require.NoError(t, job.Run())
}

func TestEarlyWarningScanJob_MissingBorrower(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	params := config.DefaultRiskParameters()

	repo := setupTestRepo(t)

	// Loan references a borrower that was never saved. The scan logs the
	// failure and keeps going rather than aborting.
	require.NoError(t, repo.SaveLoan(domain.LoanRecord{
		ID:                 "orphan",
		Principal:          100_000,
		OutstandingBalance: 90_000,
		DaysPastDue:        60,
		BorrowerID:         "missing",
		Status:             domain.LoanStatusDelinquent,
	}))

	model := risk.NewModel(params.Loan, log)
	job := NewEarlyWarningScanJob(repo, model, log)

	assert.NoError(t, job.Run())
}
