package scoring

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlend/keel/internal/config"
	"github.com/openlend/keel/internal/domain"
)

func newTestEngine() *Engine {
	return NewEngine(config.DefaultRiskParameters().Credit, zerolog.Nop())
}

func strongBorrower() domain.BorrowerProfile {
	return domain.BorrowerProfile{
		ID:              "b-001",
		Type:            domain.BorrowerBusiness,
		Industry:        "manufacturing",
		YearsOperating:  12,
		AnnualRevenue:   8_000_000,
		MonthlyCashFlow: 120_000,
		NetWorth:        4_000_000,
		Cooperation:     domain.CooperationCooperative,
	}
}

func TestScoreStaysInRange(t *testing.T) {
	engine := newTestEngine()

	cases := []struct {
		name     string
		borrower domain.BorrowerProfile
		request  LoanRequest
	}{
		{"strong borrower", strongBorrower(), LoanRequest{Amount: 500_000}},
		{"empty borrower", domain.BorrowerProfile{}, LoanRequest{}},
		{"absurd cash flow", domain.BorrowerProfile{MonthlyCashFlow: 1e12}, LoanRequest{Amount: 1}},
		{"negative inputs", domain.BorrowerProfile{MonthlyCashFlow: -5000, NetWorth: -1}, LoanRequest{Amount: 100_000}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := engine.Score(tc.borrower, tc.request)
			assert.GreaterOrEqual(t, result.Score, 0.0)
			assert.LessOrEqual(t, result.Score, 100.0)
			assert.NotEmpty(t, result.RiskCategory)
			for name, component := range result.Components {
				assert.GreaterOrEqual(t, component, 0.0, "component %s", name)
				assert.LessOrEqual(t, component, 100.0, "component %s", name)
			}
		})
	}
}

func TestScoreNeverErrorsOnMissingInputs(t *testing.T) {
	engine := newTestEngine()

	result := engine.Score(domain.BorrowerProfile{}, LoanRequest{})

	// Missing numerics resolve to the neutral score and are flagged.
	assert.Contains(t, result.DefaultsApplied, "monthly_cash_flow")
	assert.Contains(t, result.DefaultsApplied, "net_worth")
	assert.Equal(t, 50.0, result.Components["financial"])
}

func TestFinancialSubScoreCoverageProxy(t *testing.T) {
	engine := newTestEngine()

	// monthlyCashFlow*12 / (amount*0.25) * 20 = 120k*12 / 125k * 20 = 230.4,
	// clamped to 100.
	borrower := strongBorrower()
	result := engine.Score(borrower, LoanRequest{Amount: 500_000})
	assert.Equal(t, 100.0, result.Components["financial"])

	// Thin coverage: 2k*12 / (400k*0.25) * 20 = 4.8
	borrower.MonthlyCashFlow = 2_000
	result = engine.Score(borrower, LoanRequest{Amount: 400_000})
	assert.InDelta(t, 4.8, result.Components["financial"], 0.001)
}

func TestCategoryLookupMonotonic(t *testing.T) {
	engine := newTestEngine()

	// Category rank by band order: a higher score must never map to a band
	// further down the table.
	rank := func(category string) int {
		for i, band := range engine.params.Bands {
			if band.Category == category {
				return i
			}
		}
		t.Fatalf("unknown category %q", category)
		return -1
	}

	prevRank := 0
	for score := 100.0; score >= 0; score -= 5 {
		band := engine.lookupBand(score)
		r := rank(band.Category)
		assert.GreaterOrEqual(t, r, prevRank, "score %v mapped to a better category than a higher score", score)
		prevRank = r
	}
}

func TestCategoryBandTerms(t *testing.T) {
	engine := newTestEngine()

	result := engine.Score(strongBorrower(), LoanRequest{
		Amount: 500_000,
		Collateral: &domain.CollateralRecord{
			Type:        domain.CollateralRealEstate,
			LoanToValue: 55,
		},
	})

	require.NotEqual(t, "declined", result.RiskCategory)
	assert.Greater(t, result.RecommendedRate.Min, 0.0)
	assert.GreaterOrEqual(t, result.RecommendedRate.Max, result.RecommendedRate.Min)
	assert.Greater(t, result.MaxLTV, 0.0)
}

func TestUnsecuredCollateralScoresLow(t *testing.T) {
	engine := newTestEngine()

	secured := engine.Score(strongBorrower(), LoanRequest{
		Amount:     500_000,
		Collateral: &domain.CollateralRecord{Type: domain.CollateralRealEstate, LoanToValue: 50},
	})
	unsecured := engine.Score(strongBorrower(), LoanRequest{Amount: 500_000})

	assert.Greater(t, secured.Components["collateral"], unsecured.Components["collateral"])
	assert.Equal(t, 20.0, unsecured.Components["collateral"])
}

func TestScoreIdempotent(t *testing.T) {
	engine := newTestEngine()
	borrower := strongBorrower()
	request := LoanRequest{Amount: 750_000}

	first := engine.Score(borrower, request)
	second := engine.Score(borrower, request)

	assert.Equal(t, first, second)
}
