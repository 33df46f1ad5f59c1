package cashflow

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlend/keel/internal/config"
	"github.com/openlend/keel/internal/domain"
)

func newTestForecaster() *Forecaster {
	return NewForecaster(config.DefaultRiskParameters().CashFlow, zerolog.Nop())
}

func baseAssumptions() domain.CashFlowAssumptions {
	return domain.CashFlowAssumptions{
		FundSize:                50_000_000,
		CurrentCash:             5_000_000,
		AnnualCollections:       12_000_000,
		AnnualOriginations:      9_600_000,
		AnnualOperatingExpenses: 1_200_000,
		AnnualManagementFees:    600_000,
		ScheduledContributions:  3_000_000,
		ScheduledDistributions:  1_200_000,
		HorizonMonths:           12,
		StartMonth:              1,
	}
}

func TestProjectChainsMonths(t *testing.T) {
	forecaster := newTestForecaster()
	projections := forecaster.Project(baseAssumptions())

	require.Len(t, projections, 12)
	assert.Equal(t, 5_000_000.0, projections[0].OpeningCash)

	for i, projection := range projections {
		assert.Equal(t, i+1, projection.Month)
		assert.InDelta(t, projection.OpeningCash+projection.NetFlow, projection.ClosingCash, 0.01,
			"month %d closing must equal opening plus net flow", projection.Month)
		if i > 0 {
			assert.Equal(t, projections[i-1].ClosingCash, projection.OpeningCash,
				"month %d must open with month %d closing cash", projection.Month, projection.Month-1)
		}
	}
}

func TestProjectFirstMonthFlows(t *testing.T) {
	forecaster := newTestForecaster()
	projections := forecaster.Project(baseAssumptions())

	first := projections[0]
	assert.Equal(t, 1, first.CalendarMonth)
	assert.Equal(t, 1_000_000.0, first.Inflows.Collections)
	assert.Equal(t, 400_000.0, first.Inflows.Contributions)
	assert.Equal(t, 800_000.0, first.Outflows.Originations)
	assert.Equal(t, 100_000.0, first.Outflows.OperatingExpenses)
	assert.Equal(t, 50_000.0, first.Outflows.ManagementFees)
	assert.Zero(t, first.Outflows.Distributions)
	assert.Equal(t, 450_000.0, first.NetFlow)
	assert.Equal(t, 5_450_000.0, first.ClosingCash)
	assert.InDelta(t, 0.109, first.CashRatio, 1e-9)
}

func TestProjectAppliesSeasonality(t *testing.T) {
	forecaster := newTestForecaster()
	projections := forecaster.Project(baseAssumptions())

	// Calendar month 4: collections at 80%, originations at 70%.
	april := projections[3]
	assert.Equal(t, 4, april.CalendarMonth)
	assert.Equal(t, 800_000.0, april.Inflows.Collections)
	assert.Equal(t, 560_000.0, april.Outflows.Originations)

	// Calendar month 7: collections at 95%, originations at 110%.
	july := projections[6]
	assert.Equal(t, 950_000.0, july.Inflows.Collections)
	assert.Equal(t, 880_000.0, july.Outflows.Originations)
}

func TestProjectContributionSchedule(t *testing.T) {
	forecaster := newTestForecaster()
	projections := forecaster.Project(baseAssumptions())

	total := 0.0
	for _, projection := range projections {
		total += projection.Inflows.Contributions
	}
	assert.InDelta(t, 3_000_000, total, 0.01)

	// 40% over months 1-3, 30% over 4-6, remainder over the tail.
	assert.Equal(t, 400_000.0, projections[0].Inflows.Contributions)
	assert.Equal(t, 300_000.0, projections[3].Inflows.Contributions)
	assert.Equal(t, 150_000.0, projections[6].Inflows.Contributions)
	assert.Equal(t, 150_000.0, projections[11].Inflows.Contributions)
}

func TestProjectShortHorizonCallsFullCommitment(t *testing.T) {
	forecaster := newTestForecaster()

	assumptions := baseAssumptions()
	assumptions.HorizonMonths = 5

	projections := forecaster.Project(assumptions)
	require.Len(t, projections, 5)

	total := 0.0
	for _, projection := range projections {
		total += projection.Inflows.Contributions
	}
	assert.InDelta(t, 3_000_000, total, 0.01)
	// Final month folds in the undrawn phases.
	assert.Equal(t, 1_500_000.0, projections[4].Inflows.Contributions)
}

func TestProjectQuarterlyDistributions(t *testing.T) {
	forecaster := newTestForecaster()
	projections := forecaster.Project(baseAssumptions())

	for _, projection := range projections {
		if projection.Month%3 == 0 {
			assert.Equal(t, 300_000.0, projection.Outflows.Distributions, "month %d", projection.Month)
		} else {
			assert.Zero(t, projection.Outflows.Distributions, "month %d", projection.Month)
		}
	}
}

func TestProjectCalendarMonthWraps(t *testing.T) {
	forecaster := newTestForecaster()

	assumptions := baseAssumptions()
	assumptions.StartMonth = 11
	assumptions.HorizonMonths = 4

	projections := forecaster.Project(assumptions)
	require.Len(t, projections, 4)

	months := make([]int, 0, 4)
	for _, projection := range projections {
		months = append(months, projection.CalendarMonth)
	}
	assert.Equal(t, []int{11, 12, 1, 2}, months)
}

func TestProjectFlatFundHoldsCash(t *testing.T) {
	forecaster := newTestForecaster()

	assumptions := domain.CashFlowAssumptions{
		FundSize:      10_000_000,
		CurrentCash:   1_500_000,
		HorizonMonths: 12,
		StartMonth:    1,
	}

	projections := forecaster.Project(assumptions)
	require.Len(t, projections, 12)

	for _, projection := range projections {
		assert.Zero(t, projection.NetFlow)
		assert.Equal(t, 1_500_000.0, projection.ClosingCash)
		assert.InDelta(t, 0.15, projection.CashRatio, 1e-9)
		// No operating expenses: coverage degrades to zero rather than Inf.
		assert.Zero(t, projection.OperatingDaysCoverage)
	}
}

func TestProjectInvalidInputs(t *testing.T) {
	forecaster := newTestForecaster()

	assert.Nil(t, forecaster.Project(domain.CashFlowAssumptions{HorizonMonths: 0}))
	assert.Nil(t, forecaster.Project(domain.CashFlowAssumptions{HorizonMonths: -3}))

	// Out-of-range start months fall back to January.
	assumptions := baseAssumptions()
	assumptions.StartMonth = 0
	projections := forecaster.Project(assumptions)
	assert.Equal(t, 1, projections[0].CalendarMonth)
}

func TestProjectOperatingDaysCoverage(t *testing.T) {
	forecaster := newTestForecaster()

	assumptions := domain.CashFlowAssumptions{
		CurrentCash:             365_000,
		AnnualOperatingExpenses: 365_000,
		HorizonMonths:           1,
		StartMonth:              1,
	}

	projections := forecaster.Project(assumptions)
	// Daily burn is 1000; closing cash of 334,583.33 covers ~334 days.
	first := projections[0]
	assert.InDelta(t, 334_583.33, first.ClosingCash, 0.01)
	assert.InDelta(t, 334.58, first.OperatingDaysCoverage, 0.01)
}
