package recovery

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlend/keel/internal/config"
	"github.com/openlend/keel/internal/domain"
)

func newTestOptimizer() *Optimizer {
	return NewOptimizer(config.DefaultRiskParameters().Recovery, zerolog.Nop())
}

func securedCase() domain.RecoveryCase {
	return domain.RecoveryCase{
		LoanID:             "loan-1",
		OutstandingBalance: 200_000,
		CollateralValue:    250_000,
		CollateralType:     domain.CollateralRealEstate,
		DaysPastDue:        60,
		Cooperation:        domain.CooperationNeutral,
	}
}

func TestRankSortsByExpectedValue(t *testing.T) {
	optimizer := newTestOptimizer()
	options := optimizer.Rank(securedCase())

	// Charge-off is gated out at 60 days past due.
	require.Len(t, options, 3)
	for i := 1; i < len(options); i++ {
		assert.GreaterOrEqual(t, options[i-1].ExpectedValue, options[i].ExpectedValue)
	}
	for _, option := range options {
		assert.InDelta(t, option.NetRecovery*option.Probability, option.ExpectedValue, 0.01)
		assert.GreaterOrEqual(t, option.Probability, 0.0)
		assert.LessOrEqual(t, option.Probability, 0.95)
	}
}

func TestRankSecuredCaseValues(t *testing.T) {
	optimizer := newTestOptimizer()
	options := optimizer.Rank(securedCase())

	require.Len(t, options, 3)

	// 60 DPD base probability is 0.80; foreclosure adjusts +0.05 and
	// recovers 80% of the collateral, capped at the balance.
	foreclosure := options[0]
	assert.Equal(t, domain.StrategyForeclosure, foreclosure.Strategy)
	assert.Equal(t, 200_000.0, foreclosure.EstimatedRecovery)
	assert.Equal(t, 30_000.0, foreclosure.EstimatedCost)
	assert.Equal(t, 170_000.0, foreclosure.NetRecovery)
	assert.InDelta(t, 0.85, foreclosure.Probability, 1e-9)
	assert.Equal(t, 144_500.0, foreclosure.ExpectedValue)
	assert.Equal(t, 12, foreclosure.TimelineMonths)

	settlement := options[1]
	assert.Equal(t, domain.StrategySettlement, settlement.Strategy)
	assert.Equal(t, 120_000.0, settlement.EstimatedRecovery)
	assert.Equal(t, 110_000.0, settlement.NetRecovery)
	assert.InDelta(t, 0.90, settlement.Probability, 1e-9)
	assert.Equal(t, 99_000.0, settlement.ExpectedValue)

	legal := options[2]
	assert.Equal(t, domain.StrategyLegal, legal.Strategy)
	assert.Equal(t, 60_000.0, legal.NetRecovery)
	assert.InDelta(t, 0.65, legal.Probability, 1e-9)
}

func TestRankGates(t *testing.T) {
	optimizer := newTestOptimizer()

	unsecured := securedCase()
	unsecured.CollateralValue = 0
	unsecured.CollateralType = domain.CollateralUnsecured
	options := optimizer.Rank(unsecured)
	assert.Nil(t, findStrategy(options, domain.StrategyForeclosure))

	deep := securedCase()
	deep.DaysPastDue = 360
	assert.Nil(t, findStrategy(optimizer.Rank(deep), domain.StrategyChargeOff))

	deep.DaysPastDue = 361
	chargeOff := findStrategy(optimizer.Rank(deep), domain.StrategyChargeOff)
	require.NotNil(t, chargeOff)
	// 361 DPD base probability is 0.35, charge-off adjusts +0.15.
	assert.InDelta(t, 0.50, chargeOff.Probability, 1e-9)
	assert.Equal(t, 10_000.0, chargeOff.EstimatedRecovery)
	assert.Equal(t, 6_000.0, chargeOff.NetRecovery)
}

func TestSelectNoOverrideReturnsTop(t *testing.T) {
	optimizer := newTestOptimizer()
	recoveryCase := securedCase()

	options := optimizer.Rank(recoveryCase)
	selection := optimizer.Select(options, recoveryCase)

	require.NotNil(t, selection)
	assert.Equal(t, options[0], selection.Chosen)
	assert.False(t, selection.Overridden)
}

func TestSelectCooperativeSettlementOverride(t *testing.T) {
	optimizer := newTestOptimizer()

	recoveryCase := securedCase()
	recoveryCase.Cooperation = domain.CooperationCooperative
	recoveryCase.CollateralValue = 215_000

	options := optimizer.Rank(recoveryCase)
	require.Equal(t, domain.StrategyForeclosure, options[0].Strategy)

	// Settlement EV (99,000) is within 75% of the top EV (120,700), so the
	// cooperative borrower is steered to settlement.
	selection := optimizer.Select(options, recoveryCase)
	require.NotNil(t, selection)
	assert.Equal(t, domain.StrategySettlement, selection.Chosen.Strategy)
	assert.True(t, selection.Overridden)
}

func TestSelectCooperativeOverrideRespectsMarginAndDPD(t *testing.T) {
	optimizer := newTestOptimizer()

	// Settlement EV is well under 75% of foreclosure's: no override.
	outOfMargin := securedCase()
	outOfMargin.Cooperation = domain.CooperationCooperative
	selection := optimizer.Select(optimizer.Rank(outOfMargin), outOfMargin)
	require.NotNil(t, selection)
	assert.Equal(t, domain.StrategyForeclosure, selection.Chosen.Strategy)
	assert.False(t, selection.Overridden)

	// Too deep into delinquency: the settlement steer no longer applies.
	tooLate := securedCase()
	tooLate.Cooperation = domain.CooperationCooperative
	tooLate.CollateralValue = 215_000
	tooLate.DaysPastDue = 150
	selection = optimizer.Select(optimizer.Rank(tooLate), tooLate)
	require.NotNil(t, selection)
	assert.Equal(t, domain.StrategyForeclosure, selection.Chosen.Strategy)
}

func TestSelectNonCooperativeForeclosureOverride(t *testing.T) {
	optimizer := newTestOptimizer()

	recoveryCase := securedCase()
	recoveryCase.Cooperation = domain.CooperationNonCooperative
	recoveryCase.CollateralValue = 160_000

	options := optimizer.Rank(recoveryCase)
	// Settlement ranks first on EV, but foreclosure's net recovery
	// (98,000) clears 80% of settlement's (110,000).
	require.Equal(t, domain.StrategySettlement, options[0].Strategy)

	selection := optimizer.Select(options, recoveryCase)
	require.NotNil(t, selection)
	assert.Equal(t, domain.StrategyForeclosure, selection.Chosen.Strategy)
	assert.True(t, selection.Overridden)
}

func TestSelectEmptyOptions(t *testing.T) {
	optimizer := newTestOptimizer()
	assert.Nil(t, optimizer.Select(nil, securedCase()))
}

func TestRankIdempotent(t *testing.T) {
	optimizer := newTestOptimizer()
	recoveryCase := securedCase()

	assert.Equal(t, optimizer.Rank(recoveryCase), optimizer.Rank(recoveryCase))
}
