// Package cashflow implements fund-level cash-flow forecasting and scenario
// analysis.
package cashflow

import (
	"github.com/rs/zerolog"

	"github.com/openlend/keel/internal/config"
	"github.com/openlend/keel/internal/domain"
	"github.com/openlend/keel/pkg/formulas"
)

// Forecaster projects monthly fund cash flows over a horizon. Pure over its
// inputs: the start month comes from the assumptions, never the system clock.
type Forecaster struct {
	params config.CashFlowParams
	log    zerolog.Logger
}

// NewForecaster creates a new cash-flow forecaster.
func NewForecaster(params config.CashFlowParams, log zerolog.Logger) *Forecaster {
	return &Forecaster{
		params: params,
		log:    log.With().Str("service", "cashflow").Logger(),
	}
}

// Project produces one projection per month of the horizon. Each month opens
// with the prior month's closing cash; month 1 opens with current cash.
func (f *Forecaster) Project(assumptions domain.CashFlowAssumptions) []domain.MonthlyProjection {
	horizon := assumptions.HorizonMonths
	if horizon <= 0 {
		return nil
	}

	startMonth := assumptions.StartMonth
	if startMonth < 1 || startMonth > 12 {
		startMonth = 1
	}

	dailyOpex := assumptions.AnnualOperatingExpenses / f.params.OperatingDaysBasis

	projections := make([]domain.MonthlyProjection, 0, horizon)
	cash := formulas.Round2(assumptions.CurrentCash)
	for month := 1; month <= horizon; month++ {
		calendarMonth := (startMonth+month-2)%12 + 1
		seasonality := f.seasonality(calendarMonth)

		inflows := domain.MonthlyInflows{
			Collections:   formulas.Round2(assumptions.AnnualCollections / 12 * seasonality.Collections),
			Contributions: formulas.Round2(f.contribution(assumptions, month)),
		}
		outflows := domain.MonthlyOutflows{
			Originations:      formulas.Round2(assumptions.AnnualOriginations / 12 * seasonality.Originations),
			OperatingExpenses: formulas.Round2(assumptions.AnnualOperatingExpenses / 12),
			ManagementFees:    formulas.Round2(assumptions.AnnualManagementFees / 12),
			Distributions:     formulas.Round2(f.distribution(assumptions, month)),
		}

		netFlow := inflows.Total() - outflows.Total()
		closing := cash + netFlow

		projections = append(projections, domain.MonthlyProjection{
			Month:                 month,
			CalendarMonth:         calendarMonth,
			OpeningCash:           cash,
			Inflows:               inflows,
			Outflows:              outflows,
			NetFlow:               formulas.Round2(netFlow),
			ClosingCash:           formulas.Round2(closing),
			CashRatio:             formulas.Round4(formulas.SafeRatio(closing, assumptions.FundSize, 0)),
			OperatingDaysCoverage: formulas.Round2(formulas.SafeRatio(closing, dailyOpex, 0)),
		})

		cash = formulas.Round2(closing)
	}

	f.log.Debug().
		Int("horizon_months", horizon).
		Float64("final_cash", projections[horizon-1].ClosingCash).
		Msg("Cash flow projected")

	return projections
}

// seasonality returns the factor pair for a calendar month, defaulting to
// neutral when the table has no entry.
func (f *Forecaster) seasonality(calendarMonth int) config.SeasonalityFactor {
	if factor, ok := f.params.Seasonality[calendarMonth]; ok {
		return factor
	}
	return config.SeasonalityFactor{Collections: 1.0, Originations: 1.0}
}

// contribution returns the capital contribution drawn in a projection month.
// The early and mid shares land in months 1-3 and 4-6; the remainder is spread
// evenly over the rest of the horizon. Short horizons fold undrawn phases into
// the final month so the full commitment is always called.
func (f *Forecaster) contribution(assumptions domain.CashFlowAssumptions, month int) float64 {
	total := assumptions.ScheduledContributions
	if total == 0 {
		return 0
	}

	horizon := assumptions.HorizonMonths
	early := total * f.params.ContributionEarlyShare
	mid := total * f.params.ContributionMidShare
	late := total - early - mid

	var amount float64
	switch {
	case month <= 3:
		amount = early / 3
	case month <= 6:
		amount = mid / 3
	default:
		amount = late / float64(horizon-6)
	}

	if month == horizon && horizon <= 6 {
		// Undrawn phases collapse into the final month.
		switch {
		case horizon < 3:
			amount += early*float64(3-horizon)/3 + mid + late
		case horizon == 3:
			amount += mid + late
		case horizon < 6:
			amount += mid*float64(6-horizon)/3 + late
		default:
			amount += late
		}
	}

	return amount
}

// distribution returns the investor distribution paid in a projection month.
// Distributions land at each interval boundary, split evenly across the
// boundaries inside the horizon.
func (f *Forecaster) distribution(assumptions domain.CashFlowAssumptions, month int) float64 {
	total := assumptions.ScheduledDistributions
	interval := f.params.DistributionInterval
	if total == 0 || interval <= 0 || month%interval != 0 {
		return 0
	}

	payouts := assumptions.HorizonMonths / interval
	if payouts == 0 {
		return 0
	}
	return total / float64(payouts)
}
