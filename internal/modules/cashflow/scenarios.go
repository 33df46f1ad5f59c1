package cashflow

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/openlend/keel/internal/config"
	"github.com/openlend/keel/internal/domain"
	"github.com/openlend/keel/pkg/formulas"
)

// ScenarioResult summarizes one scenario's projection.
type ScenarioResult struct {
	Name               string                     `json:"name"`
	InflowFactor       float64                    `json:"inflow_factor"`
	OutflowFactor      float64                    `json:"outflow_factor"`
	FinalCash          float64                    `json:"final_cash"`
	MinimumCash        float64                    `json:"minimum_cash"`
	MinimumCashMonth   int                        `json:"minimum_cash_month"`
	FirstNegativeMonth int                        `json:"first_negative_month"` // 0 when cash never goes negative
	LiquiditySafe      bool                       `json:"liquidity_safe"`
	Projections        []domain.MonthlyProjection `json:"projections,omitempty"`
}

// ScenarioSummary describes the spread of final balances across scenarios.
type ScenarioSummary struct {
	FinalCashMean   float64 `json:"final_cash_mean"`
	FinalCashStdDev float64 `json:"final_cash_std_dev"`
	FinalCashSpread float64 `json:"final_cash_spread"` // best minus worst
	AllSafe         bool    `json:"all_safe"`
}

// ScenarioSet is the output of a scenario run, one result per named scenario,
// sorted by name for stable output.
type ScenarioSet struct {
	Results []ScenarioResult `json:"results"`
	Summary ScenarioSummary  `json:"summary"`
}

// Get returns the named result, or nil if the scenario was not run.
func (s ScenarioSet) Get(name string) *ScenarioResult {
	for i := range s.Results {
		if s.Results[i].Name == name {
			return &s.Results[i]
		}
	}
	return nil
}

// ScenarioEngine reruns the forecaster under scaled inflow/outflow
// assumptions. Scenarios are independent: each run starts from the original
// assumptions, never from another scenario's output.
type ScenarioEngine struct {
	forecaster *Forecaster
	scenarios  map[string]config.Scenario
	log        zerolog.Logger
}

// NewScenarioEngine creates a new scenario engine over a forecaster.
func NewScenarioEngine(forecaster *Forecaster, scenarios map[string]config.Scenario, log zerolog.Logger) *ScenarioEngine {
	return &ScenarioEngine{
		forecaster: forecaster,
		scenarios:  scenarios,
		log:        log.With().Str("service", "scenarios").Logger(),
	}
}

// Run projects every configured scenario from the same base assumptions.
func (e *ScenarioEngine) Run(assumptions domain.CashFlowAssumptions) ScenarioSet {
	names := make([]string, 0, len(e.scenarios))
	for name := range e.scenarios {
		names = append(names, name)
	}
	sort.Strings(names)

	set := ScenarioSet{Results: make([]ScenarioResult, 0, len(names))}
	for _, name := range names {
		scenario := e.scenarios[name]
		projections := e.forecaster.Project(scale(assumptions, scenario))
		set.Results = append(set.Results, summarize(name, scenario, projections))
	}

	set.Summary = summarizeSet(set.Results)

	e.log.Debug().Int("scenarios", len(set.Results)).Msg("Scenario run complete")

	return set
}

func summarizeSet(results []ScenarioResult) ScenarioSummary {
	summary := ScenarioSummary{AllSafe: true}
	if len(results) == 0 {
		return summary
	}

	finals := make([]float64, len(results))
	for i, result := range results {
		finals[i] = result.FinalCash
		if !result.LiquiditySafe {
			summary.AllSafe = false
		}
	}

	summary.FinalCashMean = formulas.Round2(formulas.Mean(finals))
	summary.FinalCashStdDev = formulas.Round2(formulas.StdDev(finals))
	summary.FinalCashSpread = formulas.Round2(formulas.Max(finals) - formulas.Min(finals))

	return summary
}

// scale applies a scenario's factors to a copy of the assumptions. Inflow
// factors scale collections and contributions; outflow factors scale
// originations, expenses, fees and distributions. Current cash is a position,
// not a flow, and is never scaled.
func scale(assumptions domain.CashFlowAssumptions, scenario config.Scenario) domain.CashFlowAssumptions {
	scaled := assumptions
	scaled.AnnualCollections *= scenario.InflowFactor
	scaled.ScheduledContributions *= scenario.InflowFactor
	scaled.AnnualOriginations *= scenario.OutflowFactor
	scaled.AnnualOperatingExpenses *= scenario.OutflowFactor
	scaled.AnnualManagementFees *= scenario.OutflowFactor
	scaled.ScheduledDistributions *= scenario.OutflowFactor
	return scaled
}

func summarize(name string, scenario config.Scenario, projections []domain.MonthlyProjection) ScenarioResult {
	result := ScenarioResult{
		Name:          name,
		InflowFactor:  scenario.InflowFactor,
		OutflowFactor: scenario.OutflowFactor,
		LiquiditySafe: true,
		Projections:   projections,
	}
	if len(projections) == 0 {
		return result
	}

	closings := make([]float64, len(projections))
	for i, projection := range projections {
		closings[i] = projection.ClosingCash
		if projection.ClosingCash < 0 && result.FirstNegativeMonth == 0 {
			result.FirstNegativeMonth = projection.Month
			result.LiquiditySafe = false
		}
	}

	result.FinalCash = projections[len(projections)-1].ClosingCash
	result.MinimumCash = formulas.Min(closings)
	for _, projection := range projections {
		if projection.ClosingCash == result.MinimumCash {
			result.MinimumCashMonth = projection.Month
			break
		}
	}

	return result
}
