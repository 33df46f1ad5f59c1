// Package portfolio implements portfolio-level risk aggregation and the
// loan book it is derived from.
package portfolio

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/openlend/keel/internal/config"
	"github.com/openlend/keel/internal/domain"
	"github.com/openlend/keel/pkg/formulas"
)

// RiskMetrics holds the five category risk scores on a 1-5 scale.
type RiskMetrics struct {
	CreditScore        float64 `json:"credit_score"`
	ConcentrationScore float64 `json:"concentration_score"`
	LiquidityScore     float64 `json:"liquidity_score"`
	MarketScore        float64 `json:"market_score"`
	OperationalScore   float64 `json:"operational_score"`
}

// ConcentrationBreach records an exposure over its limit.
type ConcentrationBreach struct {
	Dimension string  `json:"dimension"` // borrower, sector, geography
	Name      string  `json:"name"`
	Exposure  float64 `json:"exposure"` // share of portfolio value, 0-1
	Limit     float64 `json:"limit"`
}

// ConcentrationAnalysis evaluates single-name, sector and geography exposure.
type ConcentrationAnalysis struct {
	SingleBorrowerPct float64               `json:"single_borrower_pct"`
	TopSector         string                `json:"top_sector"`
	TopSectorPct      float64               `json:"top_sector_pct"`
	TopGeography      string                `json:"top_geography"`
	TopGeographyPct   float64               `json:"top_geography_pct"`
	Breaches          []ConcentrationBreach `json:"breaches,omitempty"`
}

// StressTestResult is the outcome of one stress scenario.
type StressTestResult struct {
	Scenario            string  `json:"scenario"`
	StressedDefaultRate float64 `json:"stressed_default_rate"`
	ProjectedLoss       float64 `json:"projected_loss"`
	CapitalImpact       float64 `json:"capital_impact"` // share of the capital buffer consumed
	Passed              bool    `json:"passed"`
}

// EarlyWarning is a threshold breach on a live metric.
type EarlyWarning struct {
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Severity  string  `json:"severity"` // medium, high
	Message   string  `json:"message"`
}

// RiskReport is the full portfolio aggregation output.
type RiskReport struct {
	Metrics            RiskMetrics           `json:"metrics"`
	Concentration      ConcentrationAnalysis `json:"concentration"`
	StressTests        []StressTestResult    `json:"stress_tests"`
	StressPassed       bool                  `json:"stress_passed"`
	OverallScore       float64               `json:"overall_score"` // 0-100
	RiskLevel          string                `json:"risk_level"`    // Low, Medium, High
	EarlyWarnings      []EarlyWarning        `json:"early_warnings,omitempty"`
	EscalationRequired bool                  `json:"escalation_required"`
	Recommendations    []string              `json:"recommendations,omitempty"`
	AsOf               time.Time             `json:"as_of"`
}

// Aggregator blends per-category risk scores into a portfolio-level view,
// runs the canned stress scenarios and checks the early-warning thresholds.
// Pure over its inputs: the report timestamp comes from the snapshot, not
// the system clock.
type Aggregator struct {
	params config.PortfolioRiskParams
	log    zerolog.Logger
}

// NewAggregator creates a new portfolio risk aggregator.
func NewAggregator(params config.PortfolioRiskParams, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		params: params,
		log:    log.With().Str("service", "portfolio_risk").Logger(),
	}
}

// Aggregate computes the full portfolio risk report for a snapshot.
func (a *Aggregator) Aggregate(snapshot domain.PortfolioSnapshot, market domain.MarketContext) RiskReport {
	concentration := a.analyzeConcentration(snapshot)

	metrics := RiskMetrics{
		CreditScore:        a.creditScore(snapshot),
		ConcentrationScore: a.concentrationScore(snapshot, concentration),
		LiquidityScore:     a.liquidityScore(snapshot),
		MarketScore:        a.marketScore(market),
		OperationalScore:   a.operationalScore(snapshot),
	}

	// Each category score is 1-5; weighting by the fixed category weights
	// and scaling by 20 yields the 0-100 overall.
	overall := (metrics.CreditScore*a.params.CreditWeight +
		metrics.ConcentrationScore*a.params.ConcentrationWeight +
		metrics.LiquidityScore*a.params.LiquidityWeight +
		metrics.MarketScore*a.params.MarketWeight +
		metrics.OperationalScore*a.params.OperationalWeight) * 20
	overall = formulas.Clamp(overall, 0, 100)

	stressTests, stressPassed := a.runStressTests(snapshot)
	warnings, escalate := a.detectEarlyWarnings(snapshot)

	report := RiskReport{
		Metrics:            metrics,
		Concentration:      concentration,
		StressTests:        stressTests,
		StressPassed:       stressPassed,
		OverallScore:       formulas.Round2(overall),
		RiskLevel:          a.riskLevel(overall),
		EarlyWarnings:      warnings,
		EscalationRequired: escalate,
		Recommendations:    a.recommendations(concentration, stressPassed),
		AsOf:               snapshot.AsOf,
	}

	a.log.Debug().
		Float64("overall_score", report.OverallScore).
		Str("risk_level", report.RiskLevel).
		Bool("stress_passed", stressPassed).
		Int("warnings", len(warnings)).
		Msg("Portfolio risk aggregated")

	return report
}

// creditScore grades the realized default rate, nudged by delinquency.
func (a *Aggregator) creditScore(snapshot domain.PortfolioSnapshot) float64 {
	score := 1 + snapshot.DefaultRate*80 // 5% default rate saturates the scale
	if snapshot.DelinquencyRate > 0.08 {
		score += 0.5
	}
	return clampScore(score)
}

// concentrationScore grades the worst exposure relative to its limit.
func (a *Aggregator) concentrationScore(snapshot domain.PortfolioSnapshot, c ConcentrationAnalysis) float64 {
	worst := 0.0
	for _, ratio := range []float64{
		formulas.SafeRatio(c.SingleBorrowerPct, a.params.SingleBorrowerLimit, 0),
		formulas.SafeRatio(c.TopSectorPct, a.params.TopSectorLimit, 0),
		formulas.SafeRatio(c.TopGeographyPct, a.params.TopGeographyLimit, 0),
	} {
		if ratio > worst {
			worst = ratio
		}
	}
	// At the limit scores 4; 33% over the limit saturates.
	return clampScore(1 + worst*3)
}

// liquidityScore grades available cash against the book.
func (a *Aggregator) liquidityScore(snapshot domain.PortfolioSnapshot) float64 {
	// 10% liquidity is comfortable; zero cash saturates the scale.
	return clampScore(5 - snapshot.LiquidityRatio*40)
}

// marketScore grades the supplied market context.
func (a *Aggregator) marketScore(market domain.MarketContext) float64 {
	score := 2.5

	switch market.InterestRateTrend {
	case "rising":
		score += 1
	case "falling":
		score -= 0.5
	}

	switch market.EconomicOutlook {
	case "contraction":
		score += 1.5
	case "expansion":
		score -= 1
	}

	if market.PropertyIndex > 0 && market.PropertyIndex < 0.9 {
		score += 1
	}

	return clampScore(score)
}

// operationalScore grades book granularity: a thin book concentrates
// servicing and key-person risk.
func (a *Aggregator) operationalScore(snapshot domain.PortfolioSnapshot) float64 {
	return clampScore(5 - float64(snapshot.ActiveLoans)/20)
}

// analyzeConcentration checks single-borrower, sector and geography exposure
// against the fixed limits.
func (a *Aggregator) analyzeConcentration(snapshot domain.PortfolioSnapshot) ConcentrationAnalysis {
	topSector, topSectorPct := maxExposure(snapshot.SectorExposure)
	topGeo, topGeoPct := maxExposure(snapshot.GeographyExposure)

	analysis := ConcentrationAnalysis{
		SingleBorrowerPct: snapshot.LargestExposurePct,
		TopSector:         topSector,
		TopSectorPct:      topSectorPct,
		TopGeography:      topGeo,
		TopGeographyPct:   topGeoPct,
	}

	if analysis.SingleBorrowerPct > a.params.SingleBorrowerLimit {
		analysis.Breaches = append(analysis.Breaches, ConcentrationBreach{
			Dimension: "borrower",
			Name:      "largest-exposure",
			Exposure:  analysis.SingleBorrowerPct,
			Limit:     a.params.SingleBorrowerLimit,
		})
	}
	if topSectorPct > a.params.TopSectorLimit {
		analysis.Breaches = append(analysis.Breaches, ConcentrationBreach{
			Dimension: "sector",
			Name:      topSector,
			Exposure:  topSectorPct,
			Limit:     a.params.TopSectorLimit,
		})
	}
	if topGeoPct > a.params.TopGeographyLimit {
		analysis.Breaches = append(analysis.Breaches, ConcentrationBreach{
			Dimension: "geography",
			Name:      topGeo,
			Exposure:  topGeoPct,
			Limit:     a.params.TopGeographyLimit,
		})
	}

	return analysis
}

// runStressTests runs the canned scenarios. The suite passes when the worst
// scenario's capital impact stays under the configured share of the buffer.
func (a *Aggregator) runStressTests(snapshot domain.PortfolioSnapshot) ([]StressTestResult, bool) {
	buffer := snapshot.TotalValue * a.params.CapitalBufferPct

	results := make([]StressTestResult, 0, len(a.params.StressScenarios))
	passed := true
	for _, scenario := range a.params.StressScenarios {
		stressedDR := formulas.Clamp(snapshot.DefaultRate*scenario.DefaultRateFactor, 0, 1)
		// Collateral decline raises loss severity on the defaulted slice.
		severity := formulas.Clamp(a.params.StressLossSeverity+scenario.CollateralDecline, 0, 1)
		projectedLoss := snapshot.TotalValue * stressedDR * severity
		impact := formulas.SafeRatio(projectedLoss, buffer, 1)

		result := StressTestResult{
			Scenario:            scenario.Name,
			StressedDefaultRate: formulas.Round4(stressedDR),
			ProjectedLoss:       formulas.Round2(projectedLoss),
			CapitalImpact:       formulas.Round4(impact),
			Passed:              impact < a.params.MaxImpactShare,
		}
		results = append(results, result)

		if !result.Passed {
			passed = false
		}
	}

	return results, passed
}

// detectEarlyWarnings compares the snapshot against the warning thresholds.
// The liquidity ratio triggers when it falls BELOW its thresholds; all other
// metrics trigger above.
func (a *Aggregator) detectEarlyWarnings(snapshot domain.PortfolioSnapshot) ([]EarlyWarning, bool) {
	values := map[string]float64{
		"default_rate":         snapshot.DefaultRate,
		"delinquency_rate":     snapshot.DelinquencyRate,
		"largest_exposure_pct": snapshot.LargestExposurePct,
		"liquidity_ratio":      snapshot.LiquidityRatio,
	}

	var warnings []EarlyWarning
	escalate := false
	for _, threshold := range a.params.EarlyWarnings {
		value, ok := values[threshold.Metric]
		if !ok {
			continue
		}

		inverted := threshold.Metric == "liquidity_ratio"
		breachedHigh := value > threshold.High
		breachedWarn := value > threshold.Warn
		if inverted {
			breachedHigh = value < threshold.High
			breachedWarn = value < threshold.Warn
		}

		switch {
		case breachedHigh:
			warnings = append(warnings, EarlyWarning{
				Metric:    threshold.Metric,
				Value:     value,
				Threshold: threshold.High,
				Severity:  threshold.Severity,
				Message:   fmt.Sprintf("%s breached critical threshold", threshold.Metric),
			})
			if threshold.Severity == "high" {
				escalate = true
			}
		case breachedWarn:
			warnings = append(warnings, EarlyWarning{
				Metric:    threshold.Metric,
				Value:     value,
				Threshold: threshold.Warn,
				Severity:  "medium",
				Message:   fmt.Sprintf("%s above watch level", threshold.Metric),
			})
		}
	}

	return warnings, escalate
}

// recommendations emits remediation guidance. Stress failure makes the
// remediation items mandatory.
func (a *Aggregator) recommendations(c ConcentrationAnalysis, stressPassed bool) []string {
	var recs []string

	for _, breach := range c.Breaches {
		recs = append(recs, fmt.Sprintf(
			"Reduce %s concentration (%s at %.1f%% against a %.0f%% limit)",
			breach.Dimension, breach.Name, breach.Exposure*100, breach.Limit*100))
	}

	if !stressPassed {
		recs = append(recs,
			"Mandatory: raise the capital buffer or reduce portfolio credit risk; severely-adverse stress exceeds the allowed capital impact",
			"Mandatory: suspend originations in the highest-risk rating bands until stress coverage is restored",
		)
	}

	return recs
}

// riskLevel buckets the overall score.
func (a *Aggregator) riskLevel(overall float64) string {
	switch {
	case overall >= a.params.HighRiskFloor:
		return "High"
	case overall >= a.params.MediumRiskFloor:
		return "Medium"
	default:
		return "Low"
	}
}

func clampScore(score float64) float64 {
	return formulas.Clamp(score, 1, 5)
}

func maxExposure(exposure map[string]float64) (string, float64) {
	top := ""
	topPct := 0.0
	for name, pct := range exposure {
		if pct > topPct || (pct == topPct && (top == "" || name < top)) {
			top = name
			topPct = pct
		}
	}
	return top, topPct
}
