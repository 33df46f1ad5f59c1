package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// RiskParameters is the versioned parameter set the engines run against.
// Every numeric table lives here rather than as literals inside algorithm
// code, so a parameter change is an auditable data change. Loaded once at
// startup and treated as immutable afterwards.
type RiskParameters struct {
	Version   string               `json:"version"`
	Credit    CreditScoringParams  `json:"credit"`
	Loan      LoanRiskParams       `json:"loan"`
	Portfolio PortfolioRiskParams  `json:"portfolio"`
	CashFlow  CashFlowParams       `json:"cash_flow"`
	Scenarios map[string]Scenario  `json:"scenarios"`
	Recovery  RecoveryParams       `json:"recovery"`
}

// CategoryBand maps a minimum credit score to a risk category and the product
// terms that category carries. Bands are evaluated highest-first.
type CategoryBand struct {
	MinScore float64 `json:"min_score"`
	Category string  `json:"category"`
	RateMin  float64 `json:"rate_min"` // annual percentage
	RateMax  float64 `json:"rate_max"`
	MaxLTV   float64 `json:"max_ltv"` // percentage
}

// CreditScoringParams drives the credit scoring engine.
type CreditScoringParams struct {
	FinancialWeight  float64        `json:"financial_weight"`
	BusinessWeight   float64        `json:"business_weight"`
	CollateralWeight float64        `json:"collateral_weight"`
	CharacterWeight  float64        `json:"character_weight"`
	CapacityWeight   float64        `json:"capacity_weight"`
	NeutralScore     float64        `json:"neutral_score"` // substituted for missing inputs
	Bands            []CategoryBand `json:"bands"`
}

// MultiplierBand applies a multiplier when the observed value crosses the
// threshold. Direction depends on the table it belongs to.
type MultiplierBand struct {
	Threshold  float64 `json:"threshold"`
	Multiplier float64 `json:"multiplier"`
}

// RatingBand maps a PD ceiling to a letter rating. Bands are evaluated
// lowest-ceiling first.
type RatingBand struct {
	MaxPD  float64 `json:"max_pd"`
	Rating string  `json:"rating"`
}

// LoanRiskParams drives per-loan PD/LGD estimation.
type LoanRiskParams struct {
	BasePD float64 `json:"base_pd"`
	PDCap  float64 `json:"pd_cap"`

	// DSCR bands: multiplier applies when DSCR is below the threshold.
	// Evaluated worst-first; a dimension contributes its single highest
	// applicable multiplier.
	DSCRBands       []MultiplierBand `json:"dscr_bands"`
	DSCRGoodCutoff  float64          `json:"dscr_good_cutoff"` // DSCR above this earns the discount
	DSCRGoodFactor  float64          `json:"dscr_good_factor"`
	LTVBands        []MultiplierBand `json:"ltv_bands"` // multiplier applies above threshold (percentage)
	LTVGoodCutoff   float64          `json:"ltv_good_cutoff"`
	LTVGoodFactor   float64          `json:"ltv_good_factor"`
	DelinquencyBand []MultiplierBand `json:"delinquency_bands"` // multiplier applies above days-past-due threshold
	LatePayments    MultiplierBand   `json:"late_payments"`     // applies above count threshold
	HighRiskFactor  float64          `json:"high_risk_industry_factor"`
	HighRiskSectors []string         `json:"high_risk_industries"`

	LGDBase        float64                 `json:"lgd_base"`
	LGDByType      map[string]float64      `json:"lgd_by_collateral_type"`
	LGDFloor       float64                 `json:"lgd_floor"`
	LGDCeiling     float64                 `json:"lgd_ceiling"`
	LGDHighLTVAdd  float64                 `json:"lgd_high_ltv_add"`  // added when LTV > ltv_good_cutoff band top
	LGDLargeAdd    float64                 `json:"lgd_large_add"`     // added for balances above lgd_large_cutoff
	LGDLargeCutoff float64                 `json:"lgd_large_cutoff"`
	RatingBands    []RatingBand            `json:"rating_bands"`
}

// StressScenario scales portfolio loss drivers.
type StressScenario struct {
	Name              string  `json:"name"`
	DefaultRateFactor float64 `json:"default_rate_factor"`
	CollateralDecline float64 `json:"collateral_decline"` // 0-1 share of collateral value lost
}

// WarningThreshold is an early-warning trigger level with a severity.
type WarningThreshold struct {
	Metric   string  `json:"metric"`
	Warn     float64 `json:"warn"`
	High     float64 `json:"high"`
	Severity string  `json:"severity"`
}

// PortfolioRiskParams drives the portfolio aggregator.
type PortfolioRiskParams struct {
	CreditWeight        float64 `json:"credit_weight"`
	ConcentrationWeight float64 `json:"concentration_weight"`
	LiquidityWeight     float64 `json:"liquidity_weight"`
	MarketWeight        float64 `json:"market_weight"`
	OperationalWeight   float64 `json:"operational_weight"`

	SingleBorrowerLimit float64 `json:"single_borrower_limit"` // share of portfolio value, 0-1
	TopSectorLimit      float64 `json:"top_sector_limit"`
	TopGeographyLimit   float64 `json:"top_geography_limit"`

	StressScenarios []StressScenario `json:"stress_scenarios"`
	// Assumed loss severity applied to stressed defaulted balances.
	StressLossSeverity float64 `json:"stress_loss_severity"`
	CapitalBufferPct   float64 `json:"capital_buffer_pct"`   // share of portfolio value held as buffer
	MaxImpactShare     float64 `json:"max_impact_share"`     // stress passes under this share of the buffer
	MediumRiskFloor    float64 `json:"medium_risk_floor"`    // overall score boundaries
	HighRiskFloor      float64 `json:"high_risk_floor"`

	EarlyWarnings []WarningThreshold `json:"early_warnings"`
}

// SeasonalityFactor scales a month's collections and originations.
type SeasonalityFactor struct {
	Collections  float64 `json:"collections"`
	Originations float64 `json:"originations"`
}

// CashFlowParams drives the cash-flow forecaster.
type CashFlowParams struct {
	// Seasonality by calendar month (1-12). Missing months default to 1.0.
	Seasonality map[int]SeasonalityFactor `json:"seasonality"`
	// Contribution schedule: shares of scheduled contributions drawn in each
	// phase of the horizon.
	ContributionEarlyShare float64 `json:"contribution_early_share"` // months 1-3
	ContributionMidShare   float64 `json:"contribution_mid_share"`   // months 4-6
	// Remainder is spread evenly over the rest of the horizon.
	DistributionInterval int     `json:"distribution_interval"` // months between distributions
	OperatingDaysBasis   float64 `json:"operating_days_basis"`  // days per year for coverage math
}

// Scenario scales the forecaster's inflow/outflow assumptions.
type Scenario struct {
	InflowFactor  float64 `json:"inflow_factor"`
	OutflowFactor float64 `json:"outflow_factor"`
}

// StrategyParams prices one recovery strategy.
type StrategyParams struct {
	TimelineMonths int     `json:"timeline_months"`
	CostPct        float64 `json:"cost_pct"` // share of outstanding balance
	// UnsecuredRecoveryPct applies when the strategy recovers against the
	// balance rather than collateral.
	UnsecuredRecoveryPct float64 `json:"unsecured_recovery_pct"`
}

// RecoveryParams drives recovery-strategy optimization.
type RecoveryParams struct {
	Strategies map[string]StrategyParams `json:"strategies"`
	// Collateral recovery rates by collateral type, applied on foreclosure.
	CollateralRecoveryRates map[string]float64 `json:"collateral_recovery_rates"`
	// Success probability by days-past-due: bands evaluated highest-first,
	// multiplier field holds the probability.
	ProbabilityBands []MultiplierBand `json:"probability_bands"`
	ProbabilityCap   float64          `json:"probability_cap"`
	// Per-strategy probability adjustments relative to the DPD base.
	ProbabilityAdjust map[string]float64 `json:"probability_adjust"`

	ChargeOffMinDPD int `json:"charge_off_min_dpd"`

	// Policy override levers (business policy, not optimization).
	SettlementMaxDPD    int     `json:"settlement_max_dpd"`
	SettlementEVMargin  float64 `json:"settlement_ev_margin"`  // settlement EV must reach this share of top EV
	ForeclosureNetRatio float64 `json:"foreclosure_net_ratio"` // foreclosure net must reach this share of top net
}

// DefaultRiskParameters returns the compiled-in parameter tables.
func DefaultRiskParameters() *RiskParameters {
	return &RiskParameters{
		Version: "2026.1",
		Credit: CreditScoringParams{
			FinancialWeight:  0.35,
			BusinessWeight:   0.25,
			CollateralWeight: 0.20,
			CharacterWeight:  0.15,
			CapacityWeight:   0.05,
			NeutralScore:     50,
			Bands: []CategoryBand{
				{MinScore: 90, Category: "excellent", RateMin: 7.5, RateMax: 9.0, MaxLTV: 80},
				{MinScore: 80, Category: "good", RateMin: 9.0, RateMax: 10.5, MaxLTV: 75},
				{MinScore: 70, Category: "acceptable", RateMin: 10.5, RateMax: 12.0, MaxLTV: 70},
				{MinScore: 60, Category: "watch", RateMin: 12.0, RateMax: 14.0, MaxLTV: 65},
				{MinScore: 50, Category: "substandard", RateMin: 14.0, RateMax: 16.0, MaxLTV: 55},
				{MinScore: 0, Category: "declined", RateMin: 0, RateMax: 0, MaxLTV: 0},
			},
		},
		Loan: LoanRiskParams{
			BasePD: 0.02,
			PDCap:  0.95,
			DSCRBands: []MultiplierBand{
				{Threshold: 1.0, Multiplier: 3.0},
				{Threshold: 1.25, Multiplier: 2.0},
			},
			DSCRGoodCutoff: 2.0,
			DSCRGoodFactor: 0.7,
			LTVBands: []MultiplierBand{
				{Threshold: 90, Multiplier: 2.5},
				{Threshold: 80, Multiplier: 1.5},
			},
			LTVGoodCutoff: 60,
			LTVGoodFactor: 0.8,
			DelinquencyBand: []MultiplierBand{
				{Threshold: 90, Multiplier: 5.0},
				{Threshold: 60, Multiplier: 4.0},
				{Threshold: 30, Multiplier: 2.5},
				{Threshold: 0, Multiplier: 1.5},
			},
			LatePayments:    MultiplierBand{Threshold: 6, Multiplier: 2.0},
			HighRiskFactor:  1.5,
			HighRiskSectors: []string{"tourism", "hospitality"},
			LGDBase:         0.45,
			LGDByType: map[string]float64{
				"real-estate": 0.30,
				"equipment":   0.50,
				"vehicle":     0.55,
				"financial":   0.40,
				"unsecured":   0.70,
			},
			LGDFloor:       0.10,
			LGDCeiling:     0.90,
			LGDHighLTVAdd:  0.10,
			LGDLargeAdd:    0.05,
			LGDLargeCutoff: 1_000_000,
			RatingBands: []RatingBand{
				{MaxPD: 0.01, Rating: "AAA"},
				{MaxPD: 0.02, Rating: "AA"},
				{MaxPD: 0.05, Rating: "A"},
				{MaxPD: 0.10, Rating: "BBB"},
				{MaxPD: 0.20, Rating: "BB"},
				{MaxPD: 0.35, Rating: "B"},
				{MaxPD: 1.00, Rating: "CCC"},
			},
		},
		Portfolio: PortfolioRiskParams{
			CreditWeight:        0.35,
			ConcentrationWeight: 0.25,
			LiquidityWeight:     0.20,
			MarketWeight:        0.15,
			OperationalWeight:   0.05,
			SingleBorrowerLimit: 0.10,
			TopSectorLimit:      0.25,
			TopGeographyLimit:   0.40,
			StressScenarios: []StressScenario{
				{Name: "base", DefaultRateFactor: 1.0, CollateralDecline: 0.0},
				{Name: "adverse", DefaultRateFactor: 2.0, CollateralDecline: 0.15},
				{Name: "severely-adverse", DefaultRateFactor: 3.0, CollateralDecline: 0.30},
			},
			StressLossSeverity: 0.45,
			CapitalBufferPct:   0.20,
			MaxImpactShare:     0.50,
			MediumRiskFloor:    40,
			HighRiskFloor:      70,
			EarlyWarnings: []WarningThreshold{
				{Metric: "default_rate", Warn: 0.03, High: 0.05, Severity: "high"},
				{Metric: "delinquency_rate", Warn: 0.08, High: 0.12, Severity: "high"},
				{Metric: "largest_exposure_pct", Warn: 0.10, High: 0.15, Severity: "medium"},
				{Metric: "liquidity_ratio", Warn: 0.05, High: 0.03, Severity: "high"},
			},
		},
		CashFlow: CashFlowParams{
			Seasonality: map[int]SeasonalityFactor{
				1:  {Collections: 1.0, Originations: 1.0},
				2:  {Collections: 1.0, Originations: 1.0},
				3:  {Collections: 1.0, Originations: 1.0},
				4:  {Collections: 0.80, Originations: 0.70},
				5:  {Collections: 1.0, Originations: 1.0},
				6:  {Collections: 0.95, Originations: 1.10},
				7:  {Collections: 0.95, Originations: 1.10},
				8:  {Collections: 0.95, Originations: 1.10},
				9:  {Collections: 0.95, Originations: 1.10},
				10: {Collections: 1.0, Originations: 1.0},
				11: {Collections: 1.0, Originations: 1.0},
				12: {Collections: 1.0, Originations: 1.0},
			},
			ContributionEarlyShare: 0.40,
			ContributionMidShare:   0.30,
			DistributionInterval:   3,
			OperatingDaysBasis:     365,
		},
		Scenarios: map[string]Scenario{
			"base":         {InflowFactor: 1.0, OutflowFactor: 1.0},
			"optimistic":   {InflowFactor: 1.2, OutflowFactor: 0.9},
			"conservative": {InflowFactor: 0.85, OutflowFactor: 1.1},
			"stress":       {InflowFactor: 0.7, OutflowFactor: 1.2},
		},
		Recovery: RecoveryParams{
			Strategies: map[string]StrategyParams{
				"negotiated-settlement":  {TimelineMonths: 4, CostPct: 0.05, UnsecuredRecoveryPct: 0.60},
				"collateral-foreclosure": {TimelineMonths: 12, CostPct: 0.15},
				"legal-judgment":         {TimelineMonths: 18, CostPct: 0.20, UnsecuredRecoveryPct: 0.50},
				"charge-off":             {TimelineMonths: 1, CostPct: 0.02, UnsecuredRecoveryPct: 0.05},
			},
			CollateralRecoveryRates: map[string]float64{
				"real-estate": 0.80,
				"equipment":   0.55,
				"vehicle":     0.60,
				"financial":   0.90,
				"unsecured":   0.0,
			},
			ProbabilityBands: []MultiplierBand{
				{Threshold: 360, Multiplier: 0.35},
				{Threshold: 180, Multiplier: 0.50},
				{Threshold: 90, Multiplier: 0.65},
				{Threshold: 0, Multiplier: 0.80},
			},
			ProbabilityCap: 0.95,
			ProbabilityAdjust: map[string]float64{
				"negotiated-settlement":  0.10,
				"collateral-foreclosure": 0.05,
				"legal-judgment":         -0.15,
				"charge-off":             0.15,
			},
			ChargeOffMinDPD:     360,
			SettlementMaxDPD:    120,
			SettlementEVMargin:  0.75,
			ForeclosureNetRatio: 0.80,
		},
	}
}

// LoadRiskParameters loads parameter tables from <dataDir>/risk_parameters.json
// when present, falling back to the compiled defaults. A partial file fully
// replaces the defaults; versioning makes the active table auditable.
func LoadRiskParameters(dataDir string, log zerolog.Logger) *RiskParameters {
	path := filepath.Join(dataDir, "risk_parameters.json")

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("Failed to read risk parameters file, using defaults")
		}
		params := DefaultRiskParameters()
		log.Info().Str("version", params.Version).Msg("Using default risk parameters")
		return params
	}

	var params RiskParameters
	if err := json.Unmarshal(data, &params); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to parse risk parameters file, using defaults")
		return DefaultRiskParameters()
	}

	if err := params.Validate(); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Risk parameters file failed validation, using defaults")
		return DefaultRiskParameters()
	}

	log.Info().Str("version", params.Version).Str("path", path).Msg("Loaded risk parameters")
	return &params
}

// Validate checks structural sanity of a loaded parameter set.
func (p *RiskParameters) Validate() error {
	if p.Version == "" {
		return fmt.Errorf("risk parameters must carry a version")
	}
	if p.Loan.PDCap <= 0 || p.Loan.PDCap > 1 {
		return fmt.Errorf("pd_cap must be in (0, 1], got %v", p.Loan.PDCap)
	}
	if p.Loan.LGDFloor >= p.Loan.LGDCeiling {
		return fmt.Errorf("lgd_floor %v must be below lgd_ceiling %v", p.Loan.LGDFloor, p.Loan.LGDCeiling)
	}
	if len(p.Credit.Bands) == 0 {
		return fmt.Errorf("credit category bands are required")
	}
	if len(p.Portfolio.StressScenarios) == 0 {
		return fmt.Errorf("stress scenarios are required")
	}
	if len(p.Scenarios) == 0 {
		return fmt.Errorf("cash-flow scenarios are required")
	}
	return nil
}
