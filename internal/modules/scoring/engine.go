// Package scoring implements borrower credit scoring.
package scoring

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/openlend/keel/internal/config"
	"github.com/openlend/keel/internal/domain"
	"github.com/openlend/keel/pkg/formulas"
)

// LoanRequest is the proposed loan a borrower is being scored for.
type LoanRequest struct {
	Amount     float64                  `json:"amount"`
	Collateral *domain.CollateralRecord `json:"collateral,omitempty"`
}

// CreditScore is the scoring result. Components holds the five sub-scores as
// computed (pre-weighting), DefaultsApplied lists inputs that were missing and
// resolved to the neutral score.
type CreditScore struct {
	Score           float64            `json:"score"` // 0-100
	RiskCategory    string             `json:"risk_category"`
	RecommendedRate RateRange          `json:"recommended_rate"`
	MaxLTV          float64            `json:"max_ltv"`
	Components      map[string]float64 `json:"components"`
	DefaultsApplied []string           `json:"defaults_applied,omitempty"`
}

// RateRange is the interest-rate band carried by a risk category.
type RateRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Engine computes weighted credit scores from borrower and loan-request
// attributes. It always returns a usable score: missing inputs contribute the
// neutral score, out-of-range intermediates clamp before blending.
type Engine struct {
	params config.CreditScoringParams
	log    zerolog.Logger
}

// NewEngine creates a new credit scoring engine.
func NewEngine(params config.CreditScoringParams, log zerolog.Logger) *Engine {
	return &Engine{
		params: params,
		log:    log.With().Str("service", "credit_scoring").Logger(),
	}
}

// Score computes the weighted credit score for a borrower and loan request.
//
// Sub-scores and weights:
//   - financial (35%): debt-service-coverage proxy from monthly cash flow
//   - business (25%): operating history and revenue scale
//   - collateral (20%): collateral type and loan-to-value
//   - character (15%): payment behaviour and cooperation
//   - capacity (5%): net worth relative to the requested amount
func (e *Engine) Score(borrower domain.BorrowerProfile, request LoanRequest) CreditScore {
	var defaults []string

	financial := e.financialScore(borrower, request, &defaults)
	business := e.businessScore(borrower, &defaults)
	collateral := e.collateralScore(request)
	character := e.characterScore(borrower)
	capacity := e.capacityScore(borrower, request, &defaults)

	total := financial*e.params.FinancialWeight +
		business*e.params.BusinessWeight +
		collateral*e.params.CollateralWeight +
		character*e.params.CharacterWeight +
		capacity*e.params.CapacityWeight
	total = formulas.Clamp(total, 0, 100)

	band := e.lookupBand(total)

	if len(defaults) > 0 {
		e.log.Debug().Strs("defaults_applied", defaults).Msg("Neutral defaults substituted for missing inputs")
	}

	return CreditScore{
		Score:           formulas.Round2(total),
		RiskCategory:    band.Category,
		RecommendedRate: RateRange{Min: band.RateMin, Max: band.RateMax},
		MaxLTV:          band.MaxLTV,
		Components: map[string]float64{
			"financial":  formulas.Round2(financial),
			"business":   formulas.Round2(business),
			"collateral": formulas.Round2(collateral),
			"character":  formulas.Round2(character),
			"capacity":   formulas.Round2(capacity),
		},
		DefaultsApplied: defaults,
	}
}

// financialScore derives a debt-service-coverage proxy:
// min(100, annualCashFlow / (amount * 0.25) * 20).
// A loan amortizing at roughly 25% of principal per year is fully covered at
// a score of 20 per unit of coverage.
func (e *Engine) financialScore(borrower domain.BorrowerProfile, request LoanRequest, defaults *[]string) float64 {
	if borrower.MonthlyCashFlow <= 0 {
		*defaults = append(*defaults, "monthly_cash_flow")
		return e.params.NeutralScore
	}
	if request.Amount <= 0 {
		*defaults = append(*defaults, "loan_amount")
		return e.params.NeutralScore
	}

	annualDebtService := request.Amount * 0.25
	coverage := (borrower.MonthlyCashFlow * 12) / annualDebtService
	return formulas.Clamp(coverage*20, 0, 100)
}

// businessScore rewards operating history and revenue scale.
func (e *Engine) businessScore(borrower domain.BorrowerProfile, defaults *[]string) float64 {
	score := 0.0

	// Years operating: 10 points per year up to 50
	score += math.Min(50, borrower.YearsOperating*10)

	// Revenue scale: 50 points at $5M+ annual revenue
	if borrower.AnnualRevenue <= 0 {
		*defaults = append(*defaults, "annual_revenue")
		score += e.params.NeutralScore / 2
	} else {
		score += math.Min(50, borrower.AnnualRevenue/5_000_000*50)
	}

	return formulas.Clamp(score, 0, 100)
}

// collateralScore grades the proposed collateral. An unsecured request scores
// low but does not fail.
func (e *Engine) collateralScore(request LoanRequest) float64 {
	if request.Collateral == nil || request.Collateral.Type == domain.CollateralUnsecured {
		return 20
	}

	base := 0.0
	switch request.Collateral.Type {
	case domain.CollateralRealEstate:
		base = 90
	case domain.CollateralFinancial:
		base = 85
	case domain.CollateralEquipment:
		base = 65
	case domain.CollateralVehicle:
		base = 55
	default:
		base = 40
	}

	// Penalize high loan-to-value: full marks at or below 60%, zero at 100%+.
	ltv := formulas.Clamp(request.Collateral.LoanToValue, 0, 100)
	if ltv > 60 {
		base *= 1 - (ltv-60)/40
	}

	return formulas.Clamp(base, 0, 100)
}

// characterScore grades payment behaviour and cooperation.
func (e *Engine) characterScore(borrower domain.BorrowerProfile) float64 {
	score := e.params.NeutralScore

	switch borrower.Cooperation {
	case domain.CooperationCooperative:
		score += 30
	case domain.CooperationNonCooperative:
		score -= 30
	}

	// Established entities get the benefit of the doubt.
	if borrower.YearsOperating >= 5 {
		score += 10
	}

	return formulas.Clamp(score, 0, 100)
}

// capacityScore grades net worth relative to the requested amount.
func (e *Engine) capacityScore(borrower domain.BorrowerProfile, request LoanRequest, defaults *[]string) float64 {
	if borrower.NetWorth <= 0 {
		*defaults = append(*defaults, "net_worth")
		return e.params.NeutralScore
	}
	if request.Amount <= 0 {
		return e.params.NeutralScore
	}

	// Full marks when net worth covers the loan twice over.
	ratio := borrower.NetWorth / request.Amount
	return formulas.Clamp(ratio*50, 0, 100)
}

// lookupBand returns the category band for a score. Bands are ordered by
// MinScore descending; the zero band always matches.
func (e *Engine) lookupBand(score float64) config.CategoryBand {
	for _, band := range e.params.Bands {
		if score >= band.MinScore {
			return band
		}
	}
	// Parameter tables always carry a zero band; guard anyway.
	return e.params.Bands[len(e.params.Bands)-1]
}
