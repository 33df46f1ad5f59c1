// Package risk implements per-loan probability-of-default and
// loss-given-default estimation.
package risk

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/openlend/keel/internal/config"
	"github.com/openlend/keel/internal/domain"
	"github.com/openlend/keel/pkg/formulas"
)

// LoanAssessment is the risk model output for a single loan.
type LoanAssessment struct {
	LoanID               string  `json:"loan_id"`
	ProbabilityOfDefault float64 `json:"probability_of_default"` // 0-0.95
	LossGivenDefault     float64 `json:"loss_given_default"`     // 0.10-0.90
	ExpectedLoss         float64 `json:"expected_loss"`
	RiskRating           string  `json:"risk_rating"`
	// Factors records the multiplier each risk dimension contributed,
	// for audit.
	Factors map[string]float64 `json:"factors"`
}

// Model estimates PD and LGD from loan, collateral and borrower attributes.
//
// PD starts from the base annual rate and is scaled by one factor per risk
// dimension (coverage, leverage, delinquency, payment history, industry).
// When several bands apply within a dimension only the highest is taken;
// dimensions then multiply. The per-dimension max keeps a loan that trips
// every band in one dimension from compounding to absurdity; the hard cap
// bounds the cross-dimension product.
type Model struct {
	params config.LoanRiskParams
	log    zerolog.Logger
}

// NewModel creates a new loan risk model.
func NewModel(params config.LoanRiskParams, log zerolog.Logger) *Model {
	return &Model{
		params: params,
		log:    log.With().Str("service", "loan_risk").Logger(),
	}
}

// Assess computes PD, LGD, expected loss and a letter rating for a loan.
// Collateral may be nil for unsecured loans. Never errors: out-of-range
// inputs clamp, missing attributes contribute a neutral factor of 1.
func (m *Model) Assess(loan domain.LoanRecord, collateral *domain.CollateralRecord, borrower domain.BorrowerProfile) LoanAssessment {
	factors := map[string]float64{
		"coverage":    m.coverageFactor(loan, borrower),
		"leverage":    m.leverageFactor(collateral),
		"delinquency": m.delinquencyFactor(loan.DaysPastDue),
		"payments":    m.paymentHistoryFactor(loan.PaymentHistory),
		"industry":    m.industryFactor(borrower.Industry),
	}

	pd := m.params.BasePD
	for _, factor := range factors {
		pd *= factor
	}
	pd = formulas.Clamp(pd, 0, m.params.PDCap)

	lgd := m.lossGivenDefault(loan, collateral)

	balance := loan.OutstandingBalance
	if balance < 0 {
		balance = 0
	}

	return LoanAssessment{
		LoanID:               loan.ID,
		ProbabilityOfDefault: pd,
		LossGivenDefault:     lgd,
		ExpectedLoss:         balance * pd * lgd,
		RiskRating:           m.rating(pd),
		Factors:              factors,
	}
}

// coverageFactor grades the debt-service-coverage ratio. Thin coverage
// multiplies PD up, strong coverage earns a discount.
func (m *Model) coverageFactor(loan domain.LoanRecord, borrower domain.BorrowerProfile) float64 {
	dscr, ok := debtServiceCoverage(loan, borrower)
	if !ok {
		// No cash-flow data: neutral. A missing input is not a risk signal.
		return 1.0
	}

	// Bands are ordered worst-first; the first (highest) applicable
	// multiplier wins.
	for _, band := range m.params.DSCRBands {
		if dscr < band.Threshold {
			return band.Multiplier
		}
	}
	if dscr > m.params.DSCRGoodCutoff {
		return m.params.DSCRGoodFactor
	}
	return 1.0
}

// debtServiceCoverage derives DSCR from monthly cash flow against an assumed
// annual debt service of interest plus 25% principal amortization.
func debtServiceCoverage(loan domain.LoanRecord, borrower domain.BorrowerProfile) (float64, bool) {
	if borrower.MonthlyCashFlow <= 0 || loan.OutstandingBalance <= 0 {
		return 0, false
	}
	annualDebtService := loan.OutstandingBalance * (loan.InterestRate/100 + 0.25)
	if annualDebtService <= 0 {
		return 0, false
	}
	return (borrower.MonthlyCashFlow * 12) / annualDebtService, true
}

// leverageFactor grades loan-to-value. High leverage multiplies PD up, low
// leverage earns the discount. The bands apply whenever an LTV is supplied,
// unsecured or not; the absence of collateral itself is priced in LGD.
func (m *Model) leverageFactor(collateral *domain.CollateralRecord) float64 {
	if collateral == nil || collateral.LoanToValue <= 0 {
		return 1.0
	}

	ltv := formulas.Clamp(collateral.LoanToValue, 0, 500)
	for _, band := range m.params.LTVBands {
		if ltv > band.Threshold {
			return band.Multiplier
		}
	}
	if ltv < m.params.LTVGoodCutoff {
		return m.params.LTVGoodFactor
	}
	return 1.0
}

// delinquencyFactor grades days past due against the delinquency bands.
func (m *Model) delinquencyFactor(daysPastDue int) float64 {
	if daysPastDue <= 0 {
		return 1.0
	}
	for _, band := range m.params.DelinquencyBand {
		if float64(daysPastDue) > band.Threshold {
			return band.Multiplier
		}
	}
	return 1.0
}

// paymentHistoryFactor grades trailing-year late payments.
func (m *Model) paymentHistoryFactor(history domain.PaymentHistory) float64 {
	if float64(history.LatePayments12M) > m.params.LatePayments.Threshold {
		return m.params.LatePayments.Multiplier
	}
	return 1.0
}

// industryFactor applies the flat surcharge for high-risk sectors.
func (m *Model) industryFactor(industry string) float64 {
	normalized := strings.ToLower(strings.TrimSpace(industry))
	for _, sector := range m.params.HighRiskSectors {
		if normalized == sector {
			return m.params.HighRiskFactor
		}
	}
	return 1.0
}

// lossGivenDefault estimates the loss severity on default. The collateral
// type sets the base; leverage and loan size adjust it; the result clamps to
// the documented [floor, ceiling] range.
func (m *Model) lossGivenDefault(loan domain.LoanRecord, collateral *domain.CollateralRecord) float64 {
	lgd := m.params.LGDBase
	if collateral != nil {
		if base, ok := m.params.LGDByType[string(collateral.Type)]; ok {
			lgd = base
		}
		// Thin equity cushion recovers less. Loan-to-value carries no
		// meaning without collateral, so unsecured loans skip this.
		if collateral.Type != domain.CollateralUnsecured && collateral.LoanToValue > 80 {
			lgd += m.params.LGDHighLTVAdd
		}
	} else {
		lgd = m.params.LGDByType[string(domain.CollateralUnsecured)]
	}

	// Large exposures are harder to liquidate at par.
	if loan.OutstandingBalance > m.params.LGDLargeCutoff {
		lgd += m.params.LGDLargeAdd
	}

	return formulas.Clamp(lgd, m.params.LGDFloor, m.params.LGDCeiling)
}

// rating maps PD to a letter grade via the rating bands (lowest ceiling
// first).
func (m *Model) rating(pd float64) string {
	for _, band := range m.params.RatingBands {
		if pd <= band.MaxPD {
			return band.Rating
		}
	}
	return m.params.RatingBands[len(m.params.RatingBands)-1].Rating
}
