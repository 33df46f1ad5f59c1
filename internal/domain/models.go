// Package domain defines the core data model for the lending fund engine.
// All records are value types: the engines receive snapshots and never mutate
// their inputs.
package domain

import "time"

// BorrowerType classifies the borrowing entity.
type BorrowerType string

const (
	BorrowerIndividual  BorrowerType = "individual"
	BorrowerBusiness    BorrowerType = "business"
	BorrowerInstitution BorrowerType = "institution"
)

// CooperationLevel captures how responsive a borrower has been during
// servicing and collections.
type CooperationLevel string

const (
	CooperationCooperative    CooperationLevel = "cooperative"
	CooperationNeutral        CooperationLevel = "neutral"
	CooperationNonCooperative CooperationLevel = "non-cooperative"
)

// CollateralType classifies pledged collateral.
type CollateralType string

const (
	CollateralRealEstate CollateralType = "real-estate"
	CollateralEquipment  CollateralType = "equipment"
	CollateralVehicle    CollateralType = "vehicle"
	CollateralFinancial  CollateralType = "financial"
	CollateralUnsecured  CollateralType = "unsecured"
)

// LoanStatus is the servicing status of a loan.
type LoanStatus string

const (
	LoanStatusActive     LoanStatus = "active"
	LoanStatusDelinquent LoanStatus = "delinquent"
	LoanStatusDefaulted  LoanStatus = "defaulted"
	LoanStatusClosed     LoanStatus = "closed"
)

// PaymentHistory summarizes a loan's trailing payment behaviour.
type PaymentHistory struct {
	OnTimePayments  int        `json:"on_time_payments"`
	LatePayments12M int        `json:"late_payments_12m"`
	LastPaymentDate *time.Time `json:"last_payment_date,omitempty"`
}

// LoanRecord is an immutable snapshot of a loan. Servicing events (payments,
// restructures) happen outside this engine; callers pass the current state.
type LoanRecord struct {
	ID                 string         `json:"id"`
	Principal          float64        `json:"principal"`
	OutstandingBalance float64        `json:"outstanding_balance"`
	InterestRate       float64        `json:"interest_rate"` // annual, 0-100
	OriginationDate    time.Time      `json:"origination_date"`
	MaturityDate       time.Time      `json:"maturity_date"`
	DaysPastDue        int            `json:"days_past_due"`
	BorrowerID         string         `json:"borrower_id"`
	CollateralID       string         `json:"collateral_id,omitempty"`
	PaymentHistory     PaymentHistory `json:"payment_history"`
	Status             LoanStatus     `json:"status"`
}

// BorrowerProfile describes the borrowing entity.
type BorrowerProfile struct {
	ID              string           `json:"id"`
	Type            BorrowerType     `json:"type"`
	Industry        string           `json:"industry"`
	YearsOperating  float64          `json:"years_operating"`
	AnnualRevenue   float64          `json:"annual_revenue"`
	MonthlyCashFlow float64          `json:"monthly_cash_flow"`
	NetWorth        float64          `json:"net_worth"`
	Cooperation     CooperationLevel `json:"cooperation"`
	GeographyTier   string           `json:"geography_tier"`
}

// CollateralRecord describes pledged collateral.
type CollateralRecord struct {
	ID             string         `json:"id"`
	Type           CollateralType `json:"type"`
	AppraisedValue float64        `json:"appraised_value"`
	Condition      string         `json:"condition"`
	TitleStatus    string         `json:"title_status"`
	LoanToValue    float64        `json:"loan_to_value"` // percentage, 0-100
}

// PortfolioSnapshot is a read-only projection over a set of loans. It is
// recomputed whenever needed and never persisted by the engines.
type PortfolioSnapshot struct {
	TotalValue         float64            `json:"total_value"`
	ActiveLoans        int                `json:"active_loans"`
	AverageLoanSize    float64            `json:"average_loan_size"`
	DefaultRate        float64            `json:"default_rate"`     // 0-1
	DelinquencyRate    float64            `json:"delinquency_rate"` // 0-1
	LargestExposure    float64            `json:"largest_exposure"`
	LargestExposurePct float64            `json:"largest_exposure_pct"` // 0-1
	SectorExposure     map[string]float64 `json:"sector_exposure"`      // share of total value, 0-1
	GeographyExposure  map[string]float64 `json:"geography_exposure"`   // share of total value, 0-1
	LiquidityRatio     float64            `json:"liquidity_ratio"`      // cash / total value
	AvailableCash      float64            `json:"available_cash"`
	AsOf               time.Time          `json:"as_of"`
}

// MarketContext carries the external conditions the portfolio aggregator
// scores against. Supplied by the caller, not computed here.
type MarketContext struct {
	InterestRateTrend string  `json:"interest_rate_trend"` // rising, stable, falling
	PropertyIndex     float64 `json:"property_index"`      // 1.0 = baseline
	EconomicOutlook   string  `json:"economic_outlook"`    // expansion, neutral, contraction
}

// CashFlowAssumptions is the input to cash-flow forecasting. The forecaster
// never mutates it; scenario runs work on copies.
type CashFlowAssumptions struct {
	FundSize                float64 `json:"fund_size"`
	CurrentCash             float64 `json:"current_cash"`
	AnnualCollections       float64 `json:"annual_collections"`
	AnnualOriginations      float64 `json:"annual_originations"`
	AnnualOperatingExpenses float64 `json:"annual_operating_expenses"`
	AnnualManagementFees    float64 `json:"annual_management_fees"`
	ScheduledContributions  float64 `json:"scheduled_contributions"`
	ScheduledDistributions  float64 `json:"scheduled_distributions"`
	HorizonMonths           int     `json:"horizon_months"`
	StartMonth              int     `json:"start_month"` // calendar month (1-12) of projection month 1
}

// MonthlyInflows breaks cash coming in by category.
type MonthlyInflows struct {
	Collections   float64 `json:"collections"`
	Contributions float64 `json:"contributions"`
}

// Total returns the sum of all inflow categories.
func (i MonthlyInflows) Total() float64 {
	return i.Collections + i.Contributions
}

// MonthlyOutflows breaks cash going out by category.
type MonthlyOutflows struct {
	Originations      float64 `json:"originations"`
	OperatingExpenses float64 `json:"operating_expenses"`
	ManagementFees    float64 `json:"management_fees"`
	Distributions     float64 `json:"distributions"`
}

// Total returns the sum of all outflow categories.
func (o MonthlyOutflows) Total() float64 {
	return o.Originations + o.OperatingExpenses + o.ManagementFees + o.Distributions
}

// MonthlyProjection is one month of a cash-flow forecast. Pure output value,
// never edited after creation.
type MonthlyProjection struct {
	Month                 int             `json:"month"`          // 1-based index into the horizon
	CalendarMonth         int             `json:"calendar_month"` // 1-12
	OpeningCash           float64         `json:"opening_cash"`
	Inflows               MonthlyInflows  `json:"inflows"`
	Outflows              MonthlyOutflows `json:"outflows"`
	NetFlow               float64         `json:"net_flow"`
	ClosingCash           float64         `json:"closing_cash"`
	CashRatio             float64         `json:"cash_ratio"` // closing cash / fund size
	OperatingDaysCoverage float64         `json:"operating_days_coverage"`
}

// RecoveryStrategy names a loan-recovery path.
type RecoveryStrategy string

const (
	StrategySettlement  RecoveryStrategy = "negotiated-settlement"
	StrategyForeclosure RecoveryStrategy = "collateral-foreclosure"
	StrategyLegal       RecoveryStrategy = "legal-judgment"
	StrategyChargeOff   RecoveryStrategy = "charge-off"
)

// RecoveryCase is the input to recovery-strategy optimization.
type RecoveryCase struct {
	LoanID             string           `json:"loan_id"`
	OutstandingBalance float64          `json:"outstanding_balance"`
	CollateralValue    float64          `json:"collateral_value"`
	CollateralType     CollateralType   `json:"collateral_type"`
	DaysPastDue        int              `json:"days_past_due"`
	Cooperation        CooperationLevel `json:"cooperation"`
}

// RecoveryOption is one scored recovery strategy for a case.
type RecoveryOption struct {
	Strategy          RecoveryStrategy `json:"strategy"`
	TimelineMonths    int              `json:"timeline_months"`
	EstimatedRecovery float64          `json:"estimated_recovery"`
	EstimatedCost     float64          `json:"estimated_cost"`
	NetRecovery       float64          `json:"net_recovery"`
	Probability       float64          `json:"probability"` // 0-1, capped at 0.95
	ExpectedValue     float64          `json:"expected_value"`
}
