// Package recovery implements recovery-strategy optimization for delinquent
// loans: a quantitative ranking stage and a separate business-policy
// selection stage.
package recovery

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/openlend/keel/internal/config"
	"github.com/openlend/keel/internal/domain"
	"github.com/openlend/keel/pkg/formulas"
)

// Selection is the outcome of the policy stage. Overridden is true when the
// qualitative rules displaced the expected-value ranking.
type Selection struct {
	Chosen     domain.RecoveryOption `json:"chosen"`
	Overridden bool                  `json:"overridden"`
	Reason     string                `json:"reason"`
}

// Optimizer ranks recovery strategies by probability-weighted net recovery
// and applies the documented policy overrides on selection.
type Optimizer struct {
	params config.RecoveryParams
	log    zerolog.Logger
}

// NewOptimizer creates a new recovery-strategy optimizer.
func NewOptimizer(params config.RecoveryParams, log zerolog.Logger) *Optimizer {
	return &Optimizer{
		params: params,
		log:    log.With().Str("service", "recovery").Logger(),
	}
}

// Rank scores every strategy applicable to the case and returns them sorted
// by expected value, best first. Purely quantitative; the policy overrides
// live in Select.
func (o *Optimizer) Rank(recoveryCase domain.RecoveryCase) []domain.RecoveryOption {
	options := make([]domain.RecoveryOption, 0, 4)
	for _, strategy := range []domain.RecoveryStrategy{
		domain.StrategySettlement,
		domain.StrategyForeclosure,
		domain.StrategyLegal,
		domain.StrategyChargeOff,
	} {
		if !o.applicable(strategy, recoveryCase) {
			continue
		}
		options = append(options, o.score(strategy, recoveryCase))
	}

	sort.SliceStable(options, func(i, j int) bool {
		if options[i].ExpectedValue != options[j].ExpectedValue {
			return options[i].ExpectedValue > options[j].ExpectedValue
		}
		return options[i].Strategy < options[j].Strategy
	})

	o.log.Debug().
		Str("loan_id", recoveryCase.LoanID).
		Int("options", len(options)).
		Msg("Recovery strategies ranked")

	return options
}

// Select applies the business-policy overrides to a ranked list. These rules
// are deliberate policy, not optimization: a cooperative borrower early in
// delinquency is steered to settlement, a non-cooperative borrower with
// collateral to foreclosure. With no applicable override the top-ranked
// option wins.
func (o *Optimizer) Select(options []domain.RecoveryOption, recoveryCase domain.RecoveryCase) *Selection {
	if len(options) == 0 {
		return nil
	}
	top := options[0]

	if recoveryCase.Cooperation == domain.CooperationCooperative &&
		recoveryCase.DaysPastDue < o.params.SettlementMaxDPD {
		if settlement := findStrategy(options, domain.StrategySettlement); settlement != nil &&
			settlement.ExpectedValue >= top.ExpectedValue*o.params.SettlementEVMargin {
			return &Selection{
				Chosen:     *settlement,
				Overridden: settlement.Strategy != top.Strategy,
				Reason: fmt.Sprintf("cooperative borrower at %d days past due: settlement preferred within margin",
					recoveryCase.DaysPastDue),
			}
		}
	}

	if recoveryCase.Cooperation == domain.CooperationNonCooperative && recoveryCase.CollateralValue > 0 {
		if foreclosure := findStrategy(options, domain.StrategyForeclosure); foreclosure != nil &&
			foreclosure.NetRecovery >= top.NetRecovery*o.params.ForeclosureNetRatio {
			return &Selection{
				Chosen:     *foreclosure,
				Overridden: foreclosure.Strategy != top.Strategy,
				Reason:     "non-cooperative borrower with collateral: foreclosure preferred",
			}
		}
	}

	return &Selection{Chosen: top, Reason: "highest expected value"}
}

// applicable gates strategies on case shape: foreclosure needs collateral,
// charge-off needs deep delinquency.
func (o *Optimizer) applicable(strategy domain.RecoveryStrategy, recoveryCase domain.RecoveryCase) bool {
	switch strategy {
	case domain.StrategyForeclosure:
		return recoveryCase.CollateralValue > 0
	case domain.StrategyChargeOff:
		return recoveryCase.DaysPastDue > o.params.ChargeOffMinDPD
	default:
		return true
	}
}

func (o *Optimizer) score(strategy domain.RecoveryStrategy, recoveryCase domain.RecoveryCase) domain.RecoveryOption {
	strategyParams := o.params.Strategies[string(strategy)]

	balance := recoveryCase.OutstandingBalance
	if balance < 0 {
		balance = 0
	}

	gross := balance * strategyParams.UnsecuredRecoveryPct
	if strategy == domain.StrategyForeclosure {
		rate := o.params.CollateralRecoveryRates[string(recoveryCase.CollateralType)]
		// Recovery never exceeds what is owed.
		gross = formulas.Clamp(recoveryCase.CollateralValue*rate, 0, balance)
	}

	gross = formulas.Round2(gross)
	cost := formulas.Round2(balance * strategyParams.CostPct)
	net := formulas.Round2(gross - cost)
	probability := o.probability(strategy, recoveryCase.DaysPastDue)

	return domain.RecoveryOption{
		Strategy:          strategy,
		TimelineMonths:    strategyParams.TimelineMonths,
		EstimatedRecovery: gross,
		EstimatedCost:     cost,
		NetRecovery:       net,
		Probability:       probability,
		ExpectedValue:     formulas.Round2(net * probability),
	}
}

// probability derives a success probability from the days-past-due bands,
// shifts it by the strategy adjustment, and caps the result.
func (o *Optimizer) probability(strategy domain.RecoveryStrategy, daysPastDue int) float64 {
	base := 0.0
	for _, band := range o.params.ProbabilityBands {
		if float64(daysPastDue) >= band.Threshold {
			base = band.Multiplier
			break
		}
	}

	probability := base + o.params.ProbabilityAdjust[string(strategy)]
	return formulas.Round4(formulas.Clamp(probability, 0, o.params.ProbabilityCap))
}

func findStrategy(options []domain.RecoveryOption, strategy domain.RecoveryStrategy) *domain.RecoveryOption {
	for i := range options {
		if options[i].Strategy == strategy {
			return &options[i]
		}
	}
	return nil
}
