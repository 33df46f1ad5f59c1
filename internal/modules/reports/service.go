// Package reports assembles numbers-first risk and cash-flow reports,
// optionally enriched with collaborator narrative.
package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openlend/keel/internal/domain"
	"github.com/openlend/keel/internal/modules/cashflow"
	"github.com/openlend/keel/internal/modules/portfolio"
)

// PortfolioReport is a portfolio risk report. The numbers are always present;
// Narrative is best-effort.
type PortfolioReport struct {
	ID                string                   `json:"id"`
	GeneratedAt       time.Time                `json:"generated_at"`
	Snapshot          domain.PortfolioSnapshot `json:"snapshot"`
	Risk              portfolio.RiskReport     `json:"risk"`
	Narrative         string                   `json:"narrative,omitempty"`
	NarrativeIncluded bool                     `json:"narrative_included"`
}

// CashFlowReport is a liquidity report over a scenario run.
type CashFlowReport struct {
	ID                string                     `json:"id"`
	GeneratedAt       time.Time                  `json:"generated_at"`
	Assumptions       domain.CashFlowAssumptions `json:"assumptions"`
	Scenarios         cashflow.ScenarioSet       `json:"scenarios"`
	Narrative         string                     `json:"narrative,omitempty"`
	NarrativeIncluded bool                       `json:"narrative_included"`
}

// Service assembles reports. The narrative generator is optional: a nil
// generator, or any generator failure, yields a numbers-only report.
type Service struct {
	generator domain.NarrativeGenerator
	opts      domain.NarrativeOptions
	log       zerolog.Logger
}

// NewService creates a new report service. generator may be nil.
func NewService(generator domain.NarrativeGenerator, opts domain.NarrativeOptions, log zerolog.Logger) *Service {
	return &Service{
		generator: generator,
		opts:      opts,
		log:       log.With().Str("service", "reports").Logger(),
	}
}

// BuildPortfolioReport wraps an aggregated risk report, attaching narrative
// when the collaborator is available and succeeds.
func (s *Service) BuildPortfolioReport(ctx context.Context, snapshot domain.PortfolioSnapshot, risk portfolio.RiskReport) PortfolioReport {
	report := PortfolioReport{
		ID:          uuid.New().String(),
		GeneratedAt: time.Now().UTC(),
		Snapshot:    snapshot,
		Risk:        risk,
	}

	report.Narrative, report.NarrativeIncluded = s.narrate(ctx, portfolioPrompt(snapshot, risk))
	return report
}

// BuildCashFlowReport wraps a scenario run the same way.
func (s *Service) BuildCashFlowReport(ctx context.Context, assumptions domain.CashFlowAssumptions, scenarios cashflow.ScenarioSet) CashFlowReport {
	report := CashFlowReport{
		ID:          uuid.New().String(),
		GeneratedAt: time.Now().UTC(),
		Assumptions: assumptions,
		Scenarios:   scenarios,
	}

	report.Narrative, report.NarrativeIncluded = s.narrate(ctx, cashFlowPrompt(assumptions, scenarios))
	return report
}

// narrate calls the collaborator, degrading to numbers-only on any failure.
func (s *Service) narrate(ctx context.Context, prompt string) (string, bool) {
	if s.generator == nil {
		return "", false
	}

	result := s.generator.Generate(ctx, prompt, s.opts)
	if !result.OK {
		s.log.Warn().Msg("Narrative unavailable, emitting numbers-only report")
		return "", false
	}
	return result.Text, true
}

// portfolioPrompt renders the computed numbers into a prompt. The collaborator
// only ever narrates figures the engines already produced.
func portfolioPrompt(snapshot domain.PortfolioSnapshot, risk portfolio.RiskReport) string {
	var b strings.Builder
	b.WriteString("Write a concise portfolio risk commentary for a private lending fund using only these figures.\n")
	fmt.Fprintf(&b, "Portfolio value: $%.2f across %d active loans.\n", snapshot.TotalValue, snapshot.ActiveLoans)
	fmt.Fprintf(&b, "Default rate %.2f%%, delinquency rate %.2f%%, liquidity ratio %.2f%%.\n",
		snapshot.DefaultRate*100, snapshot.DelinquencyRate*100, snapshot.LiquidityRatio*100)
	fmt.Fprintf(&b, "Overall risk score %.1f/100 (%s). Stress suite passed: %t.\n",
		risk.OverallScore, risk.RiskLevel, risk.StressPassed)
	for _, breach := range risk.Concentration.Breaches {
		fmt.Fprintf(&b, "Concentration breach: %s %s at %.1f%% against a %.0f%% limit.\n",
			breach.Dimension, breach.Name, breach.Exposure*100, breach.Limit*100)
	}
	for _, warning := range risk.EarlyWarnings {
		fmt.Fprintf(&b, "Early warning (%s): %s.\n", warning.Severity, warning.Message)
	}
	return b.String()
}

func cashFlowPrompt(assumptions domain.CashFlowAssumptions, scenarios cashflow.ScenarioSet) string {
	var b strings.Builder
	b.WriteString("Write a concise liquidity commentary for a private lending fund using only these figures.\n")
	fmt.Fprintf(&b, "Fund size $%.2f, current cash $%.2f, horizon %d months.\n",
		assumptions.FundSize, assumptions.CurrentCash, assumptions.HorizonMonths)
	for _, result := range scenarios.Results {
		fmt.Fprintf(&b, "Scenario %s: final cash $%.2f, minimum cash $%.2f (month %d), liquidity safe: %t.\n",
			result.Name, result.FinalCash, result.MinimumCash, result.MinimumCashMonth, result.LiquiditySafe)
	}
	return b.String()
}
