package domain

import "context"

// LoanStore is the read surface the snapshot builder and schedulers need.
// Implemented by the sqlite loan repository.
type LoanStore interface {
	GetAllLoans() ([]LoanRecord, error)
	GetLoan(id string) (*LoanRecord, error)
	GetBorrower(id string) (*BorrowerProfile, error)
	GetCollateral(id string) (*CollateralRecord, error)
	GetDelinquentLoans(minDaysPastDue int) ([]LoanRecord, error)
}

// NarrativeOptions is the small options record passed to the narrative
// collaborator alongside the prompt.
type NarrativeOptions struct {
	Tier      string // "standard" or "premium"
	MaxTokens int
}

// NarrativeResult is the collaborator's response. When OK is false the Text is
// empty and callers fall back to a numbers-only report.
type NarrativeResult struct {
	Text string
	OK   bool
}

// NarrativeGenerator is the external text-generation collaborator. The engines
// never depend on the content of the returned text, only embed it.
type NarrativeGenerator interface {
	Generate(ctx context.Context, prompt string, opts NarrativeOptions) NarrativeResult
}
