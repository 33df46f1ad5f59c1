package portfolio

import (
	"time"

	"github.com/openlend/keel/internal/domain"
	"github.com/openlend/keel/pkg/formulas"
)

// LoanWithBorrower pairs a loan with the borrower attributes the snapshot
// needs for exposure grouping.
type LoanWithBorrower struct {
	Loan     domain.LoanRecord
	Industry string
	// GeographyTier groups exposure by the borrower's geography tier.
	GeographyTier string
}

// BuildSnapshot derives a read-only portfolio projection from the loan book.
// Closed loans are excluded. The caller injects asOf so repeated builds over
// the same book are byte-identical.
func BuildSnapshot(loans []LoanWithBorrower, availableCash float64, asOf time.Time) domain.PortfolioSnapshot {
	snapshot := domain.PortfolioSnapshot{
		SectorExposure:    map[string]float64{},
		GeographyExposure: map[string]float64{},
		AvailableCash:     availableCash,
		AsOf:              asOf,
	}

	defaulted := 0.0
	delinquent := 0.0
	byBorrower := map[string]float64{}

	for _, entry := range loans {
		loan := entry.Loan
		if loan.Status == domain.LoanStatusClosed {
			continue
		}

		balance := loan.OutstandingBalance
		if balance < 0 {
			balance = 0
		}

		snapshot.TotalValue += balance
		snapshot.ActiveLoans++
		byBorrower[loan.BorrowerID] += balance

		if loan.Status == domain.LoanStatusDefaulted {
			defaulted += balance
		}
		if loan.DaysPastDue > 30 {
			delinquent += balance
		}

		sector := entry.Industry
		if sector == "" {
			sector = "unclassified"
		}
		snapshot.SectorExposure[sector] += balance

		geography := entry.GeographyTier
		if geography == "" {
			geography = "unclassified"
		}
		snapshot.GeographyExposure[geography] += balance
	}

	if snapshot.TotalValue > 0 {
		snapshot.AverageLoanSize = snapshot.TotalValue / float64(snapshot.ActiveLoans)
		snapshot.DefaultRate = defaulted / snapshot.TotalValue
		snapshot.DelinquencyRate = delinquent / snapshot.TotalValue

		for _, exposure := range byBorrower {
			if exposure > snapshot.LargestExposure {
				snapshot.LargestExposure = exposure
			}
		}
		snapshot.LargestExposurePct = snapshot.LargestExposure / snapshot.TotalValue

		for sector, exposure := range snapshot.SectorExposure {
			snapshot.SectorExposure[sector] = exposure / snapshot.TotalValue
		}
		for geography, exposure := range snapshot.GeographyExposure {
			snapshot.GeographyExposure[geography] = exposure / snapshot.TotalValue
		}
	}

	snapshot.LiquidityRatio = formulas.SafeRatio(availableCash, snapshot.TotalValue+availableCash, 1)

	return snapshot
}
