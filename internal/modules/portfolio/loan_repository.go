package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/openlend/keel/internal/domain"
)

// Schema is the loan book schema, applied at startup via database.ExecSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS borrowers (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	industry TEXT NOT NULL DEFAULT '',
	years_operating REAL NOT NULL DEFAULT 0,
	annual_revenue REAL NOT NULL DEFAULT 0,
	monthly_cash_flow REAL NOT NULL DEFAULT 0,
	net_worth REAL NOT NULL DEFAULT 0,
	cooperation TEXT NOT NULL DEFAULT 'neutral',
	geography_tier TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS collateral (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	appraised_value REAL NOT NULL DEFAULT 0,
	condition TEXT NOT NULL DEFAULT '',
	title_status TEXT NOT NULL DEFAULT '',
	loan_to_value REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS loans (
	id TEXT PRIMARY KEY,
	principal REAL NOT NULL,
	outstanding_balance REAL NOT NULL,
	interest_rate REAL NOT NULL,
	origination_date TEXT NOT NULL,
	maturity_date TEXT NOT NULL,
	days_past_due INTEGER NOT NULL DEFAULT 0,
	borrower_id TEXT NOT NULL REFERENCES borrowers(id),
	collateral_id TEXT REFERENCES collateral(id),
	on_time_payments INTEGER NOT NULL DEFAULT 0,
	late_payments_12m INTEGER NOT NULL DEFAULT 0,
	last_payment_date TEXT,
	status TEXT NOT NULL DEFAULT 'active'
);

CREATE INDEX IF NOT EXISTS idx_loans_status ON loans(status);
CREATE INDEX IF NOT EXISTS idx_loans_days_past_due ON loans(days_past_due);
`

const loanColumns = `id, principal, outstanding_balance, interest_rate, origination_date,
	maturity_date, days_past_due, borrower_id, collateral_id,
	on_time_payments, late_payments_12m, last_payment_date, status`

// LoanRepository handles loan book database operations.
type LoanRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewLoanRepository creates a new loan repository.
func NewLoanRepository(db *sql.DB, log zerolog.Logger) *LoanRepository {
	return &LoanRepository{
		db:  db,
		log: log.With().Str("repo", "loans").Logger(),
	}
}

// SaveLoan inserts or replaces a loan record.
func (r *LoanRepository) SaveLoan(loan domain.LoanRecord) error {
	var lastPayment *string
	if loan.PaymentHistory.LastPaymentDate != nil {
		formatted := loan.PaymentHistory.LastPaymentDate.Format(time.RFC3339)
		lastPayment = &formatted
	}

	var collateralID *string
	if loan.CollateralID != "" {
		collateralID = &loan.CollateralID
	}

	_, err := r.db.Exec(`INSERT OR REPLACE INTO loans (`+loanColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID, loan.Principal, loan.OutstandingBalance, loan.InterestRate,
		loan.OriginationDate.Format(time.RFC3339), loan.MaturityDate.Format(time.RFC3339),
		loan.DaysPastDue, loan.BorrowerID, collateralID,
		loan.PaymentHistory.OnTimePayments, loan.PaymentHistory.LatePayments12M,
		lastPayment, string(loan.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to save loan %s: %w", loan.ID, err)
	}
	return nil
}

// GetLoan returns a single loan by ID, or nil if not found.
func (r *LoanRepository) GetLoan(id string) (*domain.LoanRecord, error) {
	row := r.db.QueryRow(`SELECT `+loanColumns+` FROM loans WHERE id = ?`, id)
	loan, err := scanLoan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get loan %s: %w", id, err)
	}
	return &loan, nil
}

// GetAllLoans returns every loan in the book.
func (r *LoanRepository) GetAllLoans() ([]domain.LoanRecord, error) {
	rows, err := r.db.Query(`SELECT ` + loanColumns + ` FROM loans ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer rows.Close()

	return collectLoans(rows)
}

// GetDelinquentLoans returns loans at or past the given days-past-due mark,
// excluding closed loans.
func (r *LoanRepository) GetDelinquentLoans(minDaysPastDue int) ([]domain.LoanRecord, error) {
	rows, err := r.db.Query(`SELECT `+loanColumns+` FROM loans
		WHERE days_past_due >= ? AND status != 'closed' ORDER BY days_past_due DESC`, minDaysPastDue)
	if err != nil {
		return nil, fmt.Errorf("failed to query delinquent loans: %w", err)
	}
	defer rows.Close()

	return collectLoans(rows)
}

// GetLoanBook returns all loans joined with the borrower attributes the
// snapshot builder groups by.
func (r *LoanRepository) GetLoanBook() ([]LoanWithBorrower, error) {
	rows, err := r.db.Query(`SELECT l.id, l.principal, l.outstanding_balance, l.interest_rate,
		l.origination_date, l.maturity_date, l.days_past_due, l.borrower_id, l.collateral_id,
		l.on_time_payments, l.late_payments_12m, l.last_payment_date, l.status,
		COALESCE(b.industry, ''), COALESCE(b.geography_tier, '')
		FROM loans l LEFT JOIN borrowers b ON b.id = l.borrower_id ORDER BY l.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query loan book: %w", err)
	}
	defer rows.Close()

	var book []LoanWithBorrower
	for rows.Next() {
		var entry LoanWithBorrower
		var origination, maturity string
		var lastPayment, collateralID sql.NullString
		if err := rows.Scan(
			&entry.Loan.ID, &entry.Loan.Principal, &entry.Loan.OutstandingBalance,
			&entry.Loan.InterestRate, &origination, &maturity, &entry.Loan.DaysPastDue,
			&entry.Loan.BorrowerID, &collateralID,
			&entry.Loan.PaymentHistory.OnTimePayments, &entry.Loan.PaymentHistory.LatePayments12M,
			&lastPayment, &entry.Loan.Status, &entry.Industry, &entry.GeographyTier,
		); err != nil {
			return nil, fmt.Errorf("failed to scan loan book row: %w", err)
		}
		entry.Loan.OriginationDate = parseTime(origination)
		entry.Loan.MaturityDate = parseTime(maturity)
		entry.Loan.CollateralID = collateralID.String
		if lastPayment.Valid {
			t := parseTime(lastPayment.String)
			entry.Loan.PaymentHistory.LastPaymentDate = &t
		}
		book = append(book, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating loan book: %w", err)
	}

	return book, nil
}

// SaveBorrower inserts or replaces a borrower profile.
func (r *LoanRepository) SaveBorrower(borrower domain.BorrowerProfile) error {
	_, err := r.db.Exec(`INSERT OR REPLACE INTO borrowers (id, type, industry, years_operating,
		annual_revenue, monthly_cash_flow, net_worth, cooperation, geography_tier)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		borrower.ID, string(borrower.Type), borrower.Industry, borrower.YearsOperating,
		borrower.AnnualRevenue, borrower.MonthlyCashFlow, borrower.NetWorth,
		string(borrower.Cooperation), borrower.GeographyTier,
	)
	if err != nil {
		return fmt.Errorf("failed to save borrower %s: %w", borrower.ID, err)
	}
	return nil
}

// GetBorrower returns a borrower profile by ID, or nil if not found.
func (r *LoanRepository) GetBorrower(id string) (*domain.BorrowerProfile, error) {
	var b domain.BorrowerProfile
	err := r.db.QueryRow(`SELECT id, type, industry, years_operating, annual_revenue,
		monthly_cash_flow, net_worth, cooperation, geography_tier
		FROM borrowers WHERE id = ?`, id).Scan(
		&b.ID, &b.Type, &b.Industry, &b.YearsOperating, &b.AnnualRevenue,
		&b.MonthlyCashFlow, &b.NetWorth, &b.Cooperation, &b.GeographyTier,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get borrower %s: %w", id, err)
	}
	return &b, nil
}

// SaveCollateral inserts or replaces a collateral record.
func (r *LoanRepository) SaveCollateral(collateral domain.CollateralRecord) error {
	_, err := r.db.Exec(`INSERT OR REPLACE INTO collateral (id, type, appraised_value,
		condition, title_status, loan_to_value) VALUES (?, ?, ?, ?, ?, ?)`,
		collateral.ID, string(collateral.Type), collateral.AppraisedValue,
		collateral.Condition, collateral.TitleStatus, collateral.LoanToValue,
	)
	if err != nil {
		return fmt.Errorf("failed to save collateral %s: %w", collateral.ID, err)
	}
	return nil
}

// GetCollateral returns a collateral record by ID, or nil if not found.
func (r *LoanRepository) GetCollateral(id string) (*domain.CollateralRecord, error) {
	var c domain.CollateralRecord
	err := r.db.QueryRow(`SELECT id, type, appraised_value, condition, title_status, loan_to_value
		FROM collateral WHERE id = ?`, id).Scan(
		&c.ID, &c.Type, &c.AppraisedValue, &c.Condition, &c.TitleStatus, &c.LoanToValue,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collateral %s: %w", id, err)
	}
	return &c, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanLoan(row scanner) (domain.LoanRecord, error) {
	var loan domain.LoanRecord
	var origination, maturity string
	var lastPayment, collateralID sql.NullString

	err := row.Scan(
		&loan.ID, &loan.Principal, &loan.OutstandingBalance, &loan.InterestRate,
		&origination, &maturity, &loan.DaysPastDue, &loan.BorrowerID, &collateralID,
		&loan.PaymentHistory.OnTimePayments, &loan.PaymentHistory.LatePayments12M,
		&lastPayment, &loan.Status,
	)
	if err != nil {
		return loan, err
	}

	loan.OriginationDate = parseTime(origination)
	loan.MaturityDate = parseTime(maturity)
	loan.CollateralID = collateralID.String
	if lastPayment.Valid {
		t := parseTime(lastPayment.String)
		loan.PaymentHistory.LastPaymentDate = &t
	}

	return loan, nil
}

func collectLoans(rows *sql.Rows) ([]domain.LoanRecord, error) {
	var loans []domain.LoanRecord
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating loans: %w", err)
	}
	return loans, nil
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
