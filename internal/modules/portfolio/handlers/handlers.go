// Package handlers provides HTTP handlers for the loan book and portfolio
// risk operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/openlend/keel/internal/domain"
	"github.com/openlend/keel/internal/modules/portfolio"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	repo       *portfolio.LoanRepository
	aggregator *portfolio.Aggregator
	log        zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(repo *portfolio.LoanRepository, aggregator *portfolio.Aggregator, log zerolog.Logger) *Handler {
	return &Handler{
		repo:       repo,
		aggregator: aggregator,
		log:        log.With().Str("handler", "portfolio").Logger(),
	}
}

// AggregateRequest represents a request to aggregate an explicit snapshot
type AggregateRequest struct {
	Snapshot domain.PortfolioSnapshot `json:"snapshot"`
	Market   domain.MarketContext     `json:"market"`
}

// ReportRequest represents a request to report on the stored loan book
type ReportRequest struct {
	AvailableCash float64              `json:"available_cash"`
	Market        domain.MarketContext `json:"market"`
}

// HandleAggregate handles POST /api/portfolio/aggregate
func (h *Handler) HandleAggregate(w http.ResponseWriter, r *http.Request) {
	var req AggregateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	report := h.aggregator.Aggregate(req.Snapshot, req.Market)

	h.writeJSON(w, http.StatusOK, envelope(report))
}

// HandleRiskReport handles POST /api/portfolio/risk-report - snapshot the
// stored book, then aggregate
func (h *Handler) HandleRiskReport(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	book, err := h.repo.GetLoanBook()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load loan book")
		http.Error(w, "Failed to load loan book", http.StatusInternalServerError)
		return
	}

	snapshot := portfolio.BuildSnapshot(book, req.AvailableCash, time.Now().UTC())
	report := h.aggregator.Aggregate(snapshot, req.Market)

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"snapshot": snapshot,
		"report":   report,
	}))
}

// HandleGetSnapshot handles GET /api/portfolio/snapshot
func (h *Handler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	availableCash := 0.0
	if raw := r.URL.Query().Get("available_cash"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			http.Error(w, "Invalid available_cash parameter", http.StatusBadRequest)
			return
		}
		availableCash = parsed
	}

	book, err := h.repo.GetLoanBook()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load loan book")
		http.Error(w, "Failed to load loan book", http.StatusInternalServerError)
		return
	}

	snapshot := portfolio.BuildSnapshot(book, availableCash, time.Now().UTC())

	h.writeJSON(w, http.StatusOK, envelope(snapshot))
}

// HandleListLoans handles GET /api/portfolio/loans
func (h *Handler) HandleListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.repo.GetAllLoans()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list loans")
		http.Error(w, "Failed to list loans", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"loans": loans,
		"count": len(loans),
	}))
}

// HandleGetLoan handles GET /api/portfolio/loans/{id}
func (h *Handler) HandleGetLoan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	loan, err := h.repo.GetLoan(id)
	if err != nil {
		h.log.Error().Err(err).Str("loan_id", id).Msg("Failed to get loan")
		http.Error(w, "Failed to get loan", http.StatusInternalServerError)
		return
	}
	if loan == nil {
		http.Error(w, "Loan not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(loan))
}

// HandleSaveLoan handles PUT /api/portfolio/loans
func (h *Handler) HandleSaveLoan(w http.ResponseWriter, r *http.Request) {
	var loan domain.LoanRecord
	if err := json.NewDecoder(r.Body).Decode(&loan); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if loan.ID == "" {
		http.Error(w, "Loan ID is required", http.StatusBadRequest)
		return
	}

	if err := h.repo.SaveLoan(loan); err != nil {
		h.log.Error().Err(err).Str("loan_id", loan.ID).Msg("Failed to save loan")
		http.Error(w, "Failed to save loan", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{"saved": loan.ID}))
}

// HandleSaveBorrower handles PUT /api/portfolio/borrowers
func (h *Handler) HandleSaveBorrower(w http.ResponseWriter, r *http.Request) {
	var borrower domain.BorrowerProfile
	if err := json.NewDecoder(r.Body).Decode(&borrower); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if borrower.ID == "" {
		http.Error(w, "Borrower ID is required", http.StatusBadRequest)
		return
	}

	if err := h.repo.SaveBorrower(borrower); err != nil {
		h.log.Error().Err(err).Str("borrower_id", borrower.ID).Msg("Failed to save borrower")
		http.Error(w, "Failed to save borrower", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{"saved": borrower.ID}))
}

// HandleSaveCollateral handles PUT /api/portfolio/collateral
func (h *Handler) HandleSaveCollateral(w http.ResponseWriter, r *http.Request) {
	var collateral domain.CollateralRecord
	if err := json.NewDecoder(r.Body).Decode(&collateral); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if collateral.ID == "" {
		http.Error(w, "Collateral ID is required", http.StatusBadRequest)
		return
	}

	if err := h.repo.SaveCollateral(collateral); err != nil {
		h.log.Error().Err(err).Str("collateral_id", collateral.ID).Msg("Failed to save collateral")
		http.Error(w, "Failed to save collateral", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{"saved": collateral.ID}))
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
