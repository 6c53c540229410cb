package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"shopbooks/pkg/amortize"
	"shopbooks/pkg/cache"
	"shopbooks/pkg/config"
	"shopbooks/pkg/ledger"
	"shopbooks/pkg/models"
	"shopbooks/pkg/report"
	"shopbooks/pkg/store"
)

const dateLayout = "2006-01-02"

// Server holds the ledger, reports, and storage.
type Server struct {
	ledger  *ledger.Ledger
	reports *report.Service
	storage store.Storage
	logger  *log.Logger
}

func NewServer(s store.Storage, c cache.Cache, logger *log.Logger) *Server {
	return &Server{
		ledger:  ledger.NewLedger(s, logger),
		reports: report.NewService(s, c, logger),
		storage: s,
		logger:  logger,
	}
}

func (s *Server) router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/accounts", s.listAccountsHandler).Methods("GET")
	router.HandleFunc("/accounts", s.createAccountHandler).Methods("POST")
	router.HandleFunc("/accounts/{id}/balance", s.accountBalanceHandler).Methods("GET")

	router.HandleFunc("/vendors", s.listVendorsHandler).Methods("GET")
	router.HandleFunc("/vendors", s.createVendorHandler).Methods("POST")
	router.HandleFunc("/jobs", s.listJobsHandler).Methods("GET")
	router.HandleFunc("/jobs", s.createJobHandler).Methods("POST")

	router.HandleFunc("/transactions", s.listTransactionsHandler).Methods("GET")
	router.HandleFunc("/transactions", s.createTransactionHandler).Methods("POST")
	router.HandleFunc("/transactions/batch", s.createTransactionBatchHandler).Methods("POST")
	router.HandleFunc("/transactions/{id}/cleared", s.markClearedHandler).Methods("POST")

	router.HandleFunc("/loans", s.listLoansHandler).Methods("GET")
	router.HandleFunc("/loans", s.createLoanHandler).Methods("POST")
	router.HandleFunc("/loans/{id}", s.getLoanHandler).Methods("GET")
	router.HandleFunc("/loans/{id}/split", s.previewSplitHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/payments", s.recordPaymentHandler).Methods("POST")

	router.HandleFunc("/reports/expenses", s.expenseReportHandler).Methods("GET")
	router.HandleFunc("/reports/jobs/{id}/profit", s.jobProfitHandler).Methods("GET")
	router.HandleFunc("/reports/vendors/{id}/spend", s.vendorSpendHandler).Methods("GET")

	return router
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "err", err)
	}
}

// writeError maps domain errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var invalid *amortize.InvalidTermsError
	switch {
	case errors.As(err, &invalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, store.ErrUnbalanced):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		s.logger.Error("request failed", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func pathID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)["id"])
}

func (s *Server) createAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string             `json:"name"`
		Type models.AccountType `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	account, err := s.ledger.CreateAccount(req.Name, req.Type)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, http.StatusCreated, account)
}

func (s *Server) listAccountsHandler(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.storage.GetAllAccounts()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) accountBalanceHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid account ID", http.StatusBadRequest)
		return
	}

	balance, err := s.ledger.AccountBalance(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]decimal.Decimal{"balance": balance})
}

func (s *Server) createVendorHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string            `json:"name"`
		Kind    models.VendorKind `json:"kind"`
		Contact string            `json:"contact"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	vendor, err := s.ledger.CreateVendor(req.Name, req.Kind, req.Contact)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, http.StatusCreated, vendor)
}

func (s *Server) listVendorsHandler(w http.ResponseWriter, r *http.Request) {
	vendors, err := s.storage.GetAllVendors()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, vendors)
}

func (s *Server) createJobHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Customer string `json:"customer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job, err := s.ledger.CreateJob(req.Name, req.Customer)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, http.StatusCreated, job)
}

func (s *Server) listJobsHandler(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.storage.GetAllJobs()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, jobs)
}

// transactionRequest is the wire form of a draft posting.
type transactionRequest struct {
	Date        string     `json:"date"`
	Description string     `json:"description"`
	VendorID    *uuid.UUID `json:"vendor_id,omitempty"`
	JobID       *uuid.UUID `json:"job_id,omitempty"`
	Lines       []struct {
		AccountID uuid.UUID       `json:"account_id"`
		Amount    decimal.Decimal `json:"amount"`
		Memo      string          `json:"memo"`
	} `json:"lines"`
}

func (req transactionRequest) toPosting() (ledger.Posting, error) {
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return ledger.Posting{}, err
	}
	posting := ledger.Posting{
		Date:        date,
		Description: req.Description,
		VendorID:    req.VendorID,
		JobID:       req.JobID,
	}
	for _, line := range req.Lines {
		posting.Lines = append(posting.Lines, models.TransactionLine{
			AccountID: line.AccountID,
			Amount:    line.Amount,
			Memo:      line.Memo,
		})
	}
	return posting, nil
}

func (s *Server) createTransactionHandler(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	posting, err := req.toPosting()
	if err != nil {
		http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	tx, err := s.ledger.PostTransaction(posting)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) createTransactionBatchHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Transactions []transactionRequest `json:"transactions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	postings := make([]ledger.Posting, 0, len(req.Transactions))
	for _, txReq := range req.Transactions {
		posting, err := txReq.toPosting()
		if err != nil {
			http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		postings = append(postings, posting)
	}

	txs, err := s.ledger.PostTransactionMulti(postings)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, txs)
}

func (s *Server) listTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")

	var txs []*models.Transaction
	var err error
	if fromStr != "" && toStr != "" {
		var from, to time.Time
		if from, err = time.Parse(dateLayout, fromStr); err == nil {
			if to, err = time.Parse(dateLayout, toStr); err == nil {
				txs, err = s.storage.GetTransactionsBetween(from, to)
			}
		}
		if err != nil {
			http.Error(w, "Invalid date range, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	} else {
		txs, err = s.storage.GetAllTransactions()
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, txs)
}

func (s *Server) markClearedHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid transaction ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Cleared bool `json:"cleared"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.ledger.MarkCleared(id, req.Cleared); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// loanRequest is the wire form of a loan with date-only fields.
type loanRequest struct {
	Name                     string          `json:"name"`
	LiabilityAccountID       uuid.UUID       `json:"liability_account_id"`
	InterestAccountID        uuid.UUID       `json:"interest_account_id"`
	EscrowTaxesAccountID     uuid.UUID       `json:"escrow_taxes_account_id"`
	EscrowInsuranceAccountID uuid.UUID       `json:"escrow_insurance_account_id"`
	OriginalPrincipal        decimal.Decimal `json:"original_principal"`
	AnnualRatePercent        decimal.Decimal `json:"annual_rate_percent"`
	TermMonths               int             `json:"term_months"`
	OriginationDate          string          `json:"origination_date"`
	FirstPaymentDate         string          `json:"first_payment_date,omitempty"`
	MonthlyEscrowTaxes       decimal.Decimal `json:"monthly_escrow_taxes"`
	MonthlyEscrowInsurance   decimal.Decimal `json:"monthly_escrow_insurance"`
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	origination, err := time.Parse(dateLayout, req.OriginationDate)
	if err != nil {
		http.Error(w, "Invalid origination_date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	var firstPayment *time.Time
	if req.FirstPaymentDate != "" {
		parsed, err := time.Parse(dateLayout, req.FirstPaymentDate)
		if err != nil {
			http.Error(w, "Invalid first_payment_date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		firstPayment = &parsed
	}

	loan, err := s.ledger.CreateLoan(&models.Loan{
		Name:                     req.Name,
		LiabilityAccountID:       req.LiabilityAccountID,
		InterestAccountID:        req.InterestAccountID,
		EscrowTaxesAccountID:     req.EscrowTaxesAccountID,
		EscrowInsuranceAccountID: req.EscrowInsuranceAccountID,
		OriginalPrincipal:        req.OriginalPrincipal,
		AnnualRatePercent:        req.AnnualRatePercent,
		TermMonths:               req.TermMonths,
		OriginationDate:          origination,
		FirstPaymentDate:         firstPayment,
		MonthlyEscrowTaxes:       req.MonthlyEscrowTaxes,
		MonthlyEscrowInsurance:   req.MonthlyEscrowInsurance,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, loan)
}

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.ledger.GetAllLoans()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, loans)
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	loan, err := s.ledger.GetLoan(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, loan)
}

func parsePaymentQuery(dateStr string, total decimal.Decimal) (amortize.PaymentQuery, error) {
	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return amortize.PaymentQuery{}, err
	}
	return amortize.PaymentQuery{PaymentDate: date, TotalPaymentAmount: total}, nil
}

func (s *Server) previewSplitHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	var req struct {
		PaymentDate        string          `json:"payment_date"`
		TotalPaymentAmount decimal.Decimal `json:"total_payment_amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	query, err := parsePaymentQuery(req.PaymentDate, req.TotalPaymentAmount)
	if err != nil {
		http.Error(w, "Invalid payment_date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	split, err := s.ledger.PreviewMortgagePayment(id, query)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, split)
}

func (s *Server) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	var req struct {
		PaymentDate        string                 `json:"payment_date"`
		TotalPaymentAmount decimal.Decimal        `json:"total_payment_amount"`
		FundingAccountID   uuid.UUID              `json:"funding_account_id"`
		Split              *amortize.PaymentSplit `json:"split,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	query, err := parsePaymentQuery(req.PaymentDate, req.TotalPaymentAmount)
	if err != nil {
		http.Error(w, "Invalid payment_date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	tx, split, err := s.ledger.RecordMortgagePayment(id, req.FundingAccountID, query, req.Split)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"transaction": tx,
		"split":       split,
	})
}

func (s *Server) expenseReportHandler(w http.ResponseWriter, r *http.Request) {
	from, err := time.Parse(dateLayout, r.URL.Query().Get("from"))
	if err != nil {
		http.Error(w, "Invalid from date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	to, err := time.Parse(dateLayout, r.URL.Query().Get("to"))
	if err != nil {
		http.Error(w, "Invalid to date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	rows, err := s.reports.ExpenseByCategory(from, to)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rows)
}

func (s *Server) jobProfitHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid job ID", http.StatusBadRequest)
		return
	}

	profit, err := s.reports.JobProfit(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, profit)
}

func (s *Server) vendorSpendHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid vendor ID", http.StatusBadRequest)
		return
	}

	spend, err := s.reports.VendorSpend(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, spend)
}

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "shopbooks",
	})

	cfg := config.Load()

	sqliteStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize store", "err", err)
	}
	defer sqliteStore.Close()

	var reportCache cache.Cache
	if cfg.RedisAddr != "" {
		logger.Info("using redis report cache", "addr", cfg.RedisAddr)
		reportCache = cache.NewRedis(cfg.RedisAddr)
	} else {
		reportCache = cache.NewMemory()
	}

	server := NewServer(sqliteStore, reportCache, logger)

	logger.Info("server starting", "addr", cfg.ListenAddr, "db", cfg.DBPath)
	if err := http.ListenAndServe(cfg.ListenAddr, server.router()); err != nil {
		logger.Fatal("server error", "err", err)
	}
}
