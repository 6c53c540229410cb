// Package ledger implements the bookkeeping business logic: balanced
// double-entry postings, loan management, and mortgage payment recording.
package ledger

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"shopbooks/pkg/amortize"
	"shopbooks/pkg/models"
	"shopbooks/pkg/store"
)

// Ledger handles the business logic for accounts, postings, and loans.
type Ledger struct {
	storage store.Storage
	logger  *log.Logger
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage, logger *log.Logger) *Ledger {
	return &Ledger{storage: s, logger: logger}
}

// Posting is a draft transaction before it is assigned IDs and persisted.
type Posting struct {
	Date        time.Time
	Description string
	VendorID    *uuid.UUID
	JobID       *uuid.UUID
	Lines       []models.TransactionLine
}

// CreateAccount adds an account to the chart of accounts.
func (l *Ledger) CreateAccount(name string, accountType models.AccountType) (*models.Account, error) {
	if name == "" {
		return nil, fmt.Errorf("account name is required")
	}
	switch accountType {
	case models.AccountTypeAsset, models.AccountTypeLiability, models.AccountTypeEquity,
		models.AccountTypeIncome, models.AccountTypeExpense:
	default:
		return nil, fmt.Errorf("unknown account type %q", accountType)
	}

	account := &models.Account{
		ID:        uuid.New(),
		Name:      name,
		Type:      accountType,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := l.storage.CreateAccount(account); err != nil {
		return nil, fmt.Errorf("failed to store account: %w", err)
	}
	return account, nil
}

// CreateVendor registers a supplier or installer.
func (l *Ledger) CreateVendor(name string, kind models.VendorKind, contact string) (*models.Vendor, error) {
	if name == "" {
		return nil, fmt.Errorf("vendor name is required")
	}
	if kind != models.VendorKindSupplier && kind != models.VendorKindInstaller {
		return nil, fmt.Errorf("unknown vendor kind %q", kind)
	}

	vendor := &models.Vendor{
		ID:        uuid.New(),
		Name:      name,
		Kind:      kind,
		Contact:   contact,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := l.storage.CreateVendor(vendor); err != nil {
		return nil, fmt.Errorf("failed to store vendor: %w", err)
	}
	return vendor, nil
}

// CreateJob opens a new customer job for costing.
func (l *Ledger) CreateJob(name, customer string) (*models.Job, error) {
	if name == "" {
		return nil, fmt.Errorf("job name is required")
	}

	job := &models.Job{
		ID:        uuid.New(),
		Name:      name,
		Customer:  customer,
		Status:    models.JobStatusOpen,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := l.storage.CreateJob(job); err != nil {
		return nil, fmt.Errorf("failed to store job: %w", err)
	}
	return job, nil
}

// Terms extracts the amortization terms from a stored loan.
func Terms(loan *models.Loan) amortize.LoanTerms {
	return amortize.LoanTerms{
		OriginalPrincipal:      loan.OriginalPrincipal,
		AnnualRatePercent:      loan.AnnualRatePercent,
		TermMonths:             loan.TermMonths,
		OriginationDate:        loan.OriginationDate,
		FirstPaymentDate:       loan.FirstPaymentDate,
		MonthlyEscrowTaxes:     loan.MonthlyEscrowTaxes,
		MonthlyEscrowInsurance: loan.MonthlyEscrowInsurance,
	}
}

// CreateLoan validates the loan terms and its account references and
// persists the loan.
func (l *Ledger) CreateLoan(loan *models.Loan) (*models.Loan, error) {
	if err := amortize.ValidateTerms(Terms(loan)); err != nil {
		return nil, err
	}
	for _, accountID := range []uuid.UUID{
		loan.LiabilityAccountID, loan.InterestAccountID,
		loan.EscrowTaxesAccountID, loan.EscrowInsuranceAccountID,
	} {
		if _, err := l.storage.GetAccount(accountID); err != nil {
			return nil, fmt.Errorf("loan account reference: %w", err)
		}
	}

	loan.ID = uuid.New()
	loan.CreatedAt = time.Now()
	loan.UpdatedAt = time.Now()
	if err := l.storage.CreateLoan(loan); err != nil {
		return nil, fmt.Errorf("failed to store loan: %w", err)
	}
	return loan, nil
}

// GetLoan retrieves a loan by its ID.
func (l *Ledger) GetLoan(id uuid.UUID) (*models.Loan, error) {
	return l.storage.GetLoan(id)
}

// GetAllLoans retrieves all loans.
func (l *Ledger) GetAllLoans() ([]*models.Loan, error) {
	return l.storage.GetAllLoans()
}

// buildTransaction assigns IDs and timestamps to a draft posting.
func buildTransaction(posting Posting) *models.Transaction {
	now := time.Now()
	tx := &models.Transaction{
		ID:          uuid.New(),
		Date:        posting.Date,
		Description: posting.Description,
		VendorID:    posting.VendorID,
		JobID:       posting.JobID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, line := range posting.Lines {
		if line.ID == uuid.Nil {
			line.ID = uuid.New()
		}
		tx.Lines = append(tx.Lines, line)
	}
	return tx
}

// PostTransaction persists one balanced transaction. The lines must sum
// to zero and reference existing accounts, or nothing is written.
func (l *Ledger) PostTransaction(posting Posting) (*models.Transaction, error) {
	tx := buildTransaction(posting)
	if err := l.storage.PostTransaction(tx); err != nil {
		return nil, err
	}
	l.logger.Info("posted transaction", "id", tx.ID, "lines", len(tx.Lines))
	return tx, nil
}

// PostTransactionMulti persists several balanced transactions atomically.
func (l *Ledger) PostTransactionMulti(postings []Posting) ([]*models.Transaction, error) {
	if len(postings) == 0 {
		return nil, fmt.Errorf("no transactions to post")
	}

	txs := make([]*models.Transaction, 0, len(postings))
	for _, posting := range postings {
		txs = append(txs, buildTransaction(posting))
	}
	if err := l.storage.PostTransactionMulti(txs); err != nil {
		return nil, err
	}
	l.logger.Info("posted transaction batch", "count", len(txs))
	return txs, nil
}

// MarkCleared flips the cleared flag on a transaction.
func (l *Ledger) MarkCleared(id uuid.UUID, cleared bool) error {
	return l.storage.MarkTransactionCleared(id, cleared)
}

// AccountBalance sums the posted lines for one account.
func (l *Ledger) AccountBalance(accountID uuid.UUID) (decimal.Decimal, error) {
	if _, err := l.storage.GetAccount(accountID); err != nil {
		return decimal.Zero, err
	}

	txs, err := l.storage.GetAllTransactions()
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load transactions: %w", err)
	}

	balance := decimal.Zero
	for _, tx := range txs {
		for _, line := range tx.Lines {
			if line.AccountID == accountID {
				balance = balance.Add(line.Amount)
			}
		}
	}
	return balance, nil
}

// PreviewMortgagePayment computes the PITI split for a payment without
// persisting anything. The caller shows it for confirmation and may edit
// it before recording.
func (l *Ledger) PreviewMortgagePayment(loanID uuid.UUID, query amortize.PaymentQuery) (amortize.PaymentSplit, error) {
	loan, err := l.storage.GetLoan(loanID)
	if err != nil {
		return amortize.PaymentSplit{}, err
	}
	return amortize.ComputeMortgageSplit(Terms(loan), query)
}

// RecordMortgagePayment computes the PITI split for a payment (or takes
// a caller-edited one) and posts it as a balanced transaction: principal
// against the loan liability, interest and escrow against their expense
// accounts, and the total credited from the funding account.
func (l *Ledger) RecordMortgagePayment(
	loanID, fundingAccountID uuid.UUID,
	query amortize.PaymentQuery,
	edited *amortize.PaymentSplit,
) (*models.Transaction, amortize.PaymentSplit, error) {
	loan, err := l.storage.GetLoan(loanID)
	if err != nil {
		return nil, amortize.PaymentSplit{}, err
	}

	var split amortize.PaymentSplit
	if edited != nil {
		split = *edited
	} else {
		split, err = amortize.ComputeMortgageSplit(Terms(loan), query)
		if err != nil {
			return nil, amortize.PaymentSplit{}, err
		}
	}
	for _, warning := range split.Warnings {
		l.logger.Warn("mortgage split", "loan", loan.Name, "warning", warning)
	}

	lines := []models.TransactionLine{
		{AccountID: loan.LiabilityAccountID, Amount: split.Principal, Memo: "Principal"},
		{AccountID: loan.InterestAccountID, Amount: split.Interest, Memo: "Interest"},
	}
	if !split.EscrowTaxes.IsZero() {
		lines = append(lines, models.TransactionLine{
			AccountID: loan.EscrowTaxesAccountID, Amount: split.EscrowTaxes, Memo: "Escrow taxes",
		})
	}
	if !split.EscrowInsurance.IsZero() {
		lines = append(lines, models.TransactionLine{
			AccountID: loan.EscrowInsuranceAccountID, Amount: split.EscrowInsurance, Memo: "Escrow insurance",
		})
	}
	// Credit the split total, not the requested cash amount, so the
	// posting always balances; any residual is already reported in the
	// split warnings.
	lines = append(lines, models.TransactionLine{
		AccountID: fundingAccountID, Amount: split.Total().Neg(), Memo: "Payment",
	})

	tx, err := l.PostTransaction(Posting{
		Date:        query.PaymentDate,
		Description: fmt.Sprintf("%s payment #%d", loan.Name, split.PaymentNumber),
		Lines:       lines,
	})
	if err != nil {
		return nil, amortize.PaymentSplit{}, err
	}
	return tx, split, nil
}
