package ledger

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"shopbooks/pkg/amortize"
	"shopbooks/pkg/models"
	"shopbooks/pkg/store"
)

// MockStore is a simple in-memory implementation of the Storage
// interface for testing.
type MockStore struct {
	accounts     map[uuid.UUID]*models.Account
	vendors      map[uuid.UUID]*models.Vendor
	jobs         map[uuid.UUID]*models.Job
	loans        map[uuid.UUID]*models.Loan
	transactions []*models.Transaction
}

func NewMockStore() *MockStore {
	return &MockStore{
		accounts: make(map[uuid.UUID]*models.Account),
		vendors:  make(map[uuid.UUID]*models.Vendor),
		jobs:     make(map[uuid.UUID]*models.Job),
		loans:    make(map[uuid.UUID]*models.Loan),
	}
}

func (m *MockStore) CreateAccount(a *models.Account) error {
	m.accounts[a.ID] = a
	return nil
}

func (m *MockStore) GetAccount(id uuid.UUID) (*models.Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, store.ErrNotFound)
	}
	return a, nil
}

func (m *MockStore) GetAllAccounts() ([]*models.Account, error) {
	accounts := []*models.Account{}
	for _, a := range m.accounts {
		accounts = append(accounts, a)
	}
	return accounts, nil
}

func (m *MockStore) CreateVendor(v *models.Vendor) error {
	m.vendors[v.ID] = v
	return nil
}

func (m *MockStore) GetVendor(id uuid.UUID) (*models.Vendor, error) {
	v, ok := m.vendors[id]
	if !ok {
		return nil, fmt.Errorf("vendor %s: %w", id, store.ErrNotFound)
	}
	return v, nil
}

func (m *MockStore) GetAllVendors() ([]*models.Vendor, error) {
	vendors := []*models.Vendor{}
	for _, v := range m.vendors {
		vendors = append(vendors, v)
	}
	return vendors, nil
}

func (m *MockStore) CreateJob(j *models.Job) error {
	m.jobs[j.ID] = j
	return nil
}

func (m *MockStore) GetJob(id uuid.UUID) (*models.Job, error) {
	j, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, store.ErrNotFound)
	}
	return j, nil
}

func (m *MockStore) GetAllJobs() ([]*models.Job, error) {
	jobs := []*models.Job{}
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func (m *MockStore) CreateLoan(l *models.Loan) error {
	m.loans[l.ID] = l
	return nil
}

func (m *MockStore) GetLoan(id uuid.UUID) (*models.Loan, error) {
	l, ok := m.loans[id]
	if !ok {
		return nil, fmt.Errorf("loan %s: %w", id, store.ErrNotFound)
	}
	return l, nil
}

func (m *MockStore) GetAllLoans() ([]*models.Loan, error) {
	loans := []*models.Loan{}
	for _, l := range m.loans {
		loans = append(loans, l)
	}
	return loans, nil
}

func (m *MockStore) validate(tx *models.Transaction) error {
	if len(tx.Lines) == 0 || !tx.LinesTotal().Equal(decimal.Zero) {
		return fmt.Errorf("transaction %s: %w", tx.ID, store.ErrUnbalanced)
	}
	for _, line := range tx.Lines {
		if _, ok := m.accounts[line.AccountID]; !ok {
			return fmt.Errorf("account %s: %w", line.AccountID, store.ErrNotFound)
		}
	}
	return nil
}

func (m *MockStore) PostTransaction(tx *models.Transaction) error {
	if err := m.validate(tx); err != nil {
		return err
	}
	m.transactions = append(m.transactions, tx)
	return nil
}

func (m *MockStore) PostTransactionMulti(txs []*models.Transaction) error {
	for _, tx := range txs {
		if err := m.validate(tx); err != nil {
			return err
		}
	}
	m.transactions = append(m.transactions, txs...)
	return nil
}

func (m *MockStore) MarkTransactionCleared(id uuid.UUID, cleared bool) error {
	for _, tx := range m.transactions {
		if tx.ID == id {
			tx.Cleared = cleared
			return nil
		}
	}
	return fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
}

func (m *MockStore) GetTransaction(id uuid.UUID) (*models.Transaction, error) {
	for _, tx := range m.transactions {
		if tx.ID == id {
			return tx, nil
		}
	}
	return nil, fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
}

func (m *MockStore) GetAllTransactions() ([]*models.Transaction, error) {
	return m.transactions, nil
}

func (m *MockStore) GetTransactionsBetween(from, to time.Time) ([]*models.Transaction, error) {
	txs := []*models.Transaction{}
	for _, tx := range m.transactions {
		if !tx.Date.Before(from) && !tx.Date.After(to) {
			txs = append(txs, tx)
		}
	}
	return txs, nil
}

func (m *MockStore) Close() error { return nil }

func newTestLedger() (*Ledger, *MockStore) {
	mock := NewMockStore()
	return NewLedger(mock, log.New(io.Discard)), mock
}

func TestPostTransaction(t *testing.T) {
	l, mock := newTestLedger()

	checking, _ := l.CreateAccount("Checking", models.AccountTypeAsset)
	supplies, _ := l.CreateAccount("Supplies", models.AccountTypeExpense)

	tx, err := l.PostTransaction(Posting{
		Date:        time.Now(),
		Description: "Padding order",
		Lines: []models.TransactionLine{
			{AccountID: supplies.ID, Amount: decimal.NewFromFloat(99.50)},
			{AccountID: checking.ID, Amount: decimal.NewFromFloat(-99.50)},
		},
	})
	if err != nil {
		t.Fatalf("Failed to post transaction: %v", err)
	}

	if len(mock.transactions) != 1 {
		t.Fatalf("Expected 1 stored transaction, got %d", len(mock.transactions))
	}
	if tx.Lines[0].ID == uuid.Nil {
		t.Error("Expected line IDs to be assigned")
	}
}

func TestPostTransactionUnbalanced(t *testing.T) {
	l, _ := newTestLedger()

	checking, _ := l.CreateAccount("Checking", models.AccountTypeAsset)

	_, err := l.PostTransaction(Posting{
		Date: time.Now(),
		Lines: []models.TransactionLine{
			{AccountID: checking.ID, Amount: decimal.NewFromInt(100)},
		},
	})
	if !errors.Is(err, store.ErrUnbalanced) {
		t.Fatalf("Expected ErrUnbalanced, got %v", err)
	}
}

func TestAccountBalance(t *testing.T) {
	l, _ := newTestLedger()

	checking, _ := l.CreateAccount("Checking", models.AccountTypeAsset)
	supplies, _ := l.CreateAccount("Supplies", models.AccountTypeExpense)

	for _, amount := range []float64{100, 250.50} {
		_, err := l.PostTransaction(Posting{
			Date: time.Now(),
			Lines: []models.TransactionLine{
				{AccountID: supplies.ID, Amount: decimal.NewFromFloat(amount)},
				{AccountID: checking.ID, Amount: decimal.NewFromFloat(-amount)},
			},
		})
		if err != nil {
			t.Fatalf("Failed to post transaction: %v", err)
		}
	}

	balance, err := l.AccountBalance(supplies.ID)
	if err != nil {
		t.Fatalf("Failed to get balance: %v", err)
	}
	if !balance.Equal(decimal.NewFromFloat(350.50)) {
		t.Errorf("Expected balance 350.50, got %s", balance)
	}

	balance, _ = l.AccountBalance(checking.ID)
	if !balance.Equal(decimal.NewFromFloat(-350.50)) {
		t.Errorf("Expected balance -350.50, got %s", balance)
	}
}

func TestCreateLoanInvalidTerms(t *testing.T) {
	l, _ := newTestLedger()

	_, err := l.CreateLoan(&models.Loan{
		Name:              "Bad Loan",
		OriginalPrincipal: decimal.NewFromInt(-100),
		TermMonths:        360,
	})
	var invalid *amortize.InvalidTermsError
	if !errors.As(err, &invalid) {
		t.Fatalf("Expected InvalidTermsError, got %v", err)
	}
}

func newTestLoan(t *testing.T, l *Ledger) (*models.Loan, *models.Account) {
	t.Helper()

	liability, _ := l.CreateAccount("Mortgage Payable", models.AccountTypeLiability)
	interest, _ := l.CreateAccount("Mortgage Interest", models.AccountTypeExpense)
	taxes, _ := l.CreateAccount("Property Taxes", models.AccountTypeExpense)
	insurance, _ := l.CreateAccount("Property Insurance", models.AccountTypeExpense)
	checking, _ := l.CreateAccount("Checking", models.AccountTypeAsset)

	firstPayment := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	loan, err := l.CreateLoan(&models.Loan{
		Name:                     "Shop Mortgage",
		LiabilityAccountID:       liability.ID,
		InterestAccountID:        interest.ID,
		EscrowTaxesAccountID:     taxes.ID,
		EscrowInsuranceAccountID: insurance.ID,
		OriginalPrincipal:        decimal.NewFromInt(200_000),
		AnnualRatePercent:        decimal.NewFromInt(6),
		TermMonths:               360,
		OriginationDate:          time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		FirstPaymentDate:         &firstPayment,
	})
	if err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}
	return loan, checking
}

func TestPreviewMortgagePayment(t *testing.T) {
	l, _ := newTestLedger()
	loan, _ := newTestLoan(t, l)

	split, err := l.PreviewMortgagePayment(loan.ID, amortize.PaymentQuery{
		PaymentDate:        time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		TotalPaymentAmount: decimal.NewFromInt(1500),
	})
	if err != nil {
		t.Fatalf("Failed to preview payment: %v", err)
	}

	if split.PaymentNumber != 1 {
		t.Errorf("Expected payment number 1, got %d", split.PaymentNumber)
	}
	if !split.Interest.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Expected interest 1000, got %s", split.Interest)
	}
	if !split.EscrowInferred {
		t.Error("Expected escrow to be inferred from the 300.90 difference")
	}
}

func TestRecordMortgagePayment(t *testing.T) {
	l, mock := newTestLedger()
	loan, checking := newTestLoan(t, l)

	tx, split, err := l.RecordMortgagePayment(loan.ID, checking.ID, amortize.PaymentQuery{
		PaymentDate:        time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		TotalPaymentAmount: decimal.NewFromInt(1500),
	}, nil)
	if err != nil {
		t.Fatalf("Failed to record payment: %v", err)
	}

	if !tx.LinesTotal().Equal(decimal.Zero) {
		t.Errorf("Expected balanced posting, lines sum to %s", tx.LinesTotal())
	}
	// Principal + interest + two inferred escrow lines + funding credit.
	if len(tx.Lines) != 5 {
		t.Errorf("Expected 5 lines, got %d", len(tx.Lines))
	}
	if !split.Total().Equal(decimal.NewFromInt(1500)) {
		t.Errorf("Expected split total 1500, got %s", split.Total())
	}
	if len(mock.transactions) != 1 {
		t.Errorf("Expected 1 stored transaction, got %d", len(mock.transactions))
	}

	// The checking account carries the full payment as a credit.
	balance, err := l.AccountBalance(checking.ID)
	if err != nil {
		t.Fatalf("Failed to get balance: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(-1500)) {
		t.Errorf("Expected checking balance -1500, got %s", balance)
	}
}

func TestRecordMortgagePaymentEdited(t *testing.T) {
	l, _ := newTestLedger()
	loan, checking := newTestLoan(t, l)

	// The user overrode the computed split before confirming.
	edited := &amortize.PaymentSplit{
		PaymentNumber: 1,
		Principal:     decimal.NewFromInt(200),
		Interest:      decimal.NewFromInt(1000),
		EscrowTaxes:   decimal.NewFromInt(300),
	}

	tx, split, err := l.RecordMortgagePayment(loan.ID, checking.ID, amortize.PaymentQuery{
		PaymentDate:        time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		TotalPaymentAmount: decimal.NewFromInt(1500),
	}, edited)
	if err != nil {
		t.Fatalf("Failed to record edited payment: %v", err)
	}

	if !split.Principal.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Expected edited principal to be used, got %s", split.Principal)
	}
	if !tx.LinesTotal().Equal(decimal.Zero) {
		t.Errorf("Expected balanced posting, lines sum to %s", tx.LinesTotal())
	}
	// No insurance line since the edited split has zero insurance.
	if len(tx.Lines) != 4 {
		t.Errorf("Expected 4 lines, got %d", len(tx.Lines))
	}
}

func TestMarkCleared(t *testing.T) {
	l, mock := newTestLedger()

	checking, _ := l.CreateAccount("Checking", models.AccountTypeAsset)
	supplies, _ := l.CreateAccount("Supplies", models.AccountTypeExpense)

	tx, err := l.PostTransaction(Posting{
		Date: time.Now(),
		Lines: []models.TransactionLine{
			{AccountID: supplies.ID, Amount: decimal.NewFromInt(10)},
			{AccountID: checking.ID, Amount: decimal.NewFromInt(-10)},
		},
	})
	if err != nil {
		t.Fatalf("Failed to post transaction: %v", err)
	}

	if err := l.MarkCleared(tx.ID, true); err != nil {
		t.Fatalf("Failed to mark cleared: %v", err)
	}
	if !mock.transactions[0].Cleared {
		t.Error("Expected transaction to be cleared")
	}
}
