package store

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"shopbooks/pkg/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrUnbalanced is returned when a transaction's lines do not sum
	// to zero.
	ErrUnbalanced = errors.New("transaction lines do not sum to zero")
)

// Storage defines the interface for database operations on the ledger.
type Storage interface {
	CreateAccount(account *models.Account) error
	GetAccount(id uuid.UUID) (*models.Account, error)
	GetAllAccounts() ([]*models.Account, error)

	CreateVendor(vendor *models.Vendor) error
	GetVendor(id uuid.UUID) (*models.Vendor, error)
	GetAllVendors() ([]*models.Vendor, error)

	CreateJob(job *models.Job) error
	GetJob(id uuid.UUID) (*models.Job, error)
	GetAllJobs() ([]*models.Job, error)

	CreateLoan(loan *models.Loan) error
	GetLoan(id uuid.UUID) (*models.Loan, error)
	GetAllLoans() ([]*models.Loan, error)

	// PostTransaction persists a transaction and its lines atomically.
	// The lines must sum to zero and every referenced account must
	// exist, or nothing is written.
	PostTransaction(tx *models.Transaction) error

	// PostTransactionMulti persists several balanced transactions as
	// one atomic unit; any failure rolls back all of them.
	PostTransactionMulti(txs []*models.Transaction) error

	MarkTransactionCleared(id uuid.UUID, cleared bool) error
	GetTransaction(id uuid.UUID) (*models.Transaction, error)
	GetAllTransactions() ([]*models.Transaction, error)
	GetTransactionsBetween(from, to time.Time) ([]*models.Transaction, error)

	Close() error
}
