package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeIncome    AccountType = "income"
	AccountTypeExpense   AccountType = "expense"
)

// Account is one entry in the chart of accounts.
type Account struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Type      AccountType `json:"type"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// TransactionLine is a single debit or credit within a transaction.
// Debits are positive, credits negative; the lines of a posted
// transaction always sum to zero.
type TransactionLine struct {
	ID        uuid.UUID       `json:"id"`
	AccountID uuid.UUID       `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Memo      string          `json:"memo,omitempty"`
}

// Transaction is a balanced double-entry posting with its lines.
type Transaction struct {
	ID          uuid.UUID         `json:"id"`
	Date        time.Time         `json:"date"`
	Description string            `json:"description"`
	VendorID    *uuid.UUID        `json:"vendor_id,omitempty"`
	JobID       *uuid.UUID        `json:"job_id,omitempty"`
	Cleared     bool              `json:"cleared"`
	Lines       []TransactionLine `json:"lines"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// LinesTotal sums the transaction's lines. Zero for a balanced posting.
func (t *Transaction) LinesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range t.Lines {
		total = total.Add(line.Amount)
	}
	return total
}

type VendorKind string

const (
	VendorKindSupplier  VendorKind = "supplier"
	VendorKindInstaller VendorKind = "installer"
)

// Vendor is a supplier or installer that expense lines can be tagged to.
type Vendor struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Kind      VendorKind `json:"kind"`
	Contact   string     `json:"contact,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type JobStatus string

const (
	JobStatusOpen   JobStatus = "open"
	JobStatusClosed JobStatus = "closed"
)

// Job is a customer job that income and expense lines can be costed against.
type Job struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Customer  string    `json:"customer"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Loan holds the origination terms of a fixed-rate loan together with the
// ledger accounts its payments are posted against. The terms fields are
// set once at origination and never change.
type Loan struct {
	ID                       uuid.UUID       `json:"id"`
	Name                     string          `json:"name"`
	LiabilityAccountID       uuid.UUID       `json:"liability_account_id"`
	InterestAccountID        uuid.UUID       `json:"interest_account_id"`
	EscrowTaxesAccountID     uuid.UUID       `json:"escrow_taxes_account_id"`
	EscrowInsuranceAccountID uuid.UUID       `json:"escrow_insurance_account_id"`
	OriginalPrincipal        decimal.Decimal `json:"original_principal"`
	AnnualRatePercent        decimal.Decimal `json:"annual_rate_percent"`
	TermMonths               int             `json:"term_months"`
	OriginationDate          time.Time       `json:"origination_date"`
	FirstPaymentDate         *time.Time      `json:"first_payment_date,omitempty"`
	MonthlyEscrowTaxes       decimal.Decimal `json:"monthly_escrow_taxes"`
	MonthlyEscrowInsurance   decimal.Decimal `json:"monthly_escrow_insurance"`
	CreatedAt                time.Time       `json:"created_at"`
	UpdatedAt                time.Time       `json:"updated_at"`
}
