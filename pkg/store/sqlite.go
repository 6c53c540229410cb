package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"shopbooks/pkg/models"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore and initializes the database.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	// Manually enable foreign keys and WAL mode
	if _, err = db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err = db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	return s, nil
}

// initSchema creates the database tables if they don't already exist.
// Decimal fields are stored as TEXT so no precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS vendors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		contact TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		customer TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		liability_account_id TEXT NOT NULL,
		interest_account_id TEXT NOT NULL,
		escrow_taxes_account_id TEXT NOT NULL,
		escrow_insurance_account_id TEXT NOT NULL,
		original_principal TEXT NOT NULL,
		annual_rate_percent TEXT NOT NULL,
		term_months INTEGER NOT NULL,
		origination_date DATETIME NOT NULL,
		first_payment_date DATETIME,
		monthly_escrow_taxes TEXT NOT NULL DEFAULT '0',
		monthly_escrow_insurance TEXT NOT NULL DEFAULT '0',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY(liability_account_id) REFERENCES accounts(id),
		FOREIGN KEY(interest_account_id) REFERENCES accounts(id),
		FOREIGN KEY(escrow_taxes_account_id) REFERENCES accounts(id),
		FOREIGN KEY(escrow_insurance_account_id) REFERENCES accounts(id)
	);
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		date DATETIME NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		vendor_id TEXT,
		job_id TEXT,
		cleared INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY(vendor_id) REFERENCES vendors(id),
		FOREIGN KEY(job_id) REFERENCES jobs(id)
	);
	CREATE TABLE IF NOT EXISTS transaction_lines (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		memo TEXT NOT NULL DEFAULT '',
		FOREIGN KEY(transaction_id) REFERENCES transactions(id),
		FOREIGN KEY(account_id) REFERENCES accounts(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateAccount inserts a new account into the database.
func (s *SQLiteStore) CreateAccount(account *models.Account) error {
	_, err := s.db.Exec(
		`INSERT INTO accounts (id, name, type, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		account.ID.String(), account.Name, string(account.Type), account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccount retrieves an account by its ID.
func (s *SQLiteStore) GetAccount(id uuid.UUID) (*models.Account, error) {
	var account models.Account
	var idStr, typeStr string

	row := s.db.QueryRow(`SELECT id, name, type, created_at, updated_at FROM accounts WHERE id = ?`, id.String())
	err := row.Scan(&idStr, &account.Name, &typeStr, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	account.ID = uuid.MustParse(idStr)
	account.Type = models.AccountType(typeStr)
	return &account, nil
}

// GetAllAccounts retrieves all accounts.
func (s *SQLiteStore) GetAllAccounts() ([]*models.Account, error) {
	rows, err := s.db.Query(`SELECT id, name, type, created_at, updated_at FROM accounts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		var account models.Account
		var idStr, typeStr string
		if err := rows.Scan(&idStr, &account.Name, &typeStr, &account.CreatedAt, &account.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		account.ID = uuid.MustParse(idStr)
		account.Type = models.AccountType(typeStr)
		accounts = append(accounts, &account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return accounts, nil
}

// CreateVendor inserts a new vendor into the database.
func (s *SQLiteStore) CreateVendor(vendor *models.Vendor) error {
	_, err := s.db.Exec(
		`INSERT INTO vendors (id, name, kind, contact, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		vendor.ID.String(), vendor.Name, string(vendor.Kind), vendor.Contact, vendor.CreatedAt, vendor.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create vendor: %w", err)
	}
	return nil
}

// GetVendor retrieves a vendor by its ID.
func (s *SQLiteStore) GetVendor(id uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	var idStr, kindStr string

	row := s.db.QueryRow(`SELECT id, name, kind, contact, created_at, updated_at FROM vendors WHERE id = ?`, id.String())
	err := row.Scan(&idStr, &vendor.Name, &kindStr, &vendor.Contact, &vendor.CreatedAt, &vendor.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("vendor %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get vendor: %w", err)
	}
	vendor.ID = uuid.MustParse(idStr)
	vendor.Kind = models.VendorKind(kindStr)
	return &vendor, nil
}

// GetAllVendors retrieves all vendors.
func (s *SQLiteStore) GetAllVendors() ([]*models.Vendor, error) {
	rows, err := s.db.Query(`SELECT id, name, kind, contact, created_at, updated_at FROM vendors ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all vendors: %w", err)
	}
	defer rows.Close()

	var vendors []*models.Vendor
	for rows.Next() {
		var vendor models.Vendor
		var idStr, kindStr string
		if err := rows.Scan(&idStr, &vendor.Name, &kindStr, &vendor.Contact, &vendor.CreatedAt, &vendor.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vendor row: %w", err)
		}
		vendor.ID = uuid.MustParse(idStr)
		vendor.Kind = models.VendorKind(kindStr)
		vendors = append(vendors, &vendor)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return vendors, nil
}

// CreateJob inserts a new job into the database.
func (s *SQLiteStore) CreateJob(job *models.Job) error {
	_, err := s.db.Exec(
		`INSERT INTO jobs (id, name, customer, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID.String(), job.Name, job.Customer, string(job.Status), job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by its ID.
func (s *SQLiteStore) GetJob(id uuid.UUID) (*models.Job, error) {
	var job models.Job
	var idStr, statusStr string

	row := s.db.QueryRow(`SELECT id, name, customer, status, created_at, updated_at FROM jobs WHERE id = ?`, id.String())
	err := row.Scan(&idStr, &job.Name, &job.Customer, &statusStr, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	job.ID = uuid.MustParse(idStr)
	job.Status = models.JobStatus(statusStr)
	return &job, nil
}

// GetAllJobs retrieves all jobs.
func (s *SQLiteStore) GetAllJobs() ([]*models.Job, error) {
	rows, err := s.db.Query(`SELECT id, name, customer, status, created_at, updated_at FROM jobs ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		var job models.Job
		var idStr, statusStr string
		if err := rows.Scan(&idStr, &job.Name, &job.Customer, &statusStr, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		job.ID = uuid.MustParse(idStr)
		job.Status = models.JobStatus(statusStr)
		jobs = append(jobs, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return jobs, nil
}

// CreateLoan inserts a new loan into the database.
func (s *SQLiteStore) CreateLoan(loan *models.Loan) error {
	var firstPayment interface{}
	if loan.FirstPaymentDate != nil {
		firstPayment = *loan.FirstPaymentDate
	}
	_, err := s.db.Exec(
		`INSERT INTO loans (id, name, liability_account_id, interest_account_id, escrow_taxes_account_id, escrow_insurance_account_id,
			original_principal, annual_rate_percent, term_months, origination_date, first_payment_date,
			monthly_escrow_taxes, monthly_escrow_insurance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID.String(), loan.Name,
		loan.LiabilityAccountID.String(), loan.InterestAccountID.String(),
		loan.EscrowTaxesAccountID.String(), loan.EscrowInsuranceAccountID.String(),
		loan.OriginalPrincipal, loan.AnnualRatePercent, loan.TermMonths,
		loan.OriginationDate, firstPayment,
		loan.MonthlyEscrowTaxes, loan.MonthlyEscrowInsurance,
		loan.CreatedAt, loan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

const loanColumns = `id, name, liability_account_id, interest_account_id, escrow_taxes_account_id, escrow_insurance_account_id,
	original_principal, annual_rate_percent, term_months, origination_date, first_payment_date,
	monthly_escrow_taxes, monthly_escrow_insurance, created_at, updated_at`

func scanLoan(row interface{ Scan(...interface{}) error }) (*models.Loan, error) {
	var loan models.Loan
	var idStr, liabilityStr, interestStr, taxesStr, insuranceStr string
	var firstPayment sql.NullTime

	err := row.Scan(&idStr, &loan.Name, &liabilityStr, &interestStr, &taxesStr, &insuranceStr,
		&loan.OriginalPrincipal, &loan.AnnualRatePercent, &loan.TermMonths,
		&loan.OriginationDate, &firstPayment,
		&loan.MonthlyEscrowTaxes, &loan.MonthlyEscrowInsurance,
		&loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		return nil, err
	}
	loan.ID = uuid.MustParse(idStr)
	loan.LiabilityAccountID = uuid.MustParse(liabilityStr)
	loan.InterestAccountID = uuid.MustParse(interestStr)
	loan.EscrowTaxesAccountID = uuid.MustParse(taxesStr)
	loan.EscrowInsuranceAccountID = uuid.MustParse(insuranceStr)
	if firstPayment.Valid {
		loan.FirstPaymentDate = &firstPayment.Time
	}
	return &loan, nil
}

// GetLoan retrieves a loan by its ID.
func (s *SQLiteStore) GetLoan(id uuid.UUID) (*models.Loan, error) {
	row := s.db.QueryRow(`SELECT `+loanColumns+` FROM loans WHERE id = ?`, id.String())
	loan, err := scanLoan(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("loan %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

// GetAllLoans retrieves all loans.
func (s *SQLiteStore) GetAllLoans() ([]*models.Loan, error) {
	rows, err := s.db.Query(`SELECT ` + loanColumns + ` FROM loans ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all loans: %w", err)
	}
	defer rows.Close()

	var loans []*models.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return loans, nil
}

// PostTransaction persists a transaction and its lines atomically,
// rejecting unbalanced line sets and unknown accounts.
func (s *SQLiteStore) PostTransaction(transaction *models.Transaction) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.insertTransaction(tx, transaction); err != nil {
		return err
	}
	return tx.Commit()
}

// PostTransactionMulti persists several balanced transactions as one
// atomic unit; any failure rolls back all of them.
func (s *SQLiteStore) PostTransactionMulti(transactions []*models.Transaction) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, transaction := range transactions {
		if err := s.insertTransaction(tx, transaction); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) insertTransaction(tx *sql.Tx, transaction *models.Transaction) error {
	if len(transaction.Lines) == 0 {
		return fmt.Errorf("transaction %s has no lines: %w", transaction.ID, ErrUnbalanced)
	}
	if !transaction.LinesTotal().Equal(decimal.Zero) {
		return fmt.Errorf("transaction %s sums to %s: %w", transaction.ID, transaction.LinesTotal(), ErrUnbalanced)
	}

	for _, line := range transaction.Lines {
		var exists int
		if err := tx.QueryRow(`SELECT COUNT(1) FROM accounts WHERE id = ?`, line.AccountID.String()).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check account %s: %w", line.AccountID, err)
		}
		if exists == 0 {
			return fmt.Errorf("account %s: %w", line.AccountID, ErrNotFound)
		}
	}

	var vendorID, jobID interface{}
	if transaction.VendorID != nil {
		vendorID = transaction.VendorID.String()
	}
	if transaction.JobID != nil {
		jobID = transaction.JobID.String()
	}

	_, err := tx.Exec(
		`INSERT INTO transactions (id, date, description, vendor_id, job_id, cleared, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		transaction.ID.String(), transaction.Date, transaction.Description,
		vendorID, jobID, transaction.Cleared, transaction.CreatedAt, transaction.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	for _, line := range transaction.Lines {
		_, err := tx.Exec(
			`INSERT INTO transaction_lines (id, transaction_id, account_id, amount, memo) VALUES (?, ?, ?, ?, ?)`,
			line.ID.String(), transaction.ID.String(), line.AccountID.String(), line.Amount, line.Memo,
		)
		if err != nil {
			return fmt.Errorf("failed to create transaction line: %w", err)
		}
	}
	return nil
}

// MarkTransactionCleared flips the cleared flag on an existing transaction.
func (s *SQLiteStore) MarkTransactionCleared(id uuid.UUID, cleared bool) error {
	result, err := s.db.Exec(
		`UPDATE transactions SET cleared = ?, updated_at = ? WHERE id = ?`,
		cleared, time.Now(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark transaction cleared: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetTransaction retrieves a transaction and its lines by ID.
func (s *SQLiteStore) GetTransaction(id uuid.UUID) (*models.Transaction, error) {
	row := s.db.QueryRow(
		`SELECT id, date, description, vendor_id, job_id, cleared, created_at, updated_at FROM transactions WHERE id = ?`,
		id.String(),
	)
	transaction, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if err := s.attachLines(transaction); err != nil {
		return nil, err
	}
	return transaction, nil
}

// GetAllTransactions retrieves every transaction with its lines.
func (s *SQLiteStore) GetAllTransactions() ([]*models.Transaction, error) {
	rows, err := s.db.Query(
		`SELECT id, date, description, vendor_id, job_id, cleared, created_at, updated_at FROM transactions ORDER BY date ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get all transactions: %w", err)
	}
	defer rows.Close()

	return s.collectTransactions(rows)
}

// GetTransactionsBetween retrieves transactions dated within [from, to].
func (s *SQLiteStore) GetTransactionsBetween(from, to time.Time) ([]*models.Transaction, error) {
	rows, err := s.db.Query(
		`SELECT id, date, description, vendor_id, job_id, cleared, created_at, updated_at
		FROM transactions WHERE date >= ? AND date <= ? ORDER BY date ASC`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions between dates: %w", err)
	}
	defer rows.Close()

	return s.collectTransactions(rows)
}

func (s *SQLiteStore) collectTransactions(rows *sql.Rows) ([]*models.Transaction, error) {
	var transactions []*models.Transaction
	for rows.Next() {
		transaction, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		transactions = append(transactions, transaction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	for _, transaction := range transactions {
		if err := s.attachLines(transaction); err != nil {
			return nil, err
		}
	}
	return transactions, nil
}

func scanTransaction(row interface{ Scan(...interface{}) error }) (*models.Transaction, error) {
	var transaction models.Transaction
	var idStr string
	var vendorID, jobID sql.NullString

	err := row.Scan(&idStr, &transaction.Date, &transaction.Description,
		&vendorID, &jobID, &transaction.Cleared, &transaction.CreatedAt, &transaction.UpdatedAt)
	if err != nil {
		return nil, err
	}
	transaction.ID = uuid.MustParse(idStr)
	if vendorID.Valid {
		id := uuid.MustParse(vendorID.String)
		transaction.VendorID = &id
	}
	if jobID.Valid {
		id := uuid.MustParse(jobID.String)
		transaction.JobID = &id
	}
	return &transaction, nil
}

func (s *SQLiteStore) attachLines(transaction *models.Transaction) error {
	rows, err := s.db.Query(
		`SELECT id, account_id, amount, memo FROM transaction_lines WHERE transaction_id = ?`,
		transaction.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to get lines for transaction %s: %w", transaction.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var line models.TransactionLine
		var lineIDStr, accountIDStr string
		if err := rows.Scan(&lineIDStr, &accountIDStr, &line.Amount, &line.Memo); err != nil {
			return fmt.Errorf("failed to scan transaction line: %w", err)
		}
		line.ID = uuid.MustParse(lineIDStr)
		line.AccountID = uuid.MustParse(accountIDStr)
		transaction.Lines = append(transaction.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error during rows iteration for transaction lines: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
