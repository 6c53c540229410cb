// Package report computes read-only rollups over posted transactions:
// expense by category, job profit, and vendor spend. The aggregation
// functions are pure; Service wraps them with storage access and a
// result cache.
package report

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"shopbooks/pkg/models"
)

// CategoryTotal is the spend against one expense account.
type CategoryTotal struct {
	AccountID   uuid.UUID       `json:"account_id"`
	AccountName string          `json:"account_name"`
	Total       decimal.Decimal `json:"total"`
}

// JobProfit summarizes income and expenses tagged to one job.
type JobProfit struct {
	JobID    uuid.UUID       `json:"job_id"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Profit   decimal.Decimal `json:"profit"`
}

// VendorSpend summarizes expense lines on transactions tagged to one vendor.
type VendorSpend struct {
	VendorID     uuid.UUID       `json:"vendor_id"`
	Total        decimal.Decimal `json:"total"`
	Transactions int             `json:"transactions"`
}

// AccountBalances sums posted lines per account.
func AccountBalances(txs []*models.Transaction) map[uuid.UUID]decimal.Decimal {
	balances := make(map[uuid.UUID]decimal.Decimal)
	for _, tx := range txs {
		for _, line := range tx.Lines {
			balances[line.AccountID] = balances[line.AccountID].Add(line.Amount)
		}
	}
	return balances
}

// accountTypes indexes accounts by ID for line classification.
func accountTypes(accounts []*models.Account) map[uuid.UUID]*models.Account {
	byID := make(map[uuid.UUID]*models.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}
	return byID
}

// ExpenseByCategory totals debits to expense accounts, one row per
// account with activity, largest first.
func ExpenseByCategory(accounts []*models.Account, txs []*models.Transaction) []CategoryTotal {
	byID := accountTypes(accounts)

	totals := make(map[uuid.UUID]decimal.Decimal)
	for _, tx := range txs {
		for _, line := range tx.Lines {
			account, ok := byID[line.AccountID]
			if !ok || account.Type != models.AccountTypeExpense {
				continue
			}
			totals[line.AccountID] = totals[line.AccountID].Add(line.Amount)
		}
	}

	rows := make([]CategoryTotal, 0, len(totals))
	for id, total := range totals {
		rows = append(rows, CategoryTotal{
			AccountID:   id,
			AccountName: byID[id].Name,
			Total:       total,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Total.Equal(rows[j].Total) {
			return rows[i].AccountName < rows[j].AccountName
		}
		return rows[i].Total.GreaterThan(rows[j].Total)
	})
	return rows
}

// ComputeJobProfit nets income against expenses for transactions tagged
// to the given job. Income accounts accumulate credits, so their sign is
// flipped to report income as a positive number.
func ComputeJobProfit(accounts []*models.Account, txs []*models.Transaction, jobID uuid.UUID) JobProfit {
	byID := accountTypes(accounts)

	profit := JobProfit{JobID: jobID, Income: decimal.Zero, Expenses: decimal.Zero}
	for _, tx := range txs {
		if tx.JobID == nil || *tx.JobID != jobID {
			continue
		}
		for _, line := range tx.Lines {
			account, ok := byID[line.AccountID]
			if !ok {
				continue
			}
			switch account.Type {
			case models.AccountTypeIncome:
				profit.Income = profit.Income.Add(line.Amount.Neg())
			case models.AccountTypeExpense:
				profit.Expenses = profit.Expenses.Add(line.Amount)
			}
		}
	}
	profit.Profit = profit.Income.Sub(profit.Expenses)
	return profit
}

// ComputeVendorSpend totals expense lines on transactions tagged to the
// given vendor.
func ComputeVendorSpend(accounts []*models.Account, txs []*models.Transaction, vendorID uuid.UUID) VendorSpend {
	byID := accountTypes(accounts)

	spend := VendorSpend{VendorID: vendorID, Total: decimal.Zero}
	for _, tx := range txs {
		if tx.VendorID == nil || *tx.VendorID != vendorID {
			continue
		}
		spend.Transactions++
		for _, line := range tx.Lines {
			account, ok := byID[line.AccountID]
			if !ok || account.Type != models.AccountTypeExpense {
				continue
			}
			spend.Total = spend.Total.Add(line.Amount)
		}
	}
	return spend
}
