package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"shopbooks/pkg/cache"
	"shopbooks/pkg/store"
)

// Service reads rows from storage, aggregates them, and memoizes the
// results. Cached entries are keyed by report parameters; posting new
// transactions through a different process invalidates nothing, so the
// cache is best suited to read-heavy report screens.
type Service struct {
	storage store.Storage
	cache   cache.Cache
	logger  *log.Logger
}

func NewService(s store.Storage, c cache.Cache, logger *log.Logger) *Service {
	return &Service{storage: s, cache: c, logger: logger}
}

// cached runs compute and memoizes its JSON-encoded result under key.
func cached[T any](s *Service, key string, compute func() (T, error)) (T, error) {
	var result T
	if raw, ok := s.cache.Get(key); ok {
		if err := json.Unmarshal([]byte(raw), &result); err == nil {
			return result, nil
		}
		s.logger.Warn("discarding undecodable cache entry", "key", key)
	}

	result, err := compute()
	if err != nil {
		return result, err
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return result, fmt.Errorf("failed to encode report for cache: %w", err)
	}
	if err := s.cache.Set(key, string(raw)); err != nil {
		s.logger.Warn("failed to cache report", "key", key, "err", err)
	}
	return result, nil
}

// ExpenseByCategory reports expense totals per account over a date range.
func (s *Service) ExpenseByCategory(from, to time.Time) ([]CategoryTotal, error) {
	key := fmt.Sprintf("report:expenses:%s:%s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	return cached(s, key, func() ([]CategoryTotal, error) {
		accounts, err := s.storage.GetAllAccounts()
		if err != nil {
			return nil, fmt.Errorf("failed to load accounts: %w", err)
		}
		txs, err := s.storage.GetTransactionsBetween(from, to)
		if err != nil {
			return nil, fmt.Errorf("failed to load transactions: %w", err)
		}
		return ExpenseByCategory(accounts, txs), nil
	})
}

// JobProfit reports income, expenses, and net profit for one job.
func (s *Service) JobProfit(jobID uuid.UUID) (JobProfit, error) {
	if _, err := s.storage.GetJob(jobID); err != nil {
		return JobProfit{}, err
	}
	key := fmt.Sprintf("report:job:%s", jobID)
	return cached(s, key, func() (JobProfit, error) {
		accounts, err := s.storage.GetAllAccounts()
		if err != nil {
			return JobProfit{}, fmt.Errorf("failed to load accounts: %w", err)
		}
		txs, err := s.storage.GetAllTransactions()
		if err != nil {
			return JobProfit{}, fmt.Errorf("failed to load transactions: %w", err)
		}
		return ComputeJobProfit(accounts, txs, jobID), nil
	})
}

// VendorSpend reports total spend against one vendor.
func (s *Service) VendorSpend(vendorID uuid.UUID) (VendorSpend, error) {
	if _, err := s.storage.GetVendor(vendorID); err != nil {
		return VendorSpend{}, err
	}
	key := fmt.Sprintf("report:vendor:%s", vendorID)
	return cached(s, key, func() (VendorSpend, error) {
		accounts, err := s.storage.GetAllAccounts()
		if err != nil {
			return VendorSpend{}, fmt.Errorf("failed to load accounts: %w", err)
		}
		txs, err := s.storage.GetAllTransactions()
		if err != nil {
			return VendorSpend{}, fmt.Errorf("failed to load transactions: %w", err)
		}
		return ComputeVendorSpend(accounts, txs, vendorID), nil
	})
}
