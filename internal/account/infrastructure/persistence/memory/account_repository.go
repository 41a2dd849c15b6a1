// Package memory 账户模块的内存仓储实现。
package memory

import (
	"context"
	"sync"

	"github.com/wyfcoding/exchange/internal/account/domain"
)

type accountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

// NewAccountRepository 创建内存账户仓储
func NewAccountRepository() domain.AccountRepository {
	return &accountRepository{accounts: make(map[string]*domain.Account)}
}

func (r *accountRepository) Save(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.AccountID] = account
	return nil
}

func (r *accountRepository) Get(_ context.Context, accountID string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.accounts[accountID], nil
}

func (r *accountRepository) GetByUser(_ context.Context, userID string) ([]*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*domain.Account, 0)
	for _, a := range r.accounts {
		if a.UserID == userID {
			matched = append(matched, a)
		}
	}
	return matched, nil
}

func (r *accountRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.accounts)), nil
}

type transactionRepository struct {
	mu           sync.RWMutex
	transactions []*domain.Transaction
}

// NewTransactionRepository 创建内存流水仓储
func NewTransactionRepository() domain.TransactionRepository {
	return &transactionRepository{}
}

func (r *transactionRepository) Save(_ context.Context, transaction *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactions = append(r.transactions, transaction)
	return nil
}

func (r *transactionRepository) ListByAccount(_ context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// 与 mysql 实现一致：新流水在前
	matched := make([]*domain.Transaction, 0)
	for i := len(r.transactions) - 1; i >= 0; i-- {
		if r.transactions[i].AccountID == accountID {
			matched = append(matched, r.transactions[i])
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}
