package domain

import "context"

// AccountRepository 账户仓储接口
type AccountRepository interface {
	// Save 保存或更新账户 (含持仓)
	Save(ctx context.Context, account *Account) error
	// Get 根据账户 ID 获取账户，不存在返回 nil
	Get(ctx context.Context, accountID string) (*Account, error)
	// GetByUser 根据用户 ID 获取账户列表
	GetByUser(ctx context.Context, userID string) ([]*Account, error)
	// Count 账户总数
	Count(ctx context.Context) (int64, error)
}

// TransactionRepository 资金流水仓储接口
type TransactionRepository interface {
	// Save 保存流水
	Save(ctx context.Context, transaction *Transaction) error
	// ListByAccount 获取账户流水分页列表
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*Transaction, error)
}
