// Package mysql 账户模块的 MySQL 仓储实现。
package mysql

import (
	"context"
	"errors"

	"github.com/wyfcoding/exchange/internal/account/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountRepo struct {
	db *gorm.DB
}

func NewAccountRepo(db *gorm.DB) domain.AccountRepository {
	return &AccountRepo{db: db}
}

// Save 在一个事务内落账户与全部持仓，保证余额与持仓同时可见。
func (r *AccountRepo) Save(ctx context.Context, account *domain.Account) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}},
			UpdateAll: true,
		}).Create(account).Error; err != nil {
			return err
		}
		for _, position := range account.Positions {
			position.AccountID = account.AccountID
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "account_id"}, {Name: "symbol"}},
				UpdateAll: true,
			}).Create(position).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *AccountRepo) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	var account domain.Account
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var positions []*domain.Position
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Find(&positions).Error; err != nil {
		return nil, err
	}
	account.Positions = make(map[string]*domain.Position, len(positions))
	for _, position := range positions {
		account.Positions[position.Symbol] = position
	}
	return &account, nil
}

func (r *AccountRepo) GetByUser(ctx context.Context, userID string) ([]*domain.Account, error) {
	var accounts []*domain.Account
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("account_id ASC").
		Find(&accounts).Error
	return accounts, err
}

func (r *AccountRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Account{}).Count(&count).Error
	return count, err
}

type TransactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) domain.TransactionRepository {
	return &TransactionRepo{db: db}
}

func (r *TransactionRepo) Save(ctx context.Context, transaction *domain.Transaction) error {
	return r.db.WithContext(ctx).Create(transaction).Error
}

func (r *TransactionRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error) {
	var transactions []*domain.Transaction
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&transactions).Error
	return transactions, err
}
