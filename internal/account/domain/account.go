// Package domain 账户服务的领域模型
package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrLedgerInvariant 资金恒等式被破坏：balance == available + frozen。
// 出现即为程序性缺陷，相应操作必须整体中止。
var ErrLedgerInvariant = fmt.Errorf("ledger invariant violated: balance != available + frozen")

// Account 账户实体
// 代表用户的资金账户。任何一次变更之后都必须满足：
// Balance = AvailableBalance + FrozenBalance 且 AvailableBalance >= 0。
type Account struct {
	gorm.Model
	// 账户 ID (业务主键)，全局唯一
	AccountID string `gorm:"column:account_id;type:varchar(32);uniqueIndex;not null" json:"account_id"`
	// 用户 ID
	UserID string `gorm:"column:user_id;type:varchar(32);index;not null" json:"user_id"`
	// 货币（如 USD, USDT）
	Currency string `gorm:"column:currency;type:varchar(10);not null" json:"currency"`
	// 总余额 = 可用余额 + 冻结余额
	Balance decimal.Decimal `gorm:"column:balance;type:decimal(32,18);default:0;not null" json:"balance"`
	// 可用余额
	AvailableBalance decimal.Decimal `gorm:"column:available_balance;type:decimal(32,18);default:0;not null" json:"available_balance"`
	// 冻结余额
	FrozenBalance decimal.Decimal `gorm:"column:frozen_balance;type:decimal(32,18);default:0;not null" json:"frozen_balance"`
	// 持仓，Key 为交易对符号。持久化映射在基础设施层完成。
	Positions map[string]*Position `gorm:"-" json:"positions,omitempty"`
}

// NewAccount 创建空账户
func NewAccount(accountID, userID, currency string) *Account {
	return &Account{
		AccountID:        accountID,
		UserID:           userID,
		Currency:         currency,
		Balance:          decimal.Zero,
		AvailableBalance: decimal.Zero,
		FrozenBalance:    decimal.Zero,
		Positions:        make(map[string]*Position),
	}
}

// Deposit 充值：余额与可用同步增加
func (a *Account) Deposit(amount decimal.Decimal) {
	a.Balance = a.Balance.Add(amount)
	a.AvailableBalance = a.AvailableBalance.Add(amount)
}

// Withdraw 提现，只允许动用可用余额
func (a *Account) Withdraw(amount decimal.Decimal) bool {
	if a.AvailableBalance.LessThan(amount) {
		return false
	}
	a.Balance = a.Balance.Sub(amount)
	a.AvailableBalance = a.AvailableBalance.Sub(amount)
	return true
}

// Freeze 冻结：从可用划转到冻结，余额不变
func (a *Account) Freeze(amount decimal.Decimal) bool {
	if a.AvailableBalance.LessThan(amount) {
		return false
	}
	a.AvailableBalance = a.AvailableBalance.Sub(amount)
	a.FrozenBalance = a.FrozenBalance.Add(amount)
	return true
}

// Unfreeze 解冻：从冻结划回可用，余额不变
func (a *Account) Unfreeze(amount decimal.Decimal) bool {
	if a.FrozenBalance.LessThan(amount) {
		return false
	}
	a.FrozenBalance = a.FrozenBalance.Sub(amount)
	a.AvailableBalance = a.AvailableBalance.Add(amount)
	return true
}

// DeductFrozen 结算扣款：冻结与余额同时减少 (买方成交路径)
func (a *Account) DeductFrozen(amount decimal.Decimal) bool {
	if a.FrozenBalance.LessThan(amount) {
		return false
	}
	a.FrozenBalance = a.FrozenBalance.Sub(amount)
	a.Balance = a.Balance.Sub(amount)
	return true
}

// CheckInvariant 校验资金恒等式
func (a *Account) CheckInvariant() error {
	if !a.Balance.Equal(a.AvailableBalance.Add(a.FrozenBalance)) {
		return fmt.Errorf("%w: account %s balance=%s available=%s frozen=%s",
			ErrLedgerInvariant, a.AccountID, a.Balance, a.AvailableBalance, a.FrozenBalance)
	}
	if a.AvailableBalance.IsNegative() {
		return fmt.Errorf("%w: account %s negative available %s",
			ErrLedgerInvariant, a.AccountID, a.AvailableBalance)
	}
	return nil
}

// Position 获取指定交易对持仓，不存在则创建空仓
func (a *Account) Position(symbol string) *Position {
	if a.Positions == nil {
		a.Positions = make(map[string]*Position)
	}
	pos, ok := a.Positions[symbol]
	if !ok {
		pos = &Position{
			AccountID: a.AccountID,
			Symbol:    symbol,
			Quantity:  decimal.Zero,
			AvgPrice:  decimal.Zero,
		}
		a.Positions[symbol] = pos
	}
	return pos
}
