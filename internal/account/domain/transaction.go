package domain

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionType 资金流水类型
type TransactionType string

const (
	TxnDeposit  TransactionType = "DEPOSIT"
	TxnWithdraw TransactionType = "WITHDRAW"
	TxnFreeze   TransactionType = "FREEZE"
	TxnUnfreeze TransactionType = "UNFREEZE"
	TxnTrade    TransactionType = "TRADE"
)

// Transaction 资金流水，账本每次变动都会留痕
type Transaction struct {
	gorm.Model
	// 流水 ID (业务主键)
	TransactionID string `gorm:"column:transaction_id;type:varchar(32);uniqueIndex;not null" json:"transaction_id"`
	// 账户 ID
	AccountID string `gorm:"column:account_id;type:varchar(32);index;not null" json:"account_id"`
	// 流水类型
	Type TransactionType `gorm:"column:type;type:varchar(20);not null" json:"type"`
	// 金额
	Amount decimal.Decimal `gorm:"column:amount;type:decimal(32,18);not null" json:"amount"`
	// 关联对象 (订单 / 成交 ID)，可为空
	ReferenceID string `gorm:"column:reference_id;type:varchar(32);index" json:"reference_id"`
}
