// Package domain 订单服务的领域模型：交易品种与下单校验规则。
package domain

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Instrument 可交易品种定义，下单校验的数据来源
type Instrument struct {
	gorm.Model
	// 交易对符号，全局唯一
	Symbol string `gorm:"column:symbol;type:varchar(20);uniqueIndex;not null" json:"symbol"`
	// 名称
	Name string `gorm:"column:name;type:varchar(64)" json:"name"`
	// 最小价格变动单位，零表示不限制
	TickSize decimal.Decimal `gorm:"column:tick_size;type:decimal(20,8);default:0;not null" json:"tick_size"`
	// 最小委托数量
	MinOrderQty decimal.Decimal `gorm:"column:min_order_qty;type:decimal(20,8);default:0;not null" json:"min_order_qty"`
	// 最大委托数量，零表示不限制
	MaxOrderQty decimal.Decimal `gorm:"column:max_order_qty;type:decimal(20,8);default:0;not null" json:"max_order_qty"`
	// 状态 (TRADING / HALTED)
	Status string `gorm:"column:status;type:varchar(20);default:TRADING;not null" json:"status"`
}

const (
	InstrumentStatusTrading = "TRADING"
	InstrumentStatusHalted  = "HALTED"
)

// InstrumentRepository 品种仓储接口
type InstrumentRepository interface {
	// Save 保存品种
	Save(ctx context.Context, instrument *Instrument) error
	// GetBySymbol 根据符号获取品种，不存在返回 nil
	GetBySymbol(ctx context.Context, symbol string) (*Instrument, error)
	// List 全部品种
	List(ctx context.Context) ([]*Instrument, error)
}
