package domain

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Position 持仓实体 (账户 x 交易对)
// Quantity 带符号：正为多头，负为空头。
// AvgPrice 为成交量加权均价；RealizedPnL 只在平仓/反手时结转。
// 未实现盈亏不落库，按给定标记价现算。
type Position struct {
	gorm.Model
	AccountID string `gorm:"column:account_id;type:varchar(32);index:idx_account_symbol,unique;not null" json:"account_id"`
	Symbol    string `gorm:"column:symbol;type:varchar(20);index:idx_account_symbol,unique;not null" json:"symbol"`
	// 带符号持仓数量
	Quantity decimal.Decimal `gorm:"column:quantity;type:decimal(20,8);default:0;not null" json:"quantity"`
	// 成交量加权均价
	AvgPrice decimal.Decimal `gorm:"column:avg_price;type:decimal(20,8);default:0;not null" json:"avg_price"`
	// 已实现盈亏
	RealizedPnL decimal.Decimal `gorm:"column:realized_pnl;type:decimal(32,18);default:0;not null" json:"realized_pnl"`
}

// Apply 把一笔成交计入持仓。
// delta 为带符号的数量变化 (买入为正，卖出为负)。
// 同向加仓重算加权均价；减仓按 (成交价 - 均价) x 平仓量结转已实现盈亏；
// 反手时先平掉旧仓再以成交价开新仓。
func (p *Position) Apply(price, delta decimal.Decimal) {
	if delta.IsZero() {
		return
	}

	// 空仓或同向：加权均价
	if p.Quantity.IsZero() || p.Quantity.Sign() == delta.Sign() {
		oldAbs := p.Quantity.Abs()
		addAbs := delta.Abs()
		notional := oldAbs.Mul(p.AvgPrice).Add(addAbs.Mul(price))
		p.Quantity = p.Quantity.Add(delta)
		p.AvgPrice = notional.Div(oldAbs.Add(addAbs))
		return
	}

	// 反向：先平仓结转盈亏
	closeQty := decimal.Min(p.Quantity.Abs(), delta.Abs())
	direction := decimal.NewFromInt(int64(p.Quantity.Sign()))
	p.RealizedPnL = p.RealizedPnL.Add(price.Sub(p.AvgPrice).Mul(closeQty).Mul(direction))

	p.Quantity = p.Quantity.Add(delta)
	switch {
	case p.Quantity.IsZero():
		p.AvgPrice = decimal.Zero
	case p.Quantity.Sign() != int(direction.IntPart()):
		// 反手：剩余部分是新方向的开仓
		p.AvgPrice = price
	}
}

// UnrealizedPnL 按标记价计算未实现盈亏
func (p *Position) UnrealizedPnL(markPrice decimal.Decimal) decimal.Decimal {
	if p.Quantity.IsZero() {
		return decimal.Zero
	}
	return markPrice.Sub(p.AvgPrice).Mul(p.Quantity)
}
