// Package domain 撮合引擎的领域模型
package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderSide 订单方向
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// Opposite 返回对手方向
func (s OrderSide) Opposite() OrderSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType 订单类型
type OrderType string

const (
	TypeLimit  OrderType = "LIMIT"
	TypeMarket OrderType = "MARKET"
)

// OrderStatus 订单状态
// 状态机: NEW -> {PARTIALLY_FILLED <-> (继续成交), FILLED, CANCELLED, REJECTED}
// FILLED / CANCELLED / REJECTED 为终态，之后不允许任何变更。
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

// IsTerminal 是否为终态
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled || s == OrderStatusRejected
}

// Order 订单实体
// 身份字段不可变，成交簿记 (FilledQuantity / Status) 只由撮合引擎
// 在订单簿写锁内更新，取消/改单通过显式调用进入同一临界区。
type Order struct {
	gorm.Model
	// 订单 ID (业务主键)，全局唯一
	OrderID string `gorm:"column:order_id;type:varchar(32);uniqueIndex;not null" json:"order_id"`
	// 账户 ID
	AccountID string `gorm:"column:account_id;type:varchar(32);index;not null" json:"account_id"`
	// 交易对符号
	Symbol string `gorm:"column:symbol;type:varchar(20);index;not null" json:"symbol"`
	// 买卖方向
	Side OrderSide `gorm:"column:side;type:varchar(10);not null" json:"side"`
	// 订单类型 (LIMIT 必须有价格，MARKET 禁止价格)
	Type OrderType `gorm:"column:type;type:varchar(10);not null" json:"type"`
	// 价格，市价单为零值
	Price decimal.Decimal `gorm:"column:price;type:decimal(20,8);not null" json:"price"`
	// 原始委托数量
	Quantity decimal.Decimal `gorm:"column:quantity;type:decimal(20,8);not null" json:"quantity"`
	// 已成交数量，恒 <= Quantity
	FilledQuantity decimal.Decimal `gorm:"column:filled_quantity;type:decimal(20,8);not null;default:0" json:"filled_quantity"`
	// 订单状态
	Status OrderStatus `gorm:"column:status;type:varchar(20);index;not null" json:"status"`
	// 到达序号，进程内严格递增，仅用于同价位的时间优先级
	Sequence int64 `gorm:"column:sequence;type:bigint;not null" json:"sequence"`
	// 到达时间
	ArrivedAt time.Time `gorm:"column:arrived_at;not null" json:"arrived_at"`
}

// NewOrder 创建订单，初始状态为 NEW
func NewOrder(orderID, accountID, symbol string, side OrderSide, typ OrderType, price, quantity decimal.Decimal) *Order {
	return &Order{
		OrderID:        orderID,
		AccountID:      accountID,
		Symbol:         symbol,
		Side:           side,
		Type:           typ,
		Price:          price,
		Quantity:       quantity,
		FilledQuantity: decimal.Zero,
		Status:         OrderStatusNew,
		ArrivedAt:      time.Now(),
	}
}

// RemainingQuantity 剩余未成交数量
func (o *Order) RemainingQuantity() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// IsFilled 是否已完全成交
func (o *Order) IsFilled() bool {
	return o.FilledQuantity.GreaterThanOrEqual(o.Quantity)
}

// IsActive 是否仍可参与撮合
func (o *Order) IsActive() bool {
	return o.Status == OrderStatusNew || o.Status == OrderStatusPartiallyFilled
}

// fill 记录一笔成交并推进状态，只允许在订单簿写锁内调用
func (o *Order) fill(qty decimal.Decimal) {
	o.FilledQuantity = o.FilledQuantity.Add(qty)
	if o.IsFilled() {
		o.Status = OrderStatusFilled
	} else {
		o.Status = OrderStatusPartiallyFilled
	}
}

// Trade 成交记录，由撮合引擎创建后不再变更
type Trade struct {
	gorm.Model
	// 成交 ID (业务主键)
	TradeID string `gorm:"column:trade_id;type:varchar(32);uniqueIndex;not null" json:"trade_id"`
	// 交易对符号
	Symbol string `gorm:"column:symbol;type:varchar(20);index;not null" json:"symbol"`
	// 买方订单 ID
	BuyOrderID string `gorm:"column:buy_order_id;type:varchar(32);index;not null" json:"buy_order_id"`
	// 卖方订单 ID
	SellOrderID string `gorm:"column:sell_order_id;type:varchar(32);index;not null" json:"sell_order_id"`
	// 买方账户 ID
	BuyAccountID string `gorm:"column:buy_account_id;type:varchar(32);index;not null" json:"buy_account_id"`
	// 卖方账户 ID
	SellAccountID string `gorm:"column:sell_account_id;type:varchar(32);index;not null" json:"sell_account_id"`
	// 成交价格 (始终为被动方挂单价格)
	Price decimal.Decimal `gorm:"column:price;type:decimal(20,8);not null" json:"price"`
	// 成交数量
	Quantity decimal.Decimal `gorm:"column:quantity;type:decimal(20,8);not null" json:"quantity"`
	// 进程内严格递增的成交序号，用于确定性排序与下游幂等消费
	SequenceNum int64 `gorm:"column:sequence_num;type:bigint;uniqueIndex;not null" json:"sequence_num"`
	// 主动方 (后到订单) 的方向
	AggressorSide OrderSide `gorm:"column:aggressor_side;type:varchar(10);not null" json:"aggressor_side"`
	// 成交时间
	ExecutedAt time.Time `gorm:"column:executed_at;not null" json:"executed_at"`
}

// Notional 成交金额 = 价格 x 数量
func (t *Trade) Notional() decimal.Decimal {
	return t.Price.Mul(t.Quantity)
}
