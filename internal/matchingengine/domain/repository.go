package domain

import "context"

// OrderRepository 订单仓储接口。
// 核心只要求同进程内 Save 之后 Get 可见，持久化强度由实现决定。
type OrderRepository interface {
	// Save 保存或更新订单
	Save(ctx context.Context, order *Order) error
	// Get 根据订单 ID 获取订单，不存在返回 nil
	Get(ctx context.Context, orderID string) (*Order, error)
	// ListByAccount 获取账户订单列表 (按到达序号排序)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*Order, error)
	// Delete 删除订单
	Delete(ctx context.Context, orderID string) error
	// Count 订单总数
	Count(ctx context.Context) (int64, error)
}

// TradeRepository 成交记录仓储接口
type TradeRepository interface {
	// Save 保存成交记录
	Save(ctx context.Context, trade *Trade) error
	// Get 根据成交 ID 获取记录，不存在返回 nil
	Get(ctx context.Context, tradeID string) (*Trade, error)
	// ListBySymbol 获取交易对最近成交 (按成交序号降序)
	ListBySymbol(ctx context.Context, symbol string, limit int) ([]*Trade, error)
	// ListByOrder 获取某笔订单的全部成交 (按成交序号升序)
	ListByOrder(ctx context.Context, orderID string) ([]*Trade, error)
	// Count 成交总数
	Count(ctx context.Context) (int64, error)
}
