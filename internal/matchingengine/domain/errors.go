package domain

import "errors"

// 契约违规类错误：出现即说明调用方或引擎自身存在 bug，
// 相应操作会被整体中止，绝不让订单簿进入不一致状态。
var (
	// ErrDuplicateOrder 同一订单 ID 重复进簿
	ErrDuplicateOrder = errors.New("duplicate order id in book")
	// ErrPriceMismatch 订单价格与档位价格不一致
	ErrPriceMismatch = errors.New("order price does not match queue price")
	// ErrInvalidOrder 订单字段组合非法 (如限价单无价格)
	ErrInvalidOrder = errors.New("invalid order")
	// ErrQuantityBelowFilled 改单数量低于已成交数量
	ErrQuantityBelowFilled = errors.New("new quantity below filled quantity")
)
