package application

import (
	"github.com/shopspring/decimal"

	medomain "github.com/wyfcoding/exchange/internal/matchingengine/domain"
)

// PlaceOrderRequest 下单请求
type PlaceOrderRequest struct {
	AccountID string          `json:"account_id" binding:"required"`
	Symbol    string          `json:"symbol" binding:"required"`
	Side      string          `json:"side" binding:"required"`
	Type      string          `json:"type" binding:"required"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required"`
}

// ModifyOrderRequest 改单请求：改价或改量，二者至少给一个
type ModifyOrderRequest struct {
	Price    *decimal.Decimal `json:"price"`
	Quantity *decimal.Decimal `json:"quantity"`
}

// PlaceOrderResult 下单结果：订单终局状态 + 即时成交列表
type PlaceOrderResult struct {
	Order  *medomain.Order   `json:"order"`
	Trades []*medomain.Trade `json:"trades"`
}
