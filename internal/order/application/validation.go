package application

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/xerrors"

	orderdomain "github.com/wyfcoding/exchange/internal/order/domain"
)

// ValidationService 下单前的结构性校验。
// 通过之后核心只再维护自身不变量，不重复校验字段组合。
type ValidationService struct {
	instruments orderdomain.InstrumentRepository
}

// NewValidationService 构造函数
func NewValidationService(instruments orderdomain.InstrumentRepository) *ValidationService {
	return &ValidationService{instruments: instruments}
}

// ValidateOrder 校验一笔下单请求：品种存在且可交易、数量区间、价格与订单类型的组合。
// 任何失败都发生在一切状态变更之前。
func (v *ValidationService) ValidateOrder(ctx context.Context, req *PlaceOrderRequest) error {
	if req.AccountID == "" {
		return xerrors.InvalidArg("account_id is required")
	}

	instrument, err := v.instruments.GetBySymbol(ctx, req.Symbol)
	if err != nil {
		return err
	}
	if instrument == nil {
		return xerrors.InvalidArg("unknown symbol").WithContext("symbol", req.Symbol)
	}
	if instrument.Status != orderdomain.InstrumentStatusTrading {
		return xerrors.InvalidArg("instrument not trading").WithContext("symbol", req.Symbol)
	}

	if req.Quantity.LessThanOrEqual(decimal.Zero) {
		return xerrors.InvalidArg("quantity must be positive")
	}
	if req.Quantity.LessThan(instrument.MinOrderQty) {
		return xerrors.InvalidArg("quantity below minimum").
			WithContext("min", instrument.MinOrderQty.String())
	}
	if instrument.MaxOrderQty.IsPositive() && req.Quantity.GreaterThan(instrument.MaxOrderQty) {
		return xerrors.InvalidArg("quantity above maximum").
			WithContext("max", instrument.MaxOrderQty.String())
	}

	switch req.Type {
	case "LIMIT":
		if req.Price.LessThanOrEqual(decimal.Zero) {
			return xerrors.InvalidArg("limit order requires positive price")
		}
		if instrument.TickSize.IsPositive() && !req.Price.Mod(instrument.TickSize).IsZero() {
			return xerrors.InvalidArg("price not aligned to tick size").
				WithContext("tick_size", instrument.TickSize.String())
		}
	case "MARKET":
		if !req.Price.IsZero() {
			return xerrors.InvalidArg("market order must not carry a price")
		}
	default:
		return xerrors.InvalidArg("unknown order type").WithContext("type", req.Type)
	}

	if req.Side != "BUY" && req.Side != "SELL" {
		return xerrors.InvalidArg("unknown order side").WithContext("side", req.Side)
	}
	return nil
}
