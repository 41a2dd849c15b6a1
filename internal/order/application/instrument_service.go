package application

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/xerrors"

	orderdomain "github.com/wyfcoding/exchange/internal/order/domain"
)

// CreateInstrumentRequest 上架品种请求
type CreateInstrumentRequest struct {
	Symbol      string          `json:"symbol" binding:"required"`
	Name        string          `json:"name"`
	TickSize    decimal.Decimal `json:"tick_size"`
	MinOrderQty decimal.Decimal `json:"min_order_qty"`
	MaxOrderQty decimal.Decimal `json:"max_order_qty"`
}

// InstrumentService 交易品种管理 (运维入口)
type InstrumentService struct {
	instruments orderdomain.InstrumentRepository
}

// NewInstrumentService 构造函数
func NewInstrumentService(instruments orderdomain.InstrumentRepository) *InstrumentService {
	return &InstrumentService{instruments: instruments}
}

// CreateInstrument 上架新品种，初始即可交易
func (s *InstrumentService) CreateInstrument(ctx context.Context, req *CreateInstrumentRequest) (*orderdomain.Instrument, error) {
	if req.TickSize.IsNegative() || req.MinOrderQty.IsNegative() || req.MaxOrderQty.IsNegative() {
		return nil, xerrors.InvalidArg("tick_size and quantity bounds must not be negative")
	}
	existing, err := s.instruments.GetBySymbol(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, xerrors.New(xerrors.ErrAlreadyExists, 40901, "instrument already exists", "", nil).
			WithContext("symbol", req.Symbol)
	}

	instrument := &orderdomain.Instrument{
		Symbol:      req.Symbol,
		Name:        req.Name,
		TickSize:    req.TickSize,
		MinOrderQty: req.MinOrderQty,
		MaxOrderQty: req.MaxOrderQty,
		Status:      orderdomain.InstrumentStatusTrading,
	}
	if err := s.instruments.Save(ctx, instrument); err != nil {
		return nil, err
	}
	return instrument, nil
}

// SetStatus 切换品种状态 (停牌/复牌)。停牌只拦新单，在簿订单不受影响。
func (s *InstrumentService) SetStatus(ctx context.Context, symbol, status string) (*orderdomain.Instrument, error) {
	if status != orderdomain.InstrumentStatusTrading && status != orderdomain.InstrumentStatusHalted {
		return nil, xerrors.InvalidArg("unknown instrument status").WithContext("status", status)
	}
	instrument, err := s.instruments.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if instrument == nil {
		return nil, xerrors.NotFound("instrument not found").WithContext("symbol", symbol)
	}

	instrument.Status = status
	if err := s.instruments.Save(ctx, instrument); err != nil {
		return nil, err
	}
	return instrument, nil
}

// ListInstruments 全部品种
func (s *InstrumentService) ListInstruments(ctx context.Context) ([]*orderdomain.Instrument, error) {
	return s.instruments.List(ctx)
}
