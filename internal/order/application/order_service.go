// Package application 订单服务的应用层：编排 校验 -> 资金预占 -> 撮合 -> 结算 -> 释放。
package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/xerrors"

	accountapp "github.com/wyfcoding/exchange/internal/account/application"
	medomain "github.com/wyfcoding/exchange/internal/matchingengine/domain"
)

// TradePublisher 成交事件出口 (行情/下游消费)。
// 发布失败只记日志，绝不反向影响订单主流程。
type TradePublisher interface {
	PublishTrade(ctx context.Context, trade *medomain.Trade) error
}

// OrderService 对外可调用的下单入口。
// 控制流：校验 -> 资金预占 -> 引擎撮合 -> 持久化 -> 逐笔结算 -> 释放未用预占。
// 预占在订单进入引擎之前建立，并在每条退出路径 (成交完结、部分余留、
// 拒绝、异常) 上通过 defer 无条件释放恰好一次，杜绝预占泄漏与重复释放。
type OrderService struct {
	validator *ValidationService
	accounts  *accountapp.Service
	engine    *medomain.MatchingEngine
	orders    medomain.OrderRepository
	trades    medomain.TradeRepository
	publisher TradePublisher
	logger    *slog.Logger
}

// NewOrderService 构造函数。publisher 可为 nil (测试或未接入消息队列时)。
func NewOrderService(
	validator *ValidationService,
	accounts *accountapp.Service,
	engine *medomain.MatchingEngine,
	orders medomain.OrderRepository,
	trades medomain.TradeRepository,
	publisher TradePublisher,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		validator: validator,
		accounts:  accounts,
		engine:    engine,
		orders:    orders,
		trades:    trades,
		publisher: publisher,
		logger:    logger.With("module", "order_service"),
	}
}

// referencePrice 市价买单预占用的参考价：优先最优卖价，其次最新价
func (s *OrderService) referencePrice(symbol string) decimal.Decimal {
	book := s.engine.Book(symbol)
	if ask, ok := book.BestAsk(); ok {
		return ask
	}
	return book.Stats().LastPrice
}

// PlaceOrder 下单。
// 返回订单终局状态与本次产生的成交；容量不足或校验失败时订单不进入引擎。
func (s *OrderService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResult, error) {
	defer logging.LogDuration(ctx, "order placement finished", "symbol", req.Symbol)()

	if err := s.validator.ValidateOrder(ctx, req); err != nil {
		return nil, err
	}

	order := medomain.NewOrder(
		fmt.Sprintf("ORD-%d", idgen.GenID()),
		req.AccountID,
		req.Symbol,
		medomain.OrderSide(req.Side),
		medomain.OrderType(req.Type),
		req.Price,
		req.Quantity,
	)

	if err := s.accounts.ValidateAndFreezeForOrder(ctx, order, s.referencePrice(order.Symbol)); err != nil {
		order.Status = medomain.OrderStatusRejected
		if saveErr := s.orders.Save(ctx, order); saveErr != nil {
			s.logger.Error("failed to persist rejected order", "order_id", order.OrderID, "error", saveErr)
		}
		return nil, err
	}

	// 预占之后的所有退出路径都经过这里：终态订单退还全部残余，
	// 在簿买单只退还超出挂单担保的部分。台账幂等，不会重复释放。
	// 引擎返回后改用锁内快照，不再触碰可能仍在被撮合改写的原件。
	final := order
	defer func() {
		if err := s.accounts.UnfreezeRemainingFunds(ctx, final); err != nil {
			s.logger.Error("failed to release residual reservation",
				"order_id", final.OrderID, "error", err)
		}
	}()

	result, err := s.engine.ProcessOrder(order)
	if err != nil {
		order.Status = medomain.OrderStatusRejected
		if saveErr := s.orders.Save(ctx, order); saveErr != nil {
			s.logger.Error("failed to persist rejected order", "order_id", order.OrderID, "error", saveErr)
		}
		return nil, err
	}
	final = result.Order

	if err := s.settleAndPersist(ctx, result); err != nil {
		return nil, err
	}

	return &PlaceOrderResult{Order: result.Order, Trades: result.Trades}, nil
}

// settleAndPersist 持久化撮合结果并逐笔结算。
// 结算失败立即中止并上抛：这是账本级缺陷，不做静默恢复。
func (s *OrderService) settleAndPersist(ctx context.Context, result *medomain.MatchResult) error {
	if err := s.orders.Save(ctx, result.Order); err != nil {
		return fmt.Errorf("persist order %s: %w", result.Order.OrderID, err)
	}

	for _, trade := range result.Trades {
		if err := s.accounts.ProcessTrade(ctx, trade); err != nil {
			return err
		}
		if err := s.trades.Save(ctx, trade); err != nil {
			return fmt.Errorf("persist trade %s: %w", trade.TradeID, err)
		}
		s.publish(ctx, trade)
	}

	// 被动方状态回写；吃完的被动订单同步释放其预占残余
	seen := make(map[string]bool, len(result.MakerOrders))
	for _, maker := range result.MakerOrders {
		if seen[maker.OrderID] {
			continue
		}
		seen[maker.OrderID] = true

		if err := s.orders.Save(ctx, maker); err != nil {
			return fmt.Errorf("persist maker order %s: %w", maker.OrderID, err)
		}
		if err := s.accounts.UnfreezeRemainingFunds(ctx, maker); err != nil {
			return err
		}
	}
	return nil
}

// publish 尽力而为的成交事件发布
func (s *OrderService) publish(ctx context.Context, trade *medomain.Trade) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTrade(ctx, trade); err != nil {
		s.logger.Warn("failed to publish trade event", "trade_id", trade.TradeID, "error", err)
	}
}

// CancelOrder 撤单。幂等：未知、已成交或已撤销的订单返回 (nil, nil)。
func (s *OrderService) CancelOrder(ctx context.Context, orderID string) (*medomain.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, nil
	}

	cancelled := s.engine.CancelOrder(order.Symbol, orderID)
	if cancelled == nil {
		// 与撮合竞争失败或早已终态：无操作
		return nil, nil
	}

	if err := s.orders.Save(ctx, cancelled); err != nil {
		return nil, fmt.Errorf("persist cancelled order %s: %w", orderID, err)
	}
	if err := s.accounts.UnfreezeRemainingFunds(ctx, cancelled); err != nil {
		return nil, err
	}
	s.logger.Info("order cancelled", "order_id", orderID)
	return cancelled, nil
}

// ModifyOrder 改单：原子的先撤后挂，丧失时间优先级。
// 买单先按新担保重整资金预占 (不足则拒绝)，再进入引擎。
func (s *OrderService) ModifyOrder(ctx context.Context, orderID string, req *ModifyOrderRequest) (*PlaceOrderResult, error) {
	persisted, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if persisted == nil {
		return nil, nil
	}

	book := s.engine.LookupBook(persisted.Symbol)
	if book == nil {
		return nil, nil
	}
	// 撮合在写锁内改写成交量，这里取锁内快照而不是裸指针
	live, ok := book.OrderSnapshot(orderID)
	if !ok || !live.IsActive() {
		return nil, nil
	}

	newPrice := live.Price
	if req.Price != nil {
		newPrice = *req.Price
	}
	newQuantity := live.Quantity
	if req.Quantity != nil {
		newQuantity = *req.Quantity
	}
	if newQuantity.LessThan(live.FilledQuantity) {
		return nil, fmt.Errorf("%w: filled %s, requested %s",
			medomain.ErrQuantityBelowFilled, live.FilledQuantity, newQuantity)
	}

	if err := s.accounts.AdjustReservationForModify(ctx, &live, newPrice, newQuantity); err != nil {
		return nil, err
	}

	result, err := s.engine.ModifyOrder(persisted.Symbol, orderID, newPrice, newQuantity)
	if err != nil || result == nil {
		// 引擎侧拒绝 (例如与成交竞争后数量失效)：按引擎内的最新状态重整预占
		realign := live
		if current, stillThere := book.OrderSnapshot(orderID); stillThere {
			realign = current
		}
		if relErr := s.accounts.UnfreezeRemainingFunds(ctx, &realign); relErr != nil {
			s.logger.Error("failed to realign reservation after modify rejection",
				"order_id", orderID, "error", relErr)
		}
		return nil, err
	}

	if err := s.settleAndPersist(ctx, result); err != nil {
		return nil, err
	}
	if err := s.accounts.UnfreezeRemainingFunds(ctx, result.Order); err != nil {
		return nil, err
	}

	s.logger.Info("order modified", "order_id", orderID,
		"price", newPrice.String(), "quantity", newQuantity.String())
	return &PlaceOrderResult{Order: result.Order, Trades: result.Trades}, nil
}

// GetOrder 查询订单
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*medomain.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, xerrors.NotFound("order not found").WithContext("order_id", orderID)
	}
	return order, nil
}

// ListOrders 查询账户订单
func (s *OrderService) ListOrders(ctx context.Context, accountID string, limit, offset int) ([]*medomain.Order, error) {
	return s.orders.ListByAccount(ctx, accountID, limit, offset)
}

// ListTrades 查询交易对最近成交
func (s *OrderService) ListTrades(ctx context.Context, symbol string, limit int) ([]*medomain.Trade, error) {
	return s.trades.ListBySymbol(ctx, symbol, limit)
}

// ListOrderTrades 查询某笔订单的全部成交 (按成交序号升序)
func (s *OrderService) ListOrderTrades(ctx context.Context, orderID string) ([]*medomain.Trade, error) {
	return s.trades.ListByOrder(ctx, orderID)
}
