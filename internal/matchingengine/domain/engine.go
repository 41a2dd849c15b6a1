package domain

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/idgen"
)

// MatchResult 撮合结果：入场订单的最终状态 + 按序产生的成交列表。
// Trades 为空表示订单只是挂入簿中 (或被拒绝)，没有即时成交。
// 其中的订单都是写锁内的副本：在簿原件随后仍会被撮合改写，
// 裸指针一旦逃逸出锁，调用方的读取就会与撮合竞争。
type MatchResult struct {
	Order *Order `json:"order"`
	// 本次撮合产生的成交，按成交序号递增
	Trades []*Trade `json:"trades"`
	// 被动方订单中状态发生变化的部分，供调用方持久化与资金释放
	MakerOrders []*Order `json:"maker_orders"`
}

// snapshotLocked 把结果中的订单指针替换为锁内副本，调用方必须持有簿写锁
func (r *MatchResult) snapshotLocked() {
	if r.Order != nil {
		o := *r.Order
		r.Order = &o
	}
	for i, maker := range r.MakerOrders {
		m := *maker
		r.MakerOrders[i] = &m
	}
}

// MatchingEngine 撮合引擎。
// 每个实例独占自己的 symbol -> OrderBook 映射 (构造注入，无进程级单例)，
// 订单簿首次引用时创建，进程生命周期内不再移除。
// 互斥单位是单个交易对的订单簿写锁：同一交易对的写操作串行，
// 不同交易对完全并行，行情读者只被写者短暂阻塞。
type MatchingEngine struct {
	mu    sync.RWMutex
	books map[string]*OrderBook

	// 到达序号与成交序号，进程内严格递增
	arrivalSeq atomic.Int64
	tradeSeq   atomic.Int64

	logger *slog.Logger
}

// NewMatchingEngine 创建撮合引擎
func NewMatchingEngine(logger *slog.Logger) *MatchingEngine {
	return &MatchingEngine{
		books:  make(map[string]*OrderBook),
		logger: logger.With("module", "matching_engine"),
	}
}

// Book 获取交易对订单簿，首次引用时创建
func (e *MatchingEngine) Book(symbol string) *OrderBook {
	e.mu.RLock()
	book, ok := e.books[symbol]
	e.mu.RUnlock()
	if ok {
		return book
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if book, ok = e.books[symbol]; ok {
		return book
	}
	book = NewOrderBook(symbol)
	e.books[symbol] = book
	return book
}

// LookupBook 只查不建，撤单/改单与行情查询路径使用
func (e *MatchingEngine) LookupBook(symbol string) *OrderBook {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.books[symbol]
}

// Symbols 返回已建簿的交易对列表
func (e *MatchingEngine) Symbols() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	symbols := make([]string, 0, len(e.books))
	for s := range e.books {
		symbols = append(symbols, s)
	}
	return symbols
}

// validateIncoming 引擎自身的契约校验 (结构性校验由 ValidationService 前置完成)
func validateIncoming(order *Order) error {
	if order.Quantity.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: non-positive quantity %s", ErrInvalidOrder, order.Quantity)
	}
	switch order.Type {
	case TypeLimit:
		if order.Price.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("%w: limit order requires positive price", ErrInvalidOrder)
		}
	case TypeMarket:
		if !order.Price.IsZero() {
			return fmt.Errorf("%w: market order must not carry a price", ErrInvalidOrder)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidOrder, order.Type)
	}
	return nil
}

// ProcessOrder 撮合一笔入场订单。
// 整个撮合 (扫对手盘、簿内挂单、统计更新) 在订单簿写锁内一次完成，
// 两侧档位、订单索引与统计对外始终是一致视图。
func (e *MatchingEngine) ProcessOrder(order *Order) (*MatchResult, error) {
	if err := validateIncoming(order); err != nil {
		return nil, err
	}

	book := e.Book(order.Symbol)

	book.mu.Lock()
	defer book.mu.Unlock()

	if _, exists := book.orders[order.OrderID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateOrder, order.OrderID)
	}

	order.Sequence = e.arrivalSeq.Add(1)
	result := &MatchResult{Order: order}
	e.matchLocked(book, order, result)

	if e.logger != nil && len(result.Trades) > 0 {
		e.logger.Debug("order matched",
			"order_id", order.OrderID,
			"status", order.Status,
			"trades", len(result.Trades),
			"remaining", order.RemainingQuantity().String(),
		)
	}
	result.snapshotLocked()
	return result, nil
}

// matchLocked 核心撮合循环，调用方必须已持有 book 写锁
func (e *MatchingEngine) matchLocked(book *OrderBook, order *Order, result *MatchResult) {
	opposite := order.Side.Opposite()

	for order.RemainingQuantity().IsPositive() {
		key, queue := book.bestQueueLocked(opposite)
		if queue == nil {
			break
		}

		// 限价单价格兼容检查：买价 >= 最优卖价，卖价 <= 最优买价；市价单无条件吃
		if order.Type == TypeLimit {
			if order.Side == SideBuy && order.Price.LessThan(queue.Price()) {
				break
			}
			if order.Side == SideSell && order.Price.GreaterThan(queue.Price()) {
				break
			}
		}

		// 同档位内时间优先，始终吃队首
		for order.RemainingQuantity().IsPositive() {
			resting := queue.PeekFirst()
			if resting == nil {
				break
			}

			matchQty := decimal.Min(order.RemainingQuantity(), resting.RemainingQuantity())
			// 成交价永远取被动方挂单价：价格改善归于被动方
			trade := e.newTrade(order, resting, queue.Price(), matchQty)

			order.fill(matchQty)
			resting.fill(matchQty)
			queue.reduce(matchQty)

			result.Trades = append(result.Trades, trade)
			result.MakerOrders = append(result.MakerOrders, resting)
			book.recordTradeLocked(trade)

			if resting.IsFilled() {
				queue.PollFirst()
				delete(book.orders, resting.OrderID)
			}
		}

		if queue.Len() == 0 {
			book.ladder(opposite).Delete(key)
		}
	}

	// 余量处理：限价单挂入己方队尾 (时间优先级最低)；
	// 市价单的未成余量绝不挂簿，无完全成交则拒绝，部分成交则取消余量。
	if order.RemainingQuantity().IsPositive() {
		if order.Type == TypeLimit {
			if err := book.addOrderLocked(order); err != nil {
				// 入簿失败 (价格折算 float64 后与既有档位 Key 碰撞)：
				// 余量不挂簿，无成交拒单、有成交取消余量，状态对调用方可见
				if order.FilledQuantity.IsZero() {
					order.Status = OrderStatusRejected
				} else {
					order.Status = OrderStatusCancelled
				}
				if e.logger != nil {
					e.logger.Error("failed to rest order remainder",
						"order_id", order.OrderID,
						"price", order.Price.String(),
						"error", err,
					)
				}
			}
		} else {
			if order.FilledQuantity.IsZero() {
				order.Status = OrderStatusRejected
			} else {
				order.Status = OrderStatusCancelled
			}
		}
	}
}

// newTrade 创建成交记录并分配严格递增的成交序号
func (e *MatchingEngine) newTrade(taker, maker *Order, price, qty decimal.Decimal) *Trade {
	trade := &Trade{
		TradeID:       fmt.Sprintf("TRD-%d", idgen.GenID()),
		Symbol:        taker.Symbol,
		Price:         price,
		Quantity:      qty,
		SequenceNum:   e.tradeSeq.Add(1),
		AggressorSide: taker.Side,
		ExecutedAt:    time.Now(),
	}
	if taker.Side == SideBuy {
		trade.BuyOrderID, trade.BuyAccountID = taker.OrderID, taker.AccountID
		trade.SellOrderID, trade.SellAccountID = maker.OrderID, maker.AccountID
	} else {
		trade.BuyOrderID, trade.BuyAccountID = maker.OrderID, maker.AccountID
		trade.SellOrderID, trade.SellAccountID = taker.OrderID, taker.AccountID
	}
	return trade
}

// CancelOrder 撤单。幂等：未知订单或已终态返回 nil，绝不报错。
// 与撮合的竞争由订单簿写锁裁决：输的一方看到订单已不在簿中。
func (e *MatchingEngine) CancelOrder(symbol, orderID string) *Order {
	book := e.LookupBook(symbol)
	if book == nil {
		return nil
	}

	book.mu.Lock()
	defer book.mu.Unlock()

	order := book.removeOrderLocked(orderID)
	if order == nil {
		return nil
	}
	order.Status = OrderStatusCancelled
	return order
}

// ModifyOrder 改单 = 原子的先撤后挂：改价或改量都丧失时间优先级，
// 修改后的订单视为新到达，可能立即与对手盘成交。
// 数量只能调整到不低于已成交数量；降到等于已成交则订单直接完结。
// 未知或已终态订单返回 (nil, nil)。
func (e *MatchingEngine) ModifyOrder(symbol, orderID string, newPrice, newQuantity decimal.Decimal) (*MatchResult, error) {
	book := e.LookupBook(symbol)
	if book == nil {
		return nil, nil
	}

	book.mu.Lock()
	defer book.mu.Unlock()

	order, ok := book.orders[orderID]
	if !ok || !order.IsActive() {
		return nil, nil
	}
	if order.Type != TypeLimit {
		return nil, fmt.Errorf("%w: only limit orders can be modified", ErrInvalidOrder)
	}
	if newPrice.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: modify requires positive price", ErrInvalidOrder)
	}
	if newQuantity.LessThan(order.FilledQuantity) {
		return nil, fmt.Errorf("%w: filled %s, requested %s",
			ErrQuantityBelowFilled, order.FilledQuantity, newQuantity)
	}

	book.removeOrderLocked(orderID)

	order.Price = newPrice
	order.Quantity = newQuantity
	order.Sequence = e.arrivalSeq.Add(1)
	order.ArrivedAt = time.Now()

	result := &MatchResult{Order: order}
	if order.IsFilled() {
		// 数量降到恰好等于已成交：无余量可挂，订单完结
		order.Status = OrderStatusFilled
		result.snapshotLocked()
		return result, nil
	}
	order.Status = OrderStatusPartiallyFilled
	if order.FilledQuantity.IsZero() {
		order.Status = OrderStatusNew
	}

	e.matchLocked(book, order, result)
	result.snapshotLocked()
	return result, nil
}
