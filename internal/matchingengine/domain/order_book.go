package domain

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/algorithm"
)

// PriceLevel 订单簿档位聚合视图 (行情快照用)
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// SessionStats 当日行情统计，全部由成交派生，可随时重建
type SessionStats struct {
	LastPrice     decimal.Decimal `json:"last_price"`
	OpenPrice     decimal.Decimal `json:"open_price"`
	HighPrice     decimal.Decimal `json:"high_price"`
	LowPrice      decimal.Decimal `json:"low_price"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	Volume        decimal.Decimal `json:"volume"`
	TradeCount    int64           `json:"trade_count"`
}

// OrderBook 单交易对内存订单簿。
// 买盘 Key 为 -Price (降序迭代即最优在前)，卖盘 Key 为 Price (升序)。
// 档位在首次挂单时惰性创建，队列清空后立刻删除以约束内存。
// 写者 (挂单/撤单/撮合) 持写锁互斥，行情读者之间并发。
type OrderBook struct {
	symbol string

	mu   sync.RWMutex
	bids *algorithm.SkipList[float64, *OrderQueue]
	asks *algorithm.SkipList[float64, *OrderQueue]
	// 订单 ID -> 订单的平面索引，支撑 O(1) 按 ID 撤单
	orders map[string]*Order

	stats SessionStats
}

// NewOrderBook 创建订单簿
func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		bids:   algorithm.NewSkipList[float64, *OrderQueue](),
		asks:   algorithm.NewSkipList[float64, *OrderQueue](),
		orders: make(map[string]*Order),
	}
}

// Symbol 交易对符号
func (b *OrderBook) Symbol() string {
	return b.symbol
}

// sideKey 把价格折算成跳表 Key，买盘取负实现降序
func sideKey(side OrderSide, price decimal.Decimal) float64 {
	if side == SideBuy {
		return -price.InexactFloat64()
	}
	return price.InexactFloat64()
}

func (b *OrderBook) ladder(side OrderSide) *algorithm.SkipList[float64, *OrderQueue] {
	if side == SideBuy {
		return b.bids
	}
	return b.asks
}

// AddOrder 挂入一笔剩余委托 (公开入口，撮合循环用内部版本)
func (b *OrderBook) AddOrder(order *Order) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addOrderLocked(order)
}

func (b *OrderBook) addOrderLocked(order *Order) error {
	if _, exists := b.orders[order.OrderID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateOrder, order.OrderID)
	}

	ladder := b.ladder(order.Side)
	key := sideKey(order.Side, order.Price)
	queue, ok := ladder.Search(key)
	if !ok {
		queue = NewOrderQueue(order.Price)
		ladder.Insert(key, queue)
	}
	if err := queue.AddOrder(order); err != nil {
		return err
	}
	b.orders[order.OrderID] = order
	return nil
}

// RemoveOrder 按 ID 摘除订单，未知或已终态返回 nil
func (b *OrderBook) RemoveOrder(orderID string) *Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeOrderLocked(orderID)
}

func (b *OrderBook) removeOrderLocked(orderID string) *Order {
	order, ok := b.orders[orderID]
	if !ok {
		return nil
	}

	ladder := b.ladder(order.Side)
	key := sideKey(order.Side, order.Price)
	if queue, found := ladder.Search(key); found {
		queue.RemoveOrder(orderID)
		if queue.Len() == 0 {
			ladder.Delete(key)
		}
	}
	delete(b.orders, orderID)
	return order
}

// GetOrder 按 ID 查询在簿订单
func (b *OrderBook) GetOrder(orderID string) *Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.orders[orderID]
}

// OrderSnapshot 在读锁内复制在簿订单字段。
// 撮合会在写锁内改写 FilledQuantity，锁外读原指针的字段会撕裂，
// 需要在锁外消费订单状态的路径一律取快照。
func (b *OrderBook) OrderSnapshot(orderID string) (Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	order, ok := b.orders[orderID]
	if !ok {
		return Order{}, false
	}
	return *order, true
}

// bestQueueLocked 返回最优档位及其 Key，空侧返回 nil
func (b *OrderBook) bestQueueLocked(side OrderSide) (float64, *OrderQueue) {
	it := b.ladder(side).Iterator()
	key, queue, ok := it.Next()
	if !ok {
		return 0, nil
	}
	return key, queue
}

// BestBid 最优买价，空盘返回 false
func (b *OrderBook) BestBid() (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, queue := b.bestQueueLocked(SideBuy)
	if queue == nil {
		return decimal.Zero, false
	}
	return queue.Price(), true
}

// BestAsk 最优卖价，空盘返回 false
func (b *OrderBook) BestAsk() (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, queue := b.bestQueueLocked(SideSell)
	if queue == nil {
		return decimal.Zero, false
	}
	return queue.Price(), true
}

// BidDepth 前 levels 档买盘剩余总量
func (b *OrderBook) BidDepth(levels int) decimal.Decimal {
	return b.depth(SideBuy, levels)
}

// AskDepth 前 levels 档卖盘剩余总量
func (b *OrderBook) AskDepth(levels int) decimal.Decimal {
	return b.depth(SideSell, levels)
}

func (b *OrderBook) depth(side OrderSide, levels int) decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := decimal.Zero
	it := b.ladder(side).Iterator()
	for i := 0; i < levels; i++ {
		_, queue, ok := it.Next()
		if !ok {
			break
		}
		total = total.Add(queue.TotalRemaining())
	}
	return total
}

// BidLevels 买盘前 depth 档快照 (最优在前)
func (b *OrderBook) BidLevels(depth int) []PriceLevel {
	return b.levels(SideBuy, depth)
}

// AskLevels 卖盘前 depth 档快照 (最优在前)
func (b *OrderBook) AskLevels(depth int) []PriceLevel {
	return b.levels(SideSell, depth)
}

func (b *OrderBook) levels(side OrderSide, depth int) []PriceLevel {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]PriceLevel, 0, depth)
	it := b.ladder(side).Iterator()
	for i := 0; i < depth; i++ {
		_, queue, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, PriceLevel{Price: queue.Price(), Quantity: queue.TotalRemaining()})
	}
	return out
}

// UpdateLastPrice 更新最新价并维护高低点
func (b *OrderBook) UpdateLastPrice(price decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updateLastPriceLocked(price)
}

func (b *OrderBook) updateLastPriceLocked(price decimal.Decimal) {
	b.stats.LastPrice = price
	if b.stats.OpenPrice.IsZero() {
		b.stats.OpenPrice = price
	}
	if b.stats.HighPrice.IsZero() || price.GreaterThan(b.stats.HighPrice) {
		b.stats.HighPrice = price
	}
	if b.stats.LowPrice.IsZero() || price.LessThan(b.stats.LowPrice) {
		b.stats.LowPrice = price
	}
}

// RecordTrade 把一笔成交计入统计
func (b *OrderBook) RecordTrade(trade *Trade) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recordTradeLocked(trade)
}

func (b *OrderBook) recordTradeLocked(trade *Trade) {
	b.updateLastPriceLocked(trade.Price)
	b.stats.Volume = b.stats.Volume.Add(trade.Quantity)
	b.stats.TradeCount++
}

// ResetDailyStats 日切：清零高低/量/笔数，昨收承接最新价
func (b *OrderBook) ResetDailyStats() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.PreviousClose = b.stats.LastPrice
	b.stats.OpenPrice = decimal.Zero
	b.stats.HighPrice = decimal.Zero
	b.stats.LowPrice = decimal.Zero
	b.stats.Volume = decimal.Zero
	b.stats.TradeCount = 0
}

// Stats 返回统计快照副本
func (b *OrderBook) Stats() SessionStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stats
}

// OrderBookSnapshot 行情快照
type OrderBookSnapshot struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Stats     SessionStats `json:"stats"`
	Timestamp int64        `json:"timestamp"`
}

// Snapshot 在一次读锁内取两侧档位与统计，保证互相一致
func (b *OrderBook) Snapshot(depth int) *OrderBookSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := &OrderBookSnapshot{
		Symbol:    b.symbol,
		Bids:      make([]PriceLevel, 0, depth),
		Asks:      make([]PriceLevel, 0, depth),
		Stats:     b.stats,
		Timestamp: time.Now().Unix(),
	}

	it := b.bids.Iterator()
	for i := 0; i < depth; i++ {
		_, queue, ok := it.Next()
		if !ok {
			break
		}
		snap.Bids = append(snap.Bids, PriceLevel{Price: queue.Price(), Quantity: queue.TotalRemaining()})
	}
	it = b.asks.Iterator()
	for i := 0; i < depth; i++ {
		_, queue, ok := it.Next()
		if !ok {
			break
		}
		snap.Asks = append(snap.Asks, PriceLevel{Price: queue.Price(), Quantity: queue.TotalRemaining()})
	}
	return snap
}
