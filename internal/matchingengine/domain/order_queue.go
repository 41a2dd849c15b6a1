package domain

import (
	"container/list"
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderQueue 同一价格档位下的订单集合，保证时间优先 (FIFO)。
// 所有写操作都在所属订单簿的写锁内执行，队列自身不再加锁。
type OrderQueue struct {
	price  decimal.Decimal
	orders *list.List // 存储 *Order，队首为最早到达
	// 缓存的剩余总量，恒等于队内各订单 (Quantity - FilledQuantity) 之和
	totalRemaining decimal.Decimal
}

// NewOrderQueue 创建价格档位队列
func NewOrderQueue(price decimal.Decimal) *OrderQueue {
	return &OrderQueue{
		price:          price,
		orders:         list.New(),
		totalRemaining: decimal.Zero,
	}
}

// Price 档位价格
func (q *OrderQueue) Price() decimal.Decimal {
	return q.price
}

// Len 队内订单数
func (q *OrderQueue) Len() int {
	return q.orders.Len()
}

// TotalRemaining 档位剩余总量
func (q *OrderQueue) TotalRemaining() decimal.Decimal {
	return q.totalRemaining
}

// AddOrder 追加到队尾，O(1)。价格必须与档位一致，否则视为契约违规。
func (q *OrderQueue) AddOrder(order *Order) error {
	if !order.Price.Equal(q.price) {
		return fmt.Errorf("%w: order %s price %s, queue price %s",
			ErrPriceMismatch, order.OrderID, order.Price, q.price)
	}
	q.orders.PushBack(order)
	q.totalRemaining = q.totalRemaining.Add(order.RemainingQuantity())
	return nil
}

// RemoveOrder 按身份从任意位置移除 (取消路径)，O(n)。
// 档位深度相对整簿很小，线性扫描可以接受。
func (q *OrderQueue) RemoveOrder(orderID string) *Order {
	for el := q.orders.Front(); el != nil; el = el.Next() {
		order := el.Value.(*Order)
		if order.OrderID == orderID {
			q.orders.Remove(el)
			q.totalRemaining = q.totalRemaining.Sub(order.RemainingQuantity())
			return order
		}
	}
	return nil
}

// PeekFirst 查看队首订单，O(1)
func (q *OrderQueue) PeekFirst() *Order {
	el := q.orders.Front()
	if el == nil {
		return nil
	}
	return el.Value.(*Order)
}

// PollFirst 移除并返回队首订单，O(1)
func (q *OrderQueue) PollFirst() *Order {
	el := q.orders.Front()
	if el == nil {
		return nil
	}
	order := q.orders.Remove(el).(*Order)
	q.totalRemaining = q.totalRemaining.Sub(order.RemainingQuantity())
	return order
}

// RemoveFilledOrders 清扫终态订单。一致性兜底，不是主删除路径。
func (q *OrderQueue) RemoveFilledOrders() int {
	removed := 0
	var next *list.Element
	for el := q.orders.Front(); el != nil; el = next {
		next = el.Next()
		order := el.Value.(*Order)
		if order.Status.IsTerminal() {
			q.orders.Remove(el)
			q.totalRemaining = q.totalRemaining.Sub(order.RemainingQuantity())
			removed++
		}
	}
	return removed
}

// reduce 在队首订单部分成交后同步缓存，只在撮合循环内调用
func (q *OrderQueue) reduce(qty decimal.Decimal) {
	q.totalRemaining = q.totalRemaining.Sub(qty)
}
