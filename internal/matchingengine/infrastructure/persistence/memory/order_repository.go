// Package memory 内存仓储实现：map + 互斥锁，同进程写后读可见。
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/wyfcoding/exchange/internal/matchingengine/domain"
)

type orderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

// NewOrderRepository 创建内存订单仓储
func NewOrderRepository() domain.OrderRepository {
	return &orderRepository{orders: make(map[string]*domain.Order)}
}

func (r *orderRepository) Save(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.OrderID] = order
	return nil
}

func (r *orderRepository) Get(_ context.Context, orderID string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.orders[orderID], nil
}

func (r *orderRepository) ListByAccount(_ context.Context, accountID string, limit, offset int) ([]*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*domain.Order, 0)
	for _, o := range r.orders {
		if o.AccountID == accountID {
			matched = append(matched, o)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Sequence < matched[j].Sequence
	})

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *orderRepository) Delete(_ context.Context, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orders, orderID)
	return nil
}

func (r *orderRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.orders)), nil
}
