package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/wyfcoding/exchange/internal/matchingengine/domain"
)

type tradeRepository struct {
	mu     sync.RWMutex
	trades map[string]*domain.Trade
}

// NewTradeRepository 创建内存成交仓储
func NewTradeRepository() domain.TradeRepository {
	return &tradeRepository{trades: make(map[string]*domain.Trade)}
}

func (r *tradeRepository) Save(_ context.Context, trade *domain.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades[trade.TradeID] = trade
	return nil
}

func (r *tradeRepository) Get(_ context.Context, tradeID string) (*domain.Trade, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.trades[tradeID], nil
}

func (r *tradeRepository) ListBySymbol(_ context.Context, symbol string, limit int) ([]*domain.Trade, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*domain.Trade, 0)
	for _, t := range r.trades {
		if t.Symbol == symbol {
			matched = append(matched, t)
		}
	}
	// 最近成交在前
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].SequenceNum > matched[j].SequenceNum
	})
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *tradeRepository) ListByOrder(_ context.Context, orderID string) ([]*domain.Trade, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*domain.Trade, 0)
	for _, t := range r.trades {
		if t.BuyOrderID == orderID || t.SellOrderID == orderID {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].SequenceNum < matched[j].SequenceNum
	})
	return matched, nil
}

func (r *tradeRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.trades)), nil
}
