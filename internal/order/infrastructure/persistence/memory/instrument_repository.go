// Package memory 订单模块的内存仓储实现。
package memory

import (
	"context"
	"sync"

	"github.com/wyfcoding/exchange/internal/order/domain"
)

type instrumentRepository struct {
	mu          sync.RWMutex
	instruments map[string]*domain.Instrument
}

// NewInstrumentRepository 创建内存品种仓储
func NewInstrumentRepository() domain.InstrumentRepository {
	return &instrumentRepository{instruments: make(map[string]*domain.Instrument)}
}

func (r *instrumentRepository) Save(_ context.Context, instrument *domain.Instrument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instruments[instrument.Symbol] = instrument
	return nil
}

func (r *instrumentRepository) GetBySymbol(_ context.Context, symbol string) (*domain.Instrument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.instruments[symbol], nil
}

func (r *instrumentRepository) List(_ context.Context) ([]*domain.Instrument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Instrument, 0, len(r.instruments))
	for _, ins := range r.instruments {
		out = append(out, ins)
	}
	return out, nil
}
