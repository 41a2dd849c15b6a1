// Package mysql 订单模块的 MySQL 仓储实现。
package mysql

import (
	"context"
	"errors"

	"github.com/wyfcoding/exchange/internal/order/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InstrumentRepo struct {
	db *gorm.DB
}

func NewInstrumentRepo(db *gorm.DB) domain.InstrumentRepository {
	return &InstrumentRepo{db: db}
}

func (r *InstrumentRepo) Save(ctx context.Context, instrument *domain.Instrument) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}},
			UpdateAll: true,
		}).
		Create(instrument).Error
}

func (r *InstrumentRepo) GetBySymbol(ctx context.Context, symbol string) (*domain.Instrument, error) {
	var instrument domain.Instrument
	if err := r.db.WithContext(ctx).Where("symbol = ?", symbol).First(&instrument).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &instrument, nil
}

func (r *InstrumentRepo) List(ctx context.Context) ([]*domain.Instrument, error) {
	var instruments []*domain.Instrument
	err := r.db.WithContext(ctx).Order("symbol ASC").Find(&instruments).Error
	return instruments, err
}
