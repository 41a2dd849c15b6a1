// Package mysql 撮合模块的 MySQL 仓储实现。
package mysql

import (
	"context"
	"errors"

	"github.com/wyfcoding/exchange/internal/matchingengine/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepo struct {
	db *gorm.DB
}

func NewOrderRepo(db *gorm.DB) domain.OrderRepository {
	return &OrderRepo{db: db}
}

func (r *OrderRepo) Save(ctx context.Context, order *domain.Order) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			UpdateAll: true,
		}).
		Create(order).Error
}

func (r *OrderRepo) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	var order domain.Order
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Order, error) {
	var orders []*domain.Order
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("sequence ASC").
		Limit(limit).
		Offset(offset).
		Find(&orders).Error
	return orders, err
}

func (r *OrderRepo) Delete(ctx context.Context, orderID string) error {
	return r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&domain.Order{}).Error
}

func (r *OrderRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Order{}).Count(&count).Error
	return count, err
}

type TradeRepo struct {
	db *gorm.DB
}

func NewTradeRepo(db *gorm.DB) domain.TradeRepository {
	return &TradeRepo{db: db}
}

func (r *TradeRepo) Save(ctx context.Context, trade *domain.Trade) error {
	return r.db.WithContext(ctx).Create(trade).Error
}

func (r *TradeRepo) Get(ctx context.Context, tradeID string) (*domain.Trade, error) {
	var trade domain.Trade
	if err := r.db.WithContext(ctx).Where("trade_id = ?", tradeID).First(&trade).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trade, nil
}

func (r *TradeRepo) ListBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error) {
	var trades []*domain.Trade
	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("sequence_num DESC").
		Limit(limit).
		Find(&trades).Error
	return trades, err
}

func (r *TradeRepo) ListByOrder(ctx context.Context, orderID string) ([]*domain.Trade, error) {
	var trades []*domain.Trade
	err := r.db.WithContext(ctx).
		Where("buy_order_id = ? OR sell_order_id = ?", orderID, orderID).
		Order("sequence_num ASC").
		Find(&trades).Error
	return trades, err
}

func (r *TradeRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Trade{}).Count(&count).Error
	return count, err
}
