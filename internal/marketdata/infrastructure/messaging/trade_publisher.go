// Package messaging 行情模块的 Kafka 事件出口。
package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	medomain "github.com/wyfcoding/exchange/internal/matchingengine/domain"
)

// DefaultTradeTopic 成交事件默认主题
const DefaultTradeTopic = "exchange.trades"

// KafkaTradePublisher 把撮合产生的成交写入 Kafka。
// 按交易对作为消息 key，保证同一交易对的成交落入同一分区、保持成交序。
type KafkaTradePublisher struct {
	writer *kafka.Writer
	topic  string
	logger *slog.Logger
}

// NewKafkaTradePublisher 创建成交事件生产者
func NewKafkaTradePublisher(brokers []string, topic string, logger *slog.Logger) *KafkaTradePublisher {
	if topic == "" {
		topic = DefaultTradeTopic
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Compression:            kafka.Gzip,
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
	}
	return &KafkaTradePublisher{writer: writer, topic: topic, logger: logger}
}

// tradeEvent 成交事件载荷
type tradeEvent struct {
	TradeID       string    `json:"trade_id"`
	Symbol        string    `json:"symbol"`
	BuyOrderID    string    `json:"buy_order_id"`
	SellOrderID   string    `json:"sell_order_id"`
	BuyAccountID  string    `json:"buy_account_id"`
	SellAccountID string    `json:"sell_account_id"`
	Price         string    `json:"price"`
	Quantity      string    `json:"quantity"`
	SequenceNum   int64     `json:"sequence_num"`
	AggressorSide string    `json:"aggressor_side"`
	ExecutedAt    time.Time `json:"executed_at"`
}

// PublishTrade 发布单笔成交
func (p *KafkaTradePublisher) PublishTrade(ctx context.Context, trade *medomain.Trade) error {
	event := tradeEvent{
		TradeID:       trade.TradeID,
		Symbol:        trade.Symbol,
		BuyOrderID:    trade.BuyOrderID,
		SellOrderID:   trade.SellOrderID,
		BuyAccountID:  trade.BuyAccountID,
		SellAccountID: trade.SellAccountID,
		Price:         trade.Price.String(),
		Quantity:      trade.Quantity.String(),
		SequenceNum:   trade.SequenceNum,
		AggressorSide: string(trade.AggressorSide),
		ExecutedAt:    trade.ExecutedAt,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(trade.Symbol),
		Value: data,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("发送成交事件失败",
			"topic", p.topic,
			"trade_id", trade.TradeID,
			"error", err)
		return err
	}

	p.logger.Debug("成交事件已发送",
		"topic", p.topic,
		"trade_id", trade.TradeID,
		"symbol", trade.Symbol)
	return nil
}

// Close 关闭生产者
func (p *KafkaTradePublisher) Close() error {
	return p.writer.Close()
}
