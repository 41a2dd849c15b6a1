// Package application 行情查询服务。
// 全部数据从撮合引擎的内存订单簿与成交仓储派生，本身无状态。
package application

import (
	"context"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"
	medomain "github.com/wyfcoding/exchange/internal/matchingengine/domain"
	"github.com/wyfcoding/pkg/xerrors"
)

const codeSymbolNotFound = 40402

// Ticker 交易对行情快照
type Ticker struct {
	Symbol        string          `json:"symbol"`
	BestBid       decimal.Decimal `json:"best_bid"`
	BestAsk       decimal.Decimal `json:"best_ask"`
	LastPrice     decimal.Decimal `json:"last_price"`
	OpenPrice     decimal.Decimal `json:"open_price"`
	HighPrice     decimal.Decimal `json:"high_price"`
	LowPrice      decimal.Decimal `json:"low_price"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	Volume        decimal.Decimal `json:"volume"`
	TradeCount    int64           `json:"trade_count"`
}

// Service 行情查询服务
type Service struct {
	engine *medomain.MatchingEngine
	trades medomain.TradeRepository
	logger *slog.Logger
}

// NewService 创建行情服务
func NewService(engine *medomain.MatchingEngine, trades medomain.TradeRepository, logger *slog.Logger) *Service {
	return &Service{
		engine: engine,
		trades: trades,
		logger: logger.With("module", "marketdata"),
	}
}

func (s *Service) book(symbol string) (*medomain.OrderBook, error) {
	book := s.engine.LookupBook(symbol)
	if book == nil {
		return nil, xerrors.New(xerrors.ErrNotFound, codeSymbolNotFound,
			"symbol not found", symbol, nil).WithContext("symbol", symbol)
	}
	return book, nil
}

// GetTicker 获取交易对行情
func (s *Service) GetTicker(_ context.Context, symbol string) (*Ticker, error) {
	book, err := s.book(symbol)
	if err != nil {
		return nil, err
	}

	ticker := &Ticker{Symbol: symbol}
	if bid, ok := book.BestBid(); ok {
		ticker.BestBid = bid
	}
	if ask, ok := book.BestAsk(); ok {
		ticker.BestAsk = ask
	}

	stats := book.Stats()
	ticker.LastPrice = stats.LastPrice
	ticker.OpenPrice = stats.OpenPrice
	ticker.HighPrice = stats.HighPrice
	ticker.LowPrice = stats.LowPrice
	ticker.PreviousClose = stats.PreviousClose
	ticker.Volume = stats.Volume
	ticker.TradeCount = stats.TradeCount
	return ticker, nil
}

// GetOrderBook 获取订单簿深度快照
func (s *Service) GetOrderBook(_ context.Context, symbol string, depth int) (*medomain.OrderBookSnapshot, error) {
	book, err := s.book(symbol)
	if err != nil {
		return nil, err
	}
	if depth <= 0 {
		depth = 20
	}
	return book.Snapshot(depth), nil
}

// GetRecentTrades 获取最近成交 (按成交序号降序)
func (s *Service) GetRecentTrades(ctx context.Context, symbol string, limit int) ([]*medomain.Trade, error) {
	if _, err := s.book(symbol); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.trades.ListBySymbol(ctx, symbol, limit)
}

// ListSymbols 返回已有订单簿的交易对
func (s *Service) ListSymbols(_ context.Context) []string {
	symbols := s.engine.Symbols()
	sort.Strings(symbols)
	return symbols
}

// MarkPrices 全部交易对的最新成交价 (持仓估值用)，无成交的交易对不计
func (s *Service) MarkPrices(_ context.Context) map[string]decimal.Decimal {
	marks := make(map[string]decimal.Decimal)
	for _, symbol := range s.engine.Symbols() {
		book := s.engine.LookupBook(symbol)
		if book == nil {
			continue
		}
		if last := book.Stats().LastPrice; last.IsPositive() {
			marks[symbol] = last
		}
	}
	return marks
}

// ResetDailyStats 日切：清零全部交易对的当日统计，昨收承接最新价。
// 由运维端点在交易日切换时触发。
func (s *Service) ResetDailyStats(_ context.Context) int {
	symbols := s.engine.Symbols()
	for _, symbol := range symbols {
		if book := s.engine.LookupBook(symbol); book != nil {
			book.ResetDailyStats()
		}
	}
	s.logger.Info("日行情统计已重置", "symbols", len(symbols))
	return len(symbols)
}
