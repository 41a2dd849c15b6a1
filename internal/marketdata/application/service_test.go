package application

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	medomain "github.com/wyfcoding/exchange/internal/matchingengine/domain"
	match_mem "github.com/wyfcoding/exchange/internal/matchingengine/infrastructure/persistence/memory"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestMarket(t *testing.T) (*Service, *medomain.MatchingEngine, medomain.TradeRepository) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := medomain.NewMatchingEngine(logger)
	trades := match_mem.NewTradeRepository()
	return NewService(engine, trades, logger), engine, trades
}

func fillBook(t *testing.T, engine *medomain.MatchingEngine) {
	t.Helper()
	orders := []*medomain.Order{
		medomain.NewOrder("S-1", "ACC-S", "BTC-USDT", medomain.SideSell, medomain.TypeLimit, d("101"), d("3")),
		medomain.NewOrder("B-1", "ACC-B", "BTC-USDT", medomain.SideBuy, medomain.TypeLimit, d("99"), d("2")),
		// 吃掉一部分卖一，产生一笔成交
		medomain.NewOrder("B-2", "ACC-B", "BTC-USDT", medomain.SideBuy, medomain.TypeLimit, d("101"), d("1")),
	}
	for _, o := range orders {
		if _, err := engine.ProcessOrder(o); err != nil {
			t.Fatalf("ProcessOrder(%s): %v", o.OrderID, err)
		}
	}
}

func TestGetTicker(t *testing.T) {
	svc, engine, _ := newTestMarket(t)
	fillBook(t, engine)

	ticker, err := svc.GetTicker(context.Background(), "BTC-USDT")
	if err != nil {
		t.Fatalf("GetTicker: %v", err)
	}
	if !ticker.BestBid.Equal(d("99")) {
		t.Errorf("expected best bid 99, got %s", ticker.BestBid)
	}
	if !ticker.BestAsk.Equal(d("101")) {
		t.Errorf("expected best ask 101, got %s", ticker.BestAsk)
	}
	if !ticker.LastPrice.Equal(d("101")) || ticker.TradeCount != 1 {
		t.Errorf("expected last 101 / 1 trade, got %s / %d", ticker.LastPrice, ticker.TradeCount)
	}
}

func TestGetTickerUnknownSymbol(t *testing.T) {
	svc, _, _ := newTestMarket(t)
	if _, err := svc.GetTicker(context.Background(), "DOGE-USDT"); err == nil {
		t.Fatal("expected error for unknown symbol")
	}
}

func TestGetOrderBookSnapshot(t *testing.T) {
	svc, engine, _ := newTestMarket(t)
	fillBook(t, engine)

	snap, err := svc.GetOrderBook(context.Background(), "BTC-USDT", 0)
	if err != nil {
		t.Fatalf("GetOrderBook: %v", err)
	}
	if len(snap.Bids) != 1 || len(snap.Asks) != 1 {
		t.Fatalf("expected 1x1 levels, got %dx%d", len(snap.Bids), len(snap.Asks))
	}
	if !snap.Asks[0].Quantity.Equal(d("2")) {
		t.Errorf("expected remaining ask quantity 2, got %s", snap.Asks[0].Quantity)
	}
}

func TestMarkPricesAndDailyReset(t *testing.T) {
	svc, engine, _ := newTestMarket(t)
	fillBook(t, engine)

	marks := svc.MarkPrices(context.Background())
	if !marks["BTC-USDT"].Equal(d("101")) {
		t.Errorf("expected mark 101, got %s", marks["BTC-USDT"])
	}

	if count := svc.ResetDailyStats(context.Background()); count != 1 {
		t.Errorf("expected 1 symbol reset, got %d", count)
	}
	ticker, err := svc.GetTicker(context.Background(), "BTC-USDT")
	if err != nil {
		t.Fatalf("GetTicker: %v", err)
	}
	if ticker.TradeCount != 0 || !ticker.PreviousClose.Equal(d("101")) {
		t.Errorf("expected zeroed stats with previous close 101, got count=%d prev=%s",
			ticker.TradeCount, ticker.PreviousClose)
	}
}

func TestGetRecentTrades(t *testing.T) {
	svc, engine, trades := newTestMarket(t)
	fillBook(t, engine)

	// 成交由编排层落库，这里直接写入仓储
	if err := trades.Save(context.Background(), &medomain.Trade{
		TradeID: "TRD-1", Symbol: "BTC-USDT",
		Price: d("101"), Quantity: d("1"), SequenceNum: 1,
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := svc.GetRecentTrades(context.Background(), "BTC-USDT", 0)
	if err != nil {
		t.Fatalf("GetRecentTrades: %v", err)
	}
	if len(got) != 1 || got[0].TradeID != "TRD-1" {
		t.Errorf("unexpected trades: %+v", got)
	}
}
