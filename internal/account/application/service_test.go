package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/exchange/internal/account/domain"
	"github.com/wyfcoding/exchange/internal/account/infrastructure/persistence/memory"
	medomain "github.com/wyfcoding/exchange/internal/matchingengine/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService() *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(memory.NewAccountRepository(), memory.NewTransactionRepository(), logger)
}

func fundedAccount(t *testing.T, svc *Service, amount string) *domain.Account {
	t.Helper()
	ctx := context.Background()
	account, err := svc.CreateAccount(ctx, "U-1", "USDT")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if err := svc.Deposit(ctx, account.AccountID, d(amount)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	return account
}

func limitBuy(accountID, orderID, price, qty string) *medomain.Order {
	return medomain.NewOrder(orderID, accountID, "BTC-USDT",
		medomain.SideBuy, medomain.TypeLimit, d(price), d(qty))
}

func TestDepositWithdraw(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	account := fundedAccount(t, svc, "1000")

	if err := svc.Withdraw(ctx, account.AccountID, d("400")); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}

	got, err := svc.GetAccount(ctx, account.AccountID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !got.Balance.Equal(d("600")) || !got.AvailableBalance.Equal(d("600")) {
		t.Errorf("unexpected ledger: balance=%s available=%s", got.Balance, got.AvailableBalance)
	}

	err = svc.Withdraw(ctx, account.AccountID, d("601"))
	if !IsInsufficientFunds(err) {
		t.Errorf("expected insufficient funds, got %v", err)
	}
	if err := svc.Deposit(ctx, account.AccountID, d("-5")); err == nil {
		t.Error("negative deposit must be rejected")
	}

	// 每次资金变动都应有流水
	txns, err := svc.ListTransactions(ctx, account.AccountID, 10, 0)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txns) != 2 {
		t.Errorf("expected 2 journal entries, got %d", len(txns))
	}
}

func TestFreezeSettleReleaseWalk(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	buyer := fundedAccount(t, svc, "1000")
	seller, err := svc.CreateAccount(ctx, "U-2", "USDT")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	// 限价买 4@100：冻结 400
	order := limitBuy(buyer.AccountID, "ORD-1", "100", "4")
	if err := svc.ValidateAndFreezeForOrder(ctx, order, decimal.Zero); err != nil {
		t.Fatalf("ValidateAndFreezeForOrder: %v", err)
	}

	got, _ := svc.GetAccount(ctx, buyer.AccountID)
	if !got.AvailableBalance.Equal(d("600")) || !got.FrozenBalance.Equal(d("400")) {
		t.Fatalf("after freeze: available=%s frozen=%s", got.AvailableBalance, got.FrozenBalance)
	}
	if !svc.ReservedFor("ORD-1").Equal(d("400")) {
		t.Fatalf("expected reservation 400, got %s", svc.ReservedFor("ORD-1"))
	}

	// 全部成交 4@100
	trade := &medomain.Trade{
		TradeID: "TRD-1", Symbol: "BTC-USDT",
		BuyOrderID: "ORD-1", SellOrderID: "ORD-2",
		BuyAccountID: buyer.AccountID, SellAccountID: seller.AccountID,
		Price: d("100"), Quantity: d("4"),
	}
	if err := svc.ProcessTrade(ctx, trade); err != nil {
		t.Fatalf("ProcessTrade: %v", err)
	}
	order.Status = medomain.OrderStatusFilled
	order.FilledQuantity = d("4")

	if err := svc.UnfreezeRemainingFunds(ctx, order); err != nil {
		t.Fatalf("UnfreezeRemainingFunds: %v", err)
	}

	got, _ = svc.GetAccount(ctx, buyer.AccountID)
	if !got.Balance.Equal(d("600")) || !got.AvailableBalance.Equal(d("600")) || !got.FrozenBalance.IsZero() {
		t.Errorf("buyer ledger after settlement: balance=%s available=%s frozen=%s",
			got.Balance, got.AvailableBalance, got.FrozenBalance)
	}
	if err := got.CheckInvariant(); err != nil {
		t.Errorf("buyer invariant: %v", err)
	}
	if pos := got.Positions["BTC-USDT"]; pos == nil || !pos.Quantity.Equal(d("4")) {
		t.Errorf("buyer position should be long 4")
	}

	gotSeller, _ := svc.GetAccount(ctx, seller.AccountID)
	if !gotSeller.Balance.Equal(d("400")) || !gotSeller.AvailableBalance.Equal(d("400")) {
		t.Errorf("seller ledger: balance=%s available=%s", gotSeller.Balance, gotSeller.AvailableBalance)
	}
	if pos := gotSeller.Positions["BTC-USDT"]; pos == nil || !pos.Quantity.Equal(d("-4")) {
		t.Errorf("seller position should be short 4")
	}

	// 预占台账必须清空，重复释放为无操作
	if !svc.ReservedFor("ORD-1").IsZero() {
		t.Errorf("reservation leaked: %s", svc.ReservedFor("ORD-1"))
	}
	if err := svc.UnfreezeRemainingFunds(ctx, order); err != nil {
		t.Errorf("double release should be a no-op, got %v", err)
	}
}

func TestInsufficientFundsBlocksOrder(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	buyer := fundedAccount(t, svc, "100")

	order := limitBuy(buyer.AccountID, "ORD-1", "100", "2")
	err := svc.ValidateAndFreezeForOrder(ctx, order, decimal.Zero)
	if !IsInsufficientFunds(err) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	// 失败不得留下任何冻结或预占
	got, _ := svc.GetAccount(ctx, buyer.AccountID)
	if !got.FrozenBalance.IsZero() || !svc.ReservedFor("ORD-1").IsZero() {
		t.Error("failed freeze must not leave frozen funds or reservations")
	}
}

func TestSellOrderNeedsNoReservation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	seller, err := svc.CreateAccount(ctx, "U-1", "USDT")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	order := medomain.NewOrder("ORD-1", seller.AccountID, "BTC-USDT",
		medomain.SideSell, medomain.TypeLimit, d("100"), d("5"))
	if err := svc.ValidateAndFreezeForOrder(ctx, order, decimal.Zero); err != nil {
		t.Fatalf("sell orders must not require funds: %v", err)
	}
	if !svc.ReservedFor("ORD-1").IsZero() {
		t.Error("sell order should not create a reservation")
	}
}

func TestMarketBuyBufferPolicy(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	buyer := fundedAccount(t, svc, "1100")
	seller, _ := svc.CreateAccount(ctx, "U-2", "USDT")

	// 市价买 10，参考价 100：冻结 1100 (含 10% 缓冲)
	order := medomain.NewOrder("ORD-1", buyer.AccountID, "BTC-USDT",
		medomain.SideBuy, medomain.TypeMarket, decimal.Zero, d("10"))
	if err := svc.ValidateAndFreezeForOrder(ctx, order, d("100")); err != nil {
		t.Fatalf("ValidateAndFreezeForOrder: %v", err)
	}
	got, _ := svc.GetAccount(ctx, buyer.AccountID)
	if !got.FrozenBalance.Equal(d("1100")) {
		t.Fatalf("expected frozen 1100, got %s", got.FrozenBalance)
	}

	// 实际成交 10@105 = 1050，在缓冲内
	trade := &medomain.Trade{
		TradeID: "TRD-1", Symbol: "BTC-USDT",
		BuyOrderID: "ORD-1", SellOrderID: "ORD-2",
		BuyAccountID: buyer.AccountID, SellAccountID: seller.AccountID,
		Price: d("105"), Quantity: d("10"),
	}
	if err := svc.ProcessTrade(ctx, trade); err != nil {
		t.Fatalf("ProcessTrade within buffer: %v", err)
	}

	order.FilledQuantity = d("10")
	order.Status = medomain.OrderStatusFilled
	if err := svc.UnfreezeRemainingFunds(ctx, order); err != nil {
		t.Fatalf("UnfreezeRemainingFunds: %v", err)
	}

	got, _ = svc.GetAccount(ctx, buyer.AccountID)
	if !got.FrozenBalance.IsZero() || !got.AvailableBalance.Equal(d("50")) {
		t.Errorf("expected buffer surplus 50 back in available, got available=%s frozen=%s",
			got.AvailableBalance, got.FrozenBalance)
	}
}

func TestSettlementFailsLoudlyWhenReservationBreached(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	buyer := fundedAccount(t, svc, "1000")
	seller, _ := svc.CreateAccount(ctx, "U-2", "USDT")

	order := limitBuy(buyer.AccountID, "ORD-1", "100", "4")
	if err := svc.ValidateAndFreezeForOrder(ctx, order, decimal.Zero); err != nil {
		t.Fatalf("ValidateAndFreezeForOrder: %v", err)
	}

	// 名义金额超过冻结额：结算必须中止而不是让账本变负
	trade := &medomain.Trade{
		TradeID: "TRD-1", Symbol: "BTC-USDT",
		BuyOrderID: "ORD-1", SellOrderID: "ORD-2",
		BuyAccountID: buyer.AccountID, SellAccountID: seller.AccountID,
		Price: d("125"), Quantity: d("4"),
	}
	err := svc.ProcessTrade(ctx, trade)
	if !errors.Is(err, domain.ErrLedgerInvariant) {
		t.Fatalf("expected ledger invariant error, got %v", err)
	}

	// 中止后的账本保持原状
	got, _ := svc.GetAccount(ctx, buyer.AccountID)
	if !got.Balance.Equal(d("1000")) || !got.FrozenBalance.Equal(d("400")) {
		t.Errorf("aborted settlement must not move funds: balance=%s frozen=%s",
			got.Balance, got.FrozenBalance)
	}
}

func TestCancelReleasesReservation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	buyer := fundedAccount(t, svc, "1000")

	order := limitBuy(buyer.AccountID, "ORD-1", "100", "4")
	if err := svc.ValidateAndFreezeForOrder(ctx, order, decimal.Zero); err != nil {
		t.Fatalf("ValidateAndFreezeForOrder: %v", err)
	}

	order.Status = medomain.OrderStatusCancelled
	if err := svc.UnfreezeRemainingFunds(ctx, order); err != nil {
		t.Fatalf("UnfreezeRemainingFunds: %v", err)
	}

	got, _ := svc.GetAccount(ctx, buyer.AccountID)
	if !got.AvailableBalance.Equal(d("1000")) || !got.FrozenBalance.IsZero() {
		t.Errorf("cancel must return all frozen funds: available=%s frozen=%s",
			got.AvailableBalance, got.FrozenBalance)
	}
}

func TestRestingBuyKeepsBacking(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	buyer := fundedAccount(t, svc, "1000")

	order := limitBuy(buyer.AccountID, "ORD-1", "100", "4")
	if err := svc.ValidateAndFreezeForOrder(ctx, order, decimal.Zero); err != nil {
		t.Fatalf("ValidateAndFreezeForOrder: %v", err)
	}

	// 在簿未成交：担保原样保留
	if err := svc.UnfreezeRemainingFunds(ctx, order); err != nil {
		t.Fatalf("UnfreezeRemainingFunds: %v", err)
	}
	got, _ := svc.GetAccount(ctx, buyer.AccountID)
	if !got.FrozenBalance.Equal(d("400")) {
		t.Errorf("resting buy must keep its backing, frozen=%s", got.FrozenBalance)
	}
	if !svc.ReservedFor("ORD-1").Equal(d("400")) {
		t.Errorf("reservation must survive, got %s", svc.ReservedFor("ORD-1"))
	}
}

func TestAdjustReservationForModify(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	buyer := fundedAccount(t, svc, "1000")

	order := limitBuy(buyer.AccountID, "ORD-1", "100", "4")
	if err := svc.ValidateAndFreezeForOrder(ctx, order, decimal.Zero); err != nil {
		t.Fatalf("ValidateAndFreezeForOrder: %v", err)
	}

	// 加量 4 -> 6：追加冻结 200
	if err := svc.AdjustReservationForModify(ctx, order, d("100"), d("6")); err != nil {
		t.Fatalf("AdjustReservationForModify up: %v", err)
	}
	got, _ := svc.GetAccount(ctx, buyer.AccountID)
	if !got.FrozenBalance.Equal(d("600")) {
		t.Errorf("expected frozen 600 after raise, got %s", got.FrozenBalance)
	}

	// 降价 100 -> 50：退还一半
	if err := svc.AdjustReservationForModify(ctx, order, d("50"), d("6")); err != nil {
		t.Fatalf("AdjustReservationForModify down: %v", err)
	}
	got, _ = svc.GetAccount(ctx, buyer.AccountID)
	if !got.FrozenBalance.Equal(d("300")) {
		t.Errorf("expected frozen 300 after reprice, got %s", got.FrozenBalance)
	}

	// 超出可用的加仓被拒，且不动账
	err := svc.AdjustReservationForModify(ctx, order, d("100"), d("20"))
	if !IsInsufficientFunds(err) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	got, _ = svc.GetAccount(ctx, buyer.AccountID)
	if !got.FrozenBalance.Equal(d("300")) {
		t.Errorf("failed adjust must not move funds, frozen=%s", got.FrozenBalance)
	}
}

func TestSelfTradeSettlement(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	account := fundedAccount(t, svc, "1000")

	order := limitBuy(account.AccountID, "ORD-1", "100", "2")
	if err := svc.ValidateAndFreezeForOrder(ctx, order, decimal.Zero); err != nil {
		t.Fatalf("ValidateAndFreezeForOrder: %v", err)
	}

	trade := &medomain.Trade{
		TradeID: "TRD-1", Symbol: "BTC-USDT",
		BuyOrderID: "ORD-1", SellOrderID: "ORD-2",
		BuyAccountID: account.AccountID, SellAccountID: account.AccountID,
		Price: d("100"), Quantity: d("2"),
	}
	if err := svc.ProcessTrade(ctx, trade); err != nil {
		t.Fatalf("self trade must not deadlock: %v", err)
	}

	got, _ := svc.GetAccount(ctx, account.AccountID)
	// 买方扣款 200 + 卖方入账 200：总余额不变
	if !got.Balance.Equal(d("1000")) {
		t.Errorf("self trade must conserve balance, got %s", got.Balance)
	}
	if err := got.CheckInvariant(); err != nil {
		t.Errorf("invariant: %v", err)
	}
	if pos := got.Positions["BTC-USDT"]; pos != nil && !pos.Quantity.IsZero() {
		t.Errorf("self trade should net to flat position, got %s", pos.Quantity)
	}
}

func TestTransactionsListedNewestFirst(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	account := fundedAccount(t, svc, "100")

	if err := svc.Deposit(ctx, account.AccountID, d("50")); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if err := svc.Withdraw(ctx, account.AccountID, d("30")); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}

	txns, err := svc.ListTransactions(ctx, account.AccountID, 10, 0)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txns) != 3 {
		t.Fatalf("expected 3 journal entries, got %d", len(txns))
	}
	// 新流水在前
	if txns[0].Type != domain.TxnWithdraw || !txns[0].Amount.Equal(d("30")) {
		t.Errorf("expected latest entry WITHDRAW 30, got %s %s", txns[0].Type, txns[0].Amount)
	}
	if txns[2].Type != domain.TxnDeposit || !txns[2].Amount.Equal(d("100")) {
		t.Errorf("expected oldest entry DEPOSIT 100, got %s %s", txns[2].Type, txns[2].Amount)
	}
}
