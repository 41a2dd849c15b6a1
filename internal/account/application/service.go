// Package application 账户服务的应用层：资金预占、结算与持仓簿记。
package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/xerrors"

	"github.com/wyfcoding/exchange/internal/account/domain"
	medomain "github.com/wyfcoding/exchange/internal/matchingengine/domain"
)

// marketBuyBuffer 市价买单的预占缓冲：成交价未知，按参考价上浮 10% 冻结。
// 极薄对手盘下仍可能不足，此时结算侧会大声失败而不是让可用余额变负。
var marketBuyBuffer = decimal.NewFromFloat(1.10)

// 业务错误码
const (
	codeInsufficientFunds = 40201
	codeAccountNotFound   = 40401
	codeNoReferencePrice  = 40002
)

// NewInsufficientFundsError 资金不足 (容量错误)：订单不得进入撮合引擎
func NewInsufficientFundsError(accountID string, required, available decimal.Decimal) *xerrors.Error {
	return xerrors.New(xerrors.ErrLimitExceeded, codeInsufficientFunds,
		"insufficient available balance", "", nil).
		WithContext("account_id", accountID).
		WithContext("required", required.String()).
		WithContext("available", available.String())
}

// IsInsufficientFunds 判断是否为资金不足错误
func IsInsufficientFunds(err error) bool {
	if e, ok := err.(*xerrors.Error); ok {
		return e.Code == codeInsufficientFunds
	}
	return false
}

// Service 账户应用服务：余额/持仓账本的唯一写入口。
// 锁域与撮合引擎相互独立：按账户 ID 粒度互斥，不同账户并行结算；
// 一笔成交同时触达买卖双方账户，按账户 ID 字典序取锁以避免死锁。
type Service struct {
	accounts     domain.AccountRepository
	transactions domain.TransactionRepository
	logger       *slog.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	// 订单维度的预占台账：orderID -> 尚未被成交消耗也未释放的冻结额。
	// 预占必须在订单进入引擎之前建立，并且在每条退出路径上恰好释放一次。
	resMu        sync.Mutex
	reservations map[string]decimal.Decimal
}

// NewService 构造函数
func NewService(accounts domain.AccountRepository, transactions domain.TransactionRepository, logger *slog.Logger) *Service {
	return &Service{
		accounts:     accounts,
		transactions: transactions,
		logger:       logger.With("module", "account_service"),
		locks:        make(map[string]*sync.Mutex),
		reservations: make(map[string]decimal.Decimal),
	}
}

// accountLock 取账户级互斥锁 (惰性创建，进程生命周期内不回收)
func (s *Service) accountLock(accountID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[accountID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[accountID] = mu
	}
	return mu
}

// lockPair 按字典序锁住两个账户，返回解锁函数。同一账户只锁一次。
func (s *Service) lockPair(a, b string) func() {
	if a == b {
		mu := s.accountLock(a)
		mu.Lock()
		return mu.Unlock
	}
	first, second := a, b
	if second < first {
		first, second = second, first
	}
	mu1, mu2 := s.accountLock(first), s.accountLock(second)
	mu1.Lock()
	mu2.Lock()
	return func() {
		mu2.Unlock()
		mu1.Unlock()
	}
}

// CreateAccount 开户
func (s *Service) CreateAccount(ctx context.Context, userID, currency string) (*domain.Account, error) {
	accountID := fmt.Sprintf("ACC-%d", idgen.GenID())
	account := domain.NewAccount(accountID, userID, currency)
	if err := s.accounts.Save(ctx, account); err != nil {
		return nil, err
	}
	s.logger.Info("account created", "account_id", accountID, "user_id", userID)
	return account, nil
}

// GetAccount 查询账户
func (s *Service) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, xerrors.New(xerrors.ErrNotFound, codeAccountNotFound, "account not found", "", nil).
			WithContext("account_id", accountID)
	}
	return account, nil
}

// Deposit 充值
func (s *Service) Deposit(ctx context.Context, accountID string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return xerrors.InvalidArg("deposit amount must be positive")
	}

	mu := s.accountLock(accountID)
	mu.Lock()
	defer mu.Unlock()

	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	account.Deposit(amount)
	if err := account.CheckInvariant(); err != nil {
		return err
	}
	if err := s.accounts.Save(ctx, account); err != nil {
		return err
	}
	return s.journal(ctx, accountID, domain.TxnDeposit, amount, "")
}

// Withdraw 提现，只允许动用可用余额
func (s *Service) Withdraw(ctx context.Context, accountID string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return xerrors.InvalidArg("withdraw amount must be positive")
	}

	mu := s.accountLock(accountID)
	mu.Lock()
	defer mu.Unlock()

	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.Withdraw(amount) {
		return NewInsufficientFundsError(accountID, amount, account.AvailableBalance)
	}
	if err := account.CheckInvariant(); err != nil {
		return err
	}
	if err := s.accounts.Save(ctx, account); err != nil {
		return err
	}
	return s.journal(ctx, accountID, domain.TxnWithdraw, amount, "")
}

// requiredReservation 计算订单需要的资金预占。
// 限价买单 = 价格 x 数量；市价买单按参考价上浮 10%；卖单消耗持仓不占资金。
func requiredReservation(order *medomain.Order, refPrice decimal.Decimal) (decimal.Decimal, error) {
	if order.Side == medomain.SideSell {
		return decimal.Zero, nil
	}
	if order.Type == medomain.TypeLimit {
		return order.Price.Mul(order.Quantity), nil
	}
	if refPrice.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, xerrors.New(xerrors.ErrInvalidArg, codeNoReferencePrice,
			"no reference price for market buy reservation", "", nil)
	}
	return refPrice.Mul(order.Quantity).Mul(marketBuyBuffer), nil
}

// ValidateAndFreezeForOrder 下单前的资金预占。
// 校验可用余额后把 required 从可用原子划入冻结；失败时调用方不得把订单提交给引擎。
// refPrice 只在市价买单时使用，作为未知成交价的估算基准。
func (s *Service) ValidateAndFreezeForOrder(ctx context.Context, order *medomain.Order, refPrice decimal.Decimal) error {
	required, err := requiredReservation(order, refPrice)
	if err != nil {
		return err
	}
	if required.IsZero() {
		return nil
	}

	mu := s.accountLock(order.AccountID)
	mu.Lock()
	defer mu.Unlock()

	account, err := s.GetAccount(ctx, order.AccountID)
	if err != nil {
		return err
	}
	if !account.Freeze(required) {
		return NewInsufficientFundsError(order.AccountID, required, account.AvailableBalance)
	}
	if err := account.CheckInvariant(); err != nil {
		return err
	}
	if err := s.accounts.Save(ctx, account); err != nil {
		return err
	}

	s.resMu.Lock()
	s.reservations[order.OrderID] = required
	s.resMu.Unlock()

	return s.journal(ctx, order.AccountID, domain.TxnFreeze, required, order.OrderID)
}

// takeReservation 从台账取出并扣减订单的待释放额度。
// release 为负时表示追加 (改单加量)。幂等：台账无记录时返回 zero,false。
func (s *Service) takeReservation(orderID string, amount decimal.Decimal) (decimal.Decimal, bool) {
	s.resMu.Lock()
	defer s.resMu.Unlock()
	residual, ok := s.reservations[orderID]
	if !ok {
		return decimal.Zero, false
	}
	release := decimal.Min(residual, amount)
	left := residual.Sub(release)
	if left.IsPositive() {
		s.reservations[orderID] = left
	} else {
		delete(s.reservations, orderID)
	}
	return release, true
}

// reservationResidual 读取订单当前剩余预占 (测试与改单路径使用)
func (s *Service) reservationResidual(orderID string) decimal.Decimal {
	s.resMu.Lock()
	defer s.resMu.Unlock()
	return s.reservations[orderID]
}

// ReservedFor 订单当前仍被冻结的预占额
func (s *Service) ReservedFor(orderID string) decimal.Decimal {
	return s.reservationResidual(orderID)
}

// UnfreezeForOrder 整单释放 (拒绝/异常路径)：退还该订单尚存的全部预占。
// 幂等：台账已无记录时为无操作。
func (s *Service) UnfreezeForOrder(ctx context.Context, order *medomain.Order) error {
	return s.releaseReservation(ctx, order, decimal.Zero)
}

// UnfreezeRemainingFunds 订单到达终态或在簿稳定后释放未用部分。
// 在簿的限价买单仍需保留 价格 x 剩余数量 作为挂单担保，只释放超额部分
// (如市价买单的 10% 缓冲)；终态订单担保为零，残余全部退还。
// 已被成交消耗的部分不在此处处理，由 ProcessTrade 的扣款移除。
func (s *Service) UnfreezeRemainingFunds(ctx context.Context, order *medomain.Order) error {
	backing := decimal.Zero
	if !order.Status.IsTerminal() && order.Side == medomain.SideBuy && order.Type == medomain.TypeLimit {
		backing = order.Price.Mul(order.RemainingQuantity())
	}
	return s.releaseReservation(ctx, order, backing)
}

// releaseReservation 把订单预占降到 keep，多余部分解冻回可用
func (s *Service) releaseReservation(ctx context.Context, order *medomain.Order, keep decimal.Decimal) error {
	s.resMu.Lock()
	residual, ok := s.reservations[order.OrderID]
	if !ok || residual.LessThanOrEqual(keep) {
		s.resMu.Unlock()
		return nil
	}
	release := residual.Sub(keep)
	if keep.IsPositive() {
		s.reservations[order.OrderID] = keep
	} else {
		delete(s.reservations, order.OrderID)
	}
	s.resMu.Unlock()

	mu := s.accountLock(order.AccountID)
	mu.Lock()
	defer mu.Unlock()

	account, err := s.GetAccount(ctx, order.AccountID)
	if err != nil {
		return err
	}
	if !account.Unfreeze(release) {
		return fmt.Errorf("%w: unfreeze %s exceeds frozen %s for order %s",
			domain.ErrLedgerInvariant, release, account.FrozenBalance, order.OrderID)
	}
	if err := account.CheckInvariant(); err != nil {
		return err
	}
	if err := s.accounts.Save(ctx, account); err != nil {
		return err
	}
	return s.journal(ctx, order.AccountID, domain.TxnUnfreeze, release, order.OrderID)
}

// AdjustReservationForModify 改单前重整预占：新担保 = 新价 x 新剩余数量。
// 需要追加时立即冻结差额 (失败则改单被拒)；减少时退还差额。
func (s *Service) AdjustReservationForModify(ctx context.Context, order *medomain.Order, newPrice, newQuantity decimal.Decimal) error {
	if order.Side != medomain.SideBuy {
		return nil
	}
	newBacking := newPrice.Mul(newQuantity.Sub(order.FilledQuantity))
	residual := s.reservationResidual(order.OrderID)

	if newBacking.GreaterThan(residual) {
		delta := newBacking.Sub(residual)

		mu := s.accountLock(order.AccountID)
		mu.Lock()
		defer mu.Unlock()

		account, err := s.GetAccount(ctx, order.AccountID)
		if err != nil {
			return err
		}
		if !account.Freeze(delta) {
			return NewInsufficientFundsError(order.AccountID, delta, account.AvailableBalance)
		}
		if err := s.accounts.Save(ctx, account); err != nil {
			return err
		}
		s.resMu.Lock()
		s.reservations[order.OrderID] = s.reservations[order.OrderID].Add(delta)
		s.resMu.Unlock()
		return s.journal(ctx, order.AccountID, domain.TxnFreeze, delta, order.OrderID)
	}

	return s.releaseReservation(ctx, order, newBacking)
}

// ProcessTrade 结算一笔成交。
// 买方：从冻结扣款 (余额与冻结同降)，持仓增加；
// 卖方：货款入账 (余额与可用同升)，持仓减少。
// 两个账户在同一临界区内完成，结算后双边复核资金恒等式。
func (s *Service) ProcessTrade(ctx context.Context, trade *medomain.Trade) error {
	notional := trade.Notional()

	unlock := s.lockPair(trade.BuyAccountID, trade.SellAccountID)
	defer unlock()

	buyer, err := s.GetAccount(ctx, trade.BuyAccountID)
	if err != nil {
		return fmt.Errorf("settle trade %s: %w", trade.TradeID, err)
	}

	var seller *domain.Account
	if trade.SellAccountID == trade.BuyAccountID {
		seller = buyer
	} else {
		seller, err = s.GetAccount(ctx, trade.SellAccountID)
		if err != nil {
			return fmt.Errorf("settle trade %s: %w", trade.TradeID, err)
		}
	}

	// 买方扣款：冻结不足说明预占被击穿 (市价缓冲不够) 或存在簿记缺陷，
	// 必须中止结算而不是让账本变负。
	if !buyer.DeductFrozen(notional) {
		return fmt.Errorf("%w: trade %s notional %s exceeds frozen %s of buyer %s",
			domain.ErrLedgerInvariant, trade.TradeID, notional, buyer.FrozenBalance, trade.BuyAccountID)
	}
	s.takeReservation(trade.BuyOrderID, notional)
	buyer.Position(trade.Symbol).Apply(trade.Price, trade.Quantity)

	seller.Deposit(notional)
	seller.Position(trade.Symbol).Apply(trade.Price, trade.Quantity.Neg())

	if err := buyer.CheckInvariant(); err != nil {
		return err
	}
	if err := seller.CheckInvariant(); err != nil {
		return err
	}

	if err := s.accounts.Save(ctx, buyer); err != nil {
		return err
	}
	if seller != buyer {
		if err := s.accounts.Save(ctx, seller); err != nil {
			return err
		}
	}

	if err := s.journal(ctx, trade.BuyAccountID, domain.TxnTrade, notional.Neg(), trade.TradeID); err != nil {
		return err
	}
	return s.journal(ctx, trade.SellAccountID, domain.TxnTrade, notional, trade.TradeID)
}

// PositionView 持仓视图：落库字段 + 按标记价现算的未实现盈亏
type PositionView struct {
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	AvgPrice      decimal.Decimal `json:"avg_price"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

// GetPositions 查询账户全部持仓。
// markPrices 为 symbol -> 标记价；缺失标记价的持仓未实现盈亏记零。
func (s *Service) GetPositions(ctx context.Context, accountID string, markPrices map[string]decimal.Decimal) ([]*PositionView, error) {
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	views := make([]*PositionView, 0, len(account.Positions))
	for symbol, position := range account.Positions {
		view := &PositionView{
			Symbol:      symbol,
			Quantity:    position.Quantity,
			AvgPrice:    position.AvgPrice,
			RealizedPnL: position.RealizedPnL,
		}
		if mark, ok := markPrices[symbol]; ok && mark.IsPositive() {
			view.UnrealizedPnL = position.UnrealizedPnL(mark)
		}
		views = append(views, view)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Symbol < views[j].Symbol })
	return views, nil
}

// ListTransactions 查询账户资金流水 (时间倒序分页)
func (s *Service) ListTransactions(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.transactions.ListByAccount(ctx, accountID, limit, offset)
}

// journal 落一条资金流水
func (s *Service) journal(ctx context.Context, accountID string, typ domain.TransactionType, amount decimal.Decimal, refID string) error {
	return s.transactions.Save(ctx, &domain.Transaction{
		TransactionID: fmt.Sprintf("TXN-%d", idgen.GenID()),
		AccountID:     accountID,
		Type:          typ,
		Amount:        amount,
		ReferenceID:   refID,
	})
}
