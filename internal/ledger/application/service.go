// Package application 账本服务应用层：买卖执行与组合查询
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/papertrading/internal/ledger/domain"
	marketdomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
	"github.com/wyfcoding/papertrading/pkg/logger"
	"github.com/wyfcoding/papertrading/pkg/metrics"
	"github.com/wyfcoding/papertrading/pkg/utils"
)

// TradeNotifier 成交后的告警回调，fire-and-forget 触发
type TradeNotifier interface {
	HandleTrade(ctx context.Context, txn *domain.Transaction)
}

// LedgerService 账本服务。买卖在单一数据库事务内完成余额、持仓、
// 流水三者的变更，账户行携带乐观锁，冲突时整体重试。
type LedgerService struct {
	repo     domain.Repository
	notifier TradeNotifier
	metrics  *metrics.Metrics

	initialBalance decimal.Decimal
	maxRetries     int

	now func() time.Time
}

// NewLedgerService 创建账本服务。notifier 与 m 可为 nil。
func NewLedgerService(repo domain.Repository, notifier TradeNotifier, m *metrics.Metrics, initialBalance decimal.Decimal, maxRetries int) *LedgerService {
	if maxRetries < 1 {
		maxRetries = 3
	}
	return &LedgerService{
		repo:           repo,
		notifier:       notifier,
		metrics:        m,
		initialBalance: initialBalance,
		maxRetries:     maxRetries,
		now:            time.Now,
	}
}

// ExecuteBuy 买入。余额不足时整笔拒绝，不做部分成交。
func (s *LedgerService) ExecuteBuy(ctx context.Context, userID, symbol string, quantity int64, price decimal.Decimal) (*domain.Transaction, error) {
	if err := validateTrade(quantity, price); err != nil {
		s.rejected()
		return nil, err
	}
	symbol = normalizeSymbol(symbol)

	var txn *domain.Transaction
	err := s.withConflictRetry(ctx, func(txCtx context.Context) error {
		account, err := s.getOrCreateAccount(txCtx, userID)
		if err != nil {
			return err
		}

		cost := price.Mul(decimal.NewFromInt(quantity))
		if !account.CanAfford(cost) {
			return domain.ErrInsufficientFunds
		}

		account.Debit(cost)
		if err := s.repo.SaveAccount(txCtx, account); err != nil {
			return err
		}

		holding, err := s.repo.GetHolding(txCtx, userID, symbol)
		if err != nil {
			return err
		}
		if holding == nil {
			holding = &domain.Holding{UserID: userID, Symbol: symbol}
		}
		holding.ApplyBuy(quantity, price)
		if err := s.repo.SaveHolding(txCtx, holding); err != nil {
			return err
		}

		txn = s.newTransaction(userID, symbol, domain.SideBuy, quantity, price, cost)
		return s.repo.SaveTransaction(txCtx, txn)
	})
	if err != nil {
		s.countFailure(err)
		return nil, err
	}

	s.executed(ctx, txn)
	return txn, nil
}

// ExecuteSell 卖出。持仓数量归零时删除整行。
func (s *LedgerService) ExecuteSell(ctx context.Context, userID, symbol string, quantity int64, price decimal.Decimal) (*domain.Transaction, error) {
	if err := validateTrade(quantity, price); err != nil {
		s.rejected()
		return nil, err
	}
	symbol = normalizeSymbol(symbol)

	var txn *domain.Transaction
	err := s.withConflictRetry(ctx, func(txCtx context.Context) error {
		account, err := s.getOrCreateAccount(txCtx, userID)
		if err != nil {
			return err
		}

		holding, err := s.repo.GetHolding(txCtx, userID, symbol)
		if err != nil {
			return err
		}
		if holding == nil || holding.Quantity < quantity {
			return domain.ErrInsufficientShares
		}

		proceeds := price.Mul(decimal.NewFromInt(quantity))
		account.Credit(proceeds)
		if err := s.repo.SaveAccount(txCtx, account); err != nil {
			return err
		}

		holding.ApplySell(quantity, price)
		if holding.Quantity == 0 {
			if err := s.repo.DeleteHolding(txCtx, userID, symbol); err != nil {
				return err
			}
		} else if err := s.repo.SaveHolding(txCtx, holding); err != nil {
			return err
		}

		txn = s.newTransaction(userID, symbol, domain.SideSell, quantity, price, proceeds)
		return s.repo.SaveTransaction(txCtx, txn)
	})
	if err != nil {
		s.countFailure(err)
		return nil, err
	}

	s.executed(ctx, txn)
	return txn, nil
}

// GetAccount 查询账户，不存在时以初始资金创建
func (s *LedgerService) GetAccount(ctx context.Context, userID string) (*domain.Account, error) {
	return s.getOrCreateAccount(ctx, userID)
}

// GetPortfolio 查询账户与全部持仓
func (s *LedgerService) GetPortfolio(ctx context.Context, userID string) (*domain.Account, []*domain.Holding, error) {
	account, err := s.getOrCreateAccount(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	holdings, err := s.repo.ListHoldings(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return account, holdings, nil
}

// GetTransactions 按时间倒序分页查询成交流水
func (s *LedgerService) GetTransactions(ctx context.Context, userID string, page, pageSize int) ([]*domain.Transaction, *utils.Pagination, error) {
	p := utils.NewPagination(page, pageSize, 0)
	txns, total, err := s.repo.ListTransactions(ctx, userID, p.PageSize, p.Offset())
	if err != nil {
		return nil, nil, err
	}
	return txns, utils.NewPagination(p.Page, p.PageSize, total), nil
}

// withConflictRetry 乐观锁冲突时重试整个事务
func (s *LedgerService) withConflictRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err = s.repo.WithTx(ctx, fn)
		if !errors.Is(err, domain.ErrConflict) {
			return err
		}
		logger.Warn(ctx, "Trade hit optimistic lock conflict, retrying", "attempt", attempt+1)
	}
	return err
}

func (s *LedgerService) getOrCreateAccount(ctx context.Context, userID string) (*domain.Account, error) {
	account, err := s.repo.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	account = &domain.Account{UserID: userID, CashBalance: s.initialBalance}
	if err := s.repo.SaveAccount(ctx, account); err != nil {
		return nil, err
	}
	logger.Info(ctx, "Account created", "user_id", userID, "initial_balance", s.initialBalance.String())
	return account, nil
}

func (s *LedgerService) newTransaction(userID, symbol, side string, quantity int64, price, amount decimal.Decimal) *domain.Transaction {
	return &domain.Transaction{
		TransactionID: fmt.Sprintf("TXN-%d", utils.GenID()),
		UserID:        userID,
		Symbol:        symbol,
		Side:          side,
		Quantity:      quantity,
		Price:         price,
		Amount:        amount,
		ExecutedAt:    s.now(),
	}
}

func (s *LedgerService) executed(ctx context.Context, txn *domain.Transaction) {
	if s.metrics != nil {
		s.metrics.TradesTotal.Inc()
	}
	logger.Info(ctx, "Trade executed",
		"transaction_id", txn.TransactionID,
		"user_id", txn.UserID,
		"symbol", txn.Symbol,
		"side", txn.Side,
		"quantity", txn.Quantity,
		"amount", txn.Amount.String(),
	)
	if s.notifier != nil {
		go s.notifier.HandleTrade(context.WithoutCancel(ctx), txn)
	}
}

func (s *LedgerService) countFailure(err error) {
	if s.metrics == nil {
		return
	}
	if errors.Is(err, domain.ErrInsufficientFunds) || errors.Is(err, domain.ErrInsufficientShares) {
		s.metrics.TradesRejectedTotal.Inc()
	}
}

func (s *LedgerService) rejected() {
	if s.metrics != nil {
		s.metrics.TradesRejectedTotal.Inc()
	}
}

func validateTrade(quantity int64, price decimal.Decimal) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	if !price.IsPositive() {
		return domain.ErrInvalidPrice
	}
	return nil
}

func normalizeSymbol(s string) string {
	return marketdomain.NormalizeSymbol(s)
}
