// Package memory 账本仓储的内存实现，用于测试与本地开发
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/wyfcoding/papertrading/internal/ledger/domain"
)

// Repository 内存账本仓储。全局互斥锁保证事务语义：WithTx 内的
// 操作对其他调用方不可见中间态。不支持回滚，仅用于测试。
type Repository struct {
	mu           sync.Mutex
	accounts     map[string]*domain.Account
	holdings     map[string]map[string]*domain.Holding
	transactions map[string][]*domain.Transaction

	// ConflictsToInject SaveAccount 返回 ErrConflict 的剩余次数，
	// 用于验证乐观锁重试路径
	ConflictsToInject int

	nextID uint
}

// New 创建内存仓储
func New() *Repository {
	return &Repository{
		accounts:     make(map[string]*domain.Account),
		holdings:     make(map[string]map[string]*domain.Holding),
		transactions: make(map[string][]*domain.Transaction),
	}
}

// WithTx 在互斥锁内执行 fn
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// GetAccount 按用户查账户
func (r *Repository) GetAccount(_ context.Context, userID string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[userID]
	if !ok {
		return nil, nil
	}
	clone := *account
	return &clone, nil
}

// SaveAccount 保存账户
func (r *Repository) SaveAccount(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ConflictsToInject > 0 {
		r.ConflictsToInject--
		return domain.ErrConflict
	}

	if account.ID == 0 {
		r.nextID++
		account.ID = r.nextID
	} else if existing, ok := r.accounts[account.UserID]; ok {
		if existing.Version != account.Version {
			return domain.ErrConflict
		}
		account.Version++
	}
	clone := *account
	r.accounts[account.UserID] = &clone
	return nil
}

// GetHolding 按用户与标的查持仓
func (r *Repository) GetHolding(_ context.Context, userID, symbol string) (*domain.Holding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	holding, ok := r.holdings[userID][symbol]
	if !ok {
		return nil, nil
	}
	clone := *holding
	return &clone, nil
}

// SaveHolding 保存持仓
func (r *Repository) SaveHolding(_ context.Context, holding *domain.Holding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.holdings[holding.UserID] == nil {
		r.holdings[holding.UserID] = make(map[string]*domain.Holding)
	}
	if holding.ID == 0 {
		r.nextID++
		holding.ID = r.nextID
	}
	clone := *holding
	r.holdings[holding.UserID][holding.Symbol] = &clone
	return nil
}

// DeleteHolding 删除持仓
func (r *Repository) DeleteHolding(_ context.Context, userID, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.holdings[userID], symbol)
	return nil
}

// ListHoldings 列出用户全部持仓，按标的排序保证确定性
func (r *Repository) ListHoldings(_ context.Context, userID string) ([]*domain.Holding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.Holding
	for _, h := range r.holdings[userID] {
		clone := *h
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Symbol < result[j].Symbol })
	return result, nil
}

// SaveTransaction 追加成交流水
func (r *Repository) SaveTransaction(_ context.Context, txn *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	txn.ID = r.nextID
	clone := *txn
	r.transactions[txn.UserID] = append(r.transactions[txn.UserID], &clone)
	return nil
}

// ListTransactions 按时间倒序分页列出流水
func (r *Repository) ListTransactions(_ context.Context, userID string, limit, offset int) ([]*domain.Transaction, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := r.transactions[userID]
	total := int64(len(all))

	reversed := make([]*domain.Transaction, len(all))
	for i, txn := range all {
		clone := *txn
		reversed[len(all)-1-i] = &clone
	}

	if offset >= len(reversed) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(reversed) {
		end = len(reversed)
	}
	return reversed[offset:end], total, nil
}
