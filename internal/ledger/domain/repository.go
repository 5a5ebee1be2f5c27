package domain

import "context"

// Repository 账本仓储接口。WithTx 内的所有操作落在同一事务，
// SaveAccount 携带乐观锁版本检查。
type Repository interface {
	// WithTx 在单一事务内执行 fn，fn 返回错误时整体回滚
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	// GetAccount 按用户查账户，不存在返回 nil
	GetAccount(ctx context.Context, userID string) (*Account, error)
	// SaveAccount 保存账户。已存在的账户按版本号条件更新，
	// 版本不匹配返回 ErrConflict。
	SaveAccount(ctx context.Context, account *Account) error

	// GetHolding 按用户与标的查持仓，不存在返回 nil
	GetHolding(ctx context.Context, userID, symbol string) (*Holding, error)
	// SaveHolding 保存持仓
	SaveHolding(ctx context.Context, holding *Holding) error
	// DeleteHolding 删除持仓（数量归零时）
	DeleteHolding(ctx context.Context, userID, symbol string) error
	// ListHoldings 列出用户全部持仓
	ListHoldings(ctx context.Context, userID string) ([]*Holding, error)

	// SaveTransaction 追加成交流水
	SaveTransaction(ctx context.Context, txn *Transaction) error
	// ListTransactions 按时间倒序分页列出用户流水
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*Transaction, int64, error)
}
