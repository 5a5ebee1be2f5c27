// 包 domain 账本服务的领域模型
package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Account 资金账户实体。每个用户一个账户，首次交易或查询时
// 以初始资金惰性创建。
type Account struct {
	gorm.Model
	// 用户 ID，全局唯一
	UserID string `gorm:"column:user_id;type:varchar(32);uniqueIndex;not null" json:"user_id"`
	// 现金余额
	CashBalance decimal.Decimal `gorm:"column:cash_balance;type:decimal(32,8);default:0;not null" json:"cash_balance"`
	// 乐观锁版本号
	Version int64 `gorm:"column:version;default:0;not null" json:"version"`
}

// CanAfford 余额是否足以支付 cost
func (a *Account) CanAfford(cost decimal.Decimal) bool {
	return a.CashBalance.GreaterThanOrEqual(cost)
}

// Debit 扣减现金余额
func (a *Account) Debit(amount decimal.Decimal) {
	a.CashBalance = a.CashBalance.Sub(amount)
}

// Credit 增加现金余额
func (a *Account) Credit(amount decimal.Decimal) {
	a.CashBalance = a.CashBalance.Add(amount)
}

// Holding 持仓实体。数量归零时整行删除，持仓列表中不存在数量为零的行。
type Holding struct {
	gorm.Model
	// 用户 ID
	UserID string `gorm:"column:user_id;type:varchar(32);uniqueIndex:idx_user_symbol;not null" json:"user_id"`
	// 标的代码
	Symbol string `gorm:"column:symbol;type:varchar(16);uniqueIndex:idx_user_symbol;not null" json:"symbol"`
	// 持有数量
	Quantity int64 `gorm:"column:quantity;not null" json:"quantity"`
	// 摊薄成本价
	AvgCost decimal.Decimal `gorm:"column:avg_cost;type:decimal(32,8);default:0;not null" json:"avg_cost"`
	// 最近一次成交价（最近更新时间由 UpdatedAt 承担）
	LastTradePrice decimal.Decimal `gorm:"column:last_trade_price;type:decimal(32,8);default:0;not null" json:"last_trade_price"`
}

// ApplyBuy 买入后更新数量与摊薄成本
func (h *Holding) ApplyBuy(quantity int64, price decimal.Decimal) {
	oldCost := h.AvgCost.Mul(decimal.NewFromInt(h.Quantity))
	newCost := price.Mul(decimal.NewFromInt(quantity))
	h.Quantity += quantity
	h.AvgCost = oldCost.Add(newCost).Div(decimal.NewFromInt(h.Quantity))
	h.LastTradePrice = price
}

// ApplySell 卖出后扣减数量，成本价不变
func (h *Holding) ApplySell(quantity int64, price decimal.Decimal) {
	h.Quantity -= quantity
	h.LastTradePrice = price
}

// 交易方向
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Transaction 成交流水实体。只追加，不更新。
type Transaction struct {
	gorm.Model
	// 流水号 (业务主键)
	TransactionID string `gorm:"column:transaction_id;type:varchar(32);uniqueIndex;not null" json:"transaction_id"`
	// 用户 ID
	UserID string `gorm:"column:user_id;type:varchar(32);index;not null" json:"user_id"`
	// 标的代码
	Symbol string `gorm:"column:symbol;type:varchar(16);not null" json:"symbol"`
	// 方向（BUY / SELL）
	Side string `gorm:"column:side;type:varchar(8);not null" json:"side"`
	// 成交数量
	Quantity int64 `gorm:"column:quantity;not null" json:"quantity"`
	// 成交价
	Price decimal.Decimal `gorm:"column:price;type:decimal(32,8);not null" json:"price"`
	// 成交金额 = 数量 * 成交价
	Amount decimal.Decimal `gorm:"column:amount;type:decimal(32,8);not null" json:"amount"`
	// 成交时间
	ExecutedAt time.Time `gorm:"column:executed_at;not null" json:"executed_at"`
}
