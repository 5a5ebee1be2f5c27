// Package contextx 提供事务在 context 中的传递
package contextx

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// WithTx 将 gorm 事务放入 context
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFrom 从 context 取出 gorm 事务，不存在时返回 nil
func TxFrom(ctx context.Context) *gorm.DB {
	tx, _ := ctx.Value(txKey{}).(*gorm.DB)
	return tx
}
