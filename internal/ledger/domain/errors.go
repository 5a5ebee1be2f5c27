package domain

import "errors"

var (
	// ErrInsufficientFunds 现金余额不足
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInsufficientShares 持仓数量不足
	ErrInsufficientShares = errors.New("insufficient shares")
	// ErrInvalidQuantity 数量必须为正整数
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrInvalidPrice 成交价必须为正
	ErrInvalidPrice = errors.New("price must be positive")
	// ErrConflict 乐观锁冲突且重试耗尽
	ErrConflict = errors.New("account modified concurrently, retries exhausted")
)
