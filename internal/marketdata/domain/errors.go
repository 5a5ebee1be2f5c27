package domain

import "errors"

// 数据源错误分类。上游失败由行情服务的回退链吸收，正常情况下不会
// 以原始错误形态到达接口层。
var (
	// ErrRateLimited 上游限流
	ErrRateLimited = errors.New("provider rate limited")
	// ErrNetwork 网络失败（含超时）
	ErrNetwork = errors.New("provider network error")
	// ErrBadSymbol 非法标的代码
	ErrBadSymbol = errors.New("bad symbol")
	// ErrParseFailure 上游返回无法转换为规范结构
	ErrParseFailure = errors.New("provider response parse failure")
	// ErrInvalidTimeframe 非法时间范围
	ErrInvalidTimeframe = errors.New("invalid timeframe")
)
