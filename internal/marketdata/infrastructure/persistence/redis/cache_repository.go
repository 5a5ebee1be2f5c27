// Package redis 行情缓存的 Redis 实现
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wyfcoding/papertrading/internal/marketdata/domain"
	"github.com/wyfcoding/papertrading/pkg/cache"
	"github.com/wyfcoding/papertrading/pkg/logger"
)

const keyPrefix = "marketdata:"

// CacheRepository 基于 Redis 的行情缓存仓储。条目不设 Redis 级过期，
// 新鲜度判定交给应用层的 TTL 逻辑，过期数据要保留下来用作降级。
type CacheRepository struct {
	cache *cache.RedisCache
}

// NewCacheRepository 创建缓存仓储
func NewCacheRepository(c *cache.RedisCache) *CacheRepository {
	return &CacheRepository{cache: c}
}

// Get 读取缓存条目。key 不存在或条目损坏时返回 nil, nil。
func (r *CacheRepository) Get(ctx context.Context, key domain.CacheKey) (*domain.CacheEntry, error) {
	raw, err := r.cache.Get(ctx, key.String())
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		logger.Warn(ctx, "Corrupt cache entry dropped", "key", key.String(), "error", err)
		return nil, nil
	}
	return &entry, nil
}

// Put 写入缓存条目
func (r *CacheRepository) Put(ctx context.Context, key domain.CacheKey, payload any, fetchedAt time.Time) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	entry := domain.CacheEntry{Payload: data, FetchedAt: fetchedAt}
	return r.cache.SetJSON(ctx, key.String(), entry, 0)
}

// Clear 清空全部行情缓存
func (r *CacheRepository) Clear(ctx context.Context) error {
	return r.cache.DeleteByPrefix(ctx, keyPrefix)
}
