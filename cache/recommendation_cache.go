package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"MelodyMind/logger"
)

const (
	recommendKey      = "reco:%s:%s:%d:v%d"    // userID, mood, limit, catalog version
	recommendIndexKey = "reco:%s:keys"         // Set: 该用户所有结果 key
	catalogVersionKey = "reco:catalog:version" // 曲库每次变化加一
)

// RecommendationCache 推荐结果短期缓存。写日记后按用户失效，曲库变化后
// 所有用户失效
type RecommendationCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRecommendationCache(client *redis.Client, ttl time.Duration) *RecommendationCache {
	return &RecommendationCache{client: client, ttl: ttl}
}

func (c *RecommendationCache) key(ctx context.Context, userID, moodLabel string, limit int) (string, error) {
	version, err := c.client.Get(ctx, catalogVersionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("get catalog version: %w", err)
	}
	return fmt.Sprintf(recommendKey, userID, moodLabel, limit, version), nil
}

// Get 命中时把结果解码到 dst
func (c *RecommendationCache) Get(ctx context.Context, userID, moodLabel string, limit int, dst any) (bool, error) {
	key, err := c.key(ctx, userID, moodLabel, limit)
	if err != nil {
		return false, err
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get recommendation: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode recommendation: %w", err)
	}
	return true, nil
}

func (c *RecommendationCache) Set(ctx context.Context, userID, moodLabel string, limit int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode recommendation: %w", err)
	}
	key, err := c.key(ctx, userID, moodLabel, limit)
	if err != nil {
		return err
	}
	index := fmt.Sprintf(recommendIndexKey, userID)

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, data, c.ttl)
	pipe.SAdd(ctx, index, key)
	pipe.Expire(ctx, index, c.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Invalidate 删除该用户的全部缓存结果
func (c *RecommendationCache) Invalidate(ctx context.Context, userID string) error {
	index := fmt.Sprintf(recommendIndexKey, userID)
	keys, err := c.client.SMembers(ctx, index).Result()
	if err != nil {
		return fmt.Errorf("list cached recommendations: %w", err)
	}
	keys = append(keys, index)
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete cached recommendations: %w", err)
	}
	logger.Debug("推荐缓存已失效", logger.String("userId", userID), logger.Int("keys", len(keys)-1))
	return nil
}

// InvalidateCatalog 新歌上传或本地扫描后调用。旧版本的 key 不再被读取，
// 等 TTL 自然过期
func (c *RecommendationCache) InvalidateCatalog(ctx context.Context) error {
	version, err := c.client.Incr(ctx, catalogVersionKey).Result()
	if err != nil {
		return fmt.Errorf("bump catalog version: %w", err)
	}
	logger.Debug("曲库版本更新", logger.Any("version", version))
	return nil
}
