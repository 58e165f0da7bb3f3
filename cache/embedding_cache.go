package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const embeddingKey = "embed:%s:%s" // model, sha256(text)

// EmbeddingCache 缓存文本向量，key 包含模型 ID，换模型后自动失效
type EmbeddingCache struct {
	client  *redis.Client
	modelID string
	ttl     time.Duration
}

func NewEmbeddingCache(client *redis.Client, modelID string, ttl time.Duration) *EmbeddingCache {
	return &EmbeddingCache{client: client, modelID: modelID, ttl: ttl}
}

func (c *EmbeddingCache) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf(embeddingKey, c.modelID, hex.EncodeToString(sum[:]))
}

// GetVector 未命中时返回 (nil, false, nil)
func (c *EmbeddingCache) GetVector(ctx context.Context, text string) ([]float64, bool, error) {
	data, err := c.client.Get(ctx, c.key(text)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get embedding: %w", err)
	}
	var vec []float64
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, false, fmt.Errorf("decode embedding: %w", err)
	}
	return vec, true, nil
}

func (c *EmbeddingCache) SetVector(ctx context.Context, text string, vec []float64) error {
	data, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}
	return c.client.Set(ctx, c.key(text), data, c.ttl).Err()
}
