package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache wraps a Provider with a Redis-backed embedding cache. Memory
// text is re-embedded on every restart otherwise; caching by content
// hash makes that idempotent. Redis trouble degrades to the inner
// provider with a warning, never to an error.
type Cache struct {
	inner  Provider
	rdb    *redis.Client
	model  string
	ttl    time.Duration
	logger *zap.Logger
}

// NewCache connects to Redis and wraps inner. Entries expire after ttl;
// a ttl of 0 keeps them for 7 days.
func NewCache(inner Provider, redisURL, model string, ttl time.Duration, logger *zap.Logger) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl == 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Cache{inner: inner, rdb: rdb, model: model, ttl: ttl, logger: logger}, nil
}

// Embed serves cached vectors where possible and delegates the misses.
func (c *Cache) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		if vec := c.lookup(ctx, text); vec != nil {
			out[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("embedding cache: got %d vectors for %d texts", len(vectors), len(missTexts))
	}
	for j, vec := range vectors {
		out[missIdx[j]] = vec
		c.store(ctx, missTexts[j], vec)
	}
	return out, nil
}

func (c *Cache) lookup(ctx context.Context, text string) []float32 {
	data, err := c.rdb.Get(ctx, c.key(text)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("embedding cache read failed", zap.Error(err))
		}
		return nil
	}
	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		c.logger.Warn("embedding cache entry corrupt", zap.Error(err))
		return nil
	}
	return vec
}

func (c *Cache) store(ctx context.Context, text string, vec []float32) {
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.key(text), data, c.ttl).Err(); err != nil {
		c.logger.Warn("embedding cache write failed", zap.Error(err))
	}
}

func (c *Cache) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "mnemo:emb:" + c.model + ":" + hex.EncodeToString(sum[:])
}

// UpdateCorpus forwards to the inner provider when it maintains a corpus.
func (c *Cache) UpdateCorpus(ctx context.Context, texts []string) error {
	if idx, ok := c.inner.(CorpusIndexer); ok {
		return idx.UpdateCorpus(ctx, texts)
	}
	return nil
}

// Dimension reports the inner provider's vector dimension.
func (c *Cache) Dimension() int { return c.inner.Dimension() }

// Close releases the Redis connection.
func (c *Cache) Close() error { return c.rdb.Close() }
