// Package cache provides a Redis-backed cache for the retrieval stage. Only
// the deterministic part of a query is cached (filtered chunks plus
// confidence, keyed by question and k); generated answers depend on
// per-session conversation history and are never cached. Entries are
// invalidated whenever the document index changes.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"docqa/internal/rag"
	"docqa/pkg/config"
	pkgredis "docqa/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "retrieval:"

type RetrievalCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(client *pkgredis.Client, cfg config.RedisConfig) *RetrievalCache {
	return &RetrievalCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "retrieval-cache"),
	}
}

func (c *RetrievalCache) Get(ctx context.Context, question string, k int) (*rag.RetrievalResult, bool) {
	key := c.buildKey(question, k)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if pkgredis.IsNilError(err) {
			c.misses.Add(1)
			return nil, false
		}
		c.logger.Error("cache get failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	var result rag.RetrievalResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", key)
	return &result, true
}

func (c *RetrievalCache) Set(ctx context.Context, question string, k int, result *rag.RetrievalResult) {
	key := c.buildKey(question, k)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns a cached retrieval result or computes and stores it,
// collapsing concurrent identical lookups with singleflight. The bool
// reports whether the result came from cache.
func (c *RetrievalCache) GetOrCompute(
	ctx context.Context,
	question string,
	k int,
	computeFn func() (*rag.RetrievalResult, error),
) (*rag.RetrievalResult, bool, error) {
	if result, ok := c.Get(ctx, question, k); ok {
		return result, true, nil
	}
	key := c.buildKey(question, k)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if result, ok := c.Get(ctx, question, k); ok {
			return result, nil
		}
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, question, k, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*rag.RetrievalResult), false, nil
}

// Invalidate drops every cached retrieval result. Called after documents are
// ingested or the index is reset.
func (c *RetrievalCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating retrieval cache: %w", err)
	}
	c.logger.Info("retrieval cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *RetrievalCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *RetrievalCache) buildKey(question string, k int) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(question)), " ")
	raw := fmt.Sprintf("%s|k=%d", normalized, k)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
