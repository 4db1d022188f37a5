package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const cacheKeyPrefix = "pipeline:conversation:"

// RedisCache is a ProcessingCache backed by Redis. Entries carry a TTL so
// expiry needs no janitor.
type RedisCache struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisCache creates a Redis-backed cache. ttl <= 0 uses DefaultCacheTTL.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("dispatch.internal.pipeline.cache"),
	}
}

func cacheKey(conversationID string) string {
	return cacheKeyPrefix + conversationID
}

func (c *RedisCache) Get(ctx context.Context, conversationID string) (*CacheEntry, error) {
	ctx, span := c.tracer.Start(ctx, "pipeline.cache.get")
	defer span.End()

	data, err := c.redis.Get(ctx, cacheKey(conversationID)).Bytes()
	if err == redis.Nil {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("pipeline: cache get: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("pipeline: decode cache entry: %w", err)
	}
	return &entry, nil
}

func (c *RedisCache) Put(ctx context.Context, entry *CacheEntry) error {
	if entry == nil || entry.ConversationID == "" {
		return ErrEntryNotFound
	}
	ctx, span := c.tracer.Start(ctx, "pipeline.cache.put")
	defer span.End()

	stored := *entry
	if stored.ExpiresAt.IsZero() {
		stored.ExpiresAt = time.Now().UTC().Add(c.ttl)
	}
	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("pipeline: encode cache entry: %w", err)
	}

	ttl := time.Until(stored.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := c.redis.Set(ctx, cacheKey(entry.ConversationID), data, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("pipeline: cache put: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, conversationID string) error {
	ctx, span := c.tracer.Start(ctx, "pipeline.cache.delete")
	defer span.End()

	if err := c.redis.Del(ctx, cacheKey(conversationID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("pipeline: cache delete: %w", err)
	}
	return nil
}

var _ ProcessingCache = (*RedisCache)(nil)
