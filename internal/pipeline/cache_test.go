package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/dispatch-ai-platform/internal/analysis"
)

func summaryFixture() *analysis.ConversationSummary {
	return &analysis.ConversationSummary{
		ConversationID: "conv-1",
		AccountID:      "acct-1",
		PrimaryIntent:  "service_request",
		SentimentLabel: "neutral",
	}
}

func entryFixture() *CacheEntry {
	now := time.Now().UTC()
	return &CacheEntry{
		ConversationID: "conv-1",
		AccountID:      "acct-1",
		Status:         EntryCompleted,
		Summary:        summaryFixture(),
		StageMillis:    map[string]int64{"analyze": 3},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	cache := NewMemoryCache(time.Hour)
	ctx := context.Background()

	_, err := cache.Get(ctx, "conv-1")
	assert.ErrorIs(t, err, ErrEntryNotFound)

	require.NoError(t, cache.Put(ctx, entryFixture()))

	got, err := cache.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, EntryCompleted, got.Status)
	assert.Equal(t, "service_request", got.Summary.PrimaryIntent)
	assert.False(t, got.ExpiresAt.IsZero())

	require.NoError(t, cache.Delete(ctx, "conv-1"))
	_, err = cache.Get(ctx, "conv-1")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryCache(time.Hour)
	base := time.Now().UTC()
	cache.now = func() time.Time { return base }

	require.NoError(t, cache.Put(context.Background(), entryFixture()))

	cache.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, err := cache.Get(context.Background(), "conv-1")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	cache := NewRedisCache(client, time.Hour)
	ctx := context.Background()

	_, err := cache.Get(ctx, "conv-1")
	assert.ErrorIs(t, err, ErrEntryNotFound)

	require.NoError(t, cache.Put(ctx, entryFixture()))

	got, err := cache.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, EntryCompleted, got.Status)
	assert.Equal(t, "acct-1", got.AccountID)
	assert.Equal(t, int64(3), got.StageMillis["analyze"])

	ttl := srv.TTL(cacheKey("conv-1"))
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, cache.Delete(ctx, "conv-1"))
	_, err = cache.Get(ctx, "conv-1")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestRedisCacheExpiry(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	cache := NewRedisCache(client, time.Minute)

	require.NoError(t, cache.Put(context.Background(), entryFixture()))
	srv.FastForward(2 * time.Minute)

	_, err := cache.Get(context.Background(), "conv-1")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestCacheEntryExpired(t *testing.T) {
	now := time.Now().UTC()
	entry := &CacheEntry{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, entry.Expired(now))
	assert.True(t, entry.Expired(now.Add(2*time.Minute)))

	noExpiry := &CacheEntry{}
	assert.False(t, noExpiry.Expired(now))
}
