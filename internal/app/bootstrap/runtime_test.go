package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/dispatch-ai-platform/internal/analysis"
	appconfig "github.com/fieldserve/dispatch-ai-platform/internal/config"
	"github.com/fieldserve/dispatch-ai-platform/internal/notify"
	"github.com/fieldserve/dispatch-ai-platform/internal/pipeline"
)

func TestBuildRedisClientDisabled(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, nil, false))
	assert.Nil(t, BuildRedisClient(context.Background(), nil, nil, false))
}

func TestBuildRedisClientVerify(t *testing.T) {
	srv := miniredis.RunT(t)
	cfg := &appconfig.Config{RedisAddr: srv.Addr()}

	client := BuildRedisClient(context.Background(), cfg, nil, true)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })
}

func TestBuildRedisClientVerifyFailure(t *testing.T) {
	cfg := &appconfig.Config{RedisAddr: "127.0.0.1:1"}
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, nil, true))
}

func TestBuildProcessingCacheMemoryDefault(t *testing.T) {
	cfg := &appconfig.Config{CacheBackend: "memory", CacheTTL: time.Hour}
	cache := BuildProcessingCache(context.Background(), cfg, aws.Config{}, nil)
	assert.IsType(t, &pipeline.MemoryCache{}, cache)
}

func TestBuildProcessingCacheRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	cfg := &appconfig.Config{CacheBackend: "redis", RedisAddr: srv.Addr(), CacheTTL: time.Hour}

	cache := BuildProcessingCache(context.Background(), cfg, aws.Config{}, nil)
	assert.IsType(t, &pipeline.RedisCache{}, cache)
}

func TestBuildProcessingCacheRedisUnavailableFallsBack(t *testing.T) {
	cfg := &appconfig.Config{CacheBackend: "redis", RedisAddr: "127.0.0.1:1", CacheTTL: time.Hour}
	cache := BuildProcessingCache(context.Background(), cfg, aws.Config{}, nil)
	assert.IsType(t, &pipeline.MemoryCache{}, cache)
}

func TestBuildProcessingCacheDynamoWithoutTableFallsBack(t *testing.T) {
	cfg := &appconfig.Config{CacheBackend: "dynamo", CacheTTL: time.Hour}
	cache := BuildProcessingCache(context.Background(), cfg, aws.Config{}, nil)
	assert.IsType(t, &pipeline.MemoryCache{}, cache)
}

func TestBuildTextAnalyzerDefaultsToKeyword(t *testing.T) {
	analyzer := BuildTextAnalyzer(&appconfig.Config{AnalyzerBackend: "keyword"}, aws.Config{}, nil)
	assert.IsType(t, &analysis.KeywordAnalyzer{}, analyzer)
}

func TestBuildTextAnalyzerBedrockWrapped(t *testing.T) {
	cfg := &appconfig.Config{AnalyzerBackend: "bedrock", BedrockModelID: "anthropic.claude-3-haiku"}
	analyzer := BuildTextAnalyzer(cfg, aws.Config{Region: "us-east-1"}, nil)
	assert.IsType(t, &analysis.FallbackAnalyzer{}, analyzer)
}

func TestBuildEmailSenderStubDefault(t *testing.T) {
	sender := BuildEmailSender(&appconfig.Config{}, aws.Config{}, nil)
	assert.IsType(t, &notify.StubEmailSender{}, sender)
}

func TestBuildEmailSenderSendGrid(t *testing.T) {
	cfg := &appconfig.Config{EmailProvider: "sendgrid", SendGridAPIKey: "sg-key", SendGridFromEmail: "ops@fieldserve.example"}
	sender := BuildEmailSender(cfg, aws.Config{}, nil)
	assert.IsType(t, &notify.SendGridSender{}, sender)
}

func TestBuildDatabasesDisabled(t *testing.T) {
	pool, db := BuildDatabases(context.Background(), &appconfig.Config{}, nil)
	assert.Nil(t, pool)
	assert.Nil(t, db)
}
