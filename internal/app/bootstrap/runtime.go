// Package bootstrap wires config-driven backends for the binaries, so the
// API server and the dispatch worker share one set of construction rules.
package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/fieldserve/dispatch-ai-platform/internal/analysis"
	appconfig "github.com/fieldserve/dispatch-ai-platform/internal/config"
	"github.com/fieldserve/dispatch-ai-platform/internal/notify"
	"github.com/fieldserve/dispatch-ai-platform/internal/pipeline"
	"github.com/fieldserve/dispatch-ai-platform/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildProcessingCache selects the conversation cache backend from config,
// degrading to the in-memory cache when the configured backend is unreachable.
func BuildProcessingCache(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) pipeline.ProcessingCache {
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.CacheBackend {
	case "redis":
		if client := BuildRedisClient(ctx, cfg, logger, true); client != nil {
			logger.Info("using redis processing cache", "addr", cfg.RedisAddr)
			return pipeline.NewRedisCache(client, cfg.CacheTTL)
		}
		logger.Warn("redis cache unavailable; falling back to memory cache")
	case "dynamo":
		if cfg.CacheTable != "" {
			logger.Info("using dynamo processing cache", "table", cfg.CacheTable)
			return pipeline.NewDynamoCache(dynamodb.NewFromConfig(awsCfg), cfg.CacheTable, cfg.CacheTTL)
		}
		logger.Warn("CACHE_TABLE not set; falling back to memory cache")
	}
	return pipeline.NewMemoryCache(cfg.CacheTTL)
}

// BuildTextAnalyzer selects keyword or Bedrock analysis. The Bedrock analyzer
// is wrapped so per-turn failures degrade to the keyword heuristics.
func BuildTextAnalyzer(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) analysis.TextAnalyzer {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.AnalyzerBackend == "bedrock" && cfg.BedrockModelID != "" {
		logger.Info("using bedrock text analyzer", "model", cfg.BedrockModelID)
		bedrock := analysis.NewBedrockAnalyzer(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
		return analysis.NewFallbackAnalyzer(bedrock, nil, logger)
	}
	return analysis.NewKeywordAnalyzer()
}

// BuildEmailSender selects the outbound email provider. Without credentials a
// stub sender is returned so local runs log instead of sending.
func BuildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.EmailProvider {
	case "sendgrid":
		if cfg.SendGridAPIKey != "" {
			logger.Info("using sendgrid email sender", "from", cfg.SendGridFromEmail)
			return notify.NewSendGridSender(notify.SendGridConfig{
				APIKey:    cfg.SendGridAPIKey,
				FromEmail: cfg.SendGridFromEmail,
				FromName:  cfg.SendGridFromName,
			}, logger)
		}
		logger.Warn("SENDGRID_API_KEY not set; using stub email sender")
	case "ses":
		if cfg.SESFromEmail != "" {
			logger.Info("using ses email sender", "from", cfg.SESFromEmail)
			return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
				FromEmail: cfg.SESFromEmail,
			}, logger)
		}
		logger.Warn("SES_FROM_EMAIL not set; using stub email sender")
	}
	return notify.NewStubEmailSender(logger)
}

// BuildDatabases opens the pgx pool and the database/sql handle used by the
// summary store. Both are nil when DATABASE_URL is unset, which switches every
// store to its in-memory implementation.
func BuildDatabases(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*pgxpool.Pool, *sql.DB) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		return nil, nil
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Warn("postgres not available; using in-memory stores", "error", err)
		pool.Close()
		return nil, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open sql db", "error", err)
		pool.Close()
		return nil, nil
	}
	return pool, db
}
