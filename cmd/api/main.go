package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fieldserve/dispatch-ai-platform/cmd/awsconfig"
	"github.com/fieldserve/dispatch-ai-platform/internal/analysis"
	"github.com/fieldserve/dispatch-ai-platform/internal/api/router"
	"github.com/fieldserve/dispatch-ai-platform/internal/app/bootstrap"
	appconfig "github.com/fieldserve/dispatch-ai-platform/internal/config"
	"github.com/fieldserve/dispatch-ai-platform/internal/http/handlers"
	"github.com/fieldserve/dispatch-ai-platform/internal/notify"
	"github.com/fieldserve/dispatch-ai-platform/internal/observability/metrics"
	"github.com/fieldserve/dispatch-ai-platform/internal/orders"
	"github.com/fieldserve/dispatch-ai-platform/internal/pipeline"
	"github.com/fieldserve/dispatch-ai-platform/internal/transcript"
	"github.com/fieldserve/dispatch-ai-platform/internal/trigger"
	"github.com/fieldserve/dispatch-ai-platform/internal/vendors"
	"github.com/fieldserve/dispatch-ai-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting dispatch-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := awsconfig.Load(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	// Persistence: Postgres when configured, in-memory otherwise.
	pool, db := bootstrap.BuildDatabases(ctx, cfg, logger)
	var (
		ruleRepo       trigger.RuleRepository
		activationRepo trigger.ActivationRepository
		directory      interface {
			vendors.Directory
			notify.VendorDirectory
		}
		orderStore   orders.Store
		summaryStore analysis.SummaryStore
	)
	if pool != nil {
		ruleRepo = trigger.NewPostgresRuleRepository(pool)
		activationRepo = trigger.NewPostgresActivationRepository(pool)
		directory = vendors.NewPostgresDirectory(pool)
		orderStore = orders.NewPostgresStore(pool)
		summaryStore = analysis.NewPostgresSummaryStore(db)
		logger.Info("using postgres-backed stores")
	} else {
		ruleRepo = trigger.NewInMemoryRuleRepository()
		activationRepo = trigger.NewInMemoryActivationRepository()
		directory = vendors.NewInMemoryDirectory()
		orderStore = orders.NewInMemoryStore()
		summaryStore = analysis.NewInMemorySummaryStore()
		logger.Warn("DATABASE_URL not set; using in-memory stores")
	}

	registry := prometheus.NewRegistry()
	pipelineMetrics := metrics.NewPipelineMetrics(registry)

	selector := vendors.NewSelector(directory, logger,
		vendors.WithShuffleProbability(cfg.ShuffleProbability))

	emailSender := bootstrap.BuildEmailSender(cfg, awsCfg, logger)

	// Notification queue. With the memory queue the dispatcher runs inside
	// this process; with SQS a separate dispatch-worker consumes it.
	var (
		publisher  *notify.Publisher
		dispatcher *notify.Dispatcher
	)
	if cfg.UseMemoryQueue || cfg.NotifyQueueURL == "" {
		queue := notify.NewMemoryQueue(256)
		publisher = notify.NewPublisher(queue, directory, cfg.AccountNotifyEmail, logger)
		dispatcher = notify.NewDispatcher(queue, emailSender, logger)
		dispatcher.Start(ctx)
		logger.Info("notification dispatcher running in-process")
	} else {
		queue := notify.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.NotifyQueueURL)
		publisher = notify.NewPublisher(queue, directory, cfg.AccountNotifyEmail, logger)
		logger.Info("publishing notifications to sqs", "queue", cfg.NotifyQueueURL)
	}

	var artifactStore *orders.ArtifactStore
	if cfg.ArtifactBucket != "" {
		artifactStore = orders.NewArtifactStore(s3.NewFromConfig(awsCfg), cfg.ArtifactBucket, logger)
		logger.Info("order artifact storage enabled", "bucket", cfg.ArtifactBucket)
	}

	manager := orders.NewManager(orderStore, selector, orders.NewReferenceInvoicer(), publisher, logger).
		WithTransitionObserver(func(from, to orders.Status) {
			pipelineMetrics.OrderTransition(string(from), string(to))
		})

	analyzer := bootstrap.BuildTextAnalyzer(cfg, awsCfg, logger)
	cache := bootstrap.BuildProcessingCache(ctx, cfg, awsCfg, logger)

	coordinator := pipeline.NewCoordinator(pipeline.Deps{
		Normalizer:  transcript.NewNormalizer(logger),
		Turns:       analysis.NewTurnAnalyzer(analyzer, nil),
		Summarizer:  analysis.NewSummarizer(nil),
		Evaluator:   trigger.NewEvaluator(logger, nil),
		Rules:       ruleRepo,
		Activations: activationRepo,
		Selector:    selector,
		Orders:      manager,
		Publisher:   publisher,
		Summaries:   summaryStore,
		Cache:       cache,
		Metrics:     pipelineMetrics,
		Logger:      logger,
	}, pipeline.WithProcessingTimeout(cfg.ProcessingTimeout))

	vendorWebhook, err := handlers.NewVendorWebhookHandler(manager, cfg.WebhookSecretsJSON, logger)
	if err != nil {
		logger.Error("failed to build vendor webhook handler", "error", err)
		os.Exit(1)
	}

	r := router.New(&router.Config{
		Logger:          logger,
		Process:         handlers.NewProcessHandler(coordinator, logger),
		VendorWebhook:   vendorWebhook,
		Orders:          handlers.NewOrdersHandler(manager, artifactStore, logger),
		Rules:           handlers.NewRulesHandler(ruleRepo, logger),
		Conversations:   handlers.NewConversationsHandler(summaryStore, activationRepo, logger),
		MetricsHandler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AdminAuthSecret: cfg.AdminJWTSecret,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	cancel()
	if dispatcher != nil {
		dispatcher.Wait()
	}
	if pool != nil {
		pool.Close()
	}
	if db != nil {
		_ = db.Close()
	}

	logger.Info("server stopped")
}
