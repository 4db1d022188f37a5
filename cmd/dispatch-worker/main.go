package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"

	"github.com/fieldserve/dispatch-ai-platform/cmd/awsconfig"
	"github.com/fieldserve/dispatch-ai-platform/internal/app/bootstrap"
	appconfig "github.com/fieldserve/dispatch-ai-platform/internal/config"
	"github.com/fieldserve/dispatch-ai-platform/internal/notify"
	"github.com/fieldserve/dispatch-ai-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.NotifyQueueURL == "" {
		logger.Error("NOTIFY_QUEUE_URL is required for the dispatch worker")
		os.Exit(1)
	}

	awsCfg, err := awsconfig.Load(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	queue := notify.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.NotifyQueueURL)
	sender := bootstrap.BuildEmailSender(cfg, awsCfg, logger)

	workers := cfg.WorkerCount
	if workers <= 0 {
		workers = 2
	}
	dispatcher := notify.NewDispatcher(queue, sender, logger,
		notify.WithWorkerCount(workers))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher.Start(ctx)
	logger.Info("dispatch worker started", "queue", cfg.NotifyQueueURL, "workers", workers)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down dispatch worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		dispatcher.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("dispatch worker stopped")
	case <-doneCtx.Done():
		logger.Error("dispatch worker shutdown timed out", "error", doneCtx.Err())
	}
}
