package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fintrack/internal/cli"
	applog "fintrack/internal/log"
	"fintrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentWorker)
	logger.Info("Starting fintrack-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	app := cli.InitApp(context.Background(), logger, cfg)
	if app.AMQP == nil {
		logger.Error("AMQP broker unreachable", "url_set", cfg.AMQPURL != "")
		app.Close()
		os.Exit(1)
	}

	w := worker.NewSuggestionWorker(app.Repo, app.Assistant, cfg.WorkerBatchSize)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := app.Close(); err != nil {
			logger.Error("Failed to release resources", applog.FieldError, err)
		}
	})

	// Catch up on events published while the worker was down.
	if err := w.ProcessPending(ctx); err != nil {
		logger.Error("Startup backfill failed", applog.FieldError, err)
	}

	go func() {
		ticker := time.NewTicker(cfg.WorkerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.ProcessPending(ctx); err != nil {
					logger.Error("Periodic backfill failed", applog.FieldError, err)
				}
			}
		}
	}()

	go func() {
		err := app.AMQP.ConsumeWithReconnect(ctx, w.HandleLedgerEvent)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption stopped", applog.FieldError, err)
		}
	}()

	logger.Info("Worker running",
		"queue", cfg.AMQPQueue,
		"batch_size", cfg.WorkerBatchSize,
		"interval", cfg.WorkerInterval)

	cli.WaitForShutdown(ctx, done)
}
