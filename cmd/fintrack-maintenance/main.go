package main

import (
	"context"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"fintrack/internal/cli"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentMaintenance)
	cfg := cli.LoadAndValidateConfig(logger)
	app := cli.InitApp(context.Background(), logger, cfg)

	// Without a schedule this is a one-shot job.
	if cfg.MaintenanceSchedule == "" {
		err := runOnce(context.Background(), logger, app.Maintenance)
		app.Close()
		if err != nil {
			os.Exit(1)
		}
		return
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	c := cron.New()
	_, err := c.AddFunc(cfg.MaintenanceSchedule, func() {
		_ = runOnce(ctx, logger, app.Maintenance)
	})
	if err != nil {
		logger.Error("Invalid maintenance schedule", applog.FieldError, err, "schedule", cfg.MaintenanceSchedule)
		app.Close()
		os.Exit(1)
	}

	if cfg.MaintenanceRunOnStart {
		_ = runOnce(ctx, logger, app.Maintenance)
	}

	c.Start()
	logger.Info("Maintenance scheduled", "schedule", cfg.MaintenanceSchedule)

	cli.WaitForShutdown(ctx, done)
	<-c.Stop().Done()
	if err := app.Close(); err != nil {
		logger.Error("Failed to release resources", applog.FieldError, err)
	}
}

func runOnce(ctx context.Context, logger *applog.Logger, m *services.MaintenanceService) error {
	start := time.Now()
	report, err := m.Run(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Maintenance run failed", applog.FieldError, err)
		return err
	}
	logger.InfoContext(ctx, "Maintenance run completed",
		"chat_logs_purged", report.ChatLogsPurged,
		"reset_tokens_purged", report.ResetTokensPurged,
		"wallets_audited", report.WalletsAudited,
		"balance_mismatches", report.BalanceMismatches,
		applog.FieldDuration, time.Since(start).Milliseconds())
	return nil
}
