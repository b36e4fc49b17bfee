package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	applog "fintrack/internal/log"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentApp)
	logger.Info("Starting fintrack")

	cfg := cli.LoadAndValidateConfig(logger)
	app := cli.InitApp(context.Background(), logger, cfg)

	srv := apphttp.NewServer(":"+cfg.Port, app, apphttp.Options{
		UserIDHeader:       cfg.UserIDHeader,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if err := app.Close(); err != nil {
			logger.Error("Failed to release resources", applog.FieldError, err)
		}
	})

	logger.Info("Server starting",
		"addr", srv.Addr,
		"backend", cfg.DataBackend,
		"suggester", cfg.Suggester)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed to start", applog.FieldError, err, "addr", srv.Addr)
		app.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
