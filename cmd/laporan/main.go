package main

import (
	"context"
	"errors"
	"net/http"
	"time"
	_ "time/tzdata"

	"laporan/internal/app"
	"laporan/internal/cli"
	"laporan/internal/config"
	apphttp "laporan/internal/http"
	"laporan/internal/log"
)

func main() {
	cfg, logger := cli.Setup(log.ComponentApp, (*config.Config).Validate)

	ctx, stop := cli.SignalContext()
	defer stop()

	stack, err := app.Build(ctx, cfg, logger)
	if err != nil {
		cli.Fatal(ctx, logger, "Failed to build report stack", err, "backend", cfg.DataBackend)
	}
	defer stack.Close()

	loc := cfg.Location()
	opts := []apphttp.Option{
		apphttp.WithLogger(logger),
		apphttp.WithClock(func() time.Time { return time.Now().In(loc) }),
		apphttp.WithRateLimit(cfg.RateLimitPerMinute),
		apphttp.WithCacheSize(stack.Ledgers.Size),
	}
	if stack.Backend.Check != nil {
		opts = append(opts, apphttp.WithCheck(cfg.DataBackend, apphttp.Check(stack.Backend.Check)))
	}
	srv := apphttp.NewServer(":"+cfg.Port, stack.Reports, opts...)

	go func() {
		<-ctx.Done()
		logger.InfoContext(context.Background(), "Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.ErrorContext(shutdownCtx, "Server shutdown error", log.FieldError, err)
		}
	}()

	logger.InfoContext(ctx, "Starting laporan server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"timezone", cfg.Timezone,
		"ai_enabled", cfg.AIEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(ctx, logger, "Server error", err, "port", cfg.Port)
	}

	logger.InfoContext(context.Background(), "Server stopped gracefully")
}
