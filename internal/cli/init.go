// Package cli holds the start-up steps shared by cmd/laporan,
// cmd/laporan-worker and cmd/laporan-sync.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"laporan/internal/config"
	"laporan/internal/log"
)

// Validator is one of the config Validate methods.
type Validator func(*config.Config) error

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// Setup loads .env and the environment config, installs the process logger
// tagged with component and validates. It exits the process on an invalid
// config.
func Setup(component string, validate Validator) (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg := config.Load()

	logger := SetupLogger(cfg.LogLevel, component)

	if err := validate(cfg); err != nil {
		logger.ErrorContext(context.Background(), "Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// SetupLogger writes text records to stdout at level and makes the logger
// the slog default.
func SetupLogger(level, component string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Component: component,
	})
	log.SetDefault(logger)
	return logger
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// Fatal logs err and exits.
func Fatal(ctx context.Context, logger *log.Logger, msg string, err error, args ...any) {
	logger.ErrorContext(ctx, msg, append([]any{log.FieldError, err}, args...)...)
	os.Exit(1)
}
