// Package cli provides the initialization shared by cmd/tally,
// cmd/tally-worker and cmd/tallyctl.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"tally/internal/amqp"
	"tally/internal/config"
	applog "tally/internal/log"
	"tally/internal/storage"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	return setupLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat, component)
}

// SetupCLILogger is SetupLogger for command-line tools, which log to stderr
// so their stdout stays readable.
func SetupCLILogger(level, format, component string) *applog.Logger {
	return setupLogger(os.Stderr, level, format, component)
}

func setupLogger(w io.Writer, level, format, component string) *applog.Logger {
	lvl, err := applog.ParseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	logger := applog.New(applog.Config{
		Level:     lvl,
		Format:    format,
		Component: component,
		Output:    w,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// InitSQLite opens the repository at dbPath, applying pending migrations.
func InitSQLite(logger *applog.Logger, dbPath string) (*storage.SQLiteRepository, error) {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", dbPath)
		return nil, fmt.Errorf("init sqlite: %w", err)
	}
	return repo, nil
}

// InitAMQP connects to the broker when one is configured. A nil client with a
// nil error means events are disabled.
func InitAMQP(logger *applog.Logger, cfg *config.Config) (*amqp.Client, error) {
	if !cfg.EventsEnabled() {
		logger.Warn("AMQP_URL not set, ledger events are disabled")
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return nil, fmt.Errorf("connect amqp: %w", err)
	}
	logger.Info("Connected to AMQP broker", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM. The
// returned stop function releases the signal handler.
func SignalContext(logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// Fatal logs err and exits with status 1.
func Fatal(logger *applog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
