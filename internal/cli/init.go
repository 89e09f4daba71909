// Package cli holds the bootstrap steps shared by cmd/finbot and
// cmd/finbot-worker.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nanmax/wa-finance-bot-sub000/internal/config"
	"github.com/nanmax/wa-finance-bot-sub000/internal/core"
	"github.com/nanmax/wa-finance-bot-sub000/internal/log"
)

// LoadEnvFile loads .env for local development. A missing file is not an
// error in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger at the given level and installs it
// as the slog default.
func SetupLogger(level string) *log.Logger {
	lvl := log.ParseLevel(level)
	logger := log.New(log.Config{
		Level:     lvl,
		Component: log.ComponentApp,
		Handler:   slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}),
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and exits the process when it
// is invalid. CURRENCY_PREFIX is applied to the formatter here.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.CurrencyPrefix != "" {
		core.CurrencyPrefix = cfg.CurrencyPrefix
	}
	return cfg
}

// OpenSettings loads the persisted bot settings, exiting on failure. The
// GEMINI_API_KEY env var becomes the fallback model key.
func OpenSettings(logger *log.Logger, cfg *config.Config) *config.SettingsStore {
	settings, err := config.OpenSettings(cfg.SettingsPath, config.DefaultSettings())
	if err != nil {
		logger.Error("Failed to open settings", log.FieldError, err, "path", cfg.SettingsPath)
		os.Exit(1)
	}
	settings.SetFallbackAPIKey(cfg.GeminiAPIKey)
	return settings
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. A second
// signal kills the process immediately.
func GracefulShutdown(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sigChan := make(chan os.Signal, 2)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		sig = <-sigChan
		logger.Warn("Second signal received, exiting", "signal", sig.String())
		os.Exit(1)
	}()

	return ctx, cancel
}
