package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"time"
	_ "time/tzdata"

	"golang.org/x/sync/errgroup"

	"github.com/nanmax/wa-finance-bot-sub000/internal/api"
	"github.com/nanmax/wa-finance-bot-sub000/internal/backend"
	"github.com/nanmax/wa-finance-bot-sub000/internal/backup"
	"github.com/nanmax/wa-finance-bot-sub000/internal/bot"
	"github.com/nanmax/wa-finance-bot-sub000/internal/cache"
	"github.com/nanmax/wa-finance-bot-sub000/internal/classifier"
	"github.com/nanmax/wa-finance-bot-sub000/internal/cli"
	"github.com/nanmax/wa-finance-bot-sub000/internal/commands"
	"github.com/nanmax/wa-finance-bot-sub000/internal/config"
	"github.com/nanmax/wa-finance-bot-sub000/internal/log"
	"github.com/nanmax/wa-finance-bot-sub000/internal/report"
	"github.com/nanmax/wa-finance-bot-sub000/internal/services"
	"github.com/nanmax/wa-finance-bot-sub000/internal/transport/telegram"
)

const shutdownTimeout = 15 * time.Second

func main() {
	restorePath := flag.String("restore", "", "restore transactions from a backup zip and exit")
	restoreSettings := flag.Bool("restore-settings", false, "with -restore, also restore bot settings")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	settings := cli.OpenSettings(logger, cfg)
	if cfg.LogLevel == "" {
		logger = cli.SetupLogger(settings.Snapshot().LogLevel)
	}

	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	if err := run(ctx, cfg, settings, logger, *restorePath, *restoreSettings); err != nil {
		logger.Error("finbot exited with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("finbot stopped")
}

func run(ctx context.Context, cfg *config.Config, settings *config.SettingsStore, logger *log.Logger, restorePath string, restoreSettings bool) error {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	be, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	// Cleanup closes the store and the publisher; the service must not close them again.
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	summaries := newSummaryCache(ctx, cfg, logger)
	defer summaries.close()

	opts := []services.Option{services.WithInvalidator(summaries.cache), services.WithLogger(logger)}
	if be.Publisher != nil {
		opts = append(opts, services.WithPublisher(be.Publisher))
	}
	svc := services.NewTransactionService(be.Store, opts...)

	engine := report.NewEngine(cfg.Location(), time.Now)
	backups := backup.NewService(cfg.BackupDir, svc, settings, engine.Now, logger)

	if restorePath != "" {
		n, err := backups.Restore(ctx, restorePath, backup.RestoreOptions{Settings: restoreSettings})
		if err != nil {
			return err
		}
		logger.Info("Restore complete", "path", restorePath, "transactions", n)
		return nil
	}

	var ai *classifier.AIClassifier
	if cfg.AIModel != "" {
		completer := classifier.NewGeminiCompleter(cfg.AIModel, cfg.AIMaxOutputTokens)
		ai = classifier.NewAIClassifier(completer, settings, cfg.AITimeout, logger)
	}
	analyzer := classifier.NewMessageClassifier(ai, classifier.NewPatternClassifier(classifier.DefaultRules()), logger)

	router := commands.NewRouter(svc, settings, engine, backups, commands.Options{SubstringReports: cfg.LegacySubstringCommands}, logger)
	financeBot := bot.NewFinanceBot(router, analyzer, svc, engine, settings, logger)

	apiOpts := api.Options{
		Addr:      ":" + cfg.Port,
		Summaries: summaries.cache,
		Logger:    logger,
	}
	if hc, ok := be.Store.(api.HealthChecker); ok {
		apiOpts.Health = hc
	}
	server := api.NewServer(svc, financeBot, engine, apiOpts)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", "port", cfg.Port, "backend", backendCfg.Type, "timezone", cfg.TimeZone)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.TelegramBotToken != "" {
		poller := telegram.NewPoller(telegram.NewClient(cfg.TelegramBotToken), financeBot, cfg.TelegramPollTimeout, logger)
		g.Go(func() error { return poller.Run(gctx) })
	} else {
		logger.Info("Telegram disabled - no TELEGRAM_BOT_TOKEN provided")
	}

	return g.Wait()
}

// summaryCache pairs the API summary cache with whatever must be released
// when the process stops.
type summaryCache struct {
	cache cache.Cache[api.SummaryResponse]
	close func()
}

func newSummaryCache(ctx context.Context, cfg *config.Config, logger *log.Logger) summaryCache {
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err == nil {
			logger.Info("Using Redis summary cache")
			return summaryCache{
				cache: cache.NewGenerational[api.SummaryResponse](
					cache.NewRedisCache[api.SummaryResponse](client, "finbot:summary:", cfg.CacheTTL, logger)),
				close: func() { _ = client.Close() },
			}
		}
		logger.Warn("Redis unavailable, falling back to in-process cache", log.FieldError, err)
	}

	lru := cache.NewLRUCache[api.SummaryResponse](64, cfg.CacheTTL)
	manager := cache.NewManager(logger)
	manager.Register(lru)
	manager.StartCleanup(cfg.CacheTTL)
	return summaryCache{cache: cache.NewGenerational[api.SummaryResponse](lru), close: manager.Stop}
}
