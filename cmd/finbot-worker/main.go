package main

import (
	"context"
	"errors"
	"os"
	_ "time/tzdata"

	"github.com/nanmax/wa-finance-bot-sub000/internal/amqp"
	"github.com/nanmax/wa-finance-bot-sub000/internal/cli"
	"github.com/nanmax/wa-finance-bot-sub000/internal/config"
	"github.com/nanmax/wa-finance-bot-sub000/internal/log"
	"github.com/nanmax/wa-finance-bot-sub000/internal/sheets"
	gsheet "github.com/nanmax/wa-finance-bot-sub000/internal/sheets/google"
	mem "github.com/nanmax/wa-finance-bot-sub000/internal/sheets/memory"
	"github.com/nanmax/wa-finance-bot-sub000/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting finbot-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("finbot-worker exited with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("finbot-worker stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	var (
		writer  sheets.TransactionWriter
		deleter sheets.TransactionDeleter
	)
	if cfg.SheetsEnabled() {
		w, err := gsheet.NewWriter(ctx, gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
			OAuthClientJSON: cfg.GoogleOAuthClientJSON,
			OAuthClientFile: cfg.GoogleOAuthClientFile,
			OAuthTokenFile:  cfg.GoogleOAuthTokenFile,
			Location:        cfg.Location(),
		})
		if err != nil {
			return err
		}
		writer, deleter = w, w
		logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		// Events are still drained so the queue does not grow without bound.
		m := mem.New()
		writer, deleter = m, m
		logger.Info("Google Sheets disabled - mirroring to memory")
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return err
	}
	defer client.Close()

	syncWorker := worker.NewSheetsSyncWorker(writer, deleter, logger)
	err = client.ConsumeTransactionEvents(ctx, syncWorker.HandleEvent)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
