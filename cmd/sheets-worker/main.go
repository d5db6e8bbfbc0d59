package main

import (
	"context"
	"errors"
	"os"
	"time"

	"billcal/internal/amqp"
	"billcal/internal/cli"
	"billcal/internal/core"
	"billcal/internal/datasource/google"
	applog "billcal/internal/log"
	"billcal/internal/services"
	"billcal/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentSheets)

	logger.Info("Starting sheets-worker")

	if err := cfg.ValidateSheetsWorker(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// The worker consumes changes and never republishes them, so the
	// backend is opened without a publisher.
	storeCfg := *cfg
	storeCfg.AMQPURL = ""
	res := cli.InitBackend(context.Background(), logger.Logger, &storeCfg)

	sheets, err := google.New(context.Background(), google.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	enricher := services.NewEventEnricher(res.Store, cfg.EnrichConcurrency)
	syncWorker := worker.NewSheetsSyncWorker(res.Store, enricher, sheets)

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func() {
		if err := consumer.Close(); err != nil {
			logger.Error("AMQP close error", "error", err)
		}
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	// Catch up on the current month in case messages were missed while down.
	month := core.DateOf(time.Now()).FirstOfMonth()
	if n, err := syncWorker.ResyncMonth(ctx, month); err != nil {
		logger.Error("Startup resync failed", "error", err, "month", month.String())
	} else {
		logger.Info("Startup resync complete", "month", month.String(), "rows", n)
	}

	go func() {
		err := consumer.ConsumeInstanceChanges(ctx, syncWorker.Handle)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
			_ = consumer.Close()
			_ = res.Close()
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Sheets-worker shutdown complete")
}
