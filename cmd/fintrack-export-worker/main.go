package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"fintrack/internal/config"
	"fintrack/internal/events"
	"fintrack/internal/export"
	"fintrack/internal/log"
	"fintrack/internal/storage"
	"fintrack/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel), Component: log.ComponentWorker})
	log.SetDefault(logger)

	logger.Info("Starting fintrack-export-worker", log.FieldOperation, log.OpStartup)

	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Configuration validation failed",
			log.FieldErrorType, log.ErrorTypeConfiguration,
			log.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	journal, err := storage.NewJournal(cfg.ExportDBPath, logger)
	if err != nil {
		logger.Error("Failed to open export journal", log.FieldError, err, "path", cfg.ExportDBPath)
		os.Exit(1)
	}

	var sink export.Sink
	if cfg.SheetsEnabled() {
		sheets, err := export.NewSheetsSink(ctx, export.SheetsConfig{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets sink", log.FieldError, err)
			journal.Close()
			os.Exit(1)
		}
		sink = sheets
		logger.Info("Google Sheets sink initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		sink = export.NewMemorySink()
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, keeping rows in memory")
	}

	client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client",
			log.FieldErrorType, log.ErrorTypeRemote,
			log.FieldError, err)
		journal.Close()
		os.Exit(1)
	}

	w := worker.NewExportWorker(journal, sink, worker.Config{
		BatchSize:     cfg.ExportBatchSize,
		RetryInterval: cfg.ExportRetryInterval,
		MaxAttempts:   cfg.ExportMaxAttempts,
		Location:      cfg.Location(),
	}, logger)

	runErr := w.Run(ctx, client)
	if runErr != nil {
		logger.Error("Export worker stopped with error", log.FieldError, runErr)
	}

	if err := client.Close(); err != nil {
		logger.Warn("Failed closing AMQP client", log.FieldError, err)
	}
	if err := journal.Close(); err != nil {
		logger.Warn("Failed closing export journal", log.FieldError, err)
	}
	if runErr != nil {
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete", log.FieldOperation, log.OpShutdown)
}
