package main

import (
	"context"
	"errors"
	"os"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/cli"
	"bilancio/internal/log"
	"bilancio/internal/mirror"
	mirgoogle "bilancio/internal/mirror/google"
	mirmem "bilancio/internal/mirror/memory"
	"bilancio/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting bilancio-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	window, err := cfg.Window()
	if err != nil {
		logger.Error("Failed to build date window", log.FieldError, err)
		os.Exit(1)
	}

	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath, window)
	defer sqliteRepo.Close()

	// Pick the mirror target. With no mirror configured the worker stays
	// alive but idle, so deployments can flip MIRROR_BACKEND without
	// touching the topology.
	var summaryWriter mirror.SummaryWriter
	switch cfg.MirrorBackend {
	case "sheets":
		client, err := mirgoogle.New(context.Background(), mirgoogle.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			OAuthClientFile: cfg.GoogleOAuthClientFile,
			OAuthTokenFile:  cfg.GoogleOAuthTokenFile,
			OAuthClientJSON: cfg.GoogleOAuthClientJSON,
			OAuthTokenJSON:  cfg.GoogleOAuthTokenJSON,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets mirror", log.FieldError, err)
			os.Exit(1)
		}
		summaryWriter = client
		logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	case "memory":
		summaryWriter = mirmem.New()
		logger.Info("In-memory mirror initialized, rows are lost on shutdown")
	default:
		logger.Info("Mirroring disabled - no mirror backend configured")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	// Closing the AMQP client on shutdown stops message consumption.
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		if err := amqpClient.Close(); err != nil {
			logger.Error("AMQP close error", log.FieldError, err)
		}
	})

	var mirrorWorker *worker.MirrorWorker
	if summaryWriter != nil {
		mirrorWorker = worker.NewMirrorWorker(sqliteRepo, summaryWriter, cfg.ReconcileBatchSize)

		// On startup, drain dirty periods that might have been missed
		logger.Info("Performing startup mirror check...")
		if err := mirrorWorker.StartupMirrorCheck(ctx); err != nil {
			logger.Error("Failed startup mirror check", log.FieldError, err)
			// Don't exit - the periodic reconcile retries them
		}
	} else {
		logger.Info("Skipping mirror operations - no mirror configured")
	}

	if mirrorWorker != nil {
		go func() {
			err := amqpClient.ConsumeEntryEvents(ctx, func(msg *amqp.EntryEventMessage) error {
				return mirrorWorker.HandleEntryEvent(ctx, msg)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption stopped", log.FieldError, err)
				// Dirty-period polling below keeps the mirror converging
			}
		}()

		ticker := time.NewTicker(cfg.ReconcileInterval)
		defer ticker.Stop()

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := mirrorWorker.ProcessDirtyPeriods(ctx); err != nil {
						logger.Error("Periodic reconcile failed", log.FieldError, err)
					}
				}
			}
		}()
	} else {
		logger.Info("Skipping AMQP message consumption - no mirror worker available")
	}

	cli.WaitForShutdown(ctx, done)
}
