package main

import (
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"tally/internal/cli"
	applog "tally/internal/log"
	"tally/internal/sheets"
	gsheet "tally/internal/sheets/google"
	"tally/internal/sheets/memory"
	"tally/internal/worker"
)

const statsInterval = 5 * time.Minute

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(applog.New(applog.DefaultConfig()), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)
	logger.Info("Starting tally-worker")

	if !cfg.EventsEnabled() {
		cli.Fatal(logger, "Worker needs a broker", errors.New("AMQP_URL is not set"))
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	var sink sheets.EventAppender
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			cli.Fatal(logger, "Failed to initialize Google Sheets client", err)
		}
		logger.Info("Mirroring events to Google Sheets", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
		sink = client
	} else {
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, events are kept in memory only")
		sink = memory.New()
	}

	amqpClient, err := cli.InitAMQP(logger, cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}
	defer amqpClient.Close()

	mirror := worker.NewMirrorWorker(sink)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return mirror.Run(gctx, amqpClient)
	})
	g.Go(func() error {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				mirrored, failed := mirror.Stats()
				logger.Info("Mirror progress", "mirrored", mirrored, "failed", failed)
			}
		}
	})

	if err := g.Wait(); err != nil {
		cli.Fatal(logger, "Worker stopped with error", err)
	}
	mirrored, failed := mirror.Stats()
	logger.Info("Worker shutdown complete", "mirrored", mirrored, "failed", failed)
}
