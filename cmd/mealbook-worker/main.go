package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"mealbook/internal/amqp"
	"mealbook/internal/backend"
	"mealbook/internal/cli"
	"mealbook/internal/config"
	"mealbook/internal/export"
	"mealbook/internal/log"
	"mealbook/internal/sheets"
	gsheet "mealbook/internal/sheets/google"
	"mealbook/internal/sheets/memory"
	"mealbook/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentWorker)
	logger.Info("Starting mealbook-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the worker")
		os.Exit(1)
	}
	if cfg.DataBackend == config.BackendMemory {
		logger.Error("The worker cannot read an in-memory store of another process, use sqlite or postgres")
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	// The worker only reads; it must not announce saves itself.
	backendCfg.AMQPURL = ""
	res, err := backend.NewFactory(nil).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	}()

	opts := export.Options{MarkSymbol: cfg.MarkSymbol}
	var mirror sheets.LedgerMirror
	if cfg.MirrorEnabled() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
			Export:          opts,
		})
		if err != nil {
			return err
		}
		mirror = client
		logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		mirror = memory.New(opts)
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, mirroring to memory only")
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return err
	}
	defer client.Close()

	mirrorWorker := worker.NewMirrorWorker(res.Store, mirror)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Consuming ledger saved messages",
			"exchange", cfg.AMQPExchange,
			"queue", cfg.AMQPQueue)
		return client.ConsumeLedgerSaved(gctx, mirrorWorker.HandleLedgerSaved)
	})
	return g.Wait()
}
