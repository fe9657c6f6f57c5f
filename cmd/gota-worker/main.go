package main

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"gota/internal/amqp"
	"gota/internal/backend"
	"gota/internal/cli"
	"gota/internal/config"
	"gota/internal/log"
	"gota/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting gota-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.DataBackend != config.BackendSQLite {
		// A memory store lives inside the server process; there is nothing
		// for a separate worker to read.
		logger.Error("gota-worker requires DATA_BACKEND=sqlite", "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if cfg.GoogleSpreadsheetID != "" {
		if err := cfg.ValidateSheets(); err != nil {
			logger.Error("Google Sheets configuration invalid", log.FieldError, err)
			os.Exit(1)
		}
	}

	ctx := context.Background()
	be := cli.InitBackend(ctx, logger, cfg)
	defer be.Close()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	mirror, err := backend.NewFactory(logger).CreateMirror(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize mirror", log.FieldError, err)
		os.Exit(1)
	}

	syncWorker := worker.NewSyncWorker(be.Stores.Expenses, be.Stores.Config, be.Stores.Users, mirror, logger)

	var consumer *amqp.Client
	if cfg.AMQPURL != "" {
		consumer, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer consumer.Close()
	} else {
		logger.Info("Skipping AMQP message consumption - no AMQP_URL provided")
	}

	var wg sync.WaitGroup
	runCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		logger.Info("Shutting down worker...")
		wg.Wait()
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		syncWorker.RunPeriodic(runCtx, cfg.SyncInterval)
	}()

	if consumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Consume(runCtx, syncWorker.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
	}

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Worker shutdown complete")
}
