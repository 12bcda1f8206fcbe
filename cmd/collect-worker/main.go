package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"raisin/internal/amqp"
	"raisin/internal/backend"
	"raisin/internal/cli"
	"raisin/internal/services"
	"raisin/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting collect-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Ledger mirror selected by LEDGER_MIRROR (none, memory, sheets)
	mirrorCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid mirror configuration", "error", err)
		os.Exit(1)
	}
	mirror, err := backend.NewFactory(logger).CreateMirror(ctx, mirrorCfg)
	if err != nil {
		logger.Error("Failed to initialize ledger mirror", "error", err)
		os.Exit(1)
	}
	if mirror.Cleanup != nil {
		defer mirror.Cleanup()
	}

	// AMQP client for consuming receipt messages and re-publishing after
	// collection. Optional: the periodic sweeps cover for it.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, relying on periodic sweeps", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
		}
	}

	syncWorker := worker.NewSyncWorker(sqliteRepo, mirror.Writer, cfg.SyncBatchSize)
	collector := services.NewCollectionProcessor(sqliteRepo, amqpClient, cfg.SyncBatchSize)

	// On startup, mirror any receipts that were missed while down
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
		// Don't exit - continue with normal operation
	}

	g, gctx := errgroup.WithContext(ctx)

	if amqpClient != nil {
		g.Go(func() error {
			err := amqpClient.ConsumeDonationReceipts(gctx, func(msg *amqp.DonationReceiptMessage) error {
				return syncWorker.HandleReceiptMessage(gctx, msg)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
				return err
			}
			return nil
		})
	} else {
		logger.Info("Skipping AMQP message consumption - no client available")
	}

	// Collect scheduled payments as they fall due
	g.Go(func() error {
		ticker := time.NewTicker(cfg.CollectInterval)
		defer ticker.Stop()

		for {
			select {
			case <-gctx.Done():
				return nil
			case now := <-ticker.C:
				count, err := collector.ProcessDuePayments(gctx, now)
				if err != nil {
					logger.Error("Payment collection failed", "error", err)
					continue
				}
				if count > 0 {
					logger.Info("Collected due payments", "count", count)
				}
			}
		}
	})

	// Periodic sweep for receipts whose AMQP message was lost
	g.Go(func() error {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()

		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := syncWorker.ProcessPendingReceipts(gctx); err != nil {
					logger.Error("Periodic receipt sync failed", "error", err)
				}
			}
		}
	})

	logger.Info("Collect-worker running",
		"collect_interval", cfg.CollectInterval,
		"sync_interval", cfg.SyncInterval,
		"ledger_mirror", cfg.LedgerMirror)

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("Collect-worker shutdown complete")
}
