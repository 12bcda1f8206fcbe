package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"raisin/internal/amqp"
	"raisin/internal/cli"
	apphttp "raisin/internal/http"
	"raisin/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	// AMQP is optional: without it donations are saved and receipts are
	// picked up by the worker's periodic sweep instead.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without receipt queue", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - receipts sync via periodic sweep only")
	}

	donations := services.NewDonationService(sqliteRepo, amqpClient)
	reconcile := services.NewReconcileService(sqliteRepo, amqpClient)

	srv := apphttp.NewServer(":"+cfg.Port, donations, reconcile, sqliteRepo)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting raisin API server", "port", cfg.Port, "db_path", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
