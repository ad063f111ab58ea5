package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"opsboard/internal/amqp"
	"opsboard/internal/auth"
	"opsboard/internal/config"
	apphttp "opsboard/internal/http"
	applog "opsboard/internal/log"
	"opsboard/internal/services"
	gsheet "opsboard/internal/sheets/google"
	"opsboard/internal/storage"
)

func main() {
	// Load .env for local development; production sets real env vars.
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// AMQP is optional: without it, notifications are skipped but the API
	// stays up.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, notifications disabled", "error", err)
		} else {
			defer amqpClient.Close()
		}
	}

	ledger := services.NewLedgerService(repo, nil)
	if cfg.SheetsSpreadsheetID != "" {
		sheetsClient, err := gsheet.New(context.Background(), cfg.SheetsSpreadsheetID, cfg.SheetsReportSheet)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		ledger = services.NewLedgerService(repo, sheetsClient)
		logger.Info("Google Sheets report export enabled", "spreadsheet_id", cfg.SheetsSpreadsheetID)
	}

	srv := apphttp.NewServer(":"+cfg.Port,
		services.NewBoardService(repo, amqpClient),
		services.NewHabitService(repo),
		ledger,
		services.NewFormService(repo, amqpClient),
		auth.NewManager(cfg.JWTSecret, cfg.TokenTTL),
		cfg.MonthlyPostGoal)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting opsboard server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
