package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"opsboard/internal/amqp"
	"opsboard/internal/config"
	applog "opsboard/internal/log"
	"opsboard/internal/notify"
	"opsboard/internal/services"
	"opsboard/internal/storage"
	"opsboard/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     applog.DefaultConfig().Level,
		Component: applog.ComponentWorker,
	})
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.TelegramToken == "" {
		logger.Error("TELEGRAM_BOT_TOKEN is required for the worker")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	dispatcher, err := notify.NewTelegramDispatcher(cfg.TelegramToken, cfg.TelegramChatID)
	if err != nil {
		logger.Error("Failed to initialize Telegram dispatcher", "error", err)
		os.Exit(1)
	}

	notifyWorker := worker.NewNotifyWorker(amqpClient, dispatcher, notify.NewSuppressor(cfg.SuppressWindow))
	scheduler := worker.NewScheduler(
		services.NewBoardService(repo, amqpClient),
		services.NewHabitService(repo),
		amqpClient,
		cfg.StaleLeadDays)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting notification consumer", "queue", cfg.AMQPQueue)
		if err := notifyWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting scheduler", "spec", cfg.DigestSchedule, "stale_lead_days", cfg.StaleLeadDays)
		if err := scheduler.Schedule(cfg.DigestSchedule); err != nil {
			return err
		}
		<-ctx.Done()
		scheduler.Stop()
		return nil
	})

	// Liveness endpoint for the process supervisor.
	health := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		if err := health.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return health.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
