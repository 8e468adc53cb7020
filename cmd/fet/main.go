package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"fet/internal/alert"
	"fet/internal/amqp"
	"fet/internal/cache"
	"fet/internal/config"
	"fet/internal/forecast"
	apphttp "fet/internal/http"
	"fet/internal/log"
	"fet/internal/services"
	"fet/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{
		Component: log.ComponentApp,
		Handler:   tint.NewHandler(os.Stdout, &tint.Options{TimeFormat: time.Kitchen}),
	})
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	forecasts := cache.NewLRUCache[forecast.Result](128, cfg.ForecastCacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(forecasts)
	cacheManager.StartCleanup(time.Minute)
	defer cacheManager.Stop()

	opts := []services.Option{
		services.WithForecastCache(forecasts),
		services.WithForecastOptions(forecast.Options{
			Days:    cfg.ForecastDays,
			Periods: cfg.TrendPeriods,
		}),
	}

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		opts = append(opts, services.WithPublisher(amqpClient))
		logger.Info("Expense export events enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("Expense export events disabled - no AMQP_URL provided")
	}

	dispatcher := alert.NewDispatcher(cfg.NotifyTimeout,
		alert.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID),
		alert.NewEmail(alert.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.AlertEmailFrom,
			To:   cfg.AlertEmailTo,
		}),
	)
	opts = append(opts, services.WithNotifier(dispatcher))

	ledger := services.NewLedgerService(repo, logger.WithComponent(log.ComponentLedger), opts...)

	srv := apphttp.NewServer(":"+cfg.Port, ledger)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

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
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Starting fet server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
