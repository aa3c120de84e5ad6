package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"
	"time"

	"cfdjournal/config"
	"cfdjournal/internal/adapters/binanceclient"
	"cfdjournal/internal/adapters/logger"
	"cfdjournal/internal/adapters/sqlite"
	"cfdjournal/internal/app"
	"cfdjournal/internal/server"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	appLogger.Info(context.Background(), "Database repository initialized")

	// 4. Initialize Quote Client (Binance Adapter)
	quoteClient, err := binanceclient.New(binanceclient.Config{
		APIKey:    cfg.BinanceAPIKey,
		SecretKey: cfg.BinanceSecretKey,
		Logger:    appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	appLogger.Info(context.Background(), "Binance quote client initialized")

	// 5. Initialize Application Service
	journalService, err := app.NewJournalService(appLogger, repo, repo, repo)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize journal service")
		log.Fatalf("FATAL: Failed to initialize journal service: %v", err)
	}
	appLogger.Info(context.Background(), "Journal service initialized")

	// 6. Initialize Quote Refresher
	refresher, err := app.NewQuoteRefresher(appLogger, repo, quoteClient, cfg.QuoteRefreshInterval)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize quote refresher")
		log.Fatalf("FATAL: Failed to initialize quote refresher: %v", err)
	}

	// 7. Start background refresh and HTTP server
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go refresher.Start(ctx)

	srv := server.New(cfg.HTTPAddr, journalService, appLogger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		appLogger.Info(context.Background(), "Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			appLogger.Error(context.Background(), err, "HTTP server exited with error")
			log.Fatalf("FATAL: HTTP server exited with error: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(context.Background(), err, "Error during server shutdown")
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
