package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"crane-fleet-backend/config"
	"crane-fleet-backend/internal/api"
	"crane-fleet-backend/internal/db"
	"crane-fleet-backend/internal/ledger"
	"crane-fleet-backend/internal/mw"
	"crane-fleet-backend/internal/parse"
	"crane-fleet-backend/internal/report"
	"crane-fleet-backend/internal/store"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "fleet-backend ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	labels, err := parse.NewLabels(cfg.Maintenance.PartLabels, cfg.Maintenance.ConsumableLabels)
	if err != nil {
		logger.Fatalf("invalid label configuration: %v", err)
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	appStore := store.NewGormStore(gormDB)
	ledgerSvc, err := ledger.NewService(appStore, labels, &cfg.Maintenance)
	if err != nil {
		logger.Fatalf("failed to initialize maintenance ledger: %v", err)
	}
	exports := report.Exporters{
		Maintenance: report.NewExporter(appStore, ledgerSvc, labels),
		Diesel:      report.NewDieselExporter(appStore),
		Tasks:       report.NewTaskExporter(appStore),
	}

	limiter := mw.NewIPRateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)
	stopEviction := make(chan struct{})
	go api.ExpireLimiters(limiter, time.Minute, 10*time.Minute, stopEviction)

	// Initialize router
	router := api.NewRouter(cfg, api.NewHandler(ledgerSvc, exports), limiter)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")
	close(stopEviction)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	if sqlDB, err := gormDB.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Println("Server gracefully stopped")
}
