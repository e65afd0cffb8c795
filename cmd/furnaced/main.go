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

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"
	"github.com/patrickmn/go-cache"

	"furnace-scheduler/config"
	"furnace-scheduler/internal/api"
	"furnace-scheduler/internal/db"
	"furnace-scheduler/internal/engine"
	"furnace-scheduler/internal/importer"
	"furnace-scheduler/internal/notification"
	"furnace-scheduler/internal/scheduler"
	"furnace-scheduler/internal/store"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "furnaced ", log.LstdFlags)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Printf("failed to read .env: %v", err)
	}

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

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	furnaces := scheduler.FurnacesFromConfig(cfg.Scheduling)
	if err := appStore.UpsertFurnaces(ctx, furnaces); err != nil {
		logger.Fatalf("failed to store furnaces: %v", err)
	}
	logger.Printf("%d furnaces configured", len(furnaces))

	responses := cache.New(5*time.Minute, 10*time.Minute)
	hub := notification.NewHub()
	listeners := []notification.Listener{
		notification.ListenerFunc(func(string) { responses.Flush() }),
		hub,
	}

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions)
		workerPool.Start(ctx)
		listeners = append(listeners, workerPool)
	} else {
		logger.Println("VAPID keys are not configured; push notifications are disabled")
	}

	eng := engine.New(scheduler.RulesFromConfig(cfg.Scheduling), logger)
	svc := scheduler.NewService(appStore, eng, notification.NewFanout(listeners...), furnaces)

	importerSvc := importer.NewService(cfg.Importer, svc)
	go importerSvc.Run(ctx)

	// Initialize router
	router := api.NewRouter(api.NewHandler(svc, appStore, webpushOptions, hub), responses, cfg.Server)
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
	cancel()
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
