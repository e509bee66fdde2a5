package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/api"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/config"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/logging"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/storage"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	var store storage.Store
	switch cfg.ArtifactStore {
	case "s3":
		store, err = storage.NewS3Store(ctx, cfg.Bucket, cfg.Region, cfg.S3Endpoint)
	default:
		store, err = storage.NewFileStore(cfg.ModelsDir)
	}
	if err != nil {
		logger.Fatal("failed to initialize artifact store", zap.Error(err))
	}
	logger.Info("artifact store ready",
		zap.String("backend", cfg.ArtifactStore),
		zap.String("pipeline", store.URI(storage.PipelineArtifact)))

	server := api.NewServer(store, logger, cfg.Port)
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("API server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down predictor")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
