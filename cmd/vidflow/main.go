package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bnema/vidflow/config"
	"github.com/bnema/vidflow/internal/adapter/engine"
	HTTPAdapter "github.com/bnema/vidflow/internal/adapter/http"
	"github.com/bnema/vidflow/internal/adapter/provider/cloudinaryprovider"
	"github.com/bnema/vidflow/internal/adapter/provider/gcsprovider"
	"github.com/bnema/vidflow/internal/adapter/provider/s3provider"
	"github.com/bnema/vidflow/internal/adapter/storage/kv"
	sqlitestore "github.com/bnema/vidflow/internal/adapter/storage/sqlite"
	"github.com/bnema/vidflow/internal/infrastructure/logger"
	"github.com/bnema/vidflow/internal/port"
	"github.com/bnema/vidflow/internal/service"
)

var version = "dev"

type closableStore interface {
	port.VideoStore
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error.Printf("failed to load config: %v", err)
		os.Exit(1)
	}
	logger.SetDebug(cfg.Debug)

	logger.Info.Printf("starting vidflow %s on port %d, engine=%s", version, cfg.Port, cfg.EngineURL)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logger.Error.Printf("failed to create data directory: %v", err)
		os.Exit(1)
	}

	store, err := openStore(cfg)
	if err != nil {
		logger.Error.Printf("failed to create store: %v", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bucket, media, closeProviders, err := openProviders(ctx, cfg)
	if err != nil {
		logger.Error.Printf("failed to configure storage: %v", err)
		os.Exit(1)
	}
	defer closeProviders()

	engineClient, err := engine.New(cfg.EngineURL, nil)
	if err != nil {
		logger.Error.Printf("failed to create engine client: %v", err)
		os.Exit(1)
	}

	eventBus := service.NewEventBus()
	storageSvc := service.NewStorageService(bucket, media)
	orchestrator := service.NewOrchestrator(store, engineClient, eventBus, cfg.Orchestrator)
	videoSvc := service.NewVideoService(store, orchestrator, storageSvc, cfg.DataDir, cfg.ArchiveOriginals)
	poller := service.NewPoller(store, orchestrator, cfg.Poller)

	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		poller.Run(ctx)
	}()

	server := HTTPAdapter.NewServer(videoSvc, storageSvc, engineClient, eventBus, HTTPAdapter.ServerConfig{
		MaxUploadSizeMB: cfg.MaxUploadSizeMB,
		SignTTL:         cfg.SignTTL,
		Version:         version,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info.Printf("received %s, shutting down", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error.Printf("http shutdown error: %v", err)
		}

		// Stop the poller; an in-flight sweep finishes its current records.
		cancel()
		<-pollerDone

		logger.Info.Printf("shutdown complete")
	}()

	logger.Info.Printf("server listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error.Printf("server failed: %v", err)
		os.Exit(1)
	}
	<-pollerDone
}

func openStore(cfg *config.Config) (closableStore, error) {
	if cfg.StoreBackend == config.StorePebble {
		return kv.NewStore(filepath.Join(cfg.DataDir, "pebble"))
	}
	return sqlitestore.NewStore(cfg.DataDir)
}

// openProviders builds the configured storage backends. Either return value is
// nil when its backend has no credentials.
func openProviders(ctx context.Context, cfg *config.Config) (bucket, media port.StorageProvider, closeFn func(), err error) {
	closeFn = func() {}

	if cfg.BucketConfigured() {
		switch cfg.BucketBackend {
		case config.BucketGCS:
			p, err := gcsprovider.New(ctx, cfg.GCS)
			if err != nil {
				return nil, nil, closeFn, err
			}
			bucket = p
			closeFn = func() { _ = p.Close() }
		default:
			p, err := s3provider.New(cfg.S3)
			if err != nil {
				return nil, nil, closeFn, err
			}
			bucket = p
		}
		logger.Info.Printf("bucket storage: %s", cfg.BucketBackend)
	}

	if cfg.Cloudinary.Configured() {
		p, err := cloudinaryprovider.New(cfg.Cloudinary)
		if err != nil {
			closeFn()
			return nil, nil, func() {}, err
		}
		media = p
		logger.Info.Printf("media storage: cloudinary")
	}

	if bucket == nil && media == nil {
		logger.Warn.Printf("no storage provider configured; object routes will answer 503")
	}
	return bucket, media, closeFn, nil
}
