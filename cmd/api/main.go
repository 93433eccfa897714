package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nicobenz/flowpertoire/infrastructure/config"
	"github.com/nicobenz/flowpertoire/infrastructure/di"
	"github.com/nicobenz/flowpertoire/pkg/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(os.Getenv("CONFIG_DIR"), "")
	cfg, err := loader.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer cleanup()
	logger := container.Logger
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded", zap.Strings("sources", cfg.LoadedFrom))

	if cfg.IsDevelopment() {
		if stopWatch := watchConfig(loader, container); stopWatch != nil {
			defer stopWatch()
		}
	}

	handler := container.HTTPHandler()
	if cfg.Observability.TracingBackend == observability.BackendXRay {
		handler = xray.Handler(xray.NewFixedSegmentNamer("flowpertoire-api"), handler)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting server",
			zap.String("address", cfg.Server.Address),
			zap.String("environment", cfg.Environment),
			zap.String("storage", cfg.Storage.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		// hijacked websocket connections are not tracked by Shutdown
		container.Hub.Stop()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return
	}
	logger.Info("Server stopped")
}

// watchConfig hot-reloads the yaml files. Only the layout tuning is
// applied live; other changes need a restart.
func watchConfig(loader *config.Loader, container *di.Container) func() {
	logger := container.Logger
	if _, err := os.Stat(loader.BasePath()); err != nil {
		logger.Info("Config directory not found, hot reload disabled", zap.String("path", loader.BasePath()))
		return nil
	}

	watcher, err := config.NewWatcher(loader, logger)
	if err != nil {
		logger.Warn("Failed to start config watcher", zap.Error(err))
		return nil
	}
	watcher.OnChange(func(next *config.Config) {
		container.Hub.SetTuning(next.Layout)
		logger.Info("Layout tuning reloaded")
	})
	watcher.Start()
	return watcher.Stop
}
