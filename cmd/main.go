package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"gamification_service/internal/api"
	"gamification_service/internal/app"
	"gamification_service/internal/config"
	"gamification_service/internal/logging"
	"gamification_service/internal/storage/memstore"
	"gamification_service/internal/storage/pgstore"
	"gamification_service/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("service stopped", "error", err)
		os.Exit(1)
	}
}

// run owns every resource so deferred cleanup happens before main exits.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("flush traces", "error", err)
		}
	}()

	var backend app.Backend
	switch cfg.StorageDriver {
	case config.DriverMemory:
		backend = memstore.New()
		logger.Warn("using in-memory storage, data is lost on exit")
	default:
		store, err := pgstore.Open(ctx, cfg.DBConnStr, logging.GormLevel(cfg.LogLevel))
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer store.Close()
		backend = store
	}

	if logging.ParseLevel(cfg.LogLevel) > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(app.Build(backend, cfg.RetryPolicy(), logger), logger)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", srv.Addr, "storage", cfg.StorageDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
