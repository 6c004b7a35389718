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

	"go.uber.org/zap"

	"github.com/david/signal-desk/internal/app"
	"github.com/david/signal-desk/internal/config"
	"github.com/david/signal-desk/internal/ingest"
	"github.com/david/signal-desk/internal/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("SIGNAL_DESK_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("failed to start", zap.Error(err))
	}
	defer a.Close()

	srv, err := a.Server()
	if err != nil {
		zl.Fatal("failed to build server", zap.Error(err))
	}

	if cfg.Ingest.Interval > 0 {
		go schedule(ctx, a, cfg.Ingest.Interval)
	}

	go func() {
		zl.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.Start(cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("shutdown failed", zap.Error(err))
	}
}

// schedule runs the pipeline every interval until ctx ends. A tick that lands
// on an in-flight run is skipped.
func schedule(ctx context.Context, a *app.App, interval time.Duration) {
	log := a.Logger.Named("scheduler")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := a.Pipeline.Run(ctx)
			switch {
			case errors.Is(err, ingest.ErrRunInProgress):
				log.Debug("scheduled run skipped; another run is in flight")
			case err != nil:
				log.Error("scheduled run failed", zap.Error(err))
			}
		}
	}
}
