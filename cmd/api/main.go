package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docgen-backend/internal/bootstrap"
	"docgen-backend/internal/shared/config"
	"docgen-backend/internal/shared/server"
	"docgen-backend/internal/shared/telemetry"
)

const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

// run returns the process exit code once every deferred cleanup has finished.
func run() int {
	cfg := config.Load()
	telemetry.Init(cfg.Env, cfg.LogLevel)
	defer telemetry.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		telemetry.Error("startup.failed", map[string]any{"error": err})
		return 1
	}
	defer func() {
		if err := app.Close(); err != nil {
			telemetry.Warn("shutdown.close", map[string]any{"error": err})
		}
	}()

	if app.Sweeper.Enabled() {
		go app.Sweeper.Run(ctx)
	}

	srv := &http.Server{
		Addr:              server.Addr(cfg.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		telemetry.Info("server.start", map[string]any{"addr": srv.Addr, "env": cfg.Env})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			telemetry.Error("server.failed", map[string]any{"error": err})
			return 1
		}
	case <-ctx.Done():
		telemetry.Info("server.shutdown", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			telemetry.Error("server.shutdown.failed", map[string]any{"error": err})
			return 1
		}
	}
	return 0
}
