// Package main wires together the harvester binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pcd-harvester/internal/app"
	"github.com/JakeFAU/pcd-harvester/internal/config"
	"github.com/JakeFAU/pcd-harvester/internal/logging"
	"github.com/JakeFAU/pcd-harvester/internal/telemetry"
)

var version = "dev"

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	serve := flag.Bool("serve", false, "Run the ops HTTP server instead of a single harvest run")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     version,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}

	code := 0
	if err := run(ctx, cfg, logger, *serve); err != nil {
		logger.Error("harvester failed", zap.Error(err))
		code = 1
	}
	stop()
	if tp != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
		cancel()
	}
	if syncErr := logger.Sync(); syncErr != nil {
		fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
	}
	os.Exit(code)
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger, serve bool) error {
	services, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}
	defer services.Close()

	if !serve {
		summary, err := services.Harvester().Run(ctx)
		if err != nil {
			return fmt.Errorf("harvest run %s: %w", summary.RunID, err)
		}
		return nil
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           services.Server(ctx).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	// Triggered runs must record their finish before the stores close.
	if err := services.Harvester().Wait(shutdownCtx); err != nil {
		logger.Warn("background run still active at shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}
