package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/maquette-dev/maquette/internal/config"
	"github.com/maquette-dev/maquette/internal/devserver"
	"github.com/maquette-dev/maquette/internal/log"
)

// runServe starts the local development backend: deterministic spec/UI
// generation plus the sqlite-backed artifact store, on one listener.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// An explicit address beats the configured one.
	if len(os.Args) > 2 {
		cfg.Serve.Addr = os.Args[2]
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := log.New(log.Config{Level: level, JSON: cfg.LogJSON})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv, err := devserver.New(cfg.Serve, logger)
	if err != nil {
		return fmt.Errorf("creating dev server: %w", err)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			logger.Warn("dev server close", "error", closeErr)
		}
	}()

	logger.Info("dev server ready",
		"addr", cfg.Serve.Addr,
		"db", cfg.Serve.DBPath,
		"api", "/api/*",
		"health", "/health",
	)

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("dev server: %w", err)
	}
	return nil
}
