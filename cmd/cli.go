package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"golang.org/x/time/rate"

	"github.com/maquette-dev/maquette/internal/auth"
	"github.com/maquette-dev/maquette/internal/backend"
	"github.com/maquette-dev/maquette/internal/config"
	"github.com/maquette-dev/maquette/internal/events"
	"github.com/maquette-dev/maquette/internal/log"
	"github.com/maquette-dev/maquette/internal/observability"
	"github.com/maquette-dev/maquette/internal/store"
	"github.com/maquette-dev/maquette/internal/tui"
)

// logFileName is the interactive-mode log under the state directory.
// The TUI owns the terminal, so nothing may write to stderr while it runs.
const logFileName = "maquette.log"

// runCLI starts the interactive tool builder.
func runCLI() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	dir, err := config.StateDir()
	if err != nil {
		return err
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger, closeLog, err := log.NewFile(filepath.Join(dir, logFileName), log.Config{
		Level: level,
		JSON:  cfg.LogJSON,
	})
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer func() {
		if closeErr := closeLog(); closeErr != nil {
			fmt.Println("closing log file:", closeErr)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := observability.Setup(ctx, cfg.Telemetry, logger)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		if shutdownErr := shutdownTracing(context.Background()); shutdownErr != nil {
			logger.Warn("telemetry shutdown", "error", shutdownErr)
		}
	}()

	identity, err := auth.NewManager(dir, logger).CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("resolving identity: %w", err)
	}

	timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)

	backendClient, err := backend.New(cfg.BackendURL, cfg.APIToken, backend.Options{
		Timeout: timeout,
		Limiter: limiter,
		Logger:  logger.With("component", "backend"),
	})
	if err != nil {
		return fmt.Errorf("creating backend client: %w", err)
	}

	storeClient, err := store.New(cfg.StoreURL, cfg.APIToken, identity.UserID, store.Options{
		Timeout: timeout,
		Logger:  logger.With("component", "store"),
	})
	if err != nil {
		return fmt.Errorf("creating store client: %w", err)
	}

	hub := events.NewHub(logger.With("component", "events"))
	defer hub.Close()

	model, err := tui.New(ctx, tui.Deps{
		Backend:          backendClient,
		Store:            storeClient,
		Hub:              hub,
		Logger:           logger.With("component", "tui"),
		AutoSaveDebounce: time.Duration(cfg.AutoSaveDebounceMS) * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("creating TUI: %w", err)
	}

	logger.Info("starting interactive builder", "user_id", identity.UserID, "backend", cfg.BackendURL)

	program := tea.NewProgram(model, tea.WithContext(ctx))
	if _, err = program.Run(); err != nil {
		return fmt.Errorf("TUI exited: %w", err)
	}
	return nil
}
