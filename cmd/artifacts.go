package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/maquette-dev/maquette/internal/artifact"
	"github.com/maquette-dev/maquette/internal/auth"
	"github.com/maquette-dev/maquette/internal/config"
	"github.com/maquette-dev/maquette/internal/log"
	"github.com/maquette-dev/maquette/internal/store"
)

// runArtifacts manages saved tools without entering the TUI.
func runArtifacts(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: maquette artifacts <list|show|publish|archive|delete> [id]")
	}

	action := args[0]
	id := ""
	if len(args) > 1 {
		id = args[1]
	}
	if err := validateArtifactsArgs(action, id); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := log.New(log.Config{Level: level, JSON: cfg.LogJSON})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dir, err := config.StateDir()
	if err != nil {
		return err
	}
	identity, err := auth.NewManager(dir, logger).CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("resolving identity: %w", err)
	}

	client, err := store.New(cfg.StoreURL, cfg.APIToken, identity.UserID, store.Options{
		Timeout: time.Duration(cfg.RequestTimeoutSec) * time.Second,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("creating store client: %w", err)
	}

	switch action {
	case "list":
		return listArtifacts(ctx, client)
	case "show":
		return showArtifact(ctx, client, id)
	case "publish":
		_, err := client.SetStatus(ctx, id, artifact.StatusLive)
		if err != nil {
			return fmt.Errorf("publishing %s: %w", id, err)
		}
		fmt.Printf("%s is now live\n", id)
		return nil
	case "archive":
		_, err := client.SetStatus(ctx, id, artifact.StatusArchived)
		if err != nil {
			return fmt.Errorf("archiving %s: %w", id, err)
		}
		fmt.Printf("%s archived\n", id)
		return nil
	case "delete":
		if err := client.Delete(ctx, id); err != nil {
			return fmt.Errorf("deleting %s: %w", id, err)
		}
		fmt.Printf("%s deleted\n", id)
		return nil
	default:
		// Unreachable; validateArtifactsArgs rejects unknown actions.
		return fmt.Errorf("unknown artifacts action: %s", action)
	}
}

func validateArtifactsArgs(action, id string) error {
	switch action {
	case "list":
		return nil
	case "show", "publish", "archive", "delete":
		if id == "" {
			return fmt.Errorf("artifacts %s: an artifact id is required", action)
		}
		return nil
	default:
		return fmt.Errorf("unknown artifacts action: %s", action)
	}
}

func listArtifacts(ctx context.Context, client *store.Client) error {
	artifacts, err := client.List(ctx)
	if err != nil {
		return fmt.Errorf("listing artifacts: %w", err)
	}
	if len(artifacts) == 0 {
		fmt.Println("No saved tools yet. Run `maquette` to build one.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tPHASE\tSTATUS\tUPDATED")
	for _, a := range artifacts {
		title := a.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			a.ID, title, a.EffectivePhase(), a.Status, a.UpdatedAt.Format(time.DateTime))
	}
	return w.Flush()
}

func showArtifact(ctx context.Context, client *store.Client, id string) error {
	a, err := client.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", id, err)
	}

	fmt.Printf("Title:       %s\n", a.Title)
	fmt.Printf("Description: %s\n", a.Description)
	fmt.Printf("Phase:       %s\n", a.EffectivePhase())
	fmt.Printf("Status:      %s\n", a.Status)
	fmt.Printf("Turns:       %d\n", len(a.History))
	fmt.Printf("Components:  %d\n", len(a.Content.Components))
	if a.Spec != "" {
		fmt.Println()
		fmt.Println(strings.TrimSpace(a.Spec))
	}
	return nil
}
