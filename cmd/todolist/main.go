// Package main is the entry point for the todolist CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"todolist/internal/backend/googletasks"
	"todolist/internal/backend/memory"
	"todolist/internal/backend/realtime"
	"todolist/internal/backend/sqlite"
	"todolist/internal/cli"
	"todolist/internal/commands"
	"todolist/internal/config"
	"todolist/internal/service"
)

func main() {
	// Cancel on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, newService)

	code := dispatcher.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// newService opens the configured backend.
func newService(ctx context.Context, cfg *config.Config) (service.Service, error) {
	logger := commands.NewLogger(cfg, os.Stderr)

	switch cfg.Backend {
	case config.BackendMemory:
		return memory.New(), nil

	case config.BackendSQLite:
		return sqlite.Open(ctx, cfg.DatabasePath, sqlite.WithLogger(logger))

	case config.BackendRealtime:
		return realtime.NewClient(cfg.ServerURL, realtime.WithClientLogger(logger))

	case config.BackendGoogleTasks:
		if !cfg.HasOAuthClient() || !cfg.HasToken() {
			return nil, fmt.Errorf("%w: not logged in (run: todolist login)", cli.ErrAuth)
		}
		c, err := googletasks.New(ctx, cfg, logger)
		if errors.Is(err, googletasks.ErrAuth) {
			return nil, fmt.Errorf("%w: %v", cli.ErrAuth, err)
		}
		return c, err

	default:
		return nil, fmt.Errorf("unknown backend: %s", cfg.Backend)
	}
}
