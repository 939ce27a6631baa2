// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/loopcast/internal/log"
)

// Worker is a background loop that runs until its context ends.
type Worker struct {
	Name string
	Run  func(ctx context.Context) error
}

// App owns the long-lived runtime (background workers) and delegates server
// management to Manager.
type App struct {
	logger  zerolog.Logger
	manager Manager
	workers []Worker
}

// NewApp creates a new App orchestrator.
func NewApp(logger zerolog.Logger, manager Manager, workers ...Worker) *App {
	return &App{
		logger:  logger,
		manager: manager,
		workers: workers,
	}
}

// Run starts the workers and the servers and blocks until ctx is cancelled or
// one of them fails.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, w := range a.workers {
		g.Go(func() error {
			a.logger.Debug().Str("worker", w.Name).Msg("worker started")
			if err := w.Run(ctx); err != nil {
				a.logger.Error().Err(err).Str(log.FieldEvent, "worker.failed").Str("worker", w.Name).Msg("worker failed")
				return fmt.Errorf("%s: %w", w.Name, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}
