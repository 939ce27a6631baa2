// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/loopcast/internal/config"
	"github.com/ManuGH/loopcast/internal/daemon"
	"github.com/ManuGH/loopcast/internal/janitor"
	"github.com/ManuGH/loopcast/internal/log"
	"github.com/ManuGH/loopcast/internal/telemetry"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and relay supervisor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("cli")

	// startup preparation runs concurrently; both must finish before serving
	var tp *telemetry.Provider
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if cfg.Storage.CleanOnStartup {
			janitor.CleanAll(cfg.Storage.TempDir)
		}
		return nil
	})
	g.Go(func() error {
		p, err := telemetry.NewProvider(gctx, telemetry.Config{
			Enabled:        cfg.Telemetry.Enabled,
			ServiceName:    cfg.LogService,
			ServiceVersion: cfg.Version,
			Environment:    cfg.Telemetry.Environment,
			ExporterType:   cfg.Telemetry.Exporter,
			Endpoint:       cfg.Telemetry.Endpoint,
			SamplingRate:   cfg.Telemetry.SamplingRate,
		})
		tp = p
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	rt, err := daemon.Bootstrap(cfg, tp)
	if err != nil {
		_ = tp.Shutdown(context.Background())
		return err
	}

	logger.Info().
		Str(log.FieldEvent, "loopcast.starting").
		Str("listen", cfg.API.ListenAddr).
		Str("ffmpeg", cfg.FFmpeg.Bin).
		Msg("starting loopcast")
	return rt.App.Run(ctx)
}
