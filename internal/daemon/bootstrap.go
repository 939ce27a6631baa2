// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/loopcast/internal/api"
	"github.com/ManuGH/loopcast/internal/api/middleware"
	"github.com/ManuGH/loopcast/internal/config"
	"github.com/ManuGH/loopcast/internal/fetch"
	"github.com/ManuGH/loopcast/internal/health"
	"github.com/ManuGH/loopcast/internal/log"
	"github.com/ManuGH/loopcast/internal/platform/httpx"
	"github.com/ManuGH/loopcast/internal/relay"
	"github.com/ManuGH/loopcast/internal/source"
	"github.com/ManuGH/loopcast/internal/stream"
	"github.com/ManuGH/loopcast/internal/telemetry"
)

// Runtime is the fully wired daemon.
type Runtime struct {
	Supervisor *stream.Supervisor
	API        *api.Server
	Manager    Manager
	App        *App
}

// Bootstrap builds every component from cfg. tp may be nil; when set it is
// flushed after the supervisor has stopped.
func Bootstrap(cfg config.AppConfig, tp *telemetry.Provider) (*Runtime, error) {
	logger := log.WithComponent("daemon")

	for _, dir := range []string{cfg.Storage.UploadDir, cfg.Storage.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
		}
	}

	fetcher := fetch.New(httpx.NewStreamingClient(cfg.Fetch.IdleTimeout), fetch.Config{
		MaxRedirects: cfg.Fetch.MaxRedirects,
		IdleTimeout:  cfg.Fetch.IdleTimeout,
		RetryBackoff: cfg.Fetch.RetryBackoff,
	})
	resolver := source.NewResolver(source.Config{
		DriveMarkers:      cfg.Source.DriveMarkers,
		DriveDownloadBase: cfg.Source.DriveDownloadBase,
		TempDir:           cfg.Storage.TempDir,
		PublicBaseURL:     cfg.API.PublicBaseURL,
		DownloadAttempts:  cfg.Fetch.MaxAttempts,
		PlatformCacheTTL:  cfg.Source.PlatformCacheTTL,
	}, fetcher, source.NewYouTubeClient(httpx.NewClient(0)))

	state := stream.NewState()
	supervisor := stream.NewSupervisor(state, resolver, relay.NewRunner(cfg.FFmpeg.Bin), stream.Config{
		DefaultEndpoint: cfg.Stream.DefaultEndpoint,
		FFmpegLogLevel:  cfg.FFmpeg.LogLevel,
		TempDir:         cfg.Storage.TempDir,
		PurgeOnStop:     cfg.Storage.PurgeOnStop,
		KillGrace:       cfg.FFmpeg.KillGrace,
	})

	readiness := health.NewManager(cfg.Version)
	readiness.RegisterChecker(health.NewBinaryChecker("ffmpeg", cfg.FFmpeg.Bin))
	readiness.RegisterChecker(health.NewWritableDirChecker("upload_dir", cfg.Storage.UploadDir))
	readiness.RegisterChecker(health.NewWritableDirChecker("temp_dir", cfg.Storage.TempDir))

	stack := middleware.StackConfig{
		AllowedOrigins:   cfg.API.AllowedOrigins,
		EnableMetrics:    cfg.Metrics.Enabled,
		RateLimitEnabled: cfg.API.RateLimit.Enabled,
		RateLimitRPM:     cfg.API.RateLimit.RequestsPerMinute,
	}
	if cfg.Telemetry.Enabled {
		stack.TracingService = cfg.LogService
	}
	apiServer := api.New(api.Config{
		UploadDir:      cfg.Storage.UploadDir,
		TempDir:        cfg.Storage.TempDir,
		PublicDir:      cfg.API.PublicDir,
		PublicBaseURL:  cfg.API.PublicBaseURL,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
		Ready:          http.HandlerFunc(readiness.ServeReady),
		Stack:          stack,
	}, supervisor, state)

	deps := Deps{
		Logger:     logger,
		APIHandler: apiServer.Handler(),
	}
	if cfg.Metrics.Enabled {
		deps.MetricsHandler = metricsMux()
		deps.MetricsAddr = cfg.Metrics.ListenAddr
	}
	mgr, err := NewManager(ServerConfigFrom(cfg.API), deps)
	if err != nil {
		return nil, err
	}
	// LIFO: the supervisor stops before spans are flushed
	if tp != nil {
		mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	}
	mgr.RegisterShutdownHook("supervisor", supervisor.Shutdown)

	app := NewApp(logger, mgr, Worker{Name: "events", Run: apiServer.RunEvents})
	return &Runtime{
		Supervisor: supervisor,
		API:        apiServer,
		Manager:    mgr,
		App:        app,
	}, nil
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
