// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	platformnet "github.com/ManuGH/loopcast/internal/platform/net"
)

// Validate checks the effective configuration and returns every problem at once.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(field, msg string, value any) {
		errs = append(errs, fmt.Errorf("%s: %s (got %v)", field, msg, value))
	}

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		add("logLevel", "unknown log level", cfg.LogLevel)
	}

	if err := validateListenAddr(cfg.API.ListenAddr); err != nil {
		add("api.listenAddr", err.Error(), cfg.API.ListenAddr)
	}
	if cfg.Metrics.Enabled {
		if err := validateListenAddr(cfg.Metrics.ListenAddr); err != nil {
			add("metrics.listenAddr", err.Error(), cfg.Metrics.ListenAddr)
		}
	}
	if cfg.API.PublicBaseURL != "" {
		if _, ok := platformnet.ParseHTTPURL(cfg.API.PublicBaseURL); !ok {
			add("api.publicBaseURL", "must be an absolute http(s) URL", cfg.API.PublicBaseURL)
		}
	}
	if cfg.API.RateLimit.Enabled && cfg.API.RateLimit.RequestsPerMinute <= 0 {
		add("api.rateLimit.requestsPerMinute", "must be positive when rate limiting is enabled", cfg.API.RateLimit.RequestsPerMinute)
	}
	if cfg.API.ReadTimeout < 0 || cfg.API.WriteTimeout < 0 || cfg.API.IdleTimeout < 0 {
		add("api.timeouts", "must not be negative", "")
	}

	if u, err := url.Parse(cfg.Stream.DefaultEndpoint); err != nil || !strings.HasPrefix(u.Scheme, "rtmp") || u.Host == "" {
		add("stream.defaultEndpoint", "must be an rtmp:// or rtmps:// URL", cfg.Stream.DefaultEndpoint)
	}

	if strings.TrimSpace(cfg.FFmpeg.Bin) == "" {
		add("ffmpeg.bin", "must not be empty", cfg.FFmpeg.Bin)
	}
	if cfg.FFmpeg.KillGrace < 0 {
		add("ffmpeg.killGrace", "must not be negative", cfg.FFmpeg.KillGrace)
	}

	if cfg.Fetch.MaxAttempts < 1 || cfg.Fetch.MaxAttempts > 10 {
		add("fetch.maxAttempts", "must be between 1 and 10", cfg.Fetch.MaxAttempts)
	}
	if cfg.Fetch.IdleTimeout <= 0 {
		add("fetch.idleTimeout", "must be positive", cfg.Fetch.IdleTimeout)
	}
	if cfg.Fetch.RetryBackoff < 0 {
		add("fetch.retryBackoff", "must not be negative", cfg.Fetch.RetryBackoff)
	}
	if cfg.Fetch.MaxRedirects < 0 || cfg.Fetch.MaxRedirects > 30 {
		add("fetch.maxRedirects", "must be between 0 and 30", cfg.Fetch.MaxRedirects)
	}

	if cfg.Storage.UploadDir == "" || cfg.Storage.TempDir == "" {
		add("storage", "uploadDir and tempDir are required", "")
	} else if filepath.Clean(cfg.Storage.UploadDir) == filepath.Clean(cfg.Storage.TempDir) {
		// The janitor empties tempDir on start-up.
		add("storage.tempDir", "must differ from uploadDir", cfg.Storage.TempDir)
	}
	if cfg.Storage.MaxUploadBytes <= 0 {
		add("storage.maxUploadBytes", "must be positive", cfg.Storage.MaxUploadBytes)
	}

	if len(cfg.Source.DriveMarkers) == 0 {
		add("source.driveMarkers", "must list at least one marker", "")
	}
	if u, err := url.Parse(cfg.Source.DriveDownloadBase); err != nil || u.Scheme == "" || u.Host == "" {
		add("source.driveDownloadBase", "must be an absolute URL", cfg.Source.DriveDownloadBase)
	}

	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.Exporter {
		case "http", "grpc":
		default:
			add("telemetry.exporter", "must be http or grpc", cfg.Telemetry.Exporter)
		}
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			add("telemetry.samplingRate", "must be within [0,1]", cfg.Telemetry.SamplingRate)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func validateListenAddr(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return fmt.Errorf("must not be empty")
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("must be host:port or :port")
	}
	return nil
}
