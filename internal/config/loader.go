// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment keys.
const (
	EnvDataDir          = "LOOPCAST_DATA_DIR"
	EnvLogLevel         = "LOOPCAST_LOG_LEVEL"
	EnvLogService       = "LOOPCAST_LOG_SERVICE"
	EnvListen           = "LOOPCAST_LISTEN"
	EnvPort             = "PORT"
	EnvPublicBaseURL    = "LOOPCAST_PUBLIC_BASE_URL"
	EnvPublicDir        = "LOOPCAST_PUBLIC_DIR"
	EnvAllowedOrigins   = "LOOPCAST_ALLOWED_ORIGINS"
	EnvRateLimitEnabled = "LOOPCAST_RATE_LIMIT_ENABLED"
	EnvRateLimitRPM     = "LOOPCAST_RATE_LIMIT_RPM"
	EnvMetricsEnabled   = "LOOPCAST_METRICS_ENABLED"
	EnvMetricsListen    = "LOOPCAST_METRICS_LISTEN"
	EnvDefaultEndpoint  = "LOOPCAST_DEFAULT_ENDPOINT"
	EnvFFmpegBin        = "LOOPCAST_FFMPEG_BIN"
	EnvFFmpegLogLevel   = "LOOPCAST_FFMPEG_LOGLEVEL"
	EnvFFmpegKillGrace  = "LOOPCAST_FFMPEG_KILL_GRACE"
	EnvFetchAttempts    = "LOOPCAST_FETCH_MAX_ATTEMPTS"
	EnvFetchIdle        = "LOOPCAST_FETCH_IDLE_TIMEOUT"
	EnvFetchBackoff     = "LOOPCAST_FETCH_RETRY_BACKOFF"
	EnvFetchRedirects   = "LOOPCAST_FETCH_MAX_REDIRECTS"
	EnvUploadDir        = "LOOPCAST_UPLOAD_DIR"
	EnvTempDir          = "LOOPCAST_TEMP_DIR"
	EnvMaxUploadBytes   = "LOOPCAST_MAX_UPLOAD_BYTES"
	EnvPurgeOnStop      = "LOOPCAST_PURGE_ON_STOP"
	EnvCleanOnStartup   = "LOOPCAST_CLEAN_ON_STARTUP"
	EnvDriveMarkers     = "LOOPCAST_DRIVE_MARKERS"
	EnvDriveBase        = "LOOPCAST_DRIVE_DOWNLOAD_BASE"
	EnvPlatformCacheTTL = "LOOPCAST_PLATFORM_CACHE_TTL"
	EnvTelemetryEnabled = "LOOPCAST_TELEMETRY_ENABLED"
	EnvTelemetryExport  = "LOOPCAST_TELEMETRY_EXPORTER"
	EnvTelemetryEndpt   = "LOOPCAST_TELEMETRY_ENDPOINT"
	EnvTelemetrySample  = "LOOPCAST_TELEMETRY_SAMPLING"
	EnvTelemetryEnv     = "LOOPCAST_TELEMETRY_ENVIRONMENT"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envInt64(key string, defaultVal int64) int64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt64(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseList(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults.
// Order: defaults -> strict file parse -> env -> path resolution -> validate.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	cfg.Version = l.version

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)

	if err := resolvePaths(&cfg); err != nil {
		return cfg, err
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadFile decodes the YAML file on top of cfg. Keys absent from the file keep
// their current value.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	// #nosec G304 -- operator supplied path
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("%w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.DataDir = l.envString(EnvDataDir, cfg.DataDir)
	cfg.LogLevel = l.envString(EnvLogLevel, cfg.LogLevel)
	cfg.LogService = l.envString(EnvLogService, cfg.LogService)

	// PORT keeps parity with plain "PORT=8080 loopcast serve" deployments;
	// LOOPCAST_LISTEN wins when both are set.
	if port := strings.TrimSpace(l.envString(EnvPort, "")); port != "" {
		cfg.API.ListenAddr = ":" + strings.TrimPrefix(port, ":")
	}
	cfg.API.ListenAddr = l.envString(EnvListen, cfg.API.ListenAddr)
	cfg.API.PublicBaseURL = strings.TrimRight(l.envString(EnvPublicBaseURL, cfg.API.PublicBaseURL), "/")
	cfg.API.PublicDir = l.envString(EnvPublicDir, cfg.API.PublicDir)
	cfg.API.AllowedOrigins = l.envList(EnvAllowedOrigins, cfg.API.AllowedOrigins)
	cfg.API.RateLimit.Enabled = l.envBool(EnvRateLimitEnabled, cfg.API.RateLimit.Enabled)
	cfg.API.RateLimit.RequestsPerMinute = l.envInt(EnvRateLimitRPM, cfg.API.RateLimit.RequestsPerMinute)

	cfg.Metrics.Enabled = l.envBool(EnvMetricsEnabled, cfg.Metrics.Enabled)
	cfg.Metrics.ListenAddr = l.envString(EnvMetricsListen, cfg.Metrics.ListenAddr)

	cfg.Stream.DefaultEndpoint = l.envString(EnvDefaultEndpoint, cfg.Stream.DefaultEndpoint)

	cfg.FFmpeg.Bin = l.envString(EnvFFmpegBin, cfg.FFmpeg.Bin)
	cfg.FFmpeg.LogLevel = l.envString(EnvFFmpegLogLevel, cfg.FFmpeg.LogLevel)
	cfg.FFmpeg.KillGrace = l.envDuration(EnvFFmpegKillGrace, cfg.FFmpeg.KillGrace)

	cfg.Fetch.MaxAttempts = l.envInt(EnvFetchAttempts, cfg.Fetch.MaxAttempts)
	cfg.Fetch.IdleTimeout = l.envDuration(EnvFetchIdle, cfg.Fetch.IdleTimeout)
	cfg.Fetch.RetryBackoff = l.envDuration(EnvFetchBackoff, cfg.Fetch.RetryBackoff)
	cfg.Fetch.MaxRedirects = l.envInt(EnvFetchRedirects, cfg.Fetch.MaxRedirects)

	cfg.Storage.UploadDir = l.envString(EnvUploadDir, cfg.Storage.UploadDir)
	cfg.Storage.TempDir = l.envString(EnvTempDir, cfg.Storage.TempDir)
	cfg.Storage.MaxUploadBytes = l.envInt64(EnvMaxUploadBytes, cfg.Storage.MaxUploadBytes)
	cfg.Storage.PurgeOnStop = l.envBool(EnvPurgeOnStop, cfg.Storage.PurgeOnStop)
	cfg.Storage.CleanOnStartup = l.envBool(EnvCleanOnStartup, cfg.Storage.CleanOnStartup)

	cfg.Source.DriveMarkers = l.envList(EnvDriveMarkers, cfg.Source.DriveMarkers)
	cfg.Source.DriveDownloadBase = l.envString(EnvDriveBase, cfg.Source.DriveDownloadBase)
	cfg.Source.PlatformCacheTTL = l.envDuration(EnvPlatformCacheTTL, cfg.Source.PlatformCacheTTL)

	cfg.Telemetry.Enabled = l.envBool(EnvTelemetryEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(EnvTelemetryExport, cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(EnvTelemetryEndpt, cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat(EnvTelemetrySample, cfg.Telemetry.SamplingRate)
	cfg.Telemetry.Environment = l.envString(EnvTelemetryEnv, cfg.Telemetry.Environment)
}

// resolvePaths makes DataDir absolute and anchors relative storage paths under it.
func resolvePaths(cfg *AppConfig) error {
	abs, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = abs

	anchor := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(cfg.DataDir, p)
	}
	cfg.Storage.UploadDir = anchor(cfg.Storage.UploadDir)
	cfg.Storage.TempDir = anchor(cfg.Storage.TempDir)
	if cfg.API.PublicDir != "" {
		cfg.API.PublicDir = anchor(cfg.API.PublicDir)
	}
	return nil
}
