// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "time"

// Default values.
const (
	DefaultListenAddr        = ":3000"
	DefaultMetricsListenAddr = ":9091"
	DefaultEndpoint          = "rtmp://a.rtmp.youtube.com/live2"
	DefaultDriveDownloadBase = "https://drive.google.com/uc"
	DefaultMaxUploadBytes    = 50 << 20
)

// AppConfig is the effective runtime configuration. The yaml tags describe the
// on-disk file layout; every field can also be overridden from the environment.
type AppConfig struct {
	Version    string `yaml:"-"`
	DataDir    string `yaml:"dataDir,omitempty"`
	LogLevel   string `yaml:"logLevel,omitempty"`
	LogService string `yaml:"logService,omitempty"`

	API       APIConfig       `yaml:"api"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Stream    StreamConfig    `yaml:"stream"`
	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Storage   StorageConfig   `yaml:"storage"`
	Source    SourceConfig    `yaml:"source"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// APIConfig configures the HTTP API listener.
type APIConfig struct {
	ListenAddr     string          `yaml:"listenAddr,omitempty"`
	PublicBaseURL  string          `yaml:"publicBaseURL,omitempty"`
	PublicDir      string          `yaml:"publicDir,omitempty"`
	AllowedOrigins []string        `yaml:"allowedOrigins,omitempty"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`

	ReadTimeout     time.Duration `yaml:"readTimeout,omitempty"`
	WriteTimeout    time.Duration `yaml:"writeTimeout,omitempty"`
	IdleTimeout     time.Duration `yaml:"idleTimeout,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout,omitempty"`
}

// RateLimitConfig configures per-IP request limiting.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute,omitempty"`
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listenAddr,omitempty"`
}

// StreamConfig holds relay destination defaults.
type StreamConfig struct {
	// DefaultEndpoint is used when a start request omits the destination.
	DefaultEndpoint string `yaml:"defaultEndpoint,omitempty"`
}

// FFmpegConfig configures the transcode binary.
type FFmpegConfig struct {
	Bin       string        `yaml:"bin,omitempty"`
	LogLevel  string        `yaml:"logLevel,omitempty"`
	KillGrace time.Duration `yaml:"killGrace,omitempty"`
}

// FetchConfig configures remote downloads.
type FetchConfig struct {
	MaxAttempts  int           `yaml:"maxAttempts,omitempty"`
	IdleTimeout  time.Duration `yaml:"idleTimeout,omitempty"`
	RetryBackoff time.Duration `yaml:"retryBackoff,omitempty"`
	MaxRedirects int           `yaml:"maxRedirects,omitempty"`
}

// StorageConfig configures local media directories.
type StorageConfig struct {
	UploadDir      string `yaml:"uploadDir,omitempty"`
	TempDir        string `yaml:"tempDir,omitempty"`
	MaxUploadBytes int64  `yaml:"maxUploadBytes,omitempty"`
	PurgeOnStop    bool   `yaml:"purgeOnStop"`
	CleanOnStartup bool   `yaml:"cleanOnStartup"`
}

// SourceConfig configures source classification.
type SourceConfig struct {
	DriveMarkers      []string      `yaml:"driveMarkers,omitempty"`
	DriveDownloadBase string        `yaml:"driveDownloadBase,omitempty"`
	PlatformCacheTTL  time.Duration `yaml:"platformCacheTTL,omitempty"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter,omitempty"`
	Endpoint     string  `yaml:"endpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty"`
	Environment  string  `yaml:"environment,omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		DataDir:    ".",
		LogLevel:   "info",
		LogService: "loopcast",
		API: APIConfig{
			ListenAddr: DefaultListenAddr,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 600,
			},
			ReadTimeout: 30 * time.Second,
			// Start requests block while drive sources download.
			WriteTimeout:    0,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:    true,
			ListenAddr: DefaultMetricsListenAddr,
		},
		Stream: StreamConfig{
			DefaultEndpoint: DefaultEndpoint,
		},
		FFmpeg: FFmpegConfig{
			Bin:       "ffmpeg",
			LogLevel:  "info",
			KillGrace: 5 * time.Second,
		},
		Fetch: FetchConfig{
			MaxAttempts:  3,
			IdleTimeout:  30 * time.Second,
			RetryBackoff: time.Second,
			MaxRedirects: 10,
		},
		Storage: StorageConfig{
			UploadDir:      "uploads",
			TempDir:        "temp",
			MaxUploadBytes: DefaultMaxUploadBytes,
			PurgeOnStop:    true,
			CleanOnStartup: true,
		},
		Source: SourceConfig{
			DriveMarkers:      []string{"drive.google.com"},
			DriveDownloadBase: DefaultDriveDownloadBase,
			PlatformCacheTTL:  5 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "http",
			Endpoint:     "localhost:4318",
			SamplingRate: 1.0,
			Environment:  "production",
		},
	}
}
