// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package middleware provides the HTTP ingress stack for the loopcast API.
package middleware

import (
	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/loopcast/internal/log"
)

// StackConfig configures the canonical HTTP ingress middleware stack.
type StackConfig struct {
	AllowedOrigins []string
	CSP            string

	EnableMetrics  bool
	TracingService string // empty disables tracing

	RateLimitEnabled bool
	RateLimitRPM     int
}

// NewRouter constructs a chi router with the canonical middleware stack applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack applies the canonical middleware stack to r.
func ApplyStack(r chi.Router, cfg StackConfig) {
	// 1. Recoverer (outermost safety net)
	r.Use(Recoverer)
	// 2. RequestID (correlation early)
	r.Use(RequestID)
	// 3. CORS (browser clients and preflight)
	r.Use(CORS(cfg.AllowedOrigins))
	// 4. Security headers
	r.Use(SecurityHeaders(cfg.CSP))
	// 5. Metrics
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	// 6. Tracing
	if cfg.TracingService != "" {
		r.Use(Tracing(cfg.TracingService))
	}
	// 7. Logging (wraps handlers, captures full latency)
	r.Use(log.Middleware())
	// 8. Rate limit
	if cfg.RateLimitEnabled {
		r.Use(APIRateLimit(cfg.RateLimitRPM))
	}
}
