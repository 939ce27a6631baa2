// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api exposes the relay over HTTP: stream control, uploads, static
// media and a websocket status feed.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ManuGH/loopcast/internal/api/middleware"
	"github.com/ManuGH/loopcast/internal/log"
	"github.com/ManuGH/loopcast/internal/stream"
)

// StreamController is the relay surface the handlers drive.
type StreamController interface {
	Start(ctx context.Context, req stream.StartRequest) (stream.Status, error)
	Stop(ctx context.Context) (stream.Status, error)
	Status() stream.Status
}

// StatusFeed publishes every status change.
type StatusFeed interface {
	Subscribe(fn stream.Observer) (unsubscribe func())
}

// Config configures the HTTP surface.
type Config struct {
	UploadDir string
	TempDir   string
	// PublicDir optionally serves a static web UI at /.
	PublicDir string
	// PublicBaseURL prefixes upload URLs; empty derives it from the request.
	PublicBaseURL  string
	MaxUploadBytes int64
	// Ready serves /readyz when set.
	Ready http.Handler

	Stack middleware.StackConfig
}

// Server holds the router and its collaborators.
type Server struct {
	cfg    Config
	ctrl   StreamController
	feed   StatusFeed
	hub    *eventHub
	router chi.Router
	logger zerolog.Logger
}

// New builds the server and its routes.
func New(cfg Config, ctrl StreamController, feed StatusFeed) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	logger := log.WithComponent("api")
	s := &Server{
		cfg:    cfg,
		ctrl:   ctrl,
		feed:   feed,
		logger: logger,
	}
	s.hub = newEventHub(logger, func() any { return s.ctrl.Status() })
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// RunEvents feeds status changes to websocket clients until ctx is done.
func (s *Server) RunEvents(ctx context.Context) error {
	if s.feed != nil {
		unsubscribe := s.feed.Subscribe(func(st stream.Status) {
			s.hub.publish(msgTypeStatus, st)
		})
		defer unsubscribe()
	}
	s.hub.run(ctx)
	return nil
}

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(s.cfg.Stack)

	r.Get("/healthz", s.handleHealth)
	if s.cfg.Ready != nil {
		r.Method(http.MethodGet, "/readyz", s.cfg.Ready)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/stream", func(r chi.Router) {
			r.Post("/start", s.handleStart)
			r.Post("/stop", s.handleStop)
			r.Get("/status", s.handleStatus)
			r.Get("/events", s.handleEvents)
		})
		r.Post("/upload", s.handleUpload)
	})

	r.Handle("/uploads/*", mediaFileServer("/uploads/", s.cfg.UploadDir))
	r.Handle("/temp/*", mediaFileServer("/temp/", s.cfg.TempDir))

	if s.cfg.PublicDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.cfg.PublicDir)))
	}
	return r
}
