// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package stream owns the single relay session: it resolves the source,
// launches the relay process and tracks the lifecycle
// idle -> starting -> active -> stopping -> idle.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/loopcast/internal/janitor"
	"github.com/ManuGH/loopcast/internal/log"
	"github.com/ManuGH/loopcast/internal/metrics"
	"github.com/ManuGH/loopcast/internal/relay"
	"github.com/ManuGH/loopcast/internal/source"
)

const (
	// DefaultEndpoint is used when neither the request nor Config names one.
	DefaultEndpoint = "rtmp://a.rtmp.youtube.com/live2"

	stderrTailLines = 20
)

// Resolver turns a source reference into playable media.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (source.Resolved, error)
}

// Config tunes the Supervisor.
type Config struct {
	DefaultEndpoint string
	FFmpegLogLevel  string
	// TempDir bounds which files the supervisor may purge.
	TempDir     string
	PurgeOnStop bool
	KillGrace   time.Duration
}

// StartRequest carries the caller supplied start parameters.
type StartRequest struct {
	Destination     string
	StreamKey       string
	SourceReference string
}

// Supervisor drives the relay state machine.
type Supervisor struct {
	state    *State
	resolver Resolver
	launcher relay.Launcher
	cfg      Config
	logger   zerolog.Logger

	watchers sync.WaitGroup
	now      func() time.Time
}

// NewSupervisor wires a Supervisor around an injected State.
func NewSupervisor(state *State, resolver Resolver, launcher relay.Launcher, cfg Config) *Supervisor {
	if state == nil {
		state = NewState()
	}
	if cfg.DefaultEndpoint == "" {
		cfg.DefaultEndpoint = DefaultEndpoint
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = 5 * time.Second
	}
	return &Supervisor{
		state:    state,
		resolver: resolver,
		launcher: launcher,
		cfg:      cfg,
		logger:   log.WithComponent("supervisor"),
		now:      time.Now,
	}
}

// Status returns the current snapshot.
func (s *Supervisor) Status() Status { return s.state.Snapshot() }

func (s *Supervisor) validate(req StartRequest) (StartRequest, error) {
	req.Destination = strings.TrimSpace(req.Destination)
	req.StreamKey = strings.TrimSpace(req.StreamKey)
	req.SourceReference = strings.TrimSpace(req.SourceReference)

	var missing []string
	if req.StreamKey == "" {
		missing = append(missing, "streamKey")
	}
	if req.SourceReference == "" {
		missing = append(missing, "sourceReference")
	}
	if len(missing) > 0 {
		return req, fmt.Errorf("%w: missing %s", ErrInvalidInput, strings.Join(missing, " and "))
	}
	// keys are opaque; some providers embed a query string in them
	if strings.IndexFunc(req.StreamKey, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return req, fmt.Errorf("%w: stream key contains whitespace or control characters", ErrInvalidInput)
	}
	if req.Destination == "" {
		req.Destination = s.cfg.DefaultEndpoint
	}
	u, err := url.Parse(req.Destination)
	if err != nil || (u.Scheme != "rtmp" && u.Scheme != "rtmps") || u.Host == "" {
		return req, fmt.Errorf("%w: destination must be an rtmp:// or rtmps:// URL", ErrInvalidInput)
	}
	return req, nil
}

// Start resolves the source, launches the relay and returns once the
// process has started. The relay keeps running after ctx ends.
func (s *Supervisor) Start(ctx context.Context, req StartRequest) (Status, error) {
	req, err := s.validate(req)
	if err != nil {
		metrics.IncStreamStart("invalid")
		return s.Status(), err
	}

	begin := s.now()
	sessionID := uuid.NewString()
	// the session outlives the request; keep its values, drop its deadline
	runCtx, cancel := context.WithCancel(log.ContextWithSessionID(context.WithoutCancel(ctx), sessionID))
	logger := log.WithContext(runCtx, s.logger)

	sess := &Session{
		ID:              sessionID,
		Destination:     req.Destination,
		StreamKey:       req.StreamKey,
		SourceReference: req.SourceReference,
		cancel:          cancel,
	}
	gen, err := s.state.reserve(sess)
	if err != nil {
		cancel()
		metrics.IncStreamStart("rejected")
		return s.Status(), err
	}
	logger.Info().
		Str(log.FieldEvent, "stream.starting").
		Uint64(log.FieldGeneration, gen).
		Str(log.FieldDestination, req.Destination).
		Msg("stream start accepted")

	resolved, err := s.resolver.Resolve(runCtx, req.SourceReference)
	if err != nil {
		cancel()
		if !s.state.release(gen) {
			metrics.IncStreamStart("cancelled")
			return s.Status(), fmt.Errorf("%w: %w", ErrStartCancelled, err)
		}
		metrics.IncStreamStart("resolve_failed")
		logger.Warn().Err(err).Str(log.FieldEvent, "stream.start_failed").Msg("source resolution failed")
		return s.Status(), err
	}

	if !s.state.current(gen) {
		cancel()
		s.purge(resolved, true)
		metrics.IncStreamStart("cancelled")
		return s.Status(), ErrStartCancelled
	}

	proc, err := s.launcher.Launch(runCtx, relay.Spec{
		Input:       resolved.Input(),
		Destination: req.Destination,
		StreamKey:   req.StreamKey,
		Container:   resolved.Container,
		LogLevel:    s.cfg.FFmpegLogLevel,
	})
	if err != nil {
		cancel()
		s.purge(resolved, true)
		if !s.state.release(gen) {
			metrics.IncStreamStart("cancelled")
			return s.Status(), fmt.Errorf("%w: %w", ErrStartCancelled, err)
		}
		metrics.IncStreamStart("launch_failed")
		logger.Error().Err(err).Str(log.FieldEvent, "stream.start_failed").Msg("relay launch failed")
		return s.Status(), fmt.Errorf("%w: %w", ErrProcessFault, err)
	}

	startedAt := s.now()
	if !s.state.commit(gen, proc, resolved, startedAt) {
		// stopped while launching
		_ = proc.Kill()
		cancel()
		s.purge(resolved, true)
		metrics.IncStreamStart("cancelled")
		return s.Status(), ErrStartCancelled
	}

	s.watchers.Add(1)
	go s.watch(gen, sess, proc)

	metrics.IncStreamStart("success")
	metrics.ObserveStartupLatency(string(resolved.Kind), startedAt.Sub(begin).Seconds())
	logger.Info().
		Str(log.FieldEvent, "stream.started").
		Uint64(log.FieldGeneration, gen).
		Int(log.FieldPID, proc.Pid()).
		Str(log.FieldSourceKind, string(resolved.Kind)).
		Str(log.FieldDestination, req.Destination).
		Dur("startup", startedAt.Sub(begin)).
		Msg("stream started")
	return s.Status(), nil
}

// watch waits for the process to exit and clears the session if it still
// belongs to generation gen.
func (s *Supervisor) watch(gen uint64, sess *Session, proc relay.Process) {
	defer s.watchers.Done()
	<-proc.Done()
	exit := proc.Exit()

	if _, ok := s.state.clearIfCurrent(gen); !ok {
		return
	}
	sess.cancel()
	s.purge(sess.Source, s.cfg.PurgeOnStop)

	logger := s.logger.With().
		Str(log.FieldSessionID, sess.ID).
		Uint64(log.FieldGeneration, gen).
		Int(log.FieldPID, proc.Pid()).
		Int(log.FieldExitCode, exit.Code).
		Logger()
	if exit.Clean() {
		logger.Info().Str(log.FieldEvent, "stream.ended").Msg("relay input ended, stream stopped")
		return
	}
	logger.Error().
		Err(fmt.Errorf("%w: %w", ErrProcessFault, exit.Err)).
		Str(log.FieldEvent, "stream.fault").
		Str("reason", exit.Reason()).
		Strs("stderr", proc.Stderr(stderrTailLines)).
		Msg("relay process failed, stream stopped")
}

// Stop kills the relay without waiting for it to exit. A stop during
// starting cancels the in-flight resolution.
func (s *Supervisor) Stop(ctx context.Context) (Status, error) {
	sess, err := s.state.beginStop()
	if err != nil {
		return s.Status(), err
	}
	s.teardown(sess, func(p relay.Process) {
		if err := p.Kill(); err != nil {
			s.logger.Warn().Err(err).Int(log.FieldPID, p.Pid()).Msg("kill relay process group")
		}
	})
	s.state.finishStop()

	logger := log.WithContext(ctx, s.logger)
	logger.Info().
		Str(log.FieldEvent, "stream.stopped").
		Str(log.FieldSessionID, sess.ID).
		Msg("stream stopped")
	return s.Status(), nil
}

// Shutdown stops any session gracefully and waits for watchers to finish.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	if sess, err := s.state.beginStop(); err == nil {
		s.teardown(sess, func(p relay.Process) { p.Terminate(s.cfg.KillGrace) })
		s.state.finishStop()
	}

	done := make(chan struct{})
	go func() {
		s.watchers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("supervisor shutdown: %w", ctx.Err())
	}
}

func (s *Supervisor) teardown(sess *Session, stop func(relay.Process)) {
	if sess == nil {
		return
	}
	if sess.cancel != nil {
		sess.cancel()
	}
	if sess.Process != nil {
		stop(sess.Process)
	}
	s.purge(sess.Source, s.cfg.PurgeOnStop)
}

// purge removes a session's downloaded file when enabled.
func (s *Supervisor) purge(res source.Resolved, enabled bool) {
	if !enabled || res.LocalPath == "" || s.cfg.TempDir == "" {
		return
	}
	if err := janitor.Remove(s.cfg.TempDir, res.LocalPath); err != nil && !errors.Is(err, janitor.ErrOutsideDir) {
		s.logger.Warn().Err(err).Str(log.FieldPath, res.LocalPath).Msg("purge session file")
	}
}
