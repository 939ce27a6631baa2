// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package fetch downloads remote media into local files.
//
// Each attempt streams into a pending file next to the destination; the file
// only appears under its final name once the body has been read completely.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dustin/go-humanize"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ManuGH/loopcast/internal/log"
	"github.com/ManuGH/loopcast/internal/metrics"
	platformnet "github.com/ManuGH/loopcast/internal/platform/net"
	"github.com/ManuGH/loopcast/internal/telemetry"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultMaxRedirects = 10
	DefaultIdleTimeout  = 30 * time.Second
	DefaultRetryBackoff = time.Second
)

// Config tunes download behaviour.
type Config struct {
	MaxRedirects int
	IdleTimeout  time.Duration
	RetryBackoff time.Duration
}

// Fetcher downloads files over HTTP with bounded retries.
type Fetcher struct {
	client     *http.Client
	cfg        Config
	logger     zerolog.Logger
	newBackOff func() backoff.BackOff
}

// job is the state carried across attempts of one download.
type job struct {
	url          string
	dest         string
	attemptsLeft int
	redirects    int
}

// New returns a Fetcher. The client must not follow redirects itself
// (see httpx.NewStreamingClient); when it does, the redirect limit is not enforced.
func New(client *http.Client, cfg Config) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	delay := cfg.RetryBackoff
	return &Fetcher{
		client: client,
		cfg:    cfg,
		logger: log.WithComponent("fetch"),
		newBackOff: func() backoff.BackOff {
			return backoff.NewConstantBackOff(delay)
		},
	}
}

// Download fetches rawURL into dest, making at most maxAttempts attempts.
// Redirects do not count as attempts. On failure no file exists at dest.
func (f *Fetcher) Download(ctx context.Context, rawURL, dest string, maxAttempts int) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	ctx, span := telemetry.Tracer("loopcast/fetch").Start(ctx, "fetch.download")
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.FetchURLKey, platformnet.SanitizeURL(rawURL)),
		attribute.Int(telemetry.FetchMaxAttemptsKey, maxAttempts),
	)

	logger := log.WithContext(ctx, f.logger).With().
		Str(log.FieldURL, platformnet.SanitizeURL(rawURL)).
		Str(log.FieldPath, dest).
		Logger()

	j := &job{url: rawURL, dest: dest, attemptsLeft: maxAttempts}
	bo := f.newBackOff()
	start := time.Now()

	for attempt := 1; ; attempt++ {
		n, err := f.attempt(ctx, j)
		if err == nil {
			metrics.IncFetchAttempt("success")
			metrics.AddFetchBytes(n)
			metrics.ObserveFetchDuration("success", time.Since(start).Seconds())
			span.SetAttributes(attribute.Int64(telemetry.FetchBytesKey, n), attribute.Int(telemetry.FetchAttemptsKey, attempt))
			logger.Info().
				Str(log.FieldEvent, "fetch.completed").
				Int(log.FieldAttempt, attempt).
				Int64(log.FieldBytes, n).
				Str("size", humanize.Bytes(uint64(n))).
				Dur("duration", time.Since(start)).
				Msg("download completed")
			return nil
		}

		j.attemptsLeft--
		retryable := !isPermanent(err) && ctx.Err() == nil && j.attemptsLeft > 0
		metrics.IncFetchAttempt(attemptResult(ctx, err))

		if !retryable {
			metrics.ObserveFetchDuration("failure", time.Since(start).Seconds())
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Warn().
				Err(err).
				Str(log.FieldEvent, "fetch.failed").
				Int(log.FieldAttempt, attempt).
				Msg("download failed")
			if errors.Is(err, ErrDownloadFailed) {
				return err
			}
			return fmt.Errorf("%w after %d attempt(s): %w", ErrDownloadFailed, attempt, err)
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return fmt.Errorf("%w: backoff exhausted: %w", ErrDownloadFailed, err)
		}
		logger.Warn().
			Err(err).
			Str(log.FieldEvent, "fetch.retry").
			Int(log.FieldAttempt, attempt).
			Int("attempts_left", j.attemptsLeft).
			Dur("backoff", wait).
			Msg("download attempt failed, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", ErrDownloadFailed, ctx.Err())
		case <-timer.C:
		}
	}
}

func attemptResult(ctx context.Context, err error) string {
	switch {
	case ctx.Err() != nil:
		return "canceled"
	case errors.Is(err, ErrUnexpectedContentType):
		return "content_type"
	case errors.Is(err, errIdleTimeout):
		return "idle_timeout"
	default:
		return "error"
	}
}

// attempt performs one download attempt, following redirects in place.
func (f *Fetcher) attempt(ctx context.Context, j *job) (int64, error) {
	attemptCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	// The watchdog fires when neither headers nor body bytes arrive in time.
	watchdog := time.AfterFunc(f.cfg.IdleTimeout, func() { cancel(errIdleTimeout) })
	defer watchdog.Stop()

	for {
		req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, j.url, nil)
		if err != nil {
			return 0, permanent(fmt.Errorf("%w: build request: %w", ErrDownloadFailed, err))
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return 0, attemptErr(attemptCtx, err)
		}

		if isRedirect(resp.StatusCode) {
			location := resp.Header.Get("Location")
			drain(resp.Body)
			if location == "" {
				return 0, fmt.Errorf("redirect %d without location", resp.StatusCode)
			}
			next, err := resolveLocation(j.url, location)
			if err != nil {
				return 0, permanent(fmt.Errorf("%w: bad redirect location: %w", ErrDownloadFailed, err))
			}
			j.redirects++
			if j.redirects > f.cfg.MaxRedirects {
				return 0, permanent(ErrTooManyRedirects)
			}
			f.logger.Debug().
				Str(log.FieldEvent, "fetch.redirect").
				Int("status", resp.StatusCode).
				Str(log.FieldURL, platformnet.SanitizeURL(next)).
				Msg("following redirect")
			j.url = next
			watchdog.Reset(f.cfg.IdleTimeout)
			continue
		}

		n, err := f.persist(attemptCtx, resp, j.dest, watchdog)
		if err != nil {
			return 0, attemptErr(attemptCtx, err)
		}
		return n, nil
	}
}

// persist validates the response and writes its body to dest atomically.
func (f *Fetcher) persist(ctx context.Context, resp *http.Response, dest string, watchdog *time.Timer) (int64, error) {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drain(resp.Body)
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !acceptableContentType(ct) {
		return 0, permanent(fmt.Errorf("%w: %q", ErrUnexpectedContentType, ct))
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return 0, permanent(fmt.Errorf("%w: create directory: %w", ErrDownloadFailed, err))
	}
	pf, err := renameio.NewPendingFile(dest,
		renameio.WithTempDir(filepath.Dir(dest)),
		renameio.WithPermissions(0o644),
	)
	if err != nil {
		return 0, permanent(fmt.Errorf("%w: create pending file: %w", ErrDownloadFailed, err))
	}
	defer func() { _ = pf.Cleanup() }()

	body := &progressReader{r: resp.Body, onProgress: func() { watchdog.Reset(f.cfg.IdleTimeout) }}
	n, err := io.Copy(pf, body)
	if err != nil {
		return n, err
	}
	if ctx.Err() != nil {
		return n, context.Cause(ctx)
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		return n, fmt.Errorf("short body: got %d of %d bytes", n, resp.ContentLength)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return n, permanent(fmt.Errorf("%w: commit file: %w", ErrDownloadFailed, err))
	}
	return n, nil
}

// attemptErr maps an attempt failure to its cause when the watchdog fired.
func attemptErr(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); errors.Is(cause, errIdleTimeout) {
		return errIdleTimeout
	}
	return err
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func resolveLocation(base, location string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(ref).String(), nil
}

func acceptableContentType(ct string) bool {
	if ct == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	}
	return strings.HasPrefix(mediaType, "video/") || mediaType == "application/octet-stream"
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}

type progressReader struct {
	r          io.Reader
	onProgress func()
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.onProgress()
	}
	return n, err
}
