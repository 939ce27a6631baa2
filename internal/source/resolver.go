// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package source turns user supplied source references into media the relay
// can read: platform share links, drive share links and direct URLs.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"

	"github.com/ManuGH/loopcast/internal/log"
	"github.com/ManuGH/loopcast/internal/metrics"
	platformnet "github.com/ManuGH/loopcast/internal/platform/net"
	"github.com/ManuGH/loopcast/internal/telemetry"
)

// DefaultDriveExt is the extension given to downloaded drive files.
const DefaultDriveExt = ".mp4"

// Downloader fetches a remote file into dest.
type Downloader interface {
	Download(ctx context.Context, rawURL, dest string, maxAttempts int) error
}

// Config configures a Resolver.
type Config struct {
	DriveMarkers      []string
	DriveDownloadBase string
	TempDir           string
	PublicBaseURL     string
	DownloadAttempts  int
	PlatformCacheTTL  time.Duration
}

// Resolver classifies and resolves source references.
type Resolver struct {
	cfg        Config
	downloader Downloader
	platform   *platformResolver
	logger     zerolog.Logger
}

// NewResolver returns a Resolver. platform may be nil, in which case platform
// links fail with ErrResolutionFailed.
func NewResolver(cfg Config, downloader Downloader, platform PlatformClient) *Resolver {
	if len(cfg.DriveMarkers) == 0 {
		cfg.DriveMarkers = []string{"drive.google.com"}
	}
	if cfg.DriveDownloadBase == "" {
		cfg.DriveDownloadBase = "https://drive.google.com/uc"
	}
	if cfg.DownloadAttempts <= 0 {
		cfg.DownloadAttempts = 3
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &Resolver{
		cfg:        cfg,
		downloader: downloader,
		platform:   newPlatformResolver(platform, cfg.PlatformCacheTTL),
		logger:     log.WithComponent("source"),
	}
}

// Classify reports the kind of ref without any network access.
func (r *Resolver) Classify(ref string) Kind {
	if _, ok := PlatformVideoID(ref); ok {
		return KindPlatform
	}
	if isDriveRef(ref, r.cfg.DriveMarkers) {
		return KindDrive
	}
	return KindDirect
}

// Resolve turns ref into playable media. Drive files are downloaded into the
// temp directory; the caller owns the resulting LocalPath.
func (r *Resolver) Resolve(ctx context.Context, ref string) (Resolved, error) {
	ref = strings.TrimSpace(ref)
	kind := r.Classify(ref)

	ctx, span := telemetry.Tracer("loopcast/source").Start(ctx, "source.resolve")
	defer span.End()
	span.SetAttributes(telemetry.SourceAttributes(string(kind), platformnet.SanitizeURL(ref))...)

	var (
		res Resolved
		err error
	)
	switch kind {
	case KindPlatform:
		res, err = r.resolvePlatform(ctx, ref)
	case KindDrive:
		res, err = r.resolveDrive(ctx, ref)
	default:
		res, err = r.resolveDirect(ref)
	}

	result := "success"
	if err != nil {
		result = "failure"
		if errors.Is(err, ErrInvalidSource) {
			result = "invalid"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.IncResolve(string(kind), result)

	var evt *zerolog.Event
	if err != nil {
		evt = r.logger.Warn().Err(err)
	} else {
		evt = r.logger.Info()
	}
	evt.Str(log.FieldEvent, "source.resolved").
		Str(log.FieldSourceKind, string(kind)).
		Str(log.FieldSourceRef, platformnet.SanitizeURL(ref)).
		Str("result", result).
		Msg("source resolution finished")

	return res, err
}

func (r *Resolver) resolveDirect(ref string) (Resolved, error) {
	if err := platformnet.ValidateInputURL(ref); err != nil {
		return Resolved{}, fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}
	return Resolved{
		Kind:      KindDirect,
		Reference: ref,
		URL:       ref,
		Container: containerOf(ref),
	}, nil
}

func (r *Resolver) resolveDrive(ctx context.Context, ref string) (Resolved, error) {
	id, ok := ExtractDriveID(ref)
	if !ok {
		return Resolved{}, fmt.Errorf("%w: drive link without file id", ErrInvalidSource)
	}
	downloadURL := DriveDownloadURL(r.cfg.DriveDownloadBase, id)

	res := Resolved{
		Kind:      KindDrive,
		Reference: ref,
		URL:       downloadURL,
		FileID:    id,
		Container: strings.TrimPrefix(DefaultDriveExt, "."),
	}
	if r.downloader == nil || r.cfg.TempDir == "" {
		// stream straight from the download URL
		return res, nil
	}

	if err := os.MkdirAll(r.cfg.TempDir, 0o750); err != nil {
		return Resolved{}, fmt.Errorf("%w: temp dir: %w", ErrResolutionFailed, err)
	}
	name := uuid.NewString() + DefaultDriveExt
	dest := filepath.Join(r.cfg.TempDir, name)

	r.logger.Info().
		Str(log.FieldEvent, "source.drive.download").
		Str("file_id", id).
		Str(log.FieldPath, dest).
		Msg("downloading drive file")

	if err := r.downloader.Download(ctx, downloadURL, dest, r.cfg.DownloadAttempts); err != nil {
		return Resolved{}, fmt.Errorf("%w: %w", ErrResolutionFailed, err)
	}
	res.LocalPath = dest
	res.PublicURL = r.cfg.PublicBaseURL + "/temp/" + name
	return res, nil
}

func (r *Resolver) resolvePlatform(ctx context.Context, ref string) (Resolved, error) {
	id, _ := PlatformVideoID(ref)
	entry, err := r.platform.resolve(ctx, id)
	if err != nil {
		return Resolved{}, fmt.Errorf("%w: platform video %s: %w", ErrResolutionFailed, id, err)
	}
	return Resolved{
		Kind:      KindPlatform,
		Reference: ref,
		URL:       entry.url,
		Container: entry.container,
	}, nil
}
