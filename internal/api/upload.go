// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/renameio/v2"
	"github.com/google/uuid"

	"github.com/ManuGH/loopcast/internal/log"
	"github.com/ManuGH/loopcast/internal/metrics"
)

const (
	// DefaultMaxUploadBytes caps a single uploaded video.
	DefaultMaxUploadBytes = 50 << 20

	uploadField      = "video"
	uploadDefaultExt = ".mp4"
	// multipart framing allowance on top of the file limit
	multipartOverhead = 1 << 20
)

var (
	errNoVideoPart  = errors.New("no video file uploaded")
	errNotVideo     = errors.New("only video files are allowed")
	errFileTooLarge = errors.New("file too large")
)

type uploadResponse struct {
	AccessibleURL    string `json:"accessibleUrl"`
	OriginalFilename string `json:"originalFilename"`
	Size             int64  `json:"size"`
	Message          string `json:"message"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "upload")
	limit := s.cfg.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		metrics.IncUpload("rejected")
		writeError(w, http.StatusBadRequest, "expected multipart/form-data body")
		return
	}

	part, err := nextVideoPart(mr)
	if err != nil {
		metrics.IncUpload("rejected")
		s.writeUploadError(w, err, limit)
		return
	}
	defer part.Close()

	original := filepath.Base(part.FileName())
	name := uuid.NewString() + uploadExt(original, part.Header.Get("Content-Type"))
	n, err := s.storeUpload(part, name, limit)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.Is(err, errFileTooLarge) || errors.As(err, &maxErr) {
			metrics.IncUpload("rejected")
			s.writeUploadError(w, errFileTooLarge, limit)
			return
		}
		metrics.IncUpload("failed")
		logger.Error().Err(err).Str(log.FieldEvent, "upload.failed").Msg("store upload")
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	metrics.IncUpload("success")
	logger.Info().
		Str(log.FieldEvent, "upload.stored").
		Str(log.FieldPath, name).
		Int64(log.FieldBytes, n).
		Str("size", humanize.IBytes(uint64(n))).
		Msg("video uploaded")

	writeJSON(w, http.StatusOK, uploadResponse{
		AccessibleURL:    s.publicBase(r) + "/uploads/" + name,
		OriginalFilename: original,
		Size:             n,
		Message:          fmt.Sprintf("uploaded %s", humanize.IBytes(uint64(n))),
	})
}

// nextVideoPart skips to the video field and checks its declared type.
func nextVideoPart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errNoVideoPart
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() != uploadField || part.FileName() == "" {
			_ = part.Close()
			continue
		}
		if !strings.HasPrefix(strings.ToLower(part.Header.Get("Content-Type")), "video/") {
			_ = part.Close()
			return nil, errNotVideo
		}
		return part, nil
	}
}

// storeUpload streams src into the upload dir, failing once limit is exceeded.
func (s *Server) storeUpload(src io.Reader, name string, limit int64) (int64, error) {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return 0, fmt.Errorf("create upload dir: %w", err)
	}
	pf, err := renameio.NewPendingFile(filepath.Join(s.cfg.UploadDir, name),
		renameio.WithTempDir(s.cfg.UploadDir),
		renameio.WithPermissions(0o644),
	)
	if err != nil {
		return 0, fmt.Errorf("create pending file: %w", err)
	}
	defer func() { _ = pf.Cleanup() }()

	n, err := io.Copy(pf, io.LimitReader(src, limit+1))
	if err != nil {
		return n, err
	}
	if n > limit {
		return n, errFileTooLarge
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return n, fmt.Errorf("commit upload: %w", err)
	}
	return n, nil
}

func (s *Server) writeUploadError(w http.ResponseWriter, err error, limit int64) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, errFileTooLarge), errors.As(err, &maxErr):
		writeError(w, http.StatusBadRequest, fmt.Sprintf("file exceeds the %s upload limit", humanize.IBytes(uint64(limit))))
	case errors.Is(err, errNoVideoPart), errors.Is(err, errNotVideo):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusBadRequest, "malformed multipart body")
	}
}

// uploadExt keeps a short alphanumeric extension from the client name and
// otherwise derives one from the declared type.
func uploadExt(filename, contentType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if validExt(ext) {
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil {
		for _, e := range exts {
			if validExt(e) {
				return e
			}
		}
	}
	return uploadDefaultExt
}

func validExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 6 || ext[0] != '.' {
		return false
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// publicBase is the configured base URL or the request's own origin.
func (s *Server) publicBase(r *http.Request) string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/")
	}
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
