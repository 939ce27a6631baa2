// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package janitor removes downloaded media from the temp directory.
package janitor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/loopcast/internal/log"
	"github.com/ManuGH/loopcast/internal/metrics"
)

// ErrOutsideDir is returned by Remove for paths that are not inside dir.
var ErrOutsideDir = errors.New("path outside managed directory")

// CleanAll removes every entry of dir and returns how many were removed.
// It never fails: errors are logged and the sweep continues. A missing dir
// counts as clean.
func CleanAll(dir string) int {
	logger := log.WithComponent("janitor")

	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn().Err(err).Str(log.FieldPath, dir).Msg("cannot list temp directory")
		}
		return 0
	}

	removed := 0
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(p); err != nil {
			metrics.IncJanitor("error")
			logger.Warn().Err(err).Str(log.FieldPath, p).Msg("failed to remove temp entry")
			continue
		}
		metrics.IncJanitor("removed")
		removed++
	}

	logger.Info().
		Str(log.FieldEvent, "janitor.swept").
		Str(log.FieldPath, dir).
		Int("removed", removed).
		Int("failed", len(entries)-removed).
		Msg("temp directory cleaned")
	return removed
}

// Remove deletes a single file that must live inside dir. A file that is
// already gone is not an error.
func Remove(dir, path string) error {
	if path == "" {
		return nil
	}
	rel, err := within(dir, path)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(dir, rel)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		metrics.IncJanitor("error")
		return fmt.Errorf("remove %s: %w", path, err)
	}
	metrics.IncJanitor("removed")
	logger := log.WithComponent("janitor")
	logger.Debug().
		Str(log.FieldEvent, "janitor.removed").
		Str(log.FieldPath, path).
		Msg("session file removed")
	return nil
}

func within(dir, path string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideDir, path)
	}
	return rel, nil
}
