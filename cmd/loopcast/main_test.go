// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/loopcast/internal/config"
	"github.com/ManuGH/loopcast/internal/version"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version", "--env-file", "")
	require.NoError(t, err)
	assert.Equal(t, version.String()+"\n", out)
}

func TestCleanCommand(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.EnvDataDir, dir)
	temp := filepath.Join(dir, "temp")
	uploads := filepath.Join(dir, "uploads")
	require.NoError(t, os.MkdirAll(temp, 0o755))
	require.NoError(t, os.MkdirAll(uploads, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(temp, "a.mp4"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(temp, "b.mp4"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(uploads, "keep.mp4"), []byte("x"), 0o644))

	out, err := run(t, "clean", "--env-file", "")
	require.NoError(t, err)
	assert.Equal(t, "removed 2 entries\n", out)
	assert.FileExists(t, filepath.Join(uploads, "keep.mp4"))

	out, err = run(t, "clean", "--uploads", "--env-file", "")
	require.NoError(t, err)
	assert.Equal(t, "removed 1 entries\n", out)
	assert.NoFileExists(t, filepath.Join(uploads, "keep.mp4"))
}

func TestCleanCommand_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.EnvDataDir, dir)
	cfgPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("notAField: true\n"), 0o644))

	_, err := run(t, "clean", "--config", cfgPath, "--env-file", "")
	require.ErrorIs(t, err, config.ErrUnknownConfigField)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("LOOPCAST_TEST_DOTENV=from-file\nLOOPCAST_TEST_PRESET=from-file\n"), 0o644))
	t.Setenv("LOOPCAST_TEST_PRESET", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("LOOPCAST_TEST_DOTENV") })

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("LOOPCAST_TEST_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("LOOPCAST_TEST_PRESET"))

	assert.NoError(t, loadDotEnv(filepath.Join(dir, "missing.env")))
	assert.NoError(t, loadDotEnv(""))
}
