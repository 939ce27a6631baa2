// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build unix

package procgroup

import (
	"errors"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForceKill_KillsWholeGroup(t *testing.T) {
	// sh -> sleep (background) + sleep (foreground)
	cmd := exec.Command("sh", "-c", "sleep 10 & sleep 10")
	Set(cmd)
	require.NoError(t, cmd.Start())

	pid := cmd.Process.Pid
	time.Sleep(100 * time.Millisecond)

	pgid, err := syscall.Getpgid(pid)
	require.NoError(t, err)
	assert.Equal(t, pid, pgid, "process should be group leader")

	require.NoError(t, ForceKill(cmd))

	err = cmd.Wait()
	require.Error(t, err)
	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr))
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	require.True(t, ok)
	assert.True(t, status.Signaled())
	assert.Equal(t, syscall.SIGKILL, status.Signal())
}

func TestForceKill_NilAndExited(t *testing.T) {
	assert.NoError(t, ForceKill(nil))
	assert.NoError(t, ForceKill(&exec.Cmd{}))
}

func TestTerminate_EscalatesAfterGrace(t *testing.T) {
	cmd := exec.Command("sh", "-c", "trap '' TERM; while true; do sleep 1; done")
	Set(cmd)
	require.NoError(t, cmd.Start())
	time.Sleep(100 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	start := time.Now()
	escalated := Terminate(cmd, done, 200*time.Millisecond)
	assert.True(t, escalated)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestTerminate_GracefulExit(t *testing.T) {
	cmd := exec.Command("sleep", "10")
	Set(cmd)
	require.NoError(t, cmd.Start())

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	assert.False(t, Terminate(cmd, done, 5*time.Second))
}
