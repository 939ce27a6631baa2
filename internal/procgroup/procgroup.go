// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package procgroup starts child processes in their own process group so the
// whole tree (ffmpeg plus any helpers it forks) can be signalled at once.
package procgroup

import (
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/ManuGH/loopcast/internal/metrics"
)

var (
	ErrProcessNotFound = errors.New("process not found")
	ErrKillFailed      = errors.New("kill operation failed")
)

// Set configures the command to start in a new process group.
// Mandatory for Kill to reach the whole group.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// ForceKill sends SIGKILL (or the platform equivalent) to the command's process group.
// It is safe to call on nil or already exited commands.
func ForceKill(cmd *exec.Cmd) error {
	err := forceKill(cmd)
	recordSignal("SIGKILL", err)
	return err
}

// Terminate asks the process group to stop and escalates to SIGKILL when done
// is not closed within grace. It reports whether escalation was needed.
func Terminate(cmd *exec.Cmd, done <-chan struct{}, grace time.Duration) bool {
	if cmd == nil || cmd.Process == nil {
		return false
	}

	recordSignal("SIGTERM", interrupt(cmd))

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
		return false
	case <-timer.C:
		recordSignal("SIGKILL", forceKill(cmd))
		<-done
		return true
	}
}

func recordSignal(signal string, err error) {
	switch {
	case err == nil:
		metrics.IncProcSignal(signal, "sent")
	case strings.Contains(err.Error(), "process already finished"), strings.Contains(err.Error(), "no such process"):
		metrics.IncProcSignal(signal, "esrch")
	default:
		metrics.IncProcSignal(signal, "error")
	}
}
