// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package relay launches and supervises the ffmpeg process that publishes a
// source to an RTMP endpoint.
package relay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ManuGH/loopcast/internal/log"
	"github.com/ManuGH/loopcast/internal/metrics"
	"github.com/ManuGH/loopcast/internal/procgroup"
)

const (
	defaultRingSize = 256
	// stderr lines forwarded to the debug log per second
	stderrLogRate  = 20
	stderrLogBurst = 50
)

// Exit describes how a relay process ended.
type Exit struct {
	Code      int
	Signaled  bool
	Err       error
	StartedAt time.Time
	EndedAt   time.Time
}

// Clean reports whether the process ended on its own with status zero.
func (e Exit) Clean() bool { return e.Err == nil && e.Code == 0 }

// Reason is a short label for metrics and logs.
func (e Exit) Reason() string {
	switch {
	case e.Clean():
		return "end"
	case e.Signaled:
		return "killed"
	default:
		return "error"
	}
}

// Process is a running relay.
type Process interface {
	Pid() int
	// Done is closed once the process has exited and its output is drained.
	Done() <-chan struct{}
	// Exit is valid after Done is closed.
	Exit() Exit
	// Kill sends SIGKILL to the process group without waiting.
	Kill() error
	// Terminate stops the process gracefully, escalating after grace, and waits.
	Terminate(grace time.Duration)
	// Stderr returns the last n lines of diagnostic output.
	Stderr(n int) []string
}

// Launcher starts relay processes.
type Launcher interface {
	Launch(ctx context.Context, spec Spec) (Process, error)
}

// Runner launches ffmpeg.
type Runner struct {
	BinPath  string
	RingSize int
	logger   zerolog.Logger
}

// NewRunner creates a new ffmpeg runner.
func NewRunner(binPath string) *Runner {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	return &Runner{
		BinPath:  binPath,
		RingSize: defaultRingSize,
		logger:   log.WithComponent("ffmpeg"),
	}
}

// Launch starts ffmpeg for spec. It returns once the process has started;
// ctx only scopes logging, not the process lifetime.
func (r *Runner) Launch(ctx context.Context, spec Spec) (Process, error) {
	return r.launch(ctx, r.BinPath, BuildArgs(spec))
}

func (r *Runner) launch(ctx context.Context, bin string, args []string) (*process, error) {
	logger := log.WithContext(ctx, r.logger)

	cmd := exec.Command(bin, args...) // #nosec G204 -- operator configured binary
	procgroup.Set(cmd)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("capture stderr: %w", err)
	}

	p := &process{
		cmd:    cmd,
		ring:   NewLineRing(r.RingSize),
		done:   make(chan struct{}),
		logger: logger,
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", bin, err)
	}
	p.startedAt = time.Now()

	logger.Info().
		Str(log.FieldEvent, "ffmpeg.started").
		Int(log.FieldPID, cmd.Process.Pid).
		Str("command", bin).
		Msg("relay process started")

	var ioWg sync.WaitGroup
	ioWg.Add(1)
	go func() {
		defer ioWg.Done()
		limiter := rate.NewLimiter(rate.Limit(stderrLogRate), stderrLogBurst)
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			p.ring.Add(line)
			if limiter.Allow() {
				logger.Debug().Int(log.FieldPID, cmd.Process.Pid).Str("line", line).Msg("ffmpeg")
			}
		}
	}()

	go p.wait(&ioWg)
	return p, nil
}

type process struct {
	cmd       *exec.Cmd
	ring      *LineRing
	startedAt time.Time
	logger    zerolog.Logger

	done chan struct{}
	exit Exit
}

// wait reaps the process after its stderr is drained.
func (p *process) wait(ioWg *sync.WaitGroup) {
	ioWg.Wait()
	err := p.cmd.Wait()

	exit := Exit{StartedAt: p.startedAt, EndedAt: time.Now()}
	if err != nil {
		exit.Err = err
		exit.Code = 1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exit.Code = exitErr.ExitCode()
			exit.Signaled = exit.Code == -1
		}
	}
	p.exit = exit
	metrics.IncProcessExit(exit.Reason())

	var evt *zerolog.Event
	if exit.Clean() {
		evt = p.logger.Info()
	} else {
		evt = p.logger.Warn()
	}
	evt.Str(log.FieldEvent, "ffmpeg.exited").
		Int(log.FieldPID, p.Pid()).
		Int(log.FieldExitCode, exit.Code).
		Str("reason", exit.Reason()).
		Dur("uptime", exit.EndedAt.Sub(exit.StartedAt)).
		Msg("relay process exited")

	close(p.done)
}

func (p *process) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *process) Done() <-chan struct{} { return p.done }

func (p *process) Exit() Exit {
	<-p.done
	return p.exit
}

func (p *process) Kill() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	return procgroup.ForceKill(p.cmd)
}

func (p *process) Terminate(grace time.Duration) {
	select {
	case <-p.done:
		return
	default:
	}
	if procgroup.Terminate(p.cmd, p.done, grace) {
		p.logger.Warn().Int(log.FieldPID, p.Pid()).Dur("grace", grace).Msg("relay ignored SIGTERM, killed")
	}
}

func (p *process) Stderr(n int) []string { return p.ring.LastN(n) }
