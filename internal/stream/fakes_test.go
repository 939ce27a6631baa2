// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/loopcast/internal/relay"
	"github.com/ManuGH/loopcast/internal/source"
)

type fakeProcess struct {
	pid    int
	done   chan struct{}
	once   sync.Once
	exit   relay.Exit
	killed atomic.Bool
	stderr []string
}

func newFakeProcess(pid int) *fakeProcess {
	return &fakeProcess{pid: pid, done: make(chan struct{})}
}

func (p *fakeProcess) finish(e relay.Exit) {
	p.once.Do(func() {
		p.exit = e
		close(p.done)
	})
}

func (p *fakeProcess) Pid() int                { return p.pid }
func (p *fakeProcess) Done() <-chan struct{}   { return p.done }
func (p *fakeProcess) Stderr(int) []string     { return p.stderr }
func (p *fakeProcess) Terminate(time.Duration) { _ = p.Kill() }
func (p *fakeProcess) Exit() relay.Exit        { <-p.done; return p.exit }
func (p *fakeProcess) Kill() error {
	p.killed.Store(true)
	p.finish(relay.Exit{Code: -1, Signaled: true, Err: errors.New("signal: killed")})
	return nil
}

type fakeLauncher struct {
	mu    sync.Mutex
	specs []relay.Spec
	procs []*fakeProcess
	err   error
}

func (l *fakeLauncher) Launch(_ context.Context, spec relay.Spec) (relay.Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.specs = append(l.specs, spec)
	p := newFakeProcess(1000 + len(l.procs))
	l.procs = append(l.procs, p)
	return p, nil
}

func (l *fakeLauncher) last() (relay.Spec, *fakeProcess) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.procs) == 0 {
		return relay.Spec{}, nil
	}
	return l.specs[len(l.specs)-1], l.procs[len(l.procs)-1]
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.procs)
}

// fakeResolver resolves every reference to a direct URL unless configured
// otherwise. With gate set it blocks until the gate closes or ctx ends.
type fakeResolver struct {
	res     func(ref string) (source.Resolved, error)
	gate    chan struct{}
	entered chan struct{}
}

func (r *fakeResolver) Resolve(ctx context.Context, ref string) (source.Resolved, error) {
	if r.entered != nil {
		select {
		case r.entered <- struct{}{}:
		default:
		}
	}
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return source.Resolved{}, errors.Join(source.ErrResolutionFailed, ctx.Err())
		}
	}
	if r.res != nil {
		return r.res(ref)
	}
	return source.Resolved{Kind: source.KindDirect, Reference: ref, URL: ref, Container: "mp4"}, nil
}
