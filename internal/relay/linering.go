// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package relay

import (
	"strings"
	"sync"
)

// LineRing is a thread-safe ring buffer holding the last N lines of output.
type LineRing struct {
	mu    sync.RWMutex
	lines []string
	head  int
	count int
}

// NewLineRing creates a LineRing with the specified capacity.
func NewLineRing(capacity int) *LineRing {
	if capacity < 1 {
		capacity = 64
	}
	return &LineRing{lines: make([]string, capacity)}
}

// Add appends one line, evicting the oldest when full. Empty lines are ignored.
func (r *LineRing) Add(line string) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return
	}
	r.mu.Lock()
	r.lines[r.head] = line
	r.head = (r.head + 1) % len(r.lines)
	if r.count < len(r.lines) {
		r.count++
	}
	r.mu.Unlock()
}

// Write implements io.Writer, splitting p on newlines.
func (r *LineRing) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		r.Add(line)
	}
	return len(p), nil
}

// LastN returns up to n most recent lines, oldest first.
func (r *LineRing) LastN(n int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n > r.count {
		n = r.count
	}
	if n <= 0 {
		return nil
	}
	out := make([]string, 0, n)
	size := len(r.lines)
	start := (r.head - n + size) % size
	for i := 0; i < n; i++ {
		out = append(out, r.lines[(start+i)%size])
	}
	return out
}
