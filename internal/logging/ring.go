package logging

import (
	"bytes"
	"sync"
)

// Ring is a fixed-capacity buffer of log lines. Writes past capacity evict
// the oldest line. Safe for concurrent use.
type Ring struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

// NewRing creates a ring retaining the last size lines.
func NewRing(size int) *Ring {
	if size < 1 {
		size = 1
	}
	return &Ring{lines: make([]string, size)}
}

// Write implements io.Writer. Each call is expected to carry one complete
// log line (zerolog writes one event per call); trailing newlines are
// stripped, embedded newlines split into separate entries.
func (r *Ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte{'\n'}) {
		if len(line) == 0 {
			continue
		}
		r.lines[r.next] = string(line)
		r.next++
		if r.next == len(r.lines) {
			r.next = 0
			r.full = true
		}
	}
	return len(p), nil
}

// Snapshot returns up to n retained lines, oldest first. n <= 0 returns
// everything.
func (r *Ring) Snapshot(n int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	if r.full {
		out = append(out, r.lines[r.next:]...)
		out = append(out, r.lines[:r.next]...)
	} else {
		out = append(out, r.lines[:r.next]...)
	}
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

// Len reports how many lines are currently retained.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.lines)
	}
	return r.next
}
