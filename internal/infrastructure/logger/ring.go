package logger

import (
	"bytes"
	"sync"
)

// Ring is a bounded in-memory buffer of recent log lines. It receives
// every encoded entry the logger emits and keeps the newest ones so the
// HTTP surface can expose recent activity without a log shipper.
type Ring struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

// NewRing creates a ring holding at most capacity lines.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 500
	}
	return &Ring{lines: make([]string, capacity)}
}

// Write appends encoded log output. Entries arrive one encoded line at a
// time from zap, but a write may still carry embedded newlines for
// stacktraces, so only the outer trailing newline is trimmed.
func (r *Ring) Write(p []byte) (int, error) {
	line := string(bytes.TrimRight(p, "\n"))
	if line == "" {
		return len(p), nil
	}

	r.mu.Lock()
	r.lines[r.next] = line
	r.next = (r.next + 1) % len(r.lines)
	if r.next == 0 {
		r.full = true
	}
	r.mu.Unlock()
	return len(p), nil
}

// Sync implements zapcore.WriteSyncer. The buffer is memory-only.
func (r *Ring) Sync() error { return nil }

// Tail returns up to n of the most recent lines, oldest first.
func (r *Ring) Tail(n int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.next
	if r.full {
		size = len(r.lines)
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]string, 0, n)
	start := r.next - n
	if start < 0 {
		start += len(r.lines)
	}
	for i := 0; i < n; i++ {
		out = append(out, r.lines[(start+i)%len(r.lines)])
	}
	return out
}

// Len returns the number of buffered lines.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.lines)
	}
	return r.next
}
