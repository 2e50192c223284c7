// Package ratelimit provides sliding-window admission control for API requests.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// DefaultWindow is the trailing window all limiters use.
const DefaultWindow = 60 * time.Second

// Config configures a sliding-window limiter.
type Config struct {
	// MaxRequests is the number of requests allowed inside the window.
	MaxRequests int `yaml:"max_requests"`
	// Window is the trailing window size. Defaults to 60s.
	Window time.Duration `yaml:"window"`
}

// Window is a sliding-window rate limiter. Admission is advisory and
// process-local: state lives for process uptime and is reset by restart.
// Window is safe for concurrent use.
type Window struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	admissions  []time.Time

	now func() time.Time // swapped out in tests
}

// NewWindow creates a limiter admitting at most cfg.MaxRequests per window.
func NewWindow(cfg Config) *Window {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 20
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Window{
		maxRequests: cfg.MaxRequests,
		window:      cfg.Window,
		now:         time.Now,
	}
}

// Allow reports whether a request may proceed right now. Entries older than
// the window are evicted before counting, so stale admissions never count
// toward the limit. Allow does not consume a slot; see Record.
func (w *Window) Allow() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(w.now())
	return len(w.admissions) < w.maxRequests
}

// Record consumes one admission slot. Callers must invoke it exactly once
// per attempt, after deciding to proceed and before the downstream call, so
// failed calls still count against the window.
func (w *Window) Record() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.evict(now)
	w.admissions = append(w.admissions, now)
}

// RetryAfter returns how many whole seconds until the oldest admission ages
// out of the window, floored at zero. With an empty window it returns 0.
func (w *Window) RetryAfter() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.evict(now)
	if len(w.admissions) == 0 {
		return 0
	}
	remaining := w.window - now.Sub(w.admissions[0])
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Seconds()))
}

// MaxRequests returns the configured per-window limit.
func (w *Window) MaxRequests() int {
	return w.maxRequests
}

// evict drops admissions older than the window. Must be called with the
// lock held.
func (w *Window) evict(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.admissions) && !w.admissions[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.admissions = append(w.admissions[:0], w.admissions[i:]...)
	}
}

// Status is a point-in-time snapshot of a limiter.
type Status struct {
	Available   bool `json:"available"`
	MaxRequests int  `json:"max_requests"`
	RetryAfter  int  `json:"retry_after_seconds"`
}

// Snapshot returns the limiter's current status.
func (w *Window) Snapshot() Status {
	return Status{
		Available:   w.Allow(),
		MaxRequests: w.maxRequests,
		RetryAfter:  w.RetryAfter(),
	}
}
