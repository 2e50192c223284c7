package ratelimit

import (
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests advance time explicitly.
type fakeClock struct {
	mu  sync.Mutex
	t   time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestWindow(max int, clock *fakeClock) *Window {
	w := NewWindow(Config{MaxRequests: max})
	w.now = clock.Now
	return w
}

func TestWindow_AllowUpToLimit(t *testing.T) {
	clock := newFakeClock()
	w := newTestWindow(3, clock)

	for i := 0; i < 3; i++ {
		if !w.Allow() {
			t.Fatalf("request %d should be allowed", i)
		}
		w.Record()
	}

	if w.Allow() {
		t.Error("request past the limit should be denied")
	}
}

func TestWindow_SlidingWindow(t *testing.T) {
	clock := newFakeClock()
	w := newTestWindow(2, clock)

	w.Record() // t=0
	clock.Advance(10 * time.Second)
	w.Record() // t=10

	clock.Advance(10 * time.Second) // t=20
	if w.Allow() {
		t.Error("third request at t=20s should be denied")
	}

	clock.Advance(41 * time.Second) // t=61, first admission aged out
	if !w.Allow() {
		t.Error("request at t=61s should be allowed again")
	}
}

func TestWindow_RetryAfter(t *testing.T) {
	clock := newFakeClock()
	w := newTestWindow(1, clock)

	if got := w.RetryAfter(); got != 0 {
		t.Errorf("empty window RetryAfter = %d, want 0", got)
	}

	w.Record()
	clock.Advance(15 * time.Second)
	if got := w.RetryAfter(); got != 45 {
		t.Errorf("RetryAfter = %d, want 45", got)
	}

	clock.Advance(45 * time.Second)
	if got := w.RetryAfter(); got != 0 {
		t.Errorf("RetryAfter after expiry = %d, want 0", got)
	}
}

func TestWindow_RetryAfterRoundsUp(t *testing.T) {
	clock := newFakeClock()
	w := newTestWindow(1, clock)

	w.Record()
	clock.Advance(59*time.Second + 500*time.Millisecond)
	if got := w.RetryAfter(); got != 1 {
		t.Errorf("RetryAfter = %d, want 1 (ceil of 0.5s)", got)
	}
}

func TestWindow_AllowDoesNotConsume(t *testing.T) {
	clock := newFakeClock()
	w := newTestWindow(1, clock)

	for i := 0; i < 5; i++ {
		if !w.Allow() {
			t.Fatal("Allow without Record must not consume slots")
		}
	}
	w.Record()
	if w.Allow() {
		t.Error("should be denied after the single Record")
	}
}

func TestWindow_Snapshot(t *testing.T) {
	clock := newFakeClock()
	w := newTestWindow(2, clock)

	s := w.Snapshot()
	if !s.Available || s.MaxRequests != 2 || s.RetryAfter != 0 {
		t.Errorf("unexpected initial snapshot: %+v", s)
	}

	w.Record()
	w.Record()
	s = w.Snapshot()
	if s.Available {
		t.Error("snapshot should report unavailable at the limit")
	}
	if s.RetryAfter != 60 {
		t.Errorf("RetryAfter = %d, want 60", s.RetryAfter)
	}
}

func TestWindow_ConcurrentRecord(t *testing.T) {
	w := NewWindow(Config{MaxRequests: 1000})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if w.Allow() {
				w.Record()
			}
		}()
	}
	wg.Wait()

	if w.Allow() != true {
		t.Error("limit of 1000 should still admit after 100 records")
	}
}
