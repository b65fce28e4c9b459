package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock returns a controllable now function.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(maxTokens, refill float64, clock *fakeClock) *Limiter {
	l := New(maxTokens, refill)
	l.now = clock.Now
	l.lastRefill = clock.Now()
	return l
}

func TestNew(t *testing.T) {
	t.Parallel()
	l := New(10, 5)

	if l.maxTokens != 10 || l.tokens != 10 || l.refillRate != 5 {
		t.Errorf("New(10, 5) = max %v tokens %v rate %v", l.maxTokens, l.tokens, l.refillRate)
	}
}

func TestNewPerSecond(t *testing.T) {
	t.Parallel()

	if l := NewPerSecond(20); l.maxTokens != 40 || l.refillRate != 20 {
		t.Errorf("NewPerSecond(20) = max %v rate %v", l.maxTokens, l.refillRate)
	}
	if l := NewPerSecond(0.2); l.maxTokens != 1 {
		t.Errorf("burst should be at least 1, got %v", l.maxTokens)
	}
}

func TestAllow(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	l := newTestLimiter(3, 1, clock)

	for i := range 3 {
		if !l.Allow() {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow() {
		t.Error("fourth request should be denied")
	}

	clock.Advance(time.Second)
	if !l.Allow() {
		t.Error("request after refill should be allowed")
	}
}

func TestRefillCapsAtMax(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	l := newTestLimiter(2, 10, clock)
	l.Allow()

	clock.Advance(time.Hour)
	if got := l.Available(); got != 2 {
		t.Errorf("Available() = %v, want 2", got)
	}
	if !l.IsFull() {
		t.Error("bucket should be full after long idle")
	}
}

func TestWait(t *testing.T) {
	t.Parallel()
	l := New(1, 20) // one token every 50ms
	ctx := context.Background()

	if err := l.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := l.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("second Wait returned too early: %v", elapsed)
	}
}

func TestWait_ContextCanceled(t *testing.T) {
	t.Parallel()
	l := New(1, 0.01)
	l.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err != context.DeadlineExceeded {
		t.Errorf("Wait() = %v, want DeadlineExceeded", err)
	}
}

func TestReset(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	l := newTestLimiter(2, 0.001, clock)
	l.Allow()
	l.Allow()

	l.Reset()
	if got := l.Available(); got != 2 {
		t.Errorf("Available() after Reset = %v, want 2", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	l := newTestLimiter(50, 0, clock)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for range 200 {
		wg.Go(func() {
			if l.Allow() {
				allowed.Add(1)
			}
		})
	}
	wg.Wait()

	if got := allowed.Load(); got != 50 {
		t.Errorf("allowed %d requests, want exactly 50", got)
	}
}
