package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func newTestCounter(limit int, window time.Duration, clock *fakeClock) *SlidingWindowCounter {
	s := NewSlidingWindowCounter(limit, window)
	s.now = clock.Now
	s.windowStart = clock.Now()
	return s
}

func TestNewSlidingWindowCounter_Disabled(t *testing.T) {
	t.Parallel()
	var s *SlidingWindowCounter = NewSlidingWindowCounter(0, time.Hour)

	if s != nil {
		t.Fatal("limit 0 should return nil")
	}
	if !s.Allow() {
		t.Error("nil counter should allow")
	}
	if got := s.Remaining(); got != -1 {
		t.Errorf("nil Remaining() = %d, want -1", got)
	}
}

func TestSlidingWindowCounter_Allow(t *testing.T) {
	t.Parallel()
	s := newTestCounter(3, time.Hour, newFakeClock())

	for i := range 3 {
		if !s.Allow() {
			t.Fatalf("request %d should pass", i+1)
		}
	}
	if s.Allow() {
		t.Error("fourth request should be rejected")
	}
	if got := s.Remaining(); got != 0 {
		t.Errorf("Remaining() = %d, want 0", got)
	}
}

func TestSlidingWindowCounter_WeightedCarryOver(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	s := newTestCounter(100, 24*time.Hour, clock)
	for range 80 {
		s.Allow()
	}

	// 6h into the next window: 80 × 0.75 = 60 still count.
	clock.Advance(30 * time.Hour)
	if got := s.Remaining(); got != 40 {
		t.Errorf("Remaining() = %d, want 40", got)
	}
}

func TestSlidingWindowCounter_MultiWindowGap(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	s := newTestCounter(5, time.Hour, clock)
	for range 5 {
		s.Allow()
	}

	clock.Advance(3 * time.Hour)
	if got := s.Remaining(); got != 5 {
		t.Errorf("Remaining() after long gap = %d, want 5", got)
	}
}

func TestSlidingWindowCounter_CheckConsume(t *testing.T) {
	t.Parallel()
	s := newTestCounter(1, time.Hour, newFakeClock())

	if !s.check() {
		t.Fatal("check should pass on empty counter")
	}
	s.consume()
	if s.check() {
		t.Error("check should fail after consuming the only slot")
	}
	s.consume()
	if s.curr != 1 {
		t.Errorf("consume past the limit should be a no-op, curr=%d", s.curr)
	}
}

func TestSlidingWindowCounter_Concurrency(t *testing.T) {
	t.Parallel()
	s := newTestCounter(100, time.Hour, newFakeClock())

	var mu sync.Mutex
	allowed := 0
	var wg sync.WaitGroup
	for range 300 {
		wg.Go(func() {
			if s.Allow() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	if allowed != 100 {
		t.Errorf("allowed %d, want 100", allowed)
	}
}
