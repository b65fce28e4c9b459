package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindowCounter approximates a rolling window with two fixed
// windows: effective = curr + prev × (unelapsed share of current window).
//
// Example for a 24h window and a limit of 200: 160 questions yesterday
// and 6h into today give 160 × 0.75 = 120, so 80 remain.
type SlidingWindowCounter struct {
	mu          sync.Mutex
	curr        int
	prev        int
	windowStart time.Time
	window      time.Duration
	limit       int
	now         func() time.Time
}

// NewSlidingWindowCounter returns nil (unlimited) when limit <= 0.
// All methods accept a nil receiver.
func NewSlidingWindowCounter(limit int, window time.Duration) *SlidingWindowCounter {
	if limit <= 0 {
		return nil
	}
	return &SlidingWindowCounter{
		windowStart: time.Now(),
		window:      window,
		limit:       limit,
		now:         time.Now,
	}
}

// Allow consumes one request if under the limit.
func (s *SlidingWindowCounter) Allow() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.effective() >= float64(s.limit) {
		return false
	}
	s.curr++
	return true
}

func (s *SlidingWindowCounter) check() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.effective() < float64(s.limit)
}

func (s *SlidingWindowCounter) consume() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.effective() < float64(s.limit) {
		s.curr++
	}
}

// Remaining returns the approximate quota left, or -1 when unlimited.
func (s *SlidingWindowCounter) Remaining() int {
	if s == nil {
		return -1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return max(int(float64(s.limit)-s.effective()), 0)
}

// effective rotates windows as needed and returns the weighted count.
// Must be called with mu held.
func (s *SlidingWindowCounter) effective() float64 {
	now := s.now()
	elapsed := now.Sub(s.windowStart)
	if elapsed >= s.window {
		passed := int(elapsed / s.window)
		if passed == 1 {
			s.prev = s.curr
		} else {
			s.prev = 0
		}
		s.curr = 0
		s.windowStart = s.windowStart.Add(time.Duration(passed) * s.window)
		elapsed = now.Sub(s.windowStart)
	}

	overlap := float64(s.window-elapsed) / float64(s.window)
	overlap = min(max(overlap, 0), 1)
	return float64(s.curr) + float64(s.prev)*overlap
}
