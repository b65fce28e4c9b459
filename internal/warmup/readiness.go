package warmup

import (
	"sync/atomic"
	"time"
)

// Readiness reasons reported by /readyz.
const (
	ReasonWarming = "embedding warmup in progress"
	ReasonTimeout = "timeout reached (warmup may still be running)"
)

// ReadinessState reports ready once the first embedding warmup finishes or
// the timeout passes, whichever comes first. Stores that are not warm
// yet are built lazily on first question, so a timeout only costs latency.
type ReadinessState struct {
	ready     atomic.Bool
	startTime time.Time
	timeout   time.Duration
	now       func() time.Time
}

// ReadinessStatus is the JSON body of /readyz.
type ReadinessStatus struct {
	Ready          bool   `json:"ready"`
	Reason         string `json:"reason,omitempty"`
	ElapsedSeconds int    `json:"elapsed_seconds,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// NewReadinessState starts the readiness clock.
func NewReadinessState(timeout time.Duration) *ReadinessState {
	return &ReadinessState{
		startTime: time.Now(),
		timeout:   timeout,
		now:       time.Now,
	}
}

// IsReady reports whether traffic should be accepted.
func (s *ReadinessState) IsReady() bool {
	return s.ready.Load() || s.now().Sub(s.startTime) >= s.timeout
}

// MarkReady records that the warmup finished.
func (s *ReadinessState) MarkReady() {
	s.ready.Store(true)
}

// WarmupCompleted reports whether MarkReady was called, ignoring the timeout.
func (s *ReadinessState) WarmupCompleted() bool {
	return s.ready.Load()
}

// Status returns the readiness body.
func (s *ReadinessState) Status() ReadinessStatus {
	status := ReadinessStatus{
		Ready:          s.IsReady(),
		ElapsedSeconds: int(s.now().Sub(s.startTime).Seconds()),
		TimeoutSeconds: int(s.timeout.Seconds()),
	}
	switch {
	case !status.Ready:
		status.Reason = ReasonWarming
	case !s.ready.Load():
		status.Reason = ReasonTimeout
	}
	return status
}
