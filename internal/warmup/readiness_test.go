package warmup

import (
	"sync"
	"testing"
	"time"
)

func TestReadinessStateInitial(t *testing.T) {
	t.Parallel()
	state := NewReadinessState(10 * time.Minute)

	if state.IsReady() {
		t.Error("Expected IsReady() to return false initially")
	}
	if state.WarmupCompleted() {
		t.Error("Expected WarmupCompleted() to return false initially")
	}

	status := state.Status()
	if status.Ready {
		t.Error("Expected status.Ready to be false initially")
	}
	if status.Reason != ReasonWarming {
		t.Errorf("Expected reason %q, got %q", ReasonWarming, status.Reason)
	}
	if status.TimeoutSeconds != 600 {
		t.Errorf("Expected timeout 600s, got %d", status.TimeoutSeconds)
	}
}

func TestReadinessStateMarkReady(t *testing.T) {
	t.Parallel()
	state := NewReadinessState(10 * time.Minute)

	state.MarkReady()

	if !state.IsReady() || !state.WarmupCompleted() {
		t.Error("Expected ready and completed after MarkReady()")
	}
	if status := state.Status(); !status.Ready || status.Reason != "" {
		t.Errorf("Expected ready with empty reason, got %+v", status)
	}
}

func TestReadinessStateTimeout(t *testing.T) {
	t.Parallel()
	state := NewReadinessState(time.Minute)
	now := state.startTime
	state.now = func() time.Time { return now }

	if state.IsReady() {
		t.Error("Expected not ready before timeout")
	}

	now = now.Add(time.Minute)

	if !state.IsReady() {
		t.Error("Expected ready once the timeout has elapsed")
	}
	if state.WarmupCompleted() {
		t.Error("Timeout must not count as a completed warmup")
	}
	status := state.Status()
	if status.Reason != ReasonTimeout {
		t.Errorf("Expected timeout reason, got %q", status.Reason)
	}
	if status.ElapsedSeconds != 60 {
		t.Errorf("Expected 60 elapsed seconds, got %d", status.ElapsedSeconds)
	}
}

func TestReadinessStateConcurrent(t *testing.T) {
	t.Parallel()
	state := NewReadinessState(time.Hour)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Go(func() {
			if i == 25 {
				state.MarkReady()
			}
			_ = state.Status()
		})
	}
	wg.Wait()

	if !state.WarmupCompleted() {
		t.Error("Expected MarkReady from one goroutine to be visible")
	}
}
