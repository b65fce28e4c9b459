package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/garyellow/anan-assistant-go/internal/metrics"
)

func TestKeyedLimiter_Basic(t *testing.T) {
	t.Parallel()
	kl := NewKeyedLimiter(KeyedConfig{Name: "test", Burst: 1, RefillRate: 0.001, CleanupPeriod: time.Hour})
	defer kl.Stop()

	if !kl.Allow("10.0.0.1") {
		t.Error("first request should pass")
	}
	if kl.Allow("10.0.0.1") {
		t.Error("second request should be limited (burst 1)")
	}
	if !kl.Allow("10.0.0.2") {
		t.Error("other client should have its own bucket")
	}
	if !kl.Allow("") {
		t.Error("empty key is never limited")
	}
}

func TestKeyedLimiter_DailyLimit(t *testing.T) {
	t.Parallel()
	kl := NewKeyedLimiter(KeyedConfig{Name: "ask", Burst: 10, RefillRate: 10, DailyLimit: 2, CleanupPeriod: time.Hour})
	defer kl.Stop()

	if got := kl.DailyRemaining("c"); got != 2 {
		t.Errorf("unknown key DailyRemaining = %d, want 2", got)
	}
	kl.Allow("c")
	kl.Allow("c")
	if kl.Allow("c") {
		t.Error("third request should hit the daily limit")
	}
	if got := kl.DailyRemaining("c"); got != 0 {
		t.Errorf("DailyRemaining = %d, want 0", got)
	}
	// The rejected request must not have spent a bucket token.
	if got := kl.Available("c"); got < 7.9 {
		t.Errorf("Available = %v, rejected request should not consume tokens", got)
	}
}

func TestKeyedLimiter_DailyDisabled(t *testing.T) {
	t.Parallel()
	kl := NewKeyedLimiter(KeyedConfig{Burst: 1, RefillRate: 1})
	defer kl.Stop()

	if got := kl.DailyRemaining("x"); got != -1 {
		t.Errorf("DailyRemaining = %d, want -1", got)
	}
}

func TestKeyedLimiter_RecordsDrops(t *testing.T) {
	t.Parallel()
	m := metrics.New(prometheus.NewRegistry())
	kl := NewKeyedLimiter(KeyedConfig{Name: "ask", Burst: 1, RefillRate: 0.001, Metrics: m})
	defer kl.Stop()

	kl.Allow("k")
	kl.Allow("k")
	kl.Allow("k")

	if got := testutil.ToFloat64(m.RateLimiterDropped.WithLabelValues("ask")); got != 2 {
		t.Errorf("drops = %v, want 2", got)
	}
}

func TestKeyedLimiter_Cleanup(t *testing.T) {
	t.Parallel()
	kl := NewKeyedLimiter(KeyedConfig{Burst: 10, RefillRate: 1000, CleanupPeriod: time.Hour})
	defer kl.Stop()

	kl.Allow("idle")
	time.Sleep(20 * time.Millisecond) // bucket refills
	kl.cleanup()

	if got := kl.ActiveCount(); got != 0 {
		t.Errorf("ActiveCount = %d, want 0 after cleanup", got)
	}
}

func TestKeyedLimiter_CleanupKeepsDailyUsage(t *testing.T) {
	t.Parallel()
	kl := NewKeyedLimiter(KeyedConfig{Burst: 10, RefillRate: 1000, DailyLimit: 5, CleanupPeriod: time.Hour})
	defer kl.Stop()

	kl.Allow("busy")
	time.Sleep(20 * time.Millisecond)
	kl.cleanup()

	if got := kl.ActiveCount(); got != 1 {
		t.Errorf("ActiveCount = %d, key with daily usage should be kept", got)
	}
}

func TestKeyedLimiter_ThreadSafety(t *testing.T) {
	t.Parallel()
	kl := NewKeyedLimiter(KeyedConfig{Burst: 5, RefillRate: 0.001, CleanupPeriod: time.Hour})
	defer kl.Stop()

	var mu sync.Mutex
	allowed := map[string]int{}
	var wg sync.WaitGroup
	for i := range 100 {
		wg.Go(func() {
			key := fmt.Sprintf("client-%d", i%4)
			if kl.Allow(key) {
				mu.Lock()
				allowed[key]++
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	for key, n := range allowed {
		if n != 5 {
			t.Errorf("%s allowed %d, want 5", key, n)
		}
	}
	if kl.ActiveCount() != 4 {
		t.Errorf("ActiveCount = %d, want 4", kl.ActiveCount())
	}
}

func TestKeyedLimiter_StopIdempotent(t *testing.T) {
	t.Parallel()
	kl := NewKeyedLimiter(KeyedConfig{Burst: 1, RefillRate: 1})
	kl.Stop()
	kl.Stop()
}
