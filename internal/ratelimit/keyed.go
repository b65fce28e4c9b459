package ratelimit

import (
	"sync"
	"time"

	"github.com/garyellow/anan-assistant-go/internal/metrics"
)

// DailyWindow is the rolling window used for KeyedConfig.DailyLimit.
const DailyWindow = 24 * time.Hour

// KeyedConfig configures a KeyedLimiter.
type KeyedConfig struct {
	// Name labels drops in metrics ("ask", "global").
	Name string

	Burst      float64
	RefillRate float64 // tokens per second

	// DailyLimit caps requests per key over a rolling 24h window; 0 disables.
	DailyLimit int

	CleanupPeriod time.Duration

	Metrics *metrics.Metrics
}

// KeyedLimiter keeps one token bucket (plus an optional daily counter) per
// key, typically the client IP, and drops idle keys periodically.
type KeyedLimiter struct {
	mu      sync.RWMutex
	entries map[string]*keyedEntry
	cfg     KeyedConfig
	stopCh  chan struct{}
	once    sync.Once
}

// keyedEntry.mu makes the two-layer check-then-consume atomic.
type keyedEntry struct {
	mu     sync.Mutex
	bucket *Limiter
	daily  *SlidingWindowCounter
}

// NewKeyedLimiter starts the cleanup goroutine; call Stop when done.
func NewKeyedLimiter(cfg KeyedConfig) *KeyedLimiter {
	if cfg.CleanupPeriod <= 0 {
		cfg.CleanupPeriod = 5 * time.Minute
	}
	kl := &KeyedLimiter{
		entries: make(map[string]*keyedEntry),
		cfg:     cfg,
		stopCh:  make(chan struct{}),
	}
	go kl.cleanupLoop()
	return kl
}

// Allow reports whether key may make a request now, spending from both
// the bucket and the daily quota only when both pass. The empty key is
// never limited.
func (kl *KeyedLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}

	e := kl.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.daily.check() || !e.bucket.check() {
		kl.cfg.Metrics.RecordRateLimiterDrop(kl.cfg.Name)
		return false
	}
	e.daily.consume()
	e.bucket.consume()
	return true
}

func (kl *KeyedLimiter) entry(key string) *keyedEntry {
	kl.mu.RLock()
	e, ok := kl.entries[key]
	kl.mu.RUnlock()
	if ok {
		return e
	}

	kl.mu.Lock()
	defer kl.mu.Unlock()
	if e, ok = kl.entries[key]; ok {
		return e
	}
	e = &keyedEntry{
		bucket: New(kl.cfg.Burst, kl.cfg.RefillRate),
		daily:  NewSlidingWindowCounter(kl.cfg.DailyLimit, DailyWindow),
	}
	kl.entries[key] = e
	return e
}

// Available returns the tokens left for key.
func (kl *KeyedLimiter) Available(key string) float64 {
	kl.mu.RLock()
	e, ok := kl.entries[key]
	kl.mu.RUnlock()
	if !ok {
		return kl.cfg.Burst
	}
	return e.bucket.Available()
}

// DailyRemaining returns the daily quota left for key, or -1 when the
// daily limit is disabled.
func (kl *KeyedLimiter) DailyRemaining(key string) int {
	if kl.cfg.DailyLimit <= 0 {
		return -1
	}
	kl.mu.RLock()
	e, ok := kl.entries[key]
	kl.mu.RUnlock()
	if !ok {
		return kl.cfg.DailyLimit
	}
	return e.daily.Remaining()
}

// ActiveCount returns the number of tracked keys.
func (kl *KeyedLimiter) ActiveCount() int {
	kl.mu.RLock()
	defer kl.mu.RUnlock()
	return len(kl.entries)
}

func (kl *KeyedLimiter) cleanupLoop() {
	ticker := time.NewTicker(kl.cfg.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-kl.stopCh:
			return
		case <-ticker.C:
			kl.cleanup()
		}
	}
}

// cleanup drops keys whose bucket is full. Keys with daily usage are kept
// so the quota survives idle periods.
func (kl *KeyedLimiter) cleanup() {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	for key, e := range kl.entries {
		if e.bucket.IsFull() && (e.daily == nil || e.daily.Remaining() == kl.cfg.DailyLimit) {
			delete(kl.entries, key)
		}
	}
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (kl *KeyedLimiter) Stop() {
	kl.once.Do(func() { close(kl.stopCh) })
}
