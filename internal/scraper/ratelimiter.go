package scraper

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// refillWindow is the time it takes to refill an empty bucket.
const refillWindow = 15 * time.Second

// RateLimiter is a token bucket plus a random politeness delay between
// requests to the same site.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	minDelay   time.Duration
	maxDelay   time.Duration
}

// NewRateLimiter creates a limiter that allows burst requests per
// refill window and sleeps minDelay..maxDelay before each request.
func NewRateLimiter(burst int, minDelay, maxDelay time.Duration) *RateLimiter {
	burst = max(burst, 1)
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &RateLimiter{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: float64(burst) / refillWindow.Seconds(),
		lastRefill: time.Now(),
		minDelay:   minDelay,
		maxDelay:   maxDelay,
	}
}

// Wait blocks until a token is available and the politeness delay has
// passed, or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for {
		wait := r.take()
		if wait == 0 {
			break
		}
		if err := Sleep(ctx, wait); err != nil {
			return err
		}
	}
	return Sleep(ctx, r.randomDelay())
}

// take consumes a token, or returns how long until one is available.
func (r *RateLimiter) take() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.tokens = min(r.maxTokens, r.tokens+now.Sub(r.lastRefill).Seconds()*r.refillRate)
	r.lastRefill = now

	if r.tokens >= 1 {
		r.tokens--
		return 0
	}
	need := (1 - r.tokens) / r.refillRate
	return max(time.Duration(need*float64(time.Second)), time.Millisecond)
}

func (r *RateLimiter) randomDelay() time.Duration {
	if r.maxDelay <= r.minDelay {
		return r.minDelay
	}
	return r.minDelay + time.Duration(rand.Int64N(int64(r.maxDelay-r.minDelay)+1))
}
