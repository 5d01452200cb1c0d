// Package ratelimit provides a token-bucket limiter used to throttle pipe
// exchanges on the client side and collection requests on the server side.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Bucket is a single token bucket rate limiter.
// It is safe for concurrent use.
type Bucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	rate       float64 // tokens per second
	lastUpdate time.Time
	now        func() time.Time
}

// NewBucket creates a token bucket with the given rate (tokens/second) and
// burst (maximum tokens). A non-positive burst uses the rate, with a floor
// of one token. The bucket starts full.
func NewBucket(rate float64, burst int) *Bucket {
	maxTokens := float64(burst)
	if maxTokens <= 0 {
		maxTokens = rate
	}
	if maxTokens < 1 {
		maxTokens = 1
	}
	b := &Bucket{
		tokens:    maxTokens,
		maxTokens: maxTokens,
		rate:      rate,
		now:       time.Now,
	}
	b.lastUpdate = b.now()
	return b
}

// Burst returns the bucket capacity.
func (b *Bucket) Burst() int { return int(b.maxTokens) }

// refill adds tokens based on elapsed time. Caller must hold b.mu.
func (b *Bucket) refill() {
	now := b.now()
	b.tokens += now.Sub(b.lastUpdate).Seconds() * b.rate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastUpdate = now
}

// reserve takes a token when one is available and otherwise reports how
// long until one will be.
func (b *Bucket) reserve() (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if b.rate <= 0 {
		return false, time.Duration(1<<63 - 1)
	}
	return false, time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
}

// Allow tries to consume one token. Returns true if a token was available.
func (b *Bucket) Allow() bool {
	ok, _ := b.reserve()
	return ok
}

// RetryAfter returns how long until a token is available.
func (b *Bucket) RetryAfter() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	if b.tokens >= 1 {
		return 0
	}
	if b.rate <= 0 {
		return time.Duration(1<<63 - 1)
	}
	return time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
}

// Wait blocks until a token is consumed or ctx is done.
func (b *Bucket) Wait(ctx context.Context) error {
	for {
		ok, wait := b.reserve()
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
