package agent

import (
	"context"
	"sync"
	"time"
)

// bucket is the token state of one conversation.
type bucket struct {
	tokens float64
	at     time.Time
}

// KeyedRateLimiter throttles AI calls per conversation with a token bucket,
// so one busy conversation cannot use up the provider quota of the others.
// A nil *KeyedRateLimiter never throttles.
type KeyedRateLimiter struct {
	burst   float64
	perSec  float64
	now     func() time.Time
	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewKeyedRateLimiter allows burst calls at once and ratePerMinute calls
// per minute after that. A zero rate disables limiting and returns nil.
func NewKeyedRateLimiter(burst int, ratePerMinute float64) *KeyedRateLimiter {
	if ratePerMinute <= 0 {
		return nil
	}
	return &KeyedRateLimiter{
		burst:   float64(max(burst, 1)),
		perSec:  ratePerMinute / 60,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// reserve takes a token for key and returns how long the caller has to wait
// before using it. A negative balance is a reservation on future refills.
func (k *KeyedRateLimiter) reserve(key string) time.Duration {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := k.now()
	b, ok := k.buckets[key]
	if !ok {
		b = &bucket{tokens: k.burst, at: now}
		k.buckets[key] = b
	}
	b.tokens = min(k.burst, b.tokens+now.Sub(b.at).Seconds()*k.perSec)
	b.at = now
	b.tokens--
	if b.tokens >= 0 {
		return 0
	}
	return time.Duration(-b.tokens / k.perSec * float64(time.Second))
}

// cancel returns a token reserved by a caller that gave up waiting.
func (k *KeyedRateLimiter) cancel(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if b, ok := k.buckets[key]; ok {
		b.tokens = min(k.burst, b.tokens+1)
	}
}

// Wait blocks until key may make another AI call or ctx is done.
func (k *KeyedRateLimiter) Wait(ctx context.Context, key string) error {
	if k == nil {
		return nil
	}
	delay := k.reserve(key)
	if delay == 0 {
		return nil
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
		k.cancel(key)
		return context.DeadlineExceeded
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		k.cancel(key)
		return ctx.Err()
	}
}

// Forget drops the state of key, e.g. after the conversation was reset.
func (k *KeyedRateLimiter) Forget(key string) {
	if k == nil {
		return
	}
	k.mu.Lock()
	delete(k.buckets, key)
	k.mu.Unlock()
}
