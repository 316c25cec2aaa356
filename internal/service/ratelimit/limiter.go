package ratelimit

import (
	"sync"
	"time"
)

type tokenBucket struct {
	tokens float64
	filled time.Time
}

// Limiter is a keyed token bucket. Each key gets its own bucket sized
// by the capacity and refill rate passed to Allow, so different keys
// can run under different policies.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
}

func New() *Limiter {
	return &Limiter{buckets: make(map[string]*tokenBucket)}
}

// Allow consumes one token for key if available.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &tokenBucket{tokens: capacity, filled: now}
		l.buckets[key] = b
	}

	b.tokens += now.Sub(b.filled).Seconds() * refillPerSec
	if b.tokens > capacity {
		b.tokens = capacity
	}
	b.filled = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
