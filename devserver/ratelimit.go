package devserver

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter decides whether an attempt identified by key may proceed.
type RateLimiter interface {
	Allow(key string) bool
}

// KeyedLimiter is a token bucket per key.
type KeyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewKeyedLimiter allows burst attempts per key, refilled at r per second.
func NewKeyedLimiter(r rate.Limit, burst int) *KeyedLimiter {
	return &KeyedLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    burst,
	}
}

func (l *KeyedLimiter) Allow(key string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}
