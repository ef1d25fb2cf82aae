// Package ratelimit implements a token-bucket limiter for outbound exchange
// requests. The bucket refills at a constant rate up to a burst capacity;
// each request consumes one token, and callers wait for a free token instead
// of failing.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type Limiter struct {
	rate       float64 // tokens per second
	burst      float64
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex
}

// New creates a limiter refilling at rate tokens/second with the given burst
// capacity. The bucket starts full.
func New(rate, burst float64) *Limiter {
	if rate <= 0 {
		rate = 10
	}
	if burst < rate {
		burst = rate
	}
	return &Limiter{
		rate:       rate,
		burst:      burst,
		tokens:     burst,
		lastRefill: time.Now(),
	}
}

// PerWindow creates a limiter expressed as a request budget per time window,
// e.g. PerWindow(1200, time.Minute) for an exchange's 1200 req/60s cap.
func PerWindow(requests int, window time.Duration) *Limiter {
	rate := float64(requests) / window.Seconds()
	return New(rate, rate*2)
}

// refill tops up tokens for elapsed time. Caller must hold the lock.
func (l *Limiter) refill() {
	now := time.Now()
	l.tokens += now.Sub(l.lastRefill).Seconds() * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.lastRefill = now
}

// Wait blocks until a token is available or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		l.refill()
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - l.tokens) / l.rate * float64(time.Second))
		l.mu.Unlock()

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Allow reports whether a token is available without blocking, consuming one
// if so.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// Tokens returns the current token count, for monitoring.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	return l.tokens
}
