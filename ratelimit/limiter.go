// Package ratelimit provides limiters for alpine listeners.
//
// A limiter attached with alpine.WithLimiter makes a listener skip posts it
// has no budget for; one attached with alpine.WithThrottle makes the post
// wait for budget instead.
//
// # Basic Usage
//
//	// at most 10 notifications per second, bursts of 5
//	limiter := ratelimit.NewTokenBucket(10, 5)
//
//	bus.Subscribe(alpine.NewListener(notify, alpine.WithLimiter(limiter)))
//
// # Non-Blocking Check
//
//	if limiter.Allow(ctx) {
//	    // Process immediately
//	} else {
//	    // Rate limited - skip
//	}
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is the interface for rate limiters.
//
// All implementations must be safe for concurrent use.
type Limiter interface {
	// Allow returns true if an event can happen right now.
	// This is a non-blocking check.
	Allow(ctx context.Context) bool

	// Wait blocks until an event is allowed or context is cancelled.
	// Returns context.Canceled or context.DeadlineExceeded if cancelled.
	Wait(ctx context.Context) error
}

// TokenBucket implements a local token bucket rate limiter on top of
// golang.org/x/time/rate.
//
// The token bucket algorithm:
//   - Tokens are added at the specified rate (rps)
//   - A maximum of 'burst' tokens can accumulate
//   - Each event consumes one token
//   - If no tokens available, the event is delayed or rejected
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket creates a new token bucket rate limiter.
//
// Parameters:
//   - rps: Events per second (rate at which tokens are added)
//   - burst: Maximum burst size (maximum tokens that can accumulate)
func NewTokenBucket(rps float64, burst int) *TokenBucket {
	return &TokenBucket{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Every creates a token bucket that adds one token per interval.
//
//	// one reminder per minute
//	limiter := ratelimit.Every(time.Minute, 1)
func Every(interval time.Duration, burst int) *TokenBucket {
	return &TokenBucket{
		limiter: rate.NewLimiter(rate.Every(interval), burst),
	}
}

// Allow returns true if an event can happen right now.
// Consumes one token if available.
func (t *TokenBucket) Allow(ctx context.Context) bool {
	return t.limiter.Allow()
}

// Wait blocks until an event is allowed or context is cancelled.
// Returns nil when an event can proceed, or context error if cancelled.
func (t *TokenBucket) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// Delay returns how long an event arriving now would wait for a token,
// without consuming one.
func (t *TokenBucket) Delay() time.Duration {
	// a single instant keeps CancelAt from treating the reservation as used
	now := time.Now()
	r := t.limiter.ReserveN(now, 1)
	d := r.DelayFrom(now)
	r.CancelAt(now)
	return d
}

// SetLimit updates the rate limit dynamically.
func (t *TokenBucket) SetLimit(rps float64) {
	t.limiter.SetLimit(rate.Limit(rps))
}

// SetBurst updates the burst size dynamically.
func (t *TokenBucket) SetBurst(burst int) {
	t.limiter.SetBurst(burst)
}

// Limit returns the current rate limit (events per second).
func (t *TokenBucket) Limit() float64 {
	return float64(t.limiter.Limit())
}

// Burst returns the current burst size.
func (t *TokenBucket) Burst() int {
	return t.limiter.Burst()
}

// Tokens returns the number of tokens currently available.
func (t *TokenBucket) Tokens() float64 {
	return t.limiter.Tokens()
}

// Compile-time check
var _ Limiter = (*TokenBucket)(nil)
