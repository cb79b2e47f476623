package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestTokenBucket(t *testing.T) {
	t.Run("NewTokenBucket creates limiter", func(t *testing.T) {
		limiter := NewTokenBucket(100, 10)

		if limiter.Limit() != 100 {
			t.Errorf("expected limit 100, got %f", limiter.Limit())
		}
		if limiter.Burst() != 10 {
			t.Errorf("expected burst 10, got %d", limiter.Burst())
		}
	})

	t.Run("Every sets interval rate", func(t *testing.T) {
		limiter := Every(100*time.Millisecond, 2)

		if limiter.Limit() != 10 {
			t.Errorf("expected limit 10, got %f", limiter.Limit())
		}
		if limiter.Burst() != 2 {
			t.Errorf("expected burst 2, got %d", limiter.Burst())
		}
	})

	t.Run("Allow consumes burst", func(t *testing.T) {
		limiter := NewTokenBucket(100, 5)
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			if !limiter.Allow(ctx) {
				t.Errorf("expected Allow to return true at iteration %d", i)
			}
		}
	})

	t.Run("Allow returns false when exhausted", func(t *testing.T) {
		limiter := NewTokenBucket(1, 1)
		ctx := context.Background()

		if !limiter.Allow(ctx) {
			t.Error("expected first Allow to succeed")
		}
		if limiter.Allow(ctx) {
			t.Error("expected second Allow to fail")
		}
	})

	t.Run("Wait blocks until token available", func(t *testing.T) {
		limiter := NewTokenBucket(100, 1)
		ctx := context.Background()

		limiter.Allow(ctx)

		// tokens replenish at 100/sec = 10ms per token
		ctxWithTimeout, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()

		if err := limiter.Wait(ctxWithTimeout); err != nil {
			t.Errorf("Wait failed: %v", err)
		}
	})

	t.Run("Wait respects context cancellation", func(t *testing.T) {
		limiter := NewTokenBucket(0.001, 1)
		ctx := context.Background()

		limiter.Allow(ctx)

		ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()

		if err := limiter.Wait(ctxWithTimeout); err == nil {
			t.Error("expected Wait to fail with context deadline")
		}
	})

	t.Run("Delay does not consume tokens", func(t *testing.T) {
		limiter := NewTokenBucket(1, 1)

		if d := limiter.Delay(); d != 0 {
			t.Errorf("expected no delay, got %v", d)
		}
		if !limiter.Allow(context.Background()) {
			t.Error("expected Allow to succeed after Delay")
		}
		if d := limiter.Delay(); d <= 0 {
			t.Errorf("expected positive delay when exhausted, got %v", d)
		}
	})

	t.Run("repeated Delay keeps the burst", func(t *testing.T) {
		limiter := NewTokenBucket(0.001, 3)

		for i := 0; i < 5; i++ {
			if d := limiter.Delay(); d != 0 {
				t.Fatalf("call %d: expected no delay, got %v", i, d)
			}
		}
		if got := limiter.Tokens(); got < 2.99 {
			t.Errorf("expected burst intact after Delay, got %.2f tokens", got)
		}
		for i := 0; i < 3; i++ {
			if !limiter.Allow(context.Background()) {
				t.Fatalf("expected Allow %d to succeed", i)
			}
		}
	})

	t.Run("SetLimit updates limit", func(t *testing.T) {
		limiter := NewTokenBucket(100, 10)

		limiter.SetLimit(200)

		if limiter.Limit() != 200 {
			t.Errorf("expected limit 200, got %f", limiter.Limit())
		}
	})

	t.Run("SetBurst updates burst", func(t *testing.T) {
		limiter := NewTokenBucket(100, 10)

		limiter.SetBurst(20)

		if limiter.Burst() != 20 {
			t.Errorf("expected burst 20, got %d", limiter.Burst())
		}
	})

	t.Run("Tokens starts at burst", func(t *testing.T) {
		limiter := NewTokenBucket(0.001, 3)

		if got := limiter.Tokens(); got < 2.99 || got > 3 {
			t.Errorf("expected 3 tokens, got %f", got)
		}
	})
}

func BenchmarkTokenBucketAllow(b *testing.B) {
	limiter := NewTokenBucket(1000000, 1000)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		limiter.Allow(ctx)
	}
}
