package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiterDisabledNeverBlocks(t *testing.T) {
	limiter := NewLimiter(0)

	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := limiter.Wait(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("disabled limiter blocked for %s", elapsed)
	}
}

func TestLimiterPacesWaits(t *testing.T) {
	limiter := NewLimiter(30 * time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := limiter.Wait(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// First permit is immediate, the next two wait one interval each.
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("expected pacing of roughly two intervals, got %s", elapsed)
	}
}

func TestLimiterWaitHonorsContext(t *testing.T) {
	limiter := NewLimiter(time.Hour)

	// Use up the single burst permit.
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Fatal("expected context error while waiting for next permit")
	}
}

func TestNilLimiterIsSafe(t *testing.T) {
	var limiter *Limiter
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("nil limiter should be a no-op, got %v", err)
	}
}
