package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllowConsumesBurstThenDenies(t *testing.T) {
	l := New(Config{RequestsPerSecond: 1, BurstSize: 2, Enabled: true})

	if !l.Allow("ep") || !l.Allow("ep") {
		t.Fatalf("expected the first two calls to be allowed by the burst")
	}
	if l.Allow("ep") {
		t.Fatalf("expected the third call to be denied once the burst is exhausted")
	}
}

func TestAllowAlwaysTrueWhenDisabled(t *testing.T) {
	l := New(Config{RequestsPerSecond: 1, BurstSize: 1, Enabled: false})
	for i := 0; i < 5; i++ {
		if !l.Allow("ep") {
			t.Fatalf("expected a disabled limiter to always allow, failed on call %d", i)
		}
	}
}

func TestLimitersAreIndependentPerKey(t *testing.T) {
	l := New(Config{RequestsPerSecond: 1, BurstSize: 1, Enabled: true})

	if !l.Allow("a") {
		t.Fatalf("expected the first call against key a to be allowed")
	}
	if !l.Allow("b") {
		t.Fatalf("expected a separate key to have its own untouched bucket")
	}
	if l.Allow("a") {
		t.Fatalf("expected key a's bucket to still be exhausted")
	}
}

func TestWaitBlocksUntilTokenAvailable(t *testing.T) {
	l := New(Config{RequestsPerSecond: 50, BurstSize: 1, Enabled: true})
	ctx := context.Background()

	if err := l.Wait(ctx, "ep"); err != nil {
		t.Fatalf("unexpected error on first wait: %v", err)
	}
	start := time.Now()
	if err := l.Wait(ctx, "ep"); err != nil {
		t.Fatalf("unexpected error on second wait: %v", err)
	}
	if time.Since(start) <= 0 {
		t.Fatalf("expected the second wait to block for a refill")
	}
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	l := New(Config{RequestsPerSecond: 0.1, BurstSize: 1, Enabled: true})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	l.Allow("ep") // exhaust the single-token burst
	if err := l.Wait(ctx, "ep"); err == nil {
		t.Fatalf("expected a context deadline error waiting for a slow refill")
	}
}

func TestDefaultConfigFillsZeroValues(t *testing.T) {
	l := New(Config{})
	if l.cfg.RequestsPerSecond != 10 {
		t.Fatalf("expected a zero-value config to fall back to the default rate, got %v", l.cfg.RequestsPerSecond)
	}
	if l.cfg.BurstSize != 20 {
		t.Fatalf("expected a zero-value config to derive a default burst size, got %d", l.cfg.BurstSize)
	}
}
