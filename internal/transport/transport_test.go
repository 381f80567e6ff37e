package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestRequestRetriesOn5xxThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	tr := New(WithRetryConfig(RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}))
	tr.sleepFn = noSleep

	resp, err := tr.Request(context.Background(), "test-endpoint", http.MethodGet, srv.URL, nil, nil, time.Second)
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRequestDoesNotRetry4xx(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	tr := New(WithRetryConfig(RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}))
	tr.sleepFn = noSleep

	_, err := tr.Request(context.Background(), "test-endpoint", http.MethodGet, srv.URL, nil, nil, time.Second)
	if err == nil {
		t.Fatalf("expected an error for a 4xx response")
	}
	if attempts != 1 {
		t.Fatalf("expected exactly one attempt for a non-retryable 4xx, got %d", attempts)
	}
}

func TestRequestRejectedWhenCircuitOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := New(WithCircuitDefaults(CircuitBreakerConfig{Threshold: 1, ResetAfter: time.Minute}))
	tr.sleepFn = noSleep
	tr.CircuitBreaker("test-endpoint").RecordFailure()

	_, err := tr.Request(context.Background(), "test-endpoint", http.MethodGet, srv.URL, nil, nil, time.Second)
	if err != ErrCircuitOpen {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestRequestAuthErrorNotRetriedOrCounted(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tr := New(WithRetryConfig(RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}))
	tr.sleepFn = noSleep

	_, err := tr.Request(context.Background(), "test-endpoint", http.MethodGet, srv.URL, nil, nil, time.Second)
	if err == nil {
		t.Fatalf("expected an auth error")
	}
	if attempts != 1 {
		t.Fatalf("expected exactly one attempt for an auth error, got %d", attempts)
	}
	if tr.CircuitBreaker("test-endpoint").State() != StateClosed {
		t.Fatalf("expected an auth error to not count toward the breaker's failure tally")
	}
}

func TestFullJitterBackoffRespectsCap(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 200 * time.Millisecond, MaxDelay: time.Second}
	d := fullJitterBackoff(cfg, 10, func() float64 { return 1.0 })
	if d > cfg.MaxDelay {
		t.Fatalf("expected backoff to respect the cap, got %v", d)
	}
}
