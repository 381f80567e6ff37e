package transport

import (
	"testing"
	"time"
)

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{Threshold: 3, ResetAfter: time.Minute})
	for i := 0; i < 2; i++ {
		cb.RecordFailure()
		if cb.State() != StateClosed {
			t.Fatalf("expected closed after %d failures, got %s", i+1, cb.State())
		}
	}
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("expected open after reaching threshold, got %s", cb.State())
	}
	if ok, _ := cb.Allow(); ok {
		t.Fatalf("expected Allow to deny while open")
	}
}

func TestCircuitBreakerHalfOpenAfterResetWindow(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{Threshold: 1, ResetAfter: 10 * time.Second})
	cb.now = func() time.Time { return now }
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("expected open immediately after crossing threshold")
	}

	cb.now = func() time.Time { return now.Add(11 * time.Second) }
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected half_open once reset_after has elapsed, got %s", cb.State())
	}
	ok, probe := cb.Allow()
	if !ok || !probe {
		t.Fatalf("expected half-open Allow to permit a probe, got ok=%v probe=%v", ok, probe)
	}
}

func TestCircuitBreakerFailedProbeReopensImmediately(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{Threshold: 5, ResetAfter: 10 * time.Second})
	cb.now = func() time.Time { return now }
	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}
	cb.now = func() time.Time { return now.Add(11 * time.Second) }
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected half_open before the probe")
	}

	// the probe itself fails
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("expected a failed half-open probe to reopen the circuit immediately, got %s", cb.State())
	}
}

func TestCircuitBreakerSuccessClearsFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", DefaultCircuitBreakerConfig())
	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	snap := cb.Snapshot()
	if snap.Failures != 0 || snap.State != StateClosed {
		t.Fatalf("expected RecordSuccess to clear failures and close the breaker, got %+v", snap)
	}
}

func TestCircuitBreakerSpawnGateMatchesAllow(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{Threshold: 1, ResetAfter: time.Minute})
	cb.RecordFailure()
	if err := cb.SpawnGate(); err != ErrCircuitOpen {
		t.Fatalf("expected ErrCircuitOpen from SpawnGate while open, got %v", err)
	}
}

func TestRegistryGetCreatesOnceAndReuses(t *testing.T) {
	reg := NewRegistry(DefaultCircuitBreakerConfig())
	a := reg.Get("llm-primary")
	b := reg.Get("llm-primary")
	if a != b {
		t.Fatalf("expected Get to return the same breaker instance for the same name")
	}
	if len(reg.Snapshots()) != 1 {
		t.Fatalf("expected exactly one breaker registered, got %d", len(reg.Snapshots()))
	}
}

func TestRegistryResetAll(t *testing.T) {
	reg := NewRegistry(CircuitBreakerConfig{Threshold: 1, ResetAfter: time.Minute})
	cb := reg.Get("x")
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("expected breaker to be open before reset")
	}
	reg.ResetAll()
	if cb.State() != StateClosed {
		t.Fatalf("expected ResetAll to close every breaker")
	}
}
