package transport

import (
	"sync"
	"time"
)

// CircuitState is the tri-valued state of a CircuitBreaker.
type CircuitState string

const (
	StateClosed   CircuitState = "closed"
	StateOpen     CircuitState = "open"
	StateHalfOpen CircuitState = "half_open"
)

// CircuitBreaker accumulates per-endpoint failures and gates both direct
// calls (via Transport.Request) and fallback spawns (via SpawnGate), grounded
// on the teacher's internal/infra.CircuitBreaker but reshaped around a pure
// state function of (failures, opened_at, threshold, reset_after) instead of
// a success-counted half-open probe.
type CircuitBreaker struct {
	Name string

	mu         sync.Mutex
	failures   int
	openedAt   time.Time
	threshold  int
	resetAfter time.Duration
	now        func() time.Time
}

// CircuitBreakerConfig configures a CircuitBreaker's thresholds.
type CircuitBreakerConfig struct {
	Threshold  int
	ResetAfter time.Duration
}

// DefaultCircuitBreakerConfig returns the baseline thresholds (5 failures, 60s reset window).
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{Threshold: 5, ResetAfter: 60 * time.Second}
}

// NewCircuitBreaker creates a breaker for the named endpoint.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.ResetAfter <= 0 {
		cfg.ResetAfter = 60 * time.Second
	}
	return &CircuitBreaker{
		Name:       name,
		threshold:  cfg.Threshold,
		resetAfter: cfg.ResetAfter,
		now:        time.Now,
	}
}

// State computes the tri-valued state as a pure function of (failures,
// opened_at, threshold, reset_after) — it never mutates, so repeated calls
// observing an elapsed open window do not by themselves transition the
// breaker; a half_open state is a signal the next caller should probe, not a
// caller-absent transition.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stateLocked()
}

func (cb *CircuitBreaker) stateLocked() CircuitState {
	if cb.openedAt.IsZero() {
		return StateClosed
	}
	if cb.now().Sub(cb.openedAt) < cb.resetAfter {
		return StateOpen
	}
	return StateHalfOpen
}

// Allow reports whether a call may proceed, and if it is a half-open probe.
func (cb *CircuitBreaker) Allow() (ok bool, halfOpenProbe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.stateLocked() {
	case StateClosed:
		return true, false
	case StateHalfOpen:
		return true, true
	default:
		return false, false
	}
}

// RecordSuccess zeroes failures and clears opened_at.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.openedAt = time.Time{}
}

// RecordFailure increments failures and, when the threshold is crossed, sets
// opened_at to now. A failure recorded while half-open (the probe itself
// failed) reopens the circuit immediately regardless of the accumulated
// failure count.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	wasHalfOpen := cb.stateLocked() == StateHalfOpen
	cb.failures++
	if wasHalfOpen || cb.failures >= cb.threshold {
		cb.openedAt = cb.now()
	}
}

// SpawnGate returns ErrCircuitOpen if the circuit is open. Callers that
// intend to spawn a sub-agent as a fallback to a failed API call must invoke
// this before spawning. A half-open circuit still allows the spawn — it is
// the probe opportunity, same as a direct call.
func (cb *CircuitBreaker) SpawnGate() error {
	ok, _ := cb.Allow()
	if !ok {
		return ErrCircuitOpen
	}
	return nil
}

// Snapshot returns the breaker's observable state for status/metrics reporting.
type Snapshot struct {
	Name     string
	State    CircuitState
	Failures int
	OpenedAt time.Time
}

// Snapshot returns a point-in-time view of the breaker.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Snapshot{Name: cb.Name, State: cb.stateLocked(), Failures: cb.failures, OpenedAt: cb.openedAt}
}

// Reset forces the breaker back to closed, for the CLI's "reset circuit breaker" command.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.openedAt = time.Time{}
}

// Registry holds one CircuitBreaker per endpoint name, created on demand,
// grounded on the teacher's CircuitBreakerRegistry (internal/infra/circuit.go).
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	defaults CircuitBreakerConfig
}

// NewRegistry creates a registry using defaults for any endpoint not configured explicitly.
func NewRegistry(defaults CircuitBreakerConfig) *Registry {
	return &Registry{breakers: make(map[string]*CircuitBreaker), defaults: defaults}
}

// Get returns (creating if absent) the breaker for name.
func (r *Registry) Get(name string) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[name]; ok {
		return cb
	}
	cb = NewCircuitBreaker(name, r.defaults)
	r.breakers[name] = cb
	return cb
}

// Snapshots returns a snapshot for every breaker in the registry.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.breakers))
	for _, cb := range r.breakers {
		out = append(out, cb.Snapshot())
	}
	return out
}

// ResetAll resets every breaker to closed.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, cb := range r.breakers {
		cb.Reset()
	}
}
