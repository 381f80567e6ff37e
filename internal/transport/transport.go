// Package transport is the single wrapper every outbound HTTP collaborator
// call passes through: it consults the per-endpoint CircuitBreaker, retries
// transient failures with exponential backoff and full jitter, and never
// retries 4xx or an open circuit. Grounded on the teacher's internal/retry
// (retry.Do) and internal/backoff (jittered exponential backoff) packages,
// merged with internal/infra.CircuitBreaker into one component.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

// ErrCircuitOpen is returned when a call is rejected because the matching
// circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// RetryConfig configures Transport's retry behavior (defaults: 3 attempts,
// base 200ms, cap 10s, full jitter).
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig returns the baseline retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 10 * time.Second}
}

// fullJitterBackoff computes attempt's delay using the "full jitter"
// algorithm: a uniform random value in [0, min(cap, base*2^attempt)). This is
// deliberately not the teacher's additive-jitter backoff.ComputeBackoff,
// which only randomizes a fraction of the base.
func fullJitterBackoff(cfg RetryConfig, attempt int, randFn func() float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	cap := float64(cfg.MaxDelay)
	base := float64(cfg.BaseDelay)
	exp := base
	for i := 0; i < attempt; i++ {
		exp *= 2
		if exp > cap {
			exp = cap
			break
		}
	}
	if exp > cap {
		exp = cap
	}
	return time.Duration(randFn() * exp)
}

// Transport wraps an *http.Client with retry + circuit breaker protection.
// Endpoint-specific helper methods must call Request so they cannot bypass
// the retry wrapper.
type Transport struct {
	client  *http.Client
	cbs     *Registry
	retry   RetryConfig
	logger  *slog.Logger
	randFn  func() float64
	sleepFn func(context.Context, time.Duration) error
}

// Option configures a Transport.
type Option func(*Transport)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) {
		if c != nil {
			t.client = c
		}
	}
}

// WithRetryConfig overrides the retry configuration.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(t *Transport) { t.retry = cfg }
}

// WithLogger overrides the transport logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithCircuitDefaults overrides the default circuit breaker config used for
// endpoints not explicitly configured.
func WithCircuitDefaults(cfg CircuitBreakerConfig) Option {
	return func(t *Transport) { t.cbs = NewRegistry(cfg) }
}

// New creates a Transport with the given options.
func New(opts ...Option) *Transport {
	t := &Transport{
		client:  http.DefaultClient,
		cbs:     NewRegistry(DefaultCircuitBreakerConfig()),
		retry:   DefaultRetryConfig(),
		logger:  slog.Default().With("component", "transport"),
		randFn:  rand.Float64,
		sleepFn: sleepCtx,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// CircuitBreaker returns (creating if absent) the breaker for an endpoint, so
// callers can invoke SpawnGate() directly before spawning a fallback agent.
func (t *Transport) CircuitBreaker(endpoint string) *CircuitBreaker {
	return t.cbs.Get(endpoint)
}

// Registry exposes the underlying breaker registry for status/reset commands.
func (t *Transport) Registry() *Registry { return t.cbs }

// Response is the successful result of a Request call.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// httpStatusError wraps a non-2xx HTTP status for retry classification.
type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string { return fmt.Sprintf("http status %d", e.status) }

// Request performs method/path against endpoint with retry + circuit breaker
// protection. body may be nil. The body reader, if any, must be re-readable
// across attempts — callers pass raw bytes via bytes.NewReader semantics by
// re-invoking bodyFn per attempt. headers may be nil; every entry is set on
// every attempt, including retries.
func (t *Transport) Request(ctx context.Context, endpoint, method, url string, bodyFn func() io.Reader, headers map[string]string, timeout time.Duration) (*Response, error) {
	cb := t.cbs.Get(endpoint)

	allowed, halfOpenProbe := cb.Allow()
	if !allowed {
		return nil, ErrCircuitOpen
	}

	maxAttempts := t.retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := fullJitterBackoff(t.retry, attempt, t.randFn)
			if err := t.sleepFn(ctx, delay); err != nil {
				return nil, err
			}
		}

		resp, err := t.attempt(ctx, method, url, bodyFn, headers, timeout)
		if err == nil {
			cb.RecordSuccess()
			return resp, nil
		}
		lastErr = err

		if isAuthError(err) {
			// Fatal: not retried, not counted toward the breaker's failure tally.
			return nil, err
		}
		if !isRetryable(err) {
			cb.RecordFailure()
			return nil, err
		}
		if halfOpenProbe {
			// A half-open probe only gets one shot; a retry loop here would
			// re-probe a breaker that should still be considered open.
			cb.RecordFailure()
			return nil, lastErr
		}
		t.logger.Warn("transport retry", "endpoint", endpoint, "attempt", attempt+1, "error", err)
	}

	cb.RecordFailure()
	return nil, lastErr
}

func (t *Transport) attempt(ctx context.Context, method, url string, bodyFn func() io.Reader, headers map[string]string, timeout time.Duration) (*Response, error) {
	reqCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body io.Reader
	if bodyFn != nil {
		body = bodyFn()
	}

	req, err := http.NewRequestWithContext(reqCtx, method, url, body)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("auth error: %w", &httpStatusError{status: resp.StatusCode})
	}
	if resp.StatusCode >= 500 {
		return nil, &httpStatusError{status: resp.StatusCode}
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("client error: %w", &httpStatusError{status: resp.StatusCode})
	}

	return &Response{StatusCode: resp.StatusCode, Body: data, Header: resp.Header}, nil
}

func isRetryable(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.status >= 500
	}
	// Any non-HTTP-status error is a transport-level failure (dial/timeout/etc.)
	return true
}

func isAuthError(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.status == http.StatusUnauthorized || statusErr.status == http.StatusForbidden
	}
	return false
}

// JSONBody returns a bodyFn producing the given bytes, safe to call repeatedly across retries.
func JSONBody(payload []byte) func() io.Reader {
	return func() io.Reader { return bytes.NewReader(payload) }
}
