// Package ratelimit guards outbound calls with a token-bucket limiter keyed
// by endpoint. Grounded on the teacher's internal/ratelimit.Bucket (same
// Config shape: requests-per-second, burst size, enabled flag) but backed by
// golang.org/x/time/rate instead of the teacher's hand-rolled refill loop.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Config configures a Limiter's rate and burst.
type Config struct {
	RequestsPerSecond float64
	BurstSize         int
	Enabled           bool
}

// DefaultConfig returns the baseline rate (10 req/s, burst 20, enabled).
func DefaultConfig() Config {
	return Config{RequestsPerSecond: 10, BurstSize: 20, Enabled: true}
}

// Limiter holds one rate.Limiter per endpoint key, created on demand.
type Limiter struct {
	mu       sync.Mutex
	cfg      Config
	limiters map[string]*rate.Limiter
}

// New creates a Limiter using cfg for every endpoint not configured otherwise.
func New(cfg Config) *Limiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = int(cfg.RequestsPerSecond * 2)
	}
	return &Limiter{cfg: cfg, limiters: make(map[string]*rate.Limiter)}
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	rl, ok := l.limiters[key]
	if !ok {
		rl = rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.BurstSize)
		l.limiters[key] = rl
	}
	return rl
}

// Allow reports whether a call for key may proceed now, consuming a token
// if so. When rate limiting is disabled it always allows.
func (l *Limiter) Allow(key string) bool {
	if !l.cfg.Enabled {
		return true
	}
	return l.get(key).Allow()
}

// Wait blocks until a token for key is available or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if !l.cfg.Enabled {
		return nil
	}
	return l.get(key).Wait(ctx)
}
