// Package sessions manages the lifecycle of conversation containers: one
// per agent per session type, pruned on two independent clocks (idle
// inactivity and sub-agent wall-clock age), and protected against deletion
// of the caller's own session or a main-agent session whose key carries no
// cron/subagent/run marker.
// Grounded on the teacher's internal/sessions.SessionExpiry (nowFunc
// injection for testability, mode-driven reset checks) generalized from
// channel-scoped reset rules to the runtime's idle/stale pruning rules.
package sessions

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Najia-afk/Aria-moltbot-sub003/internal/errkind"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/models"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/repository"
)

// Config configures the Manager's pruning thresholds.
type Config struct {
	IdleTimeout       time.Duration
	StaleSubagentTTL  time.Duration
	Now               func() time.Time
}

// DefaultConfig returns the baseline pruning thresholds (30 minutes idle,
// 1 hour sub-agent wall-clock age).
func DefaultConfig() Config {
	return Config{
		IdleTimeout:      30 * time.Minute,
		StaleSubagentTTL: time.Hour,
		Now:              time.Now,
	}
}

// Manager owns session creation, closure, and the two pruning sweeps.
type Manager struct {
	store  repository.SessionRepository
	cfg    Config
	logger *slog.Logger
}

// New creates a Manager backed by the given session repository.
func New(store repository.SessionRepository, cfg Config, logger *slog.Logger) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	if cfg.StaleSubagentTTL <= 0 {
		cfg.StaleSubagentTTL = time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, cfg: cfg, logger: logger.With("component", "sessions")}
}

// GetOrCreate returns the active session for (agentID, sessionType),
// creating one if none is active.
func (m *Manager) GetOrCreate(ctx context.Context, agentID string, sessionType models.SessionType) (*models.Session, error) {
	existing, err := m.store.GetActive(ctx, agentID, sessionType)
	if err == nil {
		return existing, nil
	}
	if err != repository.ErrNotFound {
		return nil, errkind.New(errkind.Transient, "sessions.GetOrCreate", err)
	}

	now := m.cfg.Now()
	session := &models.Session{
		SessionID:   uuid.NewString(),
		AgentID:     agentID,
		SessionType: sessionType,
		Status:      models.SessionStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
		TotalCost:   models.ZeroCost(),
		Metadata:    map[string]any{},
	}
	if err := m.store.Create(ctx, session); err != nil {
		return nil, errkind.New(errkind.Transient, "sessions.GetOrCreate", err)
	}
	return session, nil
}

// Close marks a session ended, stamping metadata.end_reason so callers can
// later distinguish why a session stopped (idle timeout, stale-subagent
// prune, explicit operator action, etc).
func (m *Manager) Close(ctx context.Context, sessionID, reason string) error {
	s, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return errkind.New(errkind.Transient, "sessions.Close", err)
	}
	s.Status = models.SessionStatusEnded
	s.EndedAt = m.cfg.Now()
	if s.Metadata == nil {
		s.Metadata = map[string]any{}
	}
	s.Metadata["ended"] = true
	s.Metadata["end_reason"] = reason
	return errkind.New(errkind.Transient, "sessions.Close", m.store.Update(ctx, s))
}

// PruneResult summarizes one pruning sweep.
type PruneResult struct {
	Closed []string
}

// CloseIdleSessions closes every active session whose UpdatedAt precedes
// now-idleTimeout — activity resets this clock since UpdatedAt advances on
// every appended message.
func (m *Manager) CloseIdleSessions(ctx context.Context) (PruneResult, error) {
	cutoff := m.cfg.Now().Add(-m.cfg.IdleTimeout)
	candidates, err := m.store.ListIdleBefore(ctx, cutoff)
	if err != nil {
		return PruneResult{}, errkind.New(errkind.Transient, "sessions.CloseIdleSessions", err)
	}
	return m.closeAll(ctx, candidates, "idle_timeout")
}

// CloseStaleSubagentSessions closes every active sub-agent session whose
// CreatedAt precedes now-staleTTL. Unlike idle pruning, this clock is never
// reset by activity — a sub-agent session that is still being actively used
// past its wall-clock budget is closed anyway, since sub-agent sessions are
// meant to be short-lived task executions, not long conversations.
func (m *Manager) CloseStaleSubagentSessions(ctx context.Context) (PruneResult, error) {
	cutoff := m.cfg.Now().Add(-m.cfg.StaleSubagentTTL)
	candidates, err := m.store.ListStaleSubagentsBefore(ctx, cutoff)
	if err != nil {
		return PruneResult{}, errkind.New(errkind.Transient, "sessions.CloseStaleSubagentSessions", err)
	}
	return m.closeAll(ctx, candidates, "stale_subagent_ttl")
}

func (m *Manager) closeAll(ctx context.Context, candidates []*models.Session, reason string) (PruneResult, error) {
	var result PruneResult
	for _, s := range candidates {
		if err := m.Close(ctx, s.SessionID, reason); err != nil {
			m.logger.Warn("failed to close session during pruning sweep", "session_id", s.SessionID, "error", err)
			continue
		}
		result.Closed = append(result.Closed, s.SessionID)
	}
	if len(result.Closed) > 0 {
		m.logger.Info("pruned sessions", "count", len(result.Closed))
	}
	return result, nil
}

// Stats returns the store's canonical session counts — never derived from
// local heuristics, since the runtime can restart with no in-memory state.
func (m *Manager) Stats(ctx context.Context) (repository.SessionStats, error) {
	stats, err := m.store.Stats(ctx)
	if err != nil {
		return repository.SessionStats{}, errkind.New(errkind.Transient, "sessions.Stats", err)
	}
	return stats, nil
}

// isProtectedKey reports whether a main-agent session key is protected from
// deletion: keys carrying a cron/subagent/run marker are not protected and
// can be deleted by automation, but an interactive main session key cannot.
func isProtectedKey(sessionID string) bool {
	for _, marker := range []string{":cron:", ":subagent:", ":run:"} {
		if strings.Contains(sessionID, marker) {
			return false
		}
	}
	return true
}

// Delete removes a session, enforcing the deletion protection policy: a
// caller cannot delete its own session, and a main-agent session cannot be
// deleted unless its id carries a cron/subagent/run marker.
func (m *Manager) Delete(ctx context.Context, sessionID, callerSessionID string) error {
	if sessionID == callerSessionID {
		return errkind.Newf(errkind.Contract, "sessions.Delete", "cannot delete the caller's own session")
	}

	s, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return errkind.New(errkind.Transient, "sessions.Delete", err)
	}
	if s.AgentID == string(models.AgentTypeMain) && isProtectedKey(sessionID) {
		return errkind.Newf(errkind.Contract, "sessions.Delete", "main-agent session %s is protected from deletion", sessionID)
	}

	return errkind.New(errkind.Transient, "sessions.Delete", m.store.Delete(ctx, sessionID))
}
