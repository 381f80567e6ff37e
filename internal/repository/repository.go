// Package repository defines the typed operations the control plane needs
// from the external store: agents, sessions, messages, scheduled jobs, job
// executions, heartbeats, and activity log entries. Each interface is narrow
// and owned by the component that needs it, grounded on the teacher's
// internal/storage.Interfaces (AgentStore/ChannelConnectionStore/UserStore)
// split-by-concern style.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Najia-afk/Aria-moltbot-sub003/internal/models"
)

// ErrNotFound is returned when a lookup finds nothing.
var ErrNotFound = errors.New("not found")

// AgentRepository persists Agent rows.
type AgentRepository interface {
	Upsert(ctx context.Context, agent *models.Agent) error
	Get(ctx context.Context, agentID string) (*models.Agent, error)
	SetStatus(ctx context.Context, agentID string, status models.AgentStatus) error
	// CountNonDisabledByPrefix counts agents whose agent_id matches
	// "<prefix>-%" and whose status is not disabled.
	CountNonDisabledByPrefix(ctx context.Context, prefix string) (int, error)
	List(ctx context.Context) ([]*models.Agent, error)
}

// SessionRepository persists Session rows.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	// GetActive returns the most recent active session for (agentID, sessionType), if any.
	GetActive(ctx context.Context, agentID string, sessionType models.SessionType) (*models.Session, error)
	Update(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, sessionID string) error
	// ListIdleBefore returns active sessions whose updated_at precedes cutoff.
	ListIdleBefore(ctx context.Context, cutoff time.Time) ([]*models.Session, error)
	// ListStaleSubagentsBefore returns active sub-agent sessions whose created_at precedes cutoff.
	ListStaleSubagentsBefore(ctx context.Context, cutoff time.Time) ([]*models.Session, error)
	Stats(ctx context.Context) (SessionStats, error)
}

// SessionStats is the canonical, store-sourced view of session counts; it
// must never be derived locally from in-memory heuristics.
type SessionStats struct {
	TotalSessions  int            `json:"total_sessions"`
	ActiveSessions int            `json:"active_sessions"`
	ByAgent        map[string]int `json:"by_agent"`
	ByType         map[string]int `json:"by_type"`
}

// MessageRepository persists append-only Message rows.
type MessageRepository interface {
	Append(ctx context.Context, msg *models.Message) error
	ListRecent(ctx context.Context, sessionID string, limit int) ([]*models.Message, error)
	Count(ctx context.Context, sessionID string) (int, error)
}

// JobRepository persists ScheduledJob rows.
type JobRepository interface {
	Upsert(ctx context.Context, job *models.ScheduledJob) error
	Get(ctx context.Context, jobID string) (*models.ScheduledJob, error)
	ListEnabledDue(ctx context.Context, now time.Time) ([]*models.ScheduledJob, error)
	ListAll(ctx context.Context) ([]*models.ScheduledJob, error)
	Update(ctx context.Context, job *models.ScheduledJob) error
}

// ExecutionRepository persists JobExecution rows, one per job dispatch.
type ExecutionRepository interface {
	Create(ctx context.Context, exec *models.JobExecution) error
	Update(ctx context.Context, exec *models.JobExecution) error
	List(ctx context.Context, jobID string, limit, offset int) ([]*models.JobExecution, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// HeartbeatRepository persists Heartbeat rows.
type HeartbeatRepository interface {
	Create(ctx context.Context, hb *models.Heartbeat) error
	Latest(ctx context.Context, jobName string) (*models.Heartbeat, error)
}

// ActivityLogRepository persists ActivityLogEntry rows.
type ActivityLogRepository interface {
	Append(ctx context.Context, entry *models.ActivityLogEntry) error
}

// Store aggregates every repository the control plane depends on.
type Store struct {
	Agents      AgentRepository
	Sessions    SessionRepository
	Messages    MessageRepository
	Jobs        JobRepository
	Executions  ExecutionRepository
	Heartbeats  HeartbeatRepository
	ActivityLog ActivityLogRepository
	Close       func() error
}
