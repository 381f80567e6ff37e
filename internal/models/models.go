// Package models defines the persisted and in-memory entities shared across
// the runtime control plane: agents, sessions, messages, scheduled jobs,
// heartbeats, activity log entries, and artifacts.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Decimal is a fixed-precision monetary amount with six fractional digits,
// used for every cost field so totals never drift under floating-point
// accumulation across many chat iterations.
type Decimal = decimal.Decimal

// ZeroCost returns the zero monetary amount rounded to six fractional digits.
func ZeroCost() Decimal {
	return decimal.NewFromInt(0).Truncate(6)
}

// NewCost builds a Decimal from a float64 cost value, truncating to six
// fractional digits to match the gateway's reported precision.
func NewCost(v float64) Decimal {
	return decimal.NewFromFloat(v).Truncate(6)
}

// NewCostFromString parses a Decimal from its canonical string form, used by
// SQL backends that store cost as text to avoid floating-point round-trips.
func NewCostFromString(s string) (Decimal, error) {
	if s == "" {
		return ZeroCost(), nil
	}
	return decimal.NewFromString(s)
}

// AgentType enumerates the polymorphic executor classes.
type AgentType string

const (
	AgentTypeMain            AgentType = "main"
	AgentTypeSubDevSecOps    AgentType = "sub-devsecops"
	AgentTypeSubSocial       AgentType = "sub-social"
	AgentTypeSubOrchestrator AgentType = "sub-orchestrator"
	AgentTypeSubAria         AgentType = "sub-aria"
)

// AgentStatus enumerates the agent lifecycle states.
type AgentStatus string

const (
	AgentStatusIdle     AgentStatus = "idle"
	AgentStatusBusy     AgentStatus = "busy"
	AgentStatusFailed   AgentStatus = "failed"
	AgentStatusDisabled AgentStatus = "disabled"
)

// Agent is a named polymorphic executor bound to a model and system prompt.
type Agent struct {
	AgentID             string      `json:"agent_id"`
	AgentType           AgentType   `json:"agent_type"`
	Model               string      `json:"model"`
	FallbackModel       string      `json:"fallback_model"`
	SystemPrompt        string      `json:"system_prompt"`
	Status              AgentStatus `json:"status"`
	ConsecutiveFailures int         `json:"consecutive_failures"`
	PheromoneScore      float64     `json:"pheromone_score"`
	TimeoutSeconds      int         `json:"timeout_seconds"`
	LastActiveAt        time.Time   `json:"last_active_at"`
}

// SessionType enumerates the kind of conversation container.
type SessionType string

const (
	SessionTypeInteractive SessionType = "interactive"
	SessionTypeCron        SessionType = "cron"
	SessionTypeSubagent    SessionType = "subagent"
	SessionTypeRun         SessionType = "run"
)

// SessionStatus enumerates the lifecycle of a session.
type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusEnded  SessionStatus = "ended"
)

// Session is a conversation container holding an ordered message log for one agent.
type Session struct {
	SessionID    string         `json:"session_id"`
	AgentID      string         `json:"agent_id"`
	SessionType  SessionType    `json:"session_type"`
	Status       SessionStatus  `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	EndedAt      time.Time      `json:"ended_at,omitempty"`
	MessageCount int            `json:"message_count"`
	TotalTokens  int64          `json:"total_tokens"`
	TotalCost    Decimal        `json:"total_cost"`
	Metadata     map[string]any `json:"metadata"`
}

// EndedFlag returns whether metadata marks the session as ended.
func (s *Session) EndedFlag() bool {
	if s == nil || s.Metadata == nil {
		return false
	}
	v, ok := s.Metadata["ended"].(bool)
	return ok && v
}

// MessageRole enumerates message authorship.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
	RoleSystem    MessageRole = "system"
)

// ToolCall is a structured tool invocation emitted by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolResult is a result fed back to the model for a prior tool call.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Success    bool   `json:"success"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Message is an append-only entry in a session's ordered log.
type Message struct {
	ID           string       `json:"id"`
	SessionID    string       `json:"session_id"`
	Role         MessageRole  `json:"role"`
	Content      string       `json:"content"`
	Thinking     string       `json:"thinking,omitempty"`
	ToolCalls    []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults  []ToolResult `json:"tool_results,omitempty"`
	Model        string       `json:"model,omitempty"`
	TokensInput  int64        `json:"tokens_input"`
	TokensOutput int64        `json:"tokens_output"`
	Cost         Decimal      `json:"cost"`
	LatencyMs    int64        `json:"latency_ms"`
	CreatedAt    time.Time    `json:"created_at"`
}

// JobLastStatus enumerates the outcome of a scheduled job's most recent run.
type JobLastStatus string

const (
	JobStatusOK      JobLastStatus = "ok"
	JobStatusError   JobLastStatus = "error"
	JobStatusSkipped JobLastStatus = "skipped"
)

// ScheduledJob is a cron-triggered unit of work.
type ScheduledJob struct {
	JobID               string         `json:"job_id"`
	Name                string         `json:"name"`
	ScheduleExpression  string         `json:"schedule_expression"`
	Action              string         `json:"action"`
	Enabled             bool           `json:"enabled"`
	NextRunAt           time.Time      `json:"next_run_at"`
	LastRunAt           time.Time      `json:"last_run_at"`
	LastStatus          JobLastStatus  `json:"last_status"`
	LastDurationMs      int64          `json:"last_duration_ms"`
	RunCount            int64          `json:"run_count"`
	SuccessCount        int64          `json:"success_count"`
	FailCount           int64          `json:"fail_count"`
	Params              map[string]any `json:"params"`
	SessionTarget       string         `json:"session_target"` // shared, isolated, reuse-by-key
	MaxDurationSeconds  int            `json:"max_duration_seconds"`
}

// JobExecutionStatus enumerates a single execution's outcome.
type JobExecutionStatus string

const (
	ExecutionRunning         JobExecutionStatus = "running"
	ExecutionSucceeded       JobExecutionStatus = "succeeded"
	ExecutionFailed          JobExecutionStatus = "failed"
	ExecutionDeadlineExceeded JobExecutionStatus = "deadline_exceeded"
)

// JobExecution records one dispatch of a ScheduledJob.
type JobExecution struct {
	ID          string             `json:"id"`
	JobID       string             `json:"job_id"`
	Status      JobExecutionStatus `json:"status"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at"`
	DurationMs  int64              `json:"duration_ms"`
	Error       string             `json:"error,omitempty"`
}

// HeartbeatStatus enumerates heartbeat health states.
type HeartbeatStatus string

const (
	HeartbeatOK       HeartbeatStatus = "ok"
	HeartbeatDegraded HeartbeatStatus = "degraded"
	HeartbeatError    HeartbeatStatus = "error"
)

// Heartbeat is a periodic liveness record for a scheduled job run.
type Heartbeat struct {
	BeatNumber int             `json:"beat_number"`
	JobName    string          `json:"job_name"`
	Status     HeartbeatStatus `json:"status"`
	Details    map[string]any  `json:"details"`
	ExecutedAt time.Time       `json:"executed_at"`
	DurationMs int64           `json:"duration_ms"`
}

// NormalizeDetails wraps non-object detail payloads as {"raw": value} so the
// stored shape is always an object — heartbeat details are never a bare
// scalar or list.
func NormalizeDetails(details any) map[string]any {
	if details == nil {
		return map[string]any{"raw": nil}
	}
	if obj, ok := details.(map[string]any); ok {
		return obj
	}
	return map[string]any{"raw": details}
}

// ActivityLogEntry is an append-only record of something the runtime did.
type ActivityLogEntry struct {
	Action       string         `json:"action"`
	Skill        string         `json:"skill,omitempty"`
	Details      map[string]any `json:"details"`
	Success      bool           `json:"success"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// ArtifactMeta describes a stored artifact's identity.
type ArtifactMeta struct {
	Category  string    `json:"category"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}
