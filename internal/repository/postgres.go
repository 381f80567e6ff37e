// Package repository's postgres.go implements the store against CockroachDB
// or Postgres via database/sql + lib/pq, grounded on the teacher's
// internal/storage.NewCockroachStoresFromDSN (sql.Open("postgres", dsn),
// pool tuning, PingContext on startup, one concrete *cockroach*Store type
// per repository interface) extended with a three-schema bootstrap:
// aria_data for domain entities, aria_engine for runtime state, and litellm
// for the LLM gateway's own tables (owned by the gateway, only referenced
// here for schema creation so migrations never race the gateway's startup).
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Najia-afk/Aria-moltbot-sub003/internal/errkind"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/models"
)

// PostgresConfig tunes the connection pool.
type PostgresConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPostgresConfig returns sensible pool defaults.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{MaxOpenConns: 20, MaxIdleConns: 5, ConnMaxLifetime: time.Hour, ConnectTimeout: 5 * time.Second}
}

const bootstrapDDL = `
CREATE SCHEMA IF NOT EXISTS aria_data;
CREATE SCHEMA IF NOT EXISTS aria_engine;
CREATE SCHEMA IF NOT EXISTS litellm;

CREATE TABLE IF NOT EXISTS aria_engine.agents (
	agent_id TEXT PRIMARY KEY,
	agent_type TEXT NOT NULL,
	model TEXT NOT NULL,
	fallback_model TEXT,
	system_prompt TEXT,
	status TEXT NOT NULL,
	consecutive_failures INT NOT NULL DEFAULT 0,
	pheromone_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	timeout_seconds INT NOT NULL DEFAULT 0,
	last_active_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS aria_data.sessions (
	session_id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	session_type TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	ended_at TIMESTAMPTZ,
	message_count INT NOT NULL DEFAULT 0,
	total_tokens BIGINT NOT NULL DEFAULT 0,
	total_cost NUMERIC(20,6) NOT NULL DEFAULT 0,
	metadata JSONB
);

CREATE TABLE IF NOT EXISTS aria_data.messages (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES aria_data.sessions(session_id),
	role TEXT NOT NULL,
	content TEXT,
	thinking TEXT,
	tool_calls JSONB,
	tool_results JSONB,
	model TEXT,
	tokens_input BIGINT NOT NULL DEFAULT 0,
	tokens_output BIGINT NOT NULL DEFAULT 0,
	cost NUMERIC(20,6) NOT NULL DEFAULT 0,
	latency_ms BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS aria_engine.scheduled_jobs (
	job_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	schedule_expression TEXT NOT NULL,
	action TEXT NOT NULL,
	enabled BOOLEAN NOT NULL DEFAULT true,
	next_run_at TIMESTAMPTZ,
	last_run_at TIMESTAMPTZ,
	last_status TEXT,
	last_duration_ms BIGINT NOT NULL DEFAULT 0,
	run_count BIGINT NOT NULL DEFAULT 0,
	success_count BIGINT NOT NULL DEFAULT 0,
	fail_count BIGINT NOT NULL DEFAULT 0,
	params JSONB,
	session_target TEXT,
	max_duration_seconds INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS aria_engine.job_executions (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL REFERENCES aria_engine.scheduled_jobs(job_id),
	status TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	error TEXT
);

CREATE TABLE IF NOT EXISTS aria_engine.heartbeats (
	beat_number BIGSERIAL PRIMARY KEY,
	job_name TEXT NOT NULL,
	status TEXT NOT NULL,
	details JSONB,
	executed_at TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS aria_data.activity_log (
	id BIGSERIAL PRIMARY KEY,
	action TEXT NOT NULL,
	skill TEXT,
	details JSONB,
	success BOOLEAN NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
`

// NewPostgresStore opens a connection pool against dsn, bootstraps the
// three schemas and their tables if absent, and returns a fully wired Store.
func NewPostgresStore(dsn string, cfg PostgresConfig) (*Store, error) {
	if cfg.MaxOpenConns <= 0 {
		cfg = DefaultPostgresConfig()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errkind.New(errkind.Fatal, "repository.NewPostgresStore", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errkind.New(errkind.Fatal, "repository.NewPostgresStore", err)
	}

	if _, err := db.ExecContext(ctx, bootstrapDDL); err != nil {
		db.Close()
		return nil, errkind.New(errkind.Fatal, "repository.NewPostgresStore", fmt.Errorf("bootstrap schema: %w", err))
	}

	return &Store{
		Agents:      &pgAgents{db: db},
		Sessions:    &pgSessions{db: db},
		Messages:    &pgMessages{db: db},
		Jobs:        &pgJobs{db: db},
		Executions:  &pgExecutions{db: db},
		Heartbeats:  &pgHeartbeats{db: db},
		ActivityLog: &pgActivity{db: db},
		Close:       db.Close,
	}, nil
}

type pgAgents struct{ db *sql.DB }

func (s *pgAgents) Upsert(ctx context.Context, a *models.Agent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO aria_engine.agents (agent_id, agent_type, model, fallback_model, system_prompt, status, consecutive_failures, pheromone_score, timeout_seconds, last_active_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (agent_id) DO UPDATE SET
			agent_type=$2, model=$3, fallback_model=$4, system_prompt=$5, status=$6,
			consecutive_failures=$7, pheromone_score=$8, timeout_seconds=$9, last_active_at=$10`,
		a.AgentID, a.AgentType, a.Model, a.FallbackModel, a.SystemPrompt, a.Status,
		a.ConsecutiveFailures, a.PheromoneScore, a.TimeoutSeconds, a.LastActiveAt)
	return err
}

func (s *pgAgents) Get(ctx context.Context, agentID string) (*models.Agent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT agent_id, agent_type, model, fallback_model, system_prompt, status, consecutive_failures, pheromone_score, timeout_seconds, last_active_at
		FROM aria_engine.agents WHERE agent_id = $1`, agentID)
	var a models.Agent
	if err := row.Scan(&a.AgentID, &a.AgentType, &a.Model, &a.FallbackModel, &a.SystemPrompt, &a.Status, &a.ConsecutiveFailures, &a.PheromoneScore, &a.TimeoutSeconds, &a.LastActiveAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *pgAgents) SetStatus(ctx context.Context, agentID string, status models.AgentStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE aria_engine.agents SET status=$2 WHERE agent_id=$1`, agentID, status)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgAgents) CountNonDisabledByPrefix(ctx context.Context, prefix string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM aria_engine.agents WHERE agent_id LIKE $1 AND status <> 'disabled'`,
		prefix+"-%").Scan(&n)
	return n, err
}

func (s *pgAgents) List(ctx context.Context) ([]*models.Agent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_id, agent_type, model, fallback_model, system_prompt, status, consecutive_failures, pheromone_score, timeout_seconds, last_active_at
		FROM aria_engine.agents ORDER BY agent_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Agent
	for rows.Next() {
		var a models.Agent
		if err := rows.Scan(&a.AgentID, &a.AgentType, &a.Model, &a.FallbackModel, &a.SystemPrompt, &a.Status, &a.ConsecutiveFailures, &a.PheromoneScore, &a.TimeoutSeconds, &a.LastActiveAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

type pgSessions struct{ db *sql.DB }

func (s *pgSessions) Create(ctx context.Context, sess *models.Session) error {
	meta, err := json.Marshal(sess.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO aria_data.sessions (session_id, agent_id, session_type, status, created_at, updated_at, ended_at, message_count, total_tokens, total_cost, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		sess.SessionID, sess.AgentID, sess.SessionType, sess.Status, sess.CreatedAt, sess.UpdatedAt, nullTime(sess.EndedAt), sess.MessageCount, sess.TotalTokens, sess.TotalCost, meta)
	return err
}

func (s *pgSessions) scanSession(row interface {
	Scan(dest ...any) error
}) (*models.Session, error) {
	var sess models.Session
	var meta []byte
	var endedAt sql.NullTime
	if err := row.Scan(&sess.SessionID, &sess.AgentID, &sess.SessionType, &sess.Status, &sess.CreatedAt, &sess.UpdatedAt, &endedAt, &sess.MessageCount, &sess.TotalTokens, &sess.TotalCost, &meta); err != nil {
		return nil, err
	}
	if endedAt.Valid {
		sess.EndedAt = endedAt.Time
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &sess.Metadata)
	}
	return &sess, nil
}

func (s *pgSessions) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, agent_id, session_type, status, created_at, updated_at, ended_at, message_count, total_tokens, total_cost, metadata
		FROM aria_data.sessions WHERE session_id = $1`, sessionID)
	sess, err := s.scanSession(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return sess, err
}

func (s *pgSessions) GetActive(ctx context.Context, agentID string, sessionType models.SessionType) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, agent_id, session_type, status, created_at, updated_at, ended_at, message_count, total_tokens, total_cost, metadata
		FROM aria_data.sessions WHERE agent_id = $1 AND session_type = $2 AND status = 'active'
		ORDER BY created_at DESC LIMIT 1`, agentID, sessionType)
	sess, err := s.scanSession(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return sess, err
}

func (s *pgSessions) Update(ctx context.Context, sess *models.Session) error {
	meta, err := json.Marshal(sess.Metadata)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE aria_data.sessions SET status=$2, updated_at=$3, ended_at=$4, message_count=$5, total_tokens=$6, total_cost=$7, metadata=$8
		WHERE session_id = $1`,
		sess.SessionID, sess.Status, sess.UpdatedAt, nullTime(sess.EndedAt), sess.MessageCount, sess.TotalTokens, sess.TotalCost, meta)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgSessions) Delete(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM aria_data.sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgSessions) ListIdleBefore(ctx context.Context, cutoff time.Time) ([]*models.Session, error) {
	return s.queryMany(ctx, `
		SELECT session_id, agent_id, session_type, status, created_at, updated_at, ended_at, message_count, total_tokens, total_cost, metadata
		FROM aria_data.sessions WHERE status = 'active' AND updated_at < $1`, cutoff)
}

func (s *pgSessions) ListStaleSubagentsBefore(ctx context.Context, cutoff time.Time) ([]*models.Session, error) {
	return s.queryMany(ctx, `
		SELECT session_id, agent_id, session_type, status, created_at, updated_at, ended_at, message_count, total_tokens, total_cost, metadata
		FROM aria_data.sessions WHERE status = 'active' AND agent_id LIKE 'sub-%' AND created_at < $1`, cutoff)
}

func (s *pgSessions) queryMany(ctx context.Context, query string, arg time.Time) ([]*models.Session, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Session
	for rows.Next() {
		sess, err := s.scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *pgSessions) Stats(ctx context.Context) (SessionStats, error) {
	stats := SessionStats{ByAgent: map[string]int{}, ByType: map[string]int{}}
	row := s.db.QueryRowContext(ctx, `SELECT count(*), count(*) FILTER (WHERE status = 'active') FROM aria_data.sessions`)
	if err := row.Scan(&stats.TotalSessions, &stats.ActiveSessions); err != nil {
		return stats, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT agent_id, count(*) FROM aria_data.sessions GROUP BY agent_id`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var agentID string
		var n int
		if err := rows.Scan(&agentID, &n); err != nil {
			return stats, err
		}
		stats.ByAgent[agentID] = n
	}
	return stats, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

type pgMessages struct{ db *sql.DB }

func (s *pgMessages) Append(ctx context.Context, msg *models.Message) error {
	toolCalls, _ := json.Marshal(msg.ToolCalls)
	toolResults, _ := json.Marshal(msg.ToolResults)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO aria_data.messages (id, session_id, role, content, thinking, tool_calls, tool_results, model, tokens_input, tokens_output, cost, latency_ms, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, msg.Thinking, toolCalls, toolResults, msg.Model, msg.TokensInput, msg.TokensOutput, msg.Cost, msg.LatencyMs, msg.CreatedAt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE aria_data.sessions SET message_count = message_count + 1, total_tokens = total_tokens + $2, total_cost = total_cost + $3, updated_at = $4
		WHERE session_id = $1`,
		msg.SessionID, msg.TokensInput+msg.TokensOutput, msg.Cost, msg.CreatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *pgMessages) ListRecent(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	query := `SELECT id, session_id, role, content, thinking, tool_calls, tool_results, model, tokens_input, tokens_output, cost, latency_ms, created_at
		FROM aria_data.messages WHERE session_id = $1 ORDER BY created_at DESC`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Message
	for rows.Next() {
		var m models.Message
		var toolCalls, toolResults []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Thinking, &toolCalls, &toolResults, &m.Model, &m.TokensInput, &m.TokensOutput, &m.Cost, &m.LatencyMs, &m.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(toolCalls, &m.ToolCalls)
		_ = json.Unmarshal(toolResults, &m.ToolResults)
		out = append([]*models.Message{&m}, out...) // reverse back to ascending order
	}
	return out, rows.Err()
}

func (s *pgMessages) Count(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM aria_data.messages WHERE session_id = $1`, sessionID).Scan(&n)
	return n, err
}

type pgJobs struct{ db *sql.DB }

func (s *pgJobs) Upsert(ctx context.Context, job *models.ScheduledJob) error {
	params, _ := json.Marshal(job.Params)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO aria_engine.scheduled_jobs (job_id, name, schedule_expression, action, enabled, next_run_at, last_run_at, last_status, last_duration_ms, run_count, success_count, fail_count, params, session_target, max_duration_seconds)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (job_id) DO UPDATE SET
			name=$2, schedule_expression=$3, action=$4, enabled=$5, next_run_at=$6, last_run_at=$7,
			last_status=$8, last_duration_ms=$9, run_count=$10, success_count=$11, fail_count=$12, params=$13, session_target=$14, max_duration_seconds=$15`,
		job.JobID, job.Name, job.ScheduleExpression, job.Action, job.Enabled, nullTime(job.NextRunAt), nullTime(job.LastRunAt),
		job.LastStatus, job.LastDurationMs, job.RunCount, job.SuccessCount, job.FailCount, params, job.SessionTarget, job.MaxDurationSeconds)
	return err
}

func (s *pgJobs) scanJob(row interface{ Scan(dest ...any) error }) (*models.ScheduledJob, error) {
	var j models.ScheduledJob
	var params []byte
	var nextRun, lastRun sql.NullTime
	if err := row.Scan(&j.JobID, &j.Name, &j.ScheduleExpression, &j.Action, &j.Enabled, &nextRun, &lastRun, &j.LastStatus, &j.LastDurationMs, &j.RunCount, &j.SuccessCount, &j.FailCount, &params, &j.SessionTarget, &j.MaxDurationSeconds); err != nil {
		return nil, err
	}
	if nextRun.Valid {
		j.NextRunAt = nextRun.Time
	}
	if lastRun.Valid {
		j.LastRunAt = lastRun.Time
	}
	_ = json.Unmarshal(params, &j.Params)
	return &j, nil
}

const jobColumns = `job_id, name, schedule_expression, action, enabled, next_run_at, last_run_at, last_status, last_duration_ms, run_count, success_count, fail_count, params, session_target, max_duration_seconds`

func (s *pgJobs) Get(ctx context.Context, jobID string) (*models.ScheduledJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM aria_engine.scheduled_jobs WHERE job_id = $1`, jobID)
	j, err := s.scanJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return j, err
}

func (s *pgJobs) ListEnabledDue(ctx context.Context, now time.Time) ([]*models.ScheduledJob, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM aria_engine.scheduled_jobs WHERE enabled AND next_run_at <= $1`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.ScheduledJob
	for rows.Next() {
		j, err := s.scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *pgJobs) ListAll(ctx context.Context) ([]*models.ScheduledJob, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM aria_engine.scheduled_jobs ORDER BY job_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.ScheduledJob
	for rows.Next() {
		j, err := s.scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *pgJobs) Update(ctx context.Context, job *models.ScheduledJob) error {
	return s.Upsert(ctx, job)
}

type pgExecutions struct{ db *sql.DB }

func (s *pgExecutions) Create(ctx context.Context, exec *models.JobExecution) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO aria_engine.job_executions (id, job_id, status, started_at, completed_at, duration_ms, error)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		exec.ID, exec.JobID, exec.Status, exec.StartedAt, nullTime(exec.CompletedAt), exec.DurationMs, exec.Error)
	return err
}

func (s *pgExecutions) Update(ctx context.Context, exec *models.JobExecution) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE aria_engine.job_executions SET status=$2, completed_at=$3, duration_ms=$4, error=$5 WHERE id=$1`,
		exec.ID, exec.Status, nullTime(exec.CompletedAt), exec.DurationMs, exec.Error)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgExecutions) List(ctx context.Context, jobID string, limit, offset int) ([]*models.JobExecution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, status, started_at, completed_at, duration_ms, error FROM aria_engine.job_executions
		WHERE job_id = $1 ORDER BY started_at DESC LIMIT $2 OFFSET $3`, jobID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.JobExecution
	for rows.Next() {
		var e models.JobExecution
		var completed sql.NullTime
		if err := rows.Scan(&e.ID, &e.JobID, &e.Status, &e.StartedAt, &completed, &e.DurationMs, &e.Error); err != nil {
			return nil, err
		}
		if completed.Valid {
			e.CompletedAt = completed.Time
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *pgExecutions) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM aria_engine.job_executions WHERE started_at < $1`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type pgHeartbeats struct{ db *sql.DB }

func (s *pgHeartbeats) Create(ctx context.Context, hb *models.Heartbeat) error {
	details, _ := json.Marshal(hb.Details)
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO aria_engine.heartbeats (job_name, status, details, executed_at, duration_ms)
		VALUES ($1,$2,$3,$4,$5) RETURNING beat_number`,
		hb.JobName, hb.Status, details, hb.ExecutedAt, hb.DurationMs)
	return row.Scan(&hb.BeatNumber)
}

func (s *pgHeartbeats) Latest(ctx context.Context, jobName string) (*models.Heartbeat, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT beat_number, job_name, status, details, executed_at, duration_ms
		FROM aria_engine.heartbeats WHERE job_name = $1 ORDER BY beat_number DESC LIMIT 1`, jobName)
	var hb models.Heartbeat
	var details []byte
	if err := row.Scan(&hb.BeatNumber, &hb.JobName, &hb.Status, &details, &hb.ExecutedAt, &hb.DurationMs); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	_ = json.Unmarshal(details, &hb.Details)
	return &hb, nil
}

type pgActivity struct{ db *sql.DB }

func (s *pgActivity) Append(ctx context.Context, entry *models.ActivityLogEntry) error {
	details, _ := json.Marshal(entry.Details)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO aria_data.activity_log (action, skill, details, success, error_message, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		entry.Action, entry.Skill, details, entry.Success, entry.ErrorMessage, entry.CreatedAt)
	return err
}
