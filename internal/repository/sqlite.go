// sqlite.go is the embedded-store counterpart to postgres.go: the same
// database/sql-driven repository set, backed by modernc.org/sqlite's
// pure-Go driver instead of lib/pq, for single-binary deployments and
// tests that want real SQL semantics without a running Postgres.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Najia-afk/Aria-moltbot-sub003/internal/errkind"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/models"
)

const sqliteBootstrapDDL = `
CREATE TABLE IF NOT EXISTS agents (
	agent_id TEXT PRIMARY KEY,
	agent_type TEXT NOT NULL,
	model TEXT NOT NULL,
	fallback_model TEXT,
	system_prompt TEXT,
	status TEXT NOT NULL,
	consecutive_failures INTEGER NOT NULL DEFAULT 0,
	pheromone_score REAL NOT NULL DEFAULT 0,
	timeout_seconds INTEGER NOT NULL DEFAULT 0,
	last_active_at DATETIME
);

CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	session_type TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	ended_at DATETIME,
	message_count INTEGER NOT NULL DEFAULT 0,
	total_tokens INTEGER NOT NULL DEFAULT 0,
	total_cost TEXT NOT NULL DEFAULT '0',
	metadata TEXT
);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(session_id),
	role TEXT NOT NULL,
	content TEXT,
	thinking TEXT,
	tool_calls TEXT,
	tool_results TEXT,
	model TEXT,
	tokens_input INTEGER NOT NULL DEFAULT 0,
	tokens_output INTEGER NOT NULL DEFAULT 0,
	cost TEXT NOT NULL DEFAULT '0',
	latency_ms INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS scheduled_jobs (
	job_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	schedule_expression TEXT NOT NULL,
	action TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	next_run_at DATETIME,
	last_run_at DATETIME,
	last_status TEXT,
	last_duration_ms INTEGER NOT NULL DEFAULT 0,
	run_count INTEGER NOT NULL DEFAULT 0,
	success_count INTEGER NOT NULL DEFAULT 0,
	fail_count INTEGER NOT NULL DEFAULT 0,
	params TEXT,
	session_target TEXT,
	max_duration_seconds INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS job_executions (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL REFERENCES scheduled_jobs(job_id),
	status TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	completed_at DATETIME,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	error TEXT
);

CREATE TABLE IF NOT EXISTS heartbeats (
	beat_number INTEGER PRIMARY KEY AUTOINCREMENT,
	job_name TEXT NOT NULL,
	status TEXT NOT NULL,
	details TEXT,
	executed_at DATETIME NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS activity_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	action TEXT NOT NULL,
	skill TEXT,
	details TEXT,
	success INTEGER NOT NULL,
	error_message TEXT,
	created_at DATETIME NOT NULL
);
`

// NewSQLiteStore opens (creating if absent) a sqlite database file at path
// and bootstraps its schema. Pass ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errkind.New(errkind.Fatal, "repository.NewSQLiteStore", err)
	}
	// sqlite serializes writers; a single connection avoids "database is locked".
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errkind.New(errkind.Fatal, "repository.NewSQLiteStore", err)
	}
	if _, err := db.ExecContext(ctx, sqliteBootstrapDDL); err != nil {
		db.Close()
		return nil, errkind.New(errkind.Fatal, "repository.NewSQLiteStore", err)
	}

	return &Store{
		Agents:      &sqliteAgents{db: db},
		Sessions:    &sqliteSessions{db: db},
		Messages:    &sqliteMessages{db: db},
		Jobs:        &sqliteJobs{db: db},
		Executions:  &sqliteExecutions{db: db},
		Heartbeats:  &sqliteHeartbeats{db: db},
		ActivityLog: &sqliteActivity{db: db},
		Close:       db.Close,
	}, nil
}

type sqliteAgents struct{ db *sql.DB }

func (s *sqliteAgents) Upsert(ctx context.Context, a *models.Agent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (agent_id, agent_type, model, fallback_model, system_prompt, status, consecutive_failures, pheromone_score, timeout_seconds, last_active_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(agent_id) DO UPDATE SET
			agent_type=excluded.agent_type, model=excluded.model, fallback_model=excluded.fallback_model,
			system_prompt=excluded.system_prompt, status=excluded.status, consecutive_failures=excluded.consecutive_failures,
			pheromone_score=excluded.pheromone_score, timeout_seconds=excluded.timeout_seconds, last_active_at=excluded.last_active_at`,
		a.AgentID, a.AgentType, a.Model, a.FallbackModel, a.SystemPrompt, a.Status,
		a.ConsecutiveFailures, a.PheromoneScore, a.TimeoutSeconds, a.LastActiveAt)
	return err
}

func (s *sqliteAgents) Get(ctx context.Context, agentID string) (*models.Agent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT agent_id, agent_type, model, fallback_model, system_prompt, status, consecutive_failures, pheromone_score, timeout_seconds, last_active_at
		FROM agents WHERE agent_id = ?`, agentID)
	var a models.Agent
	if err := row.Scan(&a.AgentID, &a.AgentType, &a.Model, &a.FallbackModel, &a.SystemPrompt, &a.Status, &a.ConsecutiveFailures, &a.PheromoneScore, &a.TimeoutSeconds, &a.LastActiveAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *sqliteAgents) SetStatus(ctx context.Context, agentID string, status models.AgentStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE agents SET status=? WHERE agent_id=?`, status, agentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteAgents) CountNonDisabledByPrefix(ctx context.Context, prefix string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM agents WHERE agent_id LIKE ? AND status <> 'disabled'`, prefix+"-%").Scan(&n)
	return n, err
}

func (s *sqliteAgents) List(ctx context.Context) ([]*models.Agent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_id, agent_type, model, fallback_model, system_prompt, status, consecutive_failures, pheromone_score, timeout_seconds, last_active_at
		FROM agents ORDER BY agent_id`)
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

type sqliteSessions struct{ db *sql.DB }

func (s *sqliteSessions) Create(ctx context.Context, sess *models.Session) error {
	meta, err := json.Marshal(sess.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, agent_id, session_type, status, created_at, updated_at, ended_at, message_count, total_tokens, total_cost, metadata)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		sess.SessionID, sess.AgentID, sess.SessionType, sess.Status, sess.CreatedAt, sess.UpdatedAt, nullTime(sess.EndedAt), sess.MessageCount, sess.TotalTokens, sess.TotalCost.String(), meta)
	return err
}

func (s *sqliteSessions) scanSession(row interface{ Scan(dest ...any) error }) (*models.Session, error) {
	var sess models.Session
	var meta []byte
	var endedAt sql.NullTime
	var totalCost string
	if err := row.Scan(&sess.SessionID, &sess.AgentID, &sess.SessionType, &sess.Status, &sess.CreatedAt, &sess.UpdatedAt, &endedAt, &sess.MessageCount, &sess.TotalTokens, &totalCost, &meta); err != nil {
		return nil, err
	}
	if endedAt.Valid {
		sess.EndedAt = endedAt.Time
	}
	if cost, err := models.NewCostFromString(totalCost); err == nil {
		sess.TotalCost = cost
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &sess.Metadata)
	}
	return &sess, nil
}

func (s *sqliteSessions) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, agent_id, session_type, status, created_at, updated_at, ended_at, message_count, total_tokens, total_cost, metadata
		FROM sessions WHERE session_id = ?`, sessionID)
	sess, err := s.scanSession(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return sess, err
}

func (s *sqliteSessions) GetActive(ctx context.Context, agentID string, sessionType models.SessionType) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, agent_id, session_type, status, created_at, updated_at, ended_at, message_count, total_tokens, total_cost, metadata
		FROM sessions WHERE agent_id = ? AND session_type = ? AND status = 'active'
		ORDER BY created_at DESC LIMIT 1`, agentID, sessionType)
	sess, err := s.scanSession(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return sess, err
}

func (s *sqliteSessions) Update(ctx context.Context, sess *models.Session) error {
	meta, err := json.Marshal(sess.Metadata)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET status=?, updated_at=?, ended_at=?, message_count=?, total_tokens=?, total_cost=?, metadata=?
		WHERE session_id = ?`,
		sess.Status, sess.UpdatedAt, nullTime(sess.EndedAt), sess.MessageCount, sess.TotalTokens, sess.TotalCost.String(), meta, sess.SessionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteSessions) Delete(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteSessions) ListIdleBefore(ctx context.Context, cutoff time.Time) ([]*models.Session, error) {
	return s.queryMany(ctx, `
		SELECT session_id, agent_id, session_type, status, created_at, updated_at, ended_at, message_count, total_tokens, total_cost, metadata
		FROM sessions WHERE status = 'active' AND updated_at < ?`, cutoff)
}

func (s *sqliteSessions) ListStaleSubagentsBefore(ctx context.Context, cutoff time.Time) ([]*models.Session, error) {
	return s.queryMany(ctx, `
		SELECT session_id, agent_id, session_type, status, created_at, updated_at, ended_at, message_count, total_tokens, total_cost, metadata
		FROM sessions WHERE status = 'active' AND agent_id LIKE 'sub-%' AND created_at < ?`, cutoff)
}

func (s *sqliteSessions) queryMany(ctx context.Context, query string, arg time.Time) ([]*models.Session, error) {
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

func (s *sqliteSessions) Stats(ctx context.Context) (SessionStats, error) {
	stats := SessionStats{ByAgent: map[string]int{}, ByType: map[string]int{}}
	row := s.db.QueryRowContext(ctx, `SELECT count(*), count(*) FILTER (WHERE status = 'active') FROM sessions`)
	if err := row.Scan(&stats.TotalSessions, &stats.ActiveSessions); err != nil {
		return stats, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT agent_id, count(*) FROM sessions GROUP BY agent_id`)
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

type sqliteMessages struct{ db *sql.DB }

func (s *sqliteMessages) Append(ctx context.Context, msg *models.Message) error {
	toolCalls, _ := json.Marshal(msg.ToolCalls)
	toolResults, _ := json.Marshal(msg.ToolResults)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, role, content, thinking, tool_calls, tool_results, model, tokens_input, tokens_output, cost, latency_ms, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, msg.Thinking, toolCalls, toolResults, msg.Model, msg.TokensInput, msg.TokensOutput, msg.Cost.String(), msg.LatencyMs, msg.CreatedAt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions SET message_count = message_count + 1, total_tokens = total_tokens + ?, updated_at = ?
		WHERE session_id = ?`,
		msg.TokensInput+msg.TokensOutput, msg.CreatedAt, msg.SessionID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteMessages) ListRecent(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	query := `SELECT id, session_id, role, content, thinking, tool_calls, tool_results, model, tokens_input, tokens_output, cost, latency_ms, created_at
		FROM messages WHERE session_id = ? ORDER BY created_at DESC`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
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
		var cost string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Thinking, &toolCalls, &toolResults, &m.Model, &m.TokensInput, &m.TokensOutput, &cost, &m.LatencyMs, &m.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(toolCalls, &m.ToolCalls)
		_ = json.Unmarshal(toolResults, &m.ToolResults)
		if decCost, err := models.NewCostFromString(cost); err == nil {
			m.Cost = decCost
		}
		out = append([]*models.Message{&m}, out...)
	}
	return out, rows.Err()
}

func (s *sqliteMessages) Count(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM messages WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}

type sqliteJobs struct{ db *sql.DB }

const sqliteJobColumns = `job_id, name, schedule_expression, action, enabled, next_run_at, last_run_at, last_status, last_duration_ms, run_count, success_count, fail_count, params, session_target, max_duration_seconds`

func (s *sqliteJobs) Upsert(ctx context.Context, job *models.ScheduledJob) error {
	params, _ := json.Marshal(job.Params)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_jobs (`+sqliteJobColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(job_id) DO UPDATE SET
			name=excluded.name, schedule_expression=excluded.schedule_expression, action=excluded.action, enabled=excluded.enabled,
			next_run_at=excluded.next_run_at, last_run_at=excluded.last_run_at, last_status=excluded.last_status,
			last_duration_ms=excluded.last_duration_ms, run_count=excluded.run_count, success_count=excluded.success_count,
			fail_count=excluded.fail_count, params=excluded.params, session_target=excluded.session_target, max_duration_seconds=excluded.max_duration_seconds`,
		job.JobID, job.Name, job.ScheduleExpression, job.Action, job.Enabled, nullTime(job.NextRunAt), nullTime(job.LastRunAt),
		job.LastStatus, job.LastDurationMs, job.RunCount, job.SuccessCount, job.FailCount, params, job.SessionTarget, job.MaxDurationSeconds)
	return err
}

func (s *sqliteJobs) scanJob(row interface{ Scan(dest ...any) error }) (*models.ScheduledJob, error) {
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

func (s *sqliteJobs) Get(ctx context.Context, jobID string) (*models.ScheduledJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteJobColumns+` FROM scheduled_jobs WHERE job_id = ?`, jobID)
	j, err := s.scanJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return j, err
}

func (s *sqliteJobs) ListEnabledDue(ctx context.Context, now time.Time) ([]*models.ScheduledJob, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteJobColumns+` FROM scheduled_jobs WHERE enabled AND next_run_at <= ?`, now)
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

func (s *sqliteJobs) ListAll(ctx context.Context) ([]*models.ScheduledJob, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteJobColumns+` FROM scheduled_jobs ORDER BY job_id`)
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

func (s *sqliteJobs) Update(ctx context.Context, job *models.ScheduledJob) error {
	return s.Upsert(ctx, job)
}

type sqliteExecutions struct{ db *sql.DB }

func (s *sqliteExecutions) Create(ctx context.Context, exec *models.JobExecution) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_executions (id, job_id, status, started_at, completed_at, duration_ms, error)
		VALUES (?,?,?,?,?,?,?)`,
		exec.ID, exec.JobID, exec.Status, exec.StartedAt, nullTime(exec.CompletedAt), exec.DurationMs, exec.Error)
	return err
}

func (s *sqliteExecutions) Update(ctx context.Context, exec *models.JobExecution) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE job_executions SET status=?, completed_at=?, duration_ms=?, error=? WHERE id=?`,
		exec.Status, nullTime(exec.CompletedAt), exec.DurationMs, exec.Error, exec.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteExecutions) List(ctx context.Context, jobID string, limit, offset int) ([]*models.JobExecution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, status, started_at, completed_at, duration_ms, error FROM job_executions
		WHERE job_id = ? ORDER BY started_at DESC LIMIT ? OFFSET ?`, jobID, limit, offset)
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

func (s *sqliteExecutions) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM job_executions WHERE started_at < ?`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type sqliteHeartbeats struct{ db *sql.DB }

func (s *sqliteHeartbeats) Create(ctx context.Context, hb *models.Heartbeat) error {
	details, _ := json.Marshal(hb.Details)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO heartbeats (job_name, status, details, executed_at, duration_ms) VALUES (?,?,?,?,?)`,
		hb.JobName, hb.Status, details, hb.ExecutedAt, hb.DurationMs)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	hb.BeatNumber = int(id)
	return nil
}

func (s *sqliteHeartbeats) Latest(ctx context.Context, jobName string) (*models.Heartbeat, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT beat_number, job_name, status, details, executed_at, duration_ms
		FROM heartbeats WHERE job_name = ? ORDER BY beat_number DESC LIMIT 1`, jobName)
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

type sqliteActivity struct{ db *sql.DB }

func (s *sqliteActivity) Append(ctx context.Context, entry *models.ActivityLogEntry) error {
	details, _ := json.Marshal(entry.Details)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_log (action, skill, details, success, error_message, created_at)
		VALUES (?,?,?,?,?,?)`,
		entry.Action, entry.Skill, details, entry.Success, entry.ErrorMessage, entry.CreatedAt)
	return err
}
