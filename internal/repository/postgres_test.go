package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/Najia-afk/Aria-moltbot-sub003/internal/models"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("unexpected error opening sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestPgAgentsUpsertSendsExpectedStatement(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &pgAgents{db: db}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO aria_engine.agents")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), &models.Agent{
		AgentID: "agent-1", AgentType: "sub-social", Model: "gpt-x", Status: models.AgentStatusIdle,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPgAgentsGetReturnsNotFoundOnNoRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &pgAgents{db: db}

	mock.ExpectQuery(regexp.QuoteMeta("FROM aria_engine.agents WHERE agent_id")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPgAgentsGetScansRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &pgAgents{db: db}

	now := time.Now()
	rows := sqlmock.NewRows([]string{"agent_id", "agent_type", "model", "fallback_model", "system_prompt", "status", "consecutive_failures", "pheromone_score", "timeout_seconds", "last_active_at"}).
		AddRow("agent-1", "sub-social", "gpt-x", "", "", "idle", 0, 0.5, 30, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM aria_engine.agents WHERE agent_id")).
		WithArgs("agent-1").
		WillReturnRows(rows)

	a, err := repo.Get(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.AgentID != "agent-1" || a.Status != models.AgentStatusIdle {
		t.Fatalf("expected the scanned row to populate the agent, got %+v", a)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPgAgentsSetStatusReturnsNotFoundWhenNoRowsAffected(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &pgAgents{db: db}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE aria_engine.agents SET status")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetStatus(context.Background(), "missing", models.AgentStatusFailed)
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPgHeartbeatsCreatePopulatesBeatNumberFromReturning(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &pgHeartbeats{db: db}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO aria_engine.heartbeats")).
		WillReturnRows(sqlmock.NewRows([]string{"beat_number"}).AddRow(int64(42)))

	hb := &models.Heartbeat{JobName: "digest", Status: models.HeartbeatOK, ExecutedAt: time.Now()}
	if err := repo.Create(context.Background(), hb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hb.BeatNumber != 42 {
		t.Fatalf("expected BeatNumber to be populated from RETURNING, got %d", hb.BeatNumber)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPgActivityAppendSendsStatement(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &pgActivity{db: db}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO aria_data.activity_log")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Append(context.Background(), &models.ActivityLogEntry{Action: "work_cycle", Success: true, CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
