package repository

import (
	"context"
	"testing"
	"time"

	"github.com/Najia-afk/Aria-moltbot-sub003/internal/models"
)

func newTestSQLiteStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("unexpected error opening sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteAgentsUpsertThenGetRoundTrips(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	agent := &models.Agent{
		AgentID: "agent-1", AgentType: models.AgentTypeSubSocial, Model: "gpt-x",
		Status: models.AgentStatusIdle, PheromoneScore: 1.5, LastActiveAt: time.Now().Truncate(time.Second),
	}
	if err := store.Agents.Upsert(ctx, agent); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.Agents.Get(ctx, "agent-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AgentID != "agent-1" || got.Status != models.AgentStatusIdle || got.PheromoneScore != 1.5 {
		t.Fatalf("expected the round-tripped agent to match what was upserted, got %+v", got)
	}

	agent.Status = models.AgentStatusDisabled
	if err := store.Agents.Upsert(ctx, agent); err != nil {
		t.Fatalf("unexpected error re-upserting: %v", err)
	}
	got, err = store.Agents.Get(ctx, "agent-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.AgentStatusDisabled {
		t.Fatalf("expected the upsert to overwrite the existing row, got status %s", got.Status)
	}
}

func TestSQLiteAgentsGetMissingReturnsNotFound(t *testing.T) {
	store := newTestSQLiteStore(t)
	if _, err := store.Agents.Get(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteSessionsCreateThenGetPreservesCostAsText(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	cost, err := models.NewCostFromString("12.340000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sess := &models.Session{
		SessionID: "s1", AgentID: "agent-1", SessionType: models.SessionTypeInteractive,
		Status: models.SessionStatusActive, CreatedAt: now, UpdatedAt: now, TotalCost: cost,
		Metadata: map[string]any{"k": "v"},
	}
	if err := store.Sessions.Create(ctx, sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.Sessions.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.TotalCost.Equal(cost) {
		t.Fatalf("expected the cost to round-trip through TEXT storage, got %v want %v", got.TotalCost, cost)
	}
	if got.Metadata["k"] != "v" {
		t.Fatalf("expected metadata to round-trip, got %+v", got.Metadata)
	}
}

func TestSQLiteMessagesAppendUpdatesSessionAggregates(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	sess := &models.Session{
		SessionID: "s1", AgentID: "agent-1", SessionType: models.SessionTypeInteractive,
		Status: models.SessionStatusActive, CreatedAt: now, UpdatedAt: now, TotalCost: models.ZeroCost(),
	}
	if err := store.Sessions.Create(ctx, sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := &models.Message{
		ID: "m1", SessionID: "s1", Role: models.RoleAssistant, Content: "hi",
		TokensInput: 10, TokensOutput: 20, Cost: models.ZeroCost(), CreatedAt: now,
	}
	if err := store.Messages.Append(ctx, msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := store.Sessions.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.MessageCount != 1 || updated.TotalTokens != 30 {
		t.Fatalf("expected session aggregates to reflect the appended message, got %+v", updated)
	}

	n, err := store.Messages.Count(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one message, got %d", n)
	}
}

func TestSQLiteJobsUpsertThenListEnabledDue(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	due := &models.ScheduledJob{JobID: "job-1", Name: "digest", ScheduleExpression: "* * * * *", Action: "send_digest", Enabled: true, NextRunAt: now.Add(-time.Minute)}
	future := &models.ScheduledJob{JobID: "job-2", Name: "later", ScheduleExpression: "* * * * *", Action: "noop", Enabled: true, NextRunAt: now.Add(time.Hour)}
	if err := store.Jobs.Upsert(ctx, due); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Jobs.Upsert(ctx, future); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	list, err := store.Jobs.ListEnabledDue(ctx, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 || list[0].JobID != "job-1" {
		t.Fatalf("expected only the due job, got %+v", list)
	}
}

func TestSQLiteHeartbeatsCreateAssignsBeatNumberFromLastInsertID(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	hb1 := &models.Heartbeat{JobName: "digest", Status: models.HeartbeatOK, ExecutedAt: time.Now()}
	hb2 := &models.Heartbeat{JobName: "digest", Status: models.HeartbeatError, ExecutedAt: time.Now()}
	if err := store.Heartbeats.Create(ctx, hb1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Heartbeats.Create(ctx, hb2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hb2.BeatNumber <= hb1.BeatNumber {
		t.Fatalf("expected increasing beat numbers via LastInsertId, got %d then %d", hb1.BeatNumber, hb2.BeatNumber)
	}

	latest, err := store.Heartbeats.Latest(ctx, "digest")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest.Status != models.HeartbeatError {
		t.Fatalf("expected the latest heartbeat to be the most recently created, got %s", latest.Status)
	}
}
