package repository

import (
	"context"
	"testing"
	"time"

	"github.com/Najia-afk/Aria-moltbot-sub003/internal/models"
)

func TestMemAgentsGetReturnsNotFound(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Agents.Get(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemAgentsCountNonDisabledByPrefixExcludesDisabled(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.Agents.Upsert(ctx, &models.Agent{AgentID: "sub-social-1", Status: models.AgentStatusIdle})
	store.Agents.Upsert(ctx, &models.Agent{AgentID: "sub-social-2", Status: models.AgentStatusDisabled})
	store.Agents.Upsert(ctx, &models.Agent{AgentID: "sub-devsecops-1", Status: models.AgentStatusIdle})

	n, err := store.Agents.CountNonDisabledByPrefix(ctx, "sub-social")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one non-disabled sub-social agent, got %d", n)
	}
}

func TestMemSessionsGetActiveReturnsMostRecent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	store.Sessions.Create(ctx, &models.Session{
		SessionID: "s1", AgentID: "agent-1", SessionType: models.SessionTypeInteractive,
		Status: models.SessionStatusActive, CreatedAt: now.Add(-time.Hour), TotalCost: models.ZeroCost(),
	})
	store.Sessions.Create(ctx, &models.Session{
		SessionID: "s2", AgentID: "agent-1", SessionType: models.SessionTypeInteractive,
		Status: models.SessionStatusActive, CreatedAt: now, TotalCost: models.ZeroCost(),
	})

	active, err := store.Sessions.GetActive(ctx, "agent-1", models.SessionTypeInteractive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if active.SessionID != "s2" {
		t.Fatalf("expected the most recently created active session, got %s", active.SessionID)
	}
}

func TestMemMessagesAppendUpdatesSessionAggregates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	sess := &models.Session{
		SessionID: "s1", AgentID: "agent-1", SessionType: models.SessionTypeInteractive,
		Status: models.SessionStatusActive, CreatedAt: now, UpdatedAt: now, TotalCost: models.ZeroCost(),
	}
	if err := store.Sessions.Create(ctx, sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := &models.Message{SessionID: "s1", Role: models.RoleUser, Content: "hi", TokensInput: 10, TokensOutput: 5, Cost: models.ZeroCost(), CreatedAt: now}
	if err := store.Messages.Append(ctx, msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := store.Sessions.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.MessageCount != 1 || updated.TotalTokens != 15 {
		t.Fatalf("expected aggregates to reflect the appended message, got %+v", updated)
	}
}

func TestMemJobsListEnabledDueFiltersDisabledAndFuture(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	store.Jobs.Upsert(ctx, &models.ScheduledJob{JobID: "due", Enabled: true, NextRunAt: now.Add(-time.Minute)})
	store.Jobs.Upsert(ctx, &models.ScheduledJob{JobID: "future", Enabled: true, NextRunAt: now.Add(time.Hour)})
	store.Jobs.Upsert(ctx, &models.ScheduledJob{JobID: "disabled", Enabled: false, NextRunAt: now.Add(-time.Minute)})

	due, err := store.Jobs.ListEnabledDue(ctx, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(due) != 1 || due[0].JobID != "due" {
		t.Fatalf("expected only the due enabled job, got %+v", due)
	}
}

func TestMemExecutionsPruneRemovesOldEntries(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	store.Executions.Create(ctx, &models.JobExecution{ID: "e1", JobID: "job-1", StartedAt: now.Add(-48 * time.Hour)})
	store.Executions.Create(ctx, &models.JobExecution{ID: "e2", JobID: "job-1", StartedAt: now})

	pruned, err := store.Executions.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected exactly one execution pruned, got %d", pruned)
	}
	remaining, err := store.Executions.List(ctx, "job-1", 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "e2" {
		t.Fatalf("expected only the recent execution to remain, got %+v", remaining)
	}
}

func TestMemHeartbeatsLatestReturnsMostRecentlyCreated(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	store.Heartbeats.Create(ctx, &models.Heartbeat{JobName: "digest", Status: models.HeartbeatOK, ExecutedAt: now.Add(-time.Minute)})
	store.Heartbeats.Create(ctx, &models.Heartbeat{JobName: "digest", Status: models.HeartbeatError, ExecutedAt: now})

	latest, err := store.Heartbeats.Latest(ctx, "digest")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest.Status != models.HeartbeatError {
		t.Fatalf("expected the latest heartbeat to be the last one created, got %s", latest.Status)
	}
}
