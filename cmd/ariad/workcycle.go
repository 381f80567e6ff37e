package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Najia-afk/Aria-moltbot-sub003/internal/chatengine"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/errkind"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/models"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/orchestrator"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/repository"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/sessions"
)

// standingGoal is the work cycle's one always-active goal: keep the main
// agent's standing objective moving forward. There is no persisted goal
// backlog in this build (see DESIGN.md's "LLM gateway provider and full
// composition-root wiring" notes), so the
// orchestrator always has exactly one candidate to act on.
type standingGoal struct {
	now func() time.Time
}

func (g standingGoal) ActiveGoals(ctx context.Context) ([]orchestrator.Goal, error) {
	return []orchestrator.Goal{{ID: "main-standing-objective", Priority: 0, CreatedAt: g.now()}}, nil
}

// mainAgentWorkCycle drives one chat engine turn for the main agent's
// cron-origin session, satisfying orchestrator.ProgressAction.
type mainAgentWorkCycle struct {
	engine       *chatengine.Engine
	sessions     *sessions.Manager
	model        string
	systemPrompt string
}

func (a *mainAgentWorkCycle) Act(ctx context.Context, goal orchestrator.Goal) error {
	session, err := a.sessions.GetOrCreate(ctx, string(models.AgentTypeMain), models.SessionTypeCron)
	if err != nil {
		return err
	}

	userMsg := &models.Message{
		ID:      uuid.NewString(),
		Role:    models.RoleUser,
		Content: fmt.Sprintf("Continue progress on goal %q.", goal.ID),
	}

	for ev := range a.engine.Run(ctx, session, userMsg, a.systemPrompt, a.model, nil) {
		switch ev.Type {
		case chatengine.EventError:
			return fmt.Errorf("work cycle chat turn failed: %s", ev.Reason)
		case chatengine.EventDone:
			return nil
		}
	}
	return nil
}

// actionRunner dispatches a cron job's canonical action key, satisfying
// cron.ActionRunner. work_cycle and its periodic-review aliases delegate to
// the orchestrator's single work-cycle procedure; heartbeat emits directly;
// social_post and telegram_poll are recognized action keys whose peripheral
// features are out of scope for this build, so they are logged and
// skipped rather than treated as failures; anything else is unknown_action.
type actionRunner struct {
	orch       *orchestrator.Orchestrator
	heartbeats repository.HeartbeatRepository
	now        func() time.Time
	logger     *slog.Logger
}

func (r *actionRunner) RunAction(ctx context.Context, job *models.ScheduledJob) error {
	switch job.Action {
	case "work_cycle", "hourly_goal_check", "six_hour_review", "morning_checkin":
		r.orch.RunCycle(ctx)
		return nil
	case "heartbeat":
		return r.heartbeats.Create(ctx, &models.Heartbeat{
			JobName:    job.Name,
			Status:     models.HeartbeatOK,
			Details:    models.NormalizeDetails(map[string]any{"job_id": job.JobID}),
			ExecutedAt: r.now(),
		})
	case "social_post", "telegram_poll":
		r.logger.Warn("cron action recognized but its feature is out of scope for this build", "action", job.Action, "job_id", job.JobID)
		return nil
	default:
		return errkind.Newf(errkind.Contract, "ariad.actionRunner.RunAction", "unknown_action: %s", job.Action)
	}
}

// storeHeartbeatSink adapts a HeartbeatRepository to cron.HeartbeatSink.
type storeHeartbeatSink struct {
	repo repository.HeartbeatRepository
}

func (s *storeHeartbeatSink) Emit(ctx context.Context, hb *models.Heartbeat) error {
	return s.repo.Create(ctx, hb)
}
