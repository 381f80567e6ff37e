// Package orchestrator runs the work cycle: health probe, active-goal check,
// progress action, activity log, heartbeat, and a structured JSON log
// artifact, once per tick. Grounded on the teacher's internal/heartbeat.Runner
// (ticker-driven loop, Start/Stop lifecycle, structured event emission) and
// internal/agent.FailoverOrchestrator's circuit-aware dispatch, combined into
// a single periodic cycle instead of per-message heartbeats.
package orchestrator

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Najia-afk/Aria-moltbot-sub003/internal/artifacts"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/models"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/repository"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/transport"
)

// Goal is one candidate unit of work the orchestrator can act on.
type Goal struct {
	ID        string
	Priority  int
	CreatedAt time.Time
}

// SortGoals orders goals by descending priority, then by descending
// CreatedAt as a tiebreaker. The same ordering must be used for both a
// goal-listing view and the orchestrator's own prompt assembly, so a single
// exported function is the one place that ordering lives.
func SortGoals(goals []Goal) {
	sort.SliceStable(goals, func(i, j int) bool {
		if goals[i].Priority != goals[j].Priority {
			return goals[i].Priority > goals[j].Priority
		}
		return goals[i].CreatedAt.After(goals[j].CreatedAt)
	})
}

// GoalSource supplies the currently active goals.
type GoalSource interface {
	ActiveGoals(ctx context.Context) ([]Goal, error)
}

// ProgressAction performs one unit of work toward a goal.
type ProgressAction interface {
	Act(ctx context.Context, goal Goal) error
}

// Config configures the orchestrator's tick cadence and the breaker name
// that gates spawning and external model calls when open.
type Config struct {
	TickInterval        time.Duration
	PrimaryBreakerName  string
	Now                 func() time.Time
}

// DefaultConfig returns the baseline work-cycle cadence (30 seconds).
func DefaultConfig() Config {
	return Config{TickInterval: 30 * time.Second, PrimaryBreakerName: "llm-primary", Now: time.Now}
}

// Orchestrator runs the periodic work cycle.
type Orchestrator struct {
	goals      GoalSource
	action     ProgressAction
	breakers   *transport.Registry
	activity   repository.ActivityLogRepository
	heartbeats repository.HeartbeatRepository
	artifacts  *artifacts.Store
	cfg        Config
	logger     *slog.Logger

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
}

// New creates an Orchestrator from its collaborators.
func New(goals GoalSource, action ProgressAction, breakers *transport.Registry, activity repository.ActivityLogRepository, heartbeats repository.HeartbeatRepository, store *artifacts.Store, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		goals:      goals,
		action:     action,
		breakers:   breakers,
		activity:   activity,
		heartbeats: heartbeats,
		artifacts:  store,
		cfg:        cfg,
		logger:     logger.With("component", "orchestrator"),
	}
}

// Start runs the work cycle on a ticker until ctx is cancelled.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return
	}
	o.started = true
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(o.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.RunCycle(ctx)
			}
		}
	}()
}

// Stop waits for the running cycle to finish.
func (o *Orchestrator) Stop() {
	o.wg.Wait()
}

// cycleResult captures one tick's outcome for the structured log artifact.
type cycleResult struct {
	StartedAt  time.Time      `json:"started_at"`
	Degraded   bool           `json:"degraded"`
	GoalID     string         `json:"goal_id,omitempty"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// RunCycle performs one health probe -> active-goal check -> progress
// action -> activity log -> heartbeat -> artifact-write cycle. When the
// primary LLM's circuit breaker is open, the cycle runs in degraded mode:
// no spawn, no external model call, and a heartbeat with status=degraded.
func (o *Orchestrator) RunCycle(ctx context.Context) {
	start := o.cfg.Now()
	result := cycleResult{StartedAt: start}

	cb := o.breakers.Get(o.cfg.PrimaryBreakerName)
	if allowed, _ := cb.Allow(); !allowed {
		result.Degraded = true
		o.logger.Warn("primary circuit open, running degraded work cycle")
		o.finishCycle(ctx, result, models.HeartbeatDegraded)
		return
	}

	goals, err := o.goals.ActiveGoals(ctx)
	if err != nil {
		result.Error = err.Error()
		o.finishCycle(ctx, result, models.HeartbeatError)
		return
	}
	SortGoals(goals)

	if len(goals) == 0 {
		result.Success = true
		o.finishCycle(ctx, result, models.HeartbeatOK)
		return
	}

	goal := goals[0]
	result.GoalID = goal.ID

	if err := o.action.Act(ctx, goal); err != nil {
		result.Error = err.Error()
		cb.RecordFailure()
		o.finishCycle(ctx, result, models.HeartbeatError)
		return
	}

	cb.RecordSuccess()
	result.Success = true
	o.finishCycle(ctx, result, models.HeartbeatOK)
}

func (o *Orchestrator) finishCycle(ctx context.Context, result cycleResult, status models.HeartbeatStatus) {
	result.DurationMs = o.cfg.Now().Sub(result.StartedAt).Milliseconds()

	entry := &models.ActivityLogEntry{
		Action:    "work_cycle",
		Details:   models.NormalizeDetails(result),
		Success:   result.Success,
		CreatedAt: o.cfg.Now(),
	}
	if result.Error != "" {
		entry.ErrorMessage = result.Error
	}
	if err := o.activity.Append(ctx, entry); err != nil {
		o.logger.Warn("failed to append activity log entry", "error", err)
	}

	hb := &models.Heartbeat{
		JobName:    "work_cycle",
		Status:     status,
		Details:    models.NormalizeDetails(result),
		ExecutedAt: o.cfg.Now(),
		DurationMs: result.DurationMs,
	}
	if err := o.heartbeats.Create(ctx, hb); err != nil {
		o.logger.Warn("failed to record heartbeat", "error", err)
	}

	if o.artifacts != nil {
		path := o.cfg.Now().Format("2006/01/02/150405.000") + ".json"
		if _, err := o.artifacts.WriteJSONArtifact("work_cycles", path, result); err != nil {
			o.logger.Warn("failed to write work cycle artifact", "error", err)
		}
	}
}
