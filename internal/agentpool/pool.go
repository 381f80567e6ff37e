// Package agentpool governs the lifecycle of polymorphic executor agents:
// spawning, binding to tasks, releasing, and terminating, under two spawn
// ceilings (a concurrent in-memory cap and a per-type persistent cap).
// Grounded on the teacher's internal/agent.FailoverOrchestrator (lock-
// protected registry keyed by name, states map, Option-style config struct)
// and internal/storage's repository-backed persistence split.
package agentpool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Najia-afk/Aria-moltbot-sub003/internal/errkind"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/models"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/repository"
)

// TypeCeilings maps an AgentType to the maximum number of non-disabled
// agents of that type allowed to exist at once.
type TypeCeilings map[models.AgentType]int

// DefaultTypeCeilings returns the baseline per-type ceilings.
func DefaultTypeCeilings() TypeCeilings {
	return TypeCeilings{
		models.AgentTypeSubDevSecOps:    10,
		models.AgentTypeSubSocial:       10,
		models.AgentTypeSubOrchestrator: 5,
		models.AgentTypeSubAria:         5,
	}
}

// Config configures a Pool.
type Config struct {
	MaxConcurrentAgents int
	TypeCeilings        TypeCeilings
	Now                 func() time.Time
}

// DefaultConfig returns the baseline pool configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentAgents: 25,
		TypeCeilings:        DefaultTypeCeilings(),
		Now:                 time.Now,
	}
}

// binding tracks an in-memory agent->task assignment, independent of the
// persisted Agent row's status. Release still writes the agent's new status
// to the store.
type binding struct {
	taskID  string
	boundAt time.Time
}

// Pool is the in-memory governor sitting in front of the agent repository.
// Both ceilings are counted from the repository's agent rows (the
// concurrent-agent ceiling by listing every agent, the per-type ceiling by a
// prefix count), so they hold across process restarts.
type Pool struct {
	mu       sync.Mutex
	agents   repository.AgentRepository
	cfg      Config
	bindings map[string]*binding // agentID -> binding, only present while bound
	logger   *slog.Logger
}

// New creates a Pool backed by the given agent repository.
func New(agents repository.AgentRepository, cfg Config, logger *slog.Logger) *Pool {
	if cfg.MaxConcurrentAgents <= 0 {
		cfg.MaxConcurrentAgents = 25
	}
	if cfg.TypeCeilings == nil {
		cfg.TypeCeilings = DefaultTypeCeilings()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		agents:   agents,
		cfg:      cfg,
		bindings: make(map[string]*binding),
		logger:   logger.With("component", "agentpool"),
	}
}

// SpawnRequest describes a new agent to create.
type SpawnRequest struct {
	AgentType     models.AgentType
	Model         string
	FallbackModel string
	SystemPrompt  string
	TimeoutSeconds int
}

// typePrefix maps an AgentType to its agent_id prefix, used for the
// per-type count query ("<prefix>-%").
func typePrefix(t models.AgentType) string {
	return string(t)
}

// SpawnAgent creates and persists a new agent, enforcing both ceilings
// inside one lock so two concurrent spawns cannot both observe room under
// the concurrent cap and overshoot it.
func (p *Pool) SpawnAgent(ctx context.Context, req SpawnRequest) (*models.Agent, error) {
	if req.AgentType == "" || req.AgentType == models.AgentTypeMain {
		return nil, errkind.Newf(errkind.Contract, "agentpool.SpawnAgent", "agent_type %q is not spawnable", req.AgentType)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	liveCount, err := p.countLiveLocked(ctx)
	if err != nil {
		return nil, errkind.New(errkind.Transient, "agentpool.SpawnAgent", err)
	}
	if liveCount >= p.cfg.MaxConcurrentAgents {
		return nil, errkind.Newf(errkind.Ceiling, "agentpool.SpawnAgent", "concurrent agent ceiling %d reached", p.cfg.MaxConcurrentAgents)
	}

	ceiling, ok := p.cfg.TypeCeilings[req.AgentType]
	if ok {
		count, err := p.agents.CountNonDisabledByPrefix(ctx, typePrefix(req.AgentType))
		if err != nil {
			return nil, errkind.New(errkind.Transient, "agentpool.SpawnAgent", err)
		}
		if count >= ceiling {
			return nil, errkind.Newf(errkind.Ceiling, "agentpool.SpawnAgent", "type ceiling %d reached for %s", ceiling, req.AgentType)
		}
	}

	agent := &models.Agent{
		AgentID:        fmt.Sprintf("%s-%s", req.AgentType, uuid.NewString()[:8]),
		AgentType:      req.AgentType,
		Model:          req.Model,
		FallbackModel:  req.FallbackModel,
		SystemPrompt:   req.SystemPrompt,
		Status:         models.AgentStatusIdle,
		TimeoutSeconds: req.TimeoutSeconds,
		LastActiveAt:   p.cfg.Now(),
	}
	if err := p.agents.Upsert(ctx, agent); err != nil {
		return nil, errkind.New(errkind.Transient, "agentpool.SpawnAgent", err)
	}
	p.logger.Info("agent spawned", "agent_id", agent.AgentID, "agent_type", agent.AgentType)
	return agent, nil
}

// countLiveLocked counts agents that are not disabled, across all types.
func (p *Pool) countLiveLocked(ctx context.Context) (int, error) {
	list, err := p.agents.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, a := range list {
		if a.Status != models.AgentStatusDisabled {
			n++
		}
	}
	return n, nil
}

// TerminateAgent disables an agent permanently, freeing both ceilings.
func (p *Pool) TerminateAgent(ctx context.Context, agentID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.bindings, agentID)
	if err := p.agents.SetStatus(ctx, agentID, models.AgentStatusDisabled); err != nil {
		return errkind.New(errkind.Transient, "agentpool.TerminateAgent", err)
	}
	p.logger.Info("agent terminated", "agent_id", agentID)
	return nil
}

// BindTask marks agentID busy and records the task it now owns. An agent
// already busy cannot be bound again.
func (p *Pool) BindTask(ctx context.Context, agentID, taskID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	agent, err := p.agents.Get(ctx, agentID)
	if err != nil {
		return errkind.New(errkind.Transient, "agentpool.BindTask", err)
	}
	if agent.Status == models.AgentStatusDisabled {
		return errkind.Newf(errkind.Contract, "agentpool.BindTask", "agent %s is disabled", agentID)
	}
	if agent.Status == models.AgentStatusBusy {
		return errkind.Newf(errkind.Contract, "agentpool.BindTask", "agent %s already bound to a task", agentID)
	}

	if err := p.agents.SetStatus(ctx, agentID, models.AgentStatusBusy); err != nil {
		return errkind.New(errkind.Transient, "agentpool.BindTask", err)
	}
	p.bindings[agentID] = &binding{taskID: taskID, boundAt: p.cfg.Now()}
	return nil
}

// Release returns agentID to idle, clearing its binding. ok=false marks the
// agent failed instead (spec's consecutive-failure state transition is the
// caller's responsibility via RecordFailure).
func (p *Pool) Release(ctx context.Context, agentID string, ok bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.bindings, agentID)

	status := models.AgentStatusIdle
	if !ok {
		status = models.AgentStatusFailed
	}
	if err := p.agents.SetStatus(ctx, agentID, status); err != nil {
		return errkind.New(errkind.Transient, "agentpool.Release", err)
	}
	return nil
}

// RecordFailure increments an agent's consecutive failure count, disabling
// it once it reaches maxConsecutiveFailures.
func (p *Pool) RecordFailure(ctx context.Context, agentID string, maxConsecutiveFailures int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	agent, err := p.agents.Get(ctx, agentID)
	if err != nil {
		return errkind.New(errkind.Transient, "agentpool.RecordFailure", err)
	}
	agent.ConsecutiveFailures++
	agent.Status = models.AgentStatusFailed
	if maxConsecutiveFailures > 0 && agent.ConsecutiveFailures >= maxConsecutiveFailures {
		agent.Status = models.AgentStatusDisabled
		p.logger.Warn("agent disabled after repeated failures", "agent_id", agentID, "failures", agent.ConsecutiveFailures)
	}
	return errkind.New(errkind.Transient, "agentpool.RecordFailure", p.agents.Upsert(ctx, agent))
}

// RecordSuccess zeroes an agent's consecutive failure count.
func (p *Pool) RecordSuccess(ctx context.Context, agentID string) error {
	agent, err := p.agents.Get(ctx, agentID)
	if err != nil {
		return errkind.New(errkind.Transient, "agentpool.RecordSuccess", err)
	}
	agent.ConsecutiveFailures = 0
	agent.LastActiveAt = p.cfg.Now()
	return errkind.New(errkind.Transient, "agentpool.RecordSuccess", p.agents.Upsert(ctx, agent))
}

// Get returns one agent by id.
func (p *Pool) Get(ctx context.Context, agentID string) (*models.Agent, error) {
	agent, err := p.agents.Get(ctx, agentID)
	if err != nil {
		return nil, errkind.New(errkind.Transient, "agentpool.Get", err)
	}
	return agent, nil
}

// ListLive returns every non-disabled agent.
func (p *Pool) ListLive(ctx context.Context) ([]*models.Agent, error) {
	list, err := p.agents.List(ctx)
	if err != nil {
		return nil, errkind.New(errkind.Transient, "agentpool.ListLive", err)
	}
	live := make([]*models.Agent, 0, len(list))
	for _, a := range list {
		if a.Status != models.AgentStatusDisabled {
			live = append(live, a)
		}
	}
	return live, nil
}

// BoundTask returns the task id agentID is currently bound to, if any.
func (p *Pool) BoundTask(agentID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.bindings[agentID]
	if !ok {
		return "", false
	}
	return b.taskID, true
}
