package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Najia-afk/Aria-moltbot-sub003/internal/models"
)

// NewMemoryStore builds a Store backed entirely by in-process maps, grounded
// on the teacher's in-memory test doubles used across internal/storage
// tests; it is the default store for unit tests and for the CLI running
// without a configured database. Each repository gets its own concrete type
// since Go method sets cannot overload a method name by return type alone.
func NewMemoryStore() *Store {
	sessions := newMemSessions()
	messages := newMemMessages()
	messages.sessions = sessions
	return &Store{
		Agents:      newMemAgents(),
		Sessions:    sessions,
		Messages:    messages,
		Jobs:        newMemJobs(),
		Executions:  newMemExecutions(),
		Heartbeats:  newMemHeartbeats(),
		ActivityLog: newMemActivity(),
		Close:       func() error { return nil },
	}
}

// --- AgentRepository ---

type memAgents struct {
	mu     sync.RWMutex
	agents map[string]*models.Agent
}

func newMemAgents() *memAgents { return &memAgents{agents: make(map[string]*models.Agent)} }

func (m *memAgents) Upsert(ctx context.Context, agent *models.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *agent
	m.agents[agent.AgentID] = &cp
	return nil
}

func (m *memAgents) Get(ctx context.Context, agentID string) (*models.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[agentID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAgents) SetStatus(ctx context.Context, agentID string, status models.AgentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[agentID]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	return nil
}

func (m *memAgents) CountNonDisabledByPrefix(ctx context.Context, prefix string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, a := range m.agents {
		if strings.HasPrefix(a.AgentID, prefix+"-") && a.Status != models.AgentStatusDisabled {
			n++
		}
	}
	return n, nil
}

func (m *memAgents) List(ctx context.Context) ([]*models.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Agent, 0, len(m.agents))
	for _, a := range m.agents {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out, nil
}

// --- SessionRepository ---

type memSessions struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[string]*models.Session)}
}

func (m *memSessions) Create(ctx context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.SessionID] = &cp
	return nil
}

func (m *memSessions) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessions) GetActive(ctx context.Context, agentID string, sessionType models.SessionType) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *models.Session
	for _, s := range m.sessions {
		if s.AgentID != agentID || s.SessionType != sessionType || s.Status != models.SessionStatusActive {
			continue
		}
		if best == nil || s.CreatedAt.After(best.CreatedAt) {
			best = s
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *memSessions) Update(ctx context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.SessionID]; !ok {
		return ErrNotFound
	}
	cp := *s
	m.sessions[s.SessionID] = &cp
	return nil
}

func (m *memSessions) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, sessionID)
	return nil
}

func (m *memSessions) ListIdleBefore(ctx context.Context, cutoff time.Time) ([]*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Session
	for _, s := range m.sessions {
		if s.Status == models.SessionStatusActive && s.UpdatedAt.Before(cutoff) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSessions) ListStaleSubagentsBefore(ctx context.Context, cutoff time.Time) ([]*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Session
	for _, s := range m.sessions {
		if s.Status == models.SessionStatusActive && strings.HasPrefix(s.AgentID, "sub-") && s.CreatedAt.Before(cutoff) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSessions) Stats(ctx context.Context) (SessionStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := SessionStats{ByAgent: map[string]int{}, ByType: map[string]int{}}
	for _, s := range m.sessions {
		stats.TotalSessions++
		if s.Status == models.SessionStatusActive {
			stats.ActiveSessions++
		}
		stats.ByAgent[s.AgentID]++
		stats.ByType[string(s.SessionType)]++
	}
	return stats, nil
}

// --- MessageRepository ---

type memMessages struct {
	mu       sync.RWMutex
	messages map[string][]*models.Message // sessionID -> ordered messages
	sessions *memSessions                 // to maintain session aggregates, wired by the composition root
}

func newMemMessages() *memMessages {
	return &memMessages{messages: make(map[string][]*models.Message)}
}

func (m *memMessages) Append(ctx context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *msg
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], &cp)
	if m.sessions != nil {
		m.sessions.mu.Lock()
		if s, ok := m.sessions.sessions[msg.SessionID]; ok {
			s.MessageCount++
			s.TotalTokens += msg.TokensInput + msg.TokensOutput
			s.TotalCost = s.TotalCost.Add(msg.Cost)
			s.UpdatedAt = msg.CreatedAt
		}
		m.sessions.mu.Unlock()
	}
	return nil
}

func (m *memMessages) ListRecent(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.messages[sessionID]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	start := len(all) - limit
	out := make([]*models.Message, limit)
	copy(out, all[start:])
	return out, nil
}

func (m *memMessages) Count(ctx context.Context, sessionID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages[sessionID]), nil
}

// --- JobRepository ---

type memJobs struct {
	mu   sync.RWMutex
	jobs map[string]*models.ScheduledJob
}

func newMemJobs() *memJobs { return &memJobs{jobs: make(map[string]*models.ScheduledJob)} }

func (m *memJobs) Upsert(ctx context.Context, job *models.ScheduledJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.JobID] = &cp
	return nil
}

func (m *memJobs) Get(ctx context.Context, jobID string) (*models.ScheduledJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobs) ListEnabledDue(ctx context.Context, now time.Time) ([]*models.ScheduledJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.ScheduledJob
	for _, j := range m.jobs {
		if j.Enabled && !j.NextRunAt.After(now) {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobID < out[j].JobID })
	return out, nil
}

func (m *memJobs) ListAll(ctx context.Context) ([]*models.ScheduledJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.ScheduledJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobID < out[j].JobID })
	return out, nil
}

func (m *memJobs) Update(ctx context.Context, job *models.ScheduledJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.JobID]; !ok {
		return ErrNotFound
	}
	cp := *job
	m.jobs[job.JobID] = &cp
	return nil
}

// --- ExecutionRepository ---

type memExecutions struct {
	mu         sync.RWMutex
	executions map[string][]*models.JobExecution // jobID -> executions
}

func newMemExecutions() *memExecutions {
	return &memExecutions{executions: make(map[string][]*models.JobExecution)}
}

func (m *memExecutions) Create(ctx context.Context, exec *models.JobExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *exec
	m.executions[exec.JobID] = append(m.executions[exec.JobID], &cp)
	return nil
}

func (m *memExecutions) Update(ctx context.Context, exec *models.JobExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.executions[exec.JobID]
	for i, e := range list {
		if e.ID == exec.ID {
			cp := *exec
			list[i] = &cp
			return nil
		}
	}
	return ErrNotFound
}

func (m *memExecutions) List(ctx context.Context, jobID string, limit, offset int) ([]*models.JobExecution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.executions[jobID]
	if offset >= len(all) {
		return nil, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]*models.JobExecution, end-offset)
	copy(out, all[offset:end])
	return out, nil
}

func (m *memExecutions) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var pruned int64
	for jobID, list := range m.executions {
		kept := list[:0:0]
		for _, e := range list {
			if e.StartedAt.Before(cutoff) {
				pruned++
				continue
			}
			kept = append(kept, e)
		}
		m.executions[jobID] = kept
	}
	return pruned, nil
}

// --- HeartbeatRepository ---

type memHeartbeats struct {
	mu         sync.RWMutex
	heartbeats map[string][]*models.Heartbeat // jobName -> beats
}

func newMemHeartbeats() *memHeartbeats {
	return &memHeartbeats{heartbeats: make(map[string][]*models.Heartbeat)}
}

func (m *memHeartbeats) Create(ctx context.Context, hb *models.Heartbeat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *hb
	m.heartbeats[hb.JobName] = append(m.heartbeats[hb.JobName], &cp)
	return nil
}

func (m *memHeartbeats) Latest(ctx context.Context, jobName string) (*models.Heartbeat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.heartbeats[jobName]
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	cp := *list[len(list)-1]
	return &cp, nil
}

// --- ActivityLogRepository ---

type memActivity struct {
	mu      sync.RWMutex
	entries []*models.ActivityLogEntry
}

func newMemActivity() *memActivity { return &memActivity{} }

func (m *memActivity) Append(ctx context.Context, entry *models.ActivityLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.entries = append(m.entries, &cp)
	return nil
}
