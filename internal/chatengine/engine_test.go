package chatengine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Najia-afk/Aria-moltbot-sub003/internal/errkind"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/models"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/repository"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/transport"
)

type scriptedProvider struct {
	name    string
	results []*CompletionResult
	errs    []error
	calls   int
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if i < len(p.results) {
		return p.results[i], nil
	}
	return &CompletionResult{}, nil
}

type echoToolExecutor struct{}

func (echoToolExecutor) Execute(ctx context.Context, call models.ToolCall) models.ToolResult {
	return models.ToolResult{ToolCallID: call.ID, Success: true, Output: "ok"}
}

func newSession(t *testing.T, store *repository.Store) *models.Session {
	t.Helper()
	sess := &models.Session{
		SessionID:   "sess-1",
		AgentID:     "agent-1",
		SessionType: models.SessionTypeInteractive,
		Status:      models.SessionStatusActive,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		TotalCost:   models.ZeroCost(),
		Metadata:    map[string]any{},
	}
	if err := store.Sessions.Create(context.Background(), sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return sess
}

func drain(ch <-chan Event) []Event {
	var events []Event
	for e := range ch {
		events = append(events, e)
	}
	return events
}

func TestRunNoToolCallsEmitsDoneAfterOneIteration(t *testing.T) {
	store := repository.NewMemoryStore()
	sess := newSession(t, store)
	provider := &scriptedProvider{name: "primary", results: []*CompletionResult{{Content: "hi"}}}
	reg := transport.NewRegistry(transport.DefaultCircuitBreakerConfig())
	engine := New([]Provider{provider}, reg, echoToolExecutor{}, store.Messages, DefaultConfig(), nil)

	events := drain(engine.Run(context.Background(), sess, &models.Message{Role: models.RoleUser, Content: "hello"}, "sys", "model-a", nil))

	if len(events) != 3 {
		t.Fatalf("expected iteration_start, iteration_end, done, got %d events: %+v", len(events), events)
	}
	if events[0].Type != EventIterationStart || events[1].Type != EventIterationEnd || events[2].Type != EventDone {
		t.Fatalf("unexpected event ordering: %+v", events)
	}
}

func TestRunWithToolCallEmitsOrderedToolEvents(t *testing.T) {
	store := repository.NewMemoryStore()
	sess := newSession(t, store)
	provider := &scriptedProvider{name: "primary", results: []*CompletionResult{
		{ToolCalls: []models.ToolCall{{ID: "t1", Name: "noop", Arguments: "{}"}}},
		{Content: "done"},
	}}
	reg := transport.NewRegistry(transport.DefaultCircuitBreakerConfig())
	engine := New([]Provider{provider}, reg, echoToolExecutor{}, store.Messages, DefaultConfig(), nil)

	events := drain(engine.Run(context.Background(), sess, &models.Message{Role: models.RoleUser, Content: "hello"}, "sys", "model-a", nil))

	wantTypes := []EventType{EventIterationStart, EventToolCall, EventToolResult, EventIterationEnd, EventIterationStart, EventIterationEnd, EventDone}
	if len(events) != len(wantTypes) {
		t.Fatalf("expected %d events, got %d: %+v", len(wantTypes), len(events), events)
	}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Fatalf("event %d: expected %s, got %s", i, want, events[i].Type)
		}
	}
}

func TestRunRejectsEndedSession(t *testing.T) {
	store := repository.NewMemoryStore()
	sess := newSession(t, store)
	sess.Metadata["ended"] = true

	provider := &scriptedProvider{name: "primary"}
	reg := transport.NewRegistry(transport.DefaultCircuitBreakerConfig())
	engine := New([]Provider{provider}, reg, echoToolExecutor{}, store.Messages, DefaultConfig(), nil)

	events := drain(engine.Run(context.Background(), sess, &models.Message{Role: models.RoleUser, Content: "hello"}, "sys", "model-a", nil))
	if len(events) != 1 || events[0].Type != EventError {
		t.Fatalf("expected a single error event for an ended session, got %+v", events)
	}
	if provider.calls != 0 {
		t.Fatalf("expected no provider call for an ended session")
	}
}

func TestRunFallsBackToSecondProviderOnFailure(t *testing.T) {
	store := repository.NewMemoryStore()
	sess := newSession(t, store)

	primary := &scriptedProvider{name: "primary", errs: []error{errors.New("boom")}}
	fallback := &scriptedProvider{name: "fallback", results: []*CompletionResult{{Content: "from fallback"}}}
	reg := transport.NewRegistry(transport.DefaultCircuitBreakerConfig())
	engine := New([]Provider{primary, fallback}, reg, echoToolExecutor{}, store.Messages, DefaultConfig(), nil)

	events := drain(engine.Run(context.Background(), sess, &models.Message{Role: models.RoleUser, Content: "hello"}, "sys", "model-a", nil))
	last := events[len(events)-1]
	if last.Type != EventDone || last.Message.Content != "from fallback" {
		t.Fatalf("expected a successful completion from the fallback provider, got %+v", last)
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Fatalf("expected exactly one call to each provider, got primary=%d fallback=%d", primary.calls, fallback.calls)
	}
}

func TestRunSkipsProviderWithOpenCircuit(t *testing.T) {
	store := repository.NewMemoryStore()
	sess := newSession(t, store)

	primary := &scriptedProvider{name: "primary"}
	fallback := &scriptedProvider{name: "fallback", results: []*CompletionResult{{Content: "from fallback"}}}
	reg := transport.NewRegistry(transport.CircuitBreakerConfig{Threshold: 1, ResetAfter: time.Minute})
	reg.Get("primary").RecordFailure()

	engine := New([]Provider{primary, fallback}, reg, echoToolExecutor{}, store.Messages, DefaultConfig(), nil)
	events := drain(engine.Run(context.Background(), sess, &models.Message{Role: models.RoleUser, Content: "hello"}, "sys", "model-a", nil))

	last := events[len(events)-1]
	if last.Type != EventDone {
		t.Fatalf("expected a successful completion despite the primary's open circuit, got %+v", last)
	}
	if primary.calls != 0 {
		t.Fatalf("expected the open-circuit provider to never be called, got %d calls", primary.calls)
	}
}

func TestRunExhaustsIterationsAndReportsCeiling(t *testing.T) {
	store := repository.NewMemoryStore()
	sess := newSession(t, store)

	results := make([]*CompletionResult, 0, 11)
	for i := 0; i < 11; i++ {
		results = append(results, &CompletionResult{ToolCalls: []models.ToolCall{{ID: "t", Name: "noop", Arguments: "{}"}}})
	}
	provider := &scriptedProvider{name: "primary", results: results}
	reg := transport.NewRegistry(transport.DefaultCircuitBreakerConfig())
	cfg := DefaultConfig()
	cfg.MaxToolIterations = 2
	engine := New([]Provider{provider}, reg, echoToolExecutor{}, store.Messages, cfg, nil)

	events := drain(engine.Run(context.Background(), sess, &models.Message{Role: models.RoleUser, Content: "hello"}, "sys", "model-a", nil))
	last := events[len(events)-1]
	if last.Type != EventError || last.Reason != errkind.Reason(errkind.Ceiling) {
		t.Fatalf("expected a ceiling error after exhausting iterations, got %+v", last)
	}
}
