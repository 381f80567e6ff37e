package chatengine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Najia-afk/Aria-moltbot-sub003/internal/errkind"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/models"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/repository"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/transport"
)

// CompletionRequest is what the engine sends a model provider each iteration.
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	Messages     []*models.Message
	Tools        []ToolSpec
}

// ToolSpec is the JSON-Schema-described shape of one callable tool.
type ToolSpec struct {
	Name        string
	Description string
	Schema      []byte
}

// CompletionResult is one model turn: assistant content plus any requested
// tool calls and token/cost accounting for that single turn.
type CompletionResult struct {
	Content      string
	ToolCalls    []models.ToolCall
	TokensInput  int64
	TokensOutput int64
	Cost         models.Decimal
	LatencyMs    int64
}

// Provider is one LLM backend the engine can call through the shared
// Transport (circuit breaker + retry already applied by the caller's
// Transport.Request, so Provider implementations are expected to route
// their HTTP calls through it).
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
}

// ToolExecutor runs one tool call and returns its result.
type ToolExecutor interface {
	Execute(ctx context.Context, call models.ToolCall) models.ToolResult
}

// Config configures the engine's iteration ceiling and fallback behavior.
type Config struct {
	MaxToolIterations int
	Now               func() time.Time
}

// DefaultConfig returns the baseline iteration ceiling (10).
func DefaultConfig() Config {
	return Config{MaxToolIterations: 10, Now: time.Now}
}

// Engine drives the tool-calling loop for one session turn at a time.
type Engine struct {
	providers []Provider // primary first, then fallbacks in order
	breakers  *transport.Registry
	tools     ToolExecutor
	messages  repository.MessageRepository
	cfg       Config
	logger    *slog.Logger
}

// New creates an Engine. providers[0] is primary; the rest are consulted in
// order when a provider's circuit breaker is open or the call fails.
func New(providers []Provider, breakers *transport.Registry, tools ToolExecutor, messages repository.MessageRepository, cfg Config, logger *slog.Logger) *Engine {
	if cfg.MaxToolIterations <= 0 {
		cfg.MaxToolIterations = 10
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		providers: providers,
		breakers:  breakers,
		tools:     tools,
		messages:  messages,
		cfg:       cfg,
		logger:    logger.With("component", "chatengine"),
	}
}

// completeWithFallback tries each provider in order, skipping any whose
// circuit breaker is open, and records success/failure against that
// provider's breaker so the breaker can inform the next attempt.
func (e *Engine) completeWithFallback(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	var lastErr error
	for _, p := range e.providers {
		cb := e.breakers.Get(p.Name())
		allowed, _ := cb.Allow()
		if !allowed {
			e.logger.Warn("skipping provider, circuit open", "provider", p.Name())
			continue
		}
		res, err := p.Complete(ctx, req)
		if err != nil {
			cb.RecordFailure()
			lastErr = err
			e.logger.Warn("provider completion failed, trying next", "provider", p.Name(), "error", err)
			continue
		}
		cb.RecordSuccess()
		return res, nil
	}
	if lastErr == nil {
		lastErr = errkind.Newf(errkind.Transient, "chatengine.completeWithFallback", "no provider available")
	}
	return nil, errkind.New(errkind.Transient, "chatengine.completeWithFallback", lastErr)
}

// Run executes the tool-calling loop for one user turn, emitting events on
// the returned channel in strict order: per iteration, IterationStart, then
// any ToolCall/ToolResult pairs, then IterationEnd; the whole run ends in
// exactly one Done or Error. The channel is closed when the run ends.
func (e *Engine) Run(ctx context.Context, session *models.Session, userMsg *models.Message, systemPrompt, model string, tools []ToolSpec) <-chan Event {
	out := make(chan Event, 16)

	go func() {
		defer close(out)

		if session.EndedFlag() {
			out <- Event{Type: EventError, Reason: errkind.Reason(errkind.Contract)}
			return
		}

		userMsg.SessionID = session.SessionID
		userMsg.CreatedAt = e.cfg.Now()
		if err := e.messages.Append(ctx, userMsg); err != nil {
			out <- Event{Type: EventError, Reason: errkind.Reason(errkind.Transient)}
			return
		}

		history, err := e.messages.ListRecent(ctx, session.SessionID, 0)
		if err != nil {
			out <- Event{Type: EventError, Reason: errkind.Reason(errkind.Transient)}
			return
		}

		for iteration := 1; iteration <= e.cfg.MaxToolIterations; iteration++ {
			select {
			case <-ctx.Done():
				out <- Event{Type: EventError, Reason: errkind.Reason(errkind.Cancelled)}
				return
			default:
			}

			out <- Event{Type: EventIterationStart, Iteration: iteration}

			req := CompletionRequest{Model: model, SystemPrompt: systemPrompt, Messages: history, Tools: tools}
			result, err := e.completeWithFallback(ctx, req)
			if err != nil {
				out <- Event{Type: EventError, Iteration: iteration, Reason: errkind.Reason(errkind.KindOf(err))}
				return
			}

			assistantMsg := &models.Message{
				ID:           uuid.NewString(),
				SessionID:    session.SessionID,
				Role:         models.RoleAssistant,
				Content:      result.Content,
				ToolCalls:    result.ToolCalls,
				Model:        model,
				TokensInput:  result.TokensInput,
				TokensOutput: result.TokensOutput,
				Cost:         result.Cost,
				LatencyMs:    result.LatencyMs,
				CreatedAt:    e.cfg.Now(),
			}
			if err := e.messages.Append(ctx, assistantMsg); err != nil {
				out <- Event{Type: EventError, Iteration: iteration, Reason: errkind.Reason(errkind.Transient)}
				return
			}
			history = append(history, assistantMsg)

			if len(result.ToolCalls) == 0 {
				out <- Event{Type: EventIterationEnd, Iteration: iteration}
				out <- Event{Type: EventDone, Iteration: iteration, Message: assistantMsg}
				return
			}

			var toolResults []models.ToolResult
			for _, call := range result.ToolCalls {
				out <- Event{Type: EventToolCall, Iteration: iteration, ToolCall: &call}
				started := e.cfg.Now()
				res := e.tools.Execute(ctx, call)
				res.DurationMs = e.cfg.Now().Sub(started).Milliseconds()
				out <- Event{Type: EventToolResult, Iteration: iteration, ToolResult: &res}
				toolResults = append(toolResults, res)
			}

			toolMsg := &models.Message{
				ID:          uuid.NewString(),
				SessionID:   session.SessionID,
				Role:        models.RoleTool,
				ToolResults: toolResults,
				CreatedAt:   e.cfg.Now(),
			}
			if err := e.messages.Append(ctx, toolMsg); err != nil {
				out <- Event{Type: EventError, Iteration: iteration, Reason: errkind.Reason(errkind.Transient)}
				return
			}
			history = append(history, toolMsg)

			out <- Event{Type: EventIterationEnd, Iteration: iteration}
		}

		out <- Event{Type: EventError, Iteration: e.cfg.MaxToolIterations, Reason: errkind.Reason(errkind.Ceiling)}
	}()

	return out
}
