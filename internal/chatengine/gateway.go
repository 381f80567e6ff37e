package chatengine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Najia-afk/Aria-moltbot-sub003/internal/errkind"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/models"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/transport"
)

// GatewayConfig configures one HTTPS LLM gateway endpoint.
type GatewayConfig struct {
	// Endpoint names the Transport circuit breaker this provider consults;
	// it is also returned from Name() so the engine's per-provider breaker
	// bookkeeping lines up with transport's.
	Endpoint    string
	URL         string
	BearerToken string
	Timeout     time.Duration
}

// GatewayProvider is a Provider backed by a single HTTP chat-completion
// endpoint, routed through Transport so retry and circuit breaker coverage
// apply to every call. The request/response shapes below are the gateway's
// documented wire contract: a request carries {model, messages, tools?,
// temperature, max_tokens, stream}; a response carries {content, thinking?,
// tool_calls?, usage: {input_tokens, output_tokens, cost}}.
type GatewayProvider struct {
	tr  *transport.Transport
	cfg GatewayConfig
}

// NewGatewayProvider creates a GatewayProvider. Timeout defaults to 60s.
func NewGatewayProvider(tr *transport.Transport, cfg GatewayConfig) *GatewayProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &GatewayProvider{tr: tr, cfg: cfg}
}

// Name returns the provider's breaker/endpoint name.
func (p *GatewayProvider) Name() string { return p.cfg.Endpoint }

type gatewayToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type gatewayMessage struct {
	Role       models.MessageRole `json:"role"`
	Content    string             `json:"content,omitempty"`
	ToolCalls  []gatewayToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string             `json:"tool_call_id,omitempty"`
}

type gatewayRequest struct {
	Model       string            `json:"model"`
	Messages    []gatewayMessage  `json:"messages"`
	Tools       []json.RawMessage `json:"tools,omitempty"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Stream      bool              `json:"stream"`
}

type gatewayUsage struct {
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

type gatewayResponse struct {
	Content   string            `json:"content"`
	Thinking  string            `json:"thinking,omitempty"`
	ToolCalls []gatewayToolCall `json:"tool_calls,omitempty"`
	Usage     gatewayUsage      `json:"usage"`
}

// toGatewayMessages flattens the engine's internal log — which batches a
// tool turn's results into one Message — into the gateway's one-entry-per-
// tool-result wire shape (each carrying its own tool_call_id).
func toGatewayMessages(messages []*models.Message) []gatewayMessage {
	out := make([]gatewayMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == models.RoleTool {
			for _, r := range m.ToolResults {
				content := r.Output
				if !r.Success {
					content = r.Error
				}
				out = append(out, gatewayMessage{Role: models.RoleTool, Content: content, ToolCallID: r.ToolCallID})
			}
			continue
		}
		gm := gatewayMessage{Role: m.Role, Content: m.Content}
		for _, tc := range m.ToolCalls {
			gm.ToolCalls = append(gm.ToolCalls, gatewayToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
		}
		out = append(out, gm)
	}
	return out
}

// Complete posts one chat-completion request and parses the gateway's
// response into the engine's internal per-turn accounting shape.
func (p *GatewayProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	body := gatewayRequest{
		Model:       req.Model,
		Messages:    toGatewayMessages(req.Messages),
		Temperature: 0.7,
		Stream:      false,
	}
	for _, tool := range req.Tools {
		body.Tools = append(body.Tools, json.RawMessage(tool.Schema))
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errkind.New(errkind.Contract, "chatengine.GatewayProvider.Complete", err)
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if p.cfg.BearerToken != "" {
		headers["Authorization"] = fmt.Sprintf("Bearer %s", p.cfg.BearerToken)
	}

	started := time.Now()
	resp, err := p.tr.Request(ctx, p.cfg.Endpoint, "POST", p.cfg.URL, transport.JSONBody(payload), headers, p.cfg.Timeout)
	if err != nil {
		return nil, errkind.New(errkind.Transient, "chatengine.GatewayProvider.Complete", err)
	}

	var parsed gatewayResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, errkind.New(errkind.Contract, "chatengine.GatewayProvider.Complete", err)
	}

	result := &CompletionResult{
		Content:      parsed.Content,
		Cost:         models.NewCost(parsed.Usage.Cost),
		TokensInput:  parsed.Usage.InputTokens,
		TokensOutput: parsed.Usage.OutputTokens,
		LatencyMs:    time.Since(started).Milliseconds(),
	}
	for _, tc := range parsed.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, models.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
	}
	return result, nil
}
