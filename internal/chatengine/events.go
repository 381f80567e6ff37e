// Package chatengine runs the tool-calling agentic loop: append the user
// message, assemble the payload, iterate against the model up to a bounded
// number of iterations, and emit a strictly ordered stream of events for
// each iteration's stream/tool-call/tool-result/completion phases. Grounded
// on the teacher's internal/agent.AgenticLoop (phase-based LoopState machine,
// streamPhase/executeToolsPhase/continuePhase split, ResponseChunk event
// channel) generalized from a Discord/Slack-bound runtime to provider- and
// tool-agnostic iteration.
package chatengine

import "github.com/Najia-afk/Aria-moltbot-sub003/internal/models"

// EventType enumerates the chat engine's streaming event kinds, emitted in
// strict order per iteration: IterationStart, then zero or more ToolCall/
// ToolResult pairs, then IterationEnd; the loop as a whole ends with exactly
// one Done or Error.
type EventType string

const (
	EventIterationStart EventType = "iteration_start"
	EventIterationEnd   EventType = "iteration_end"
	EventToolCall       EventType = "tool_call"
	EventToolResult     EventType = "tool_result"
	EventDone           EventType = "done"
	EventError          EventType = "error"
)

// Event is one entry in the chat engine's output stream.
type Event struct {
	Type       EventType         `json:"type"`
	Iteration  int               `json:"iteration"`
	Content    string            `json:"content,omitempty"`
	ToolCall   *models.ToolCall  `json:"tool_call,omitempty"`
	ToolResult *models.ToolResult `json:"tool_result,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Message    *models.Message   `json:"message,omitempty"`
}
