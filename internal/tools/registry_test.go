package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Najia-afk/Aria-moltbot-sub003/internal/models"
)

const echoSchema = `{"type":"object","properties":{"msg":{"type":"string"}},"required":["msg"]}`

func registerEcho(t *testing.T, r *Registry) {
	t.Helper()
	err := r.Register("echo", "echoes msg back", []byte(echoSchema), func(ctx context.Context, args json.RawMessage) (string, error) {
		var in struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(args, &in); err != nil {
			return "", err
		}
		return in.Msg, nil
	})
	if err != nil {
		t.Fatalf("unexpected error registering: %v", err)
	}
}

func TestExecuteValidCallSucceeds(t *testing.T) {
	r := New()
	registerEcho(t, r)

	result := r.Execute(context.Background(), models.ToolCall{ID: "c1", Name: "echo", Arguments: `{"msg":"hi"}`})
	if !result.Success || result.Output != "hi" {
		t.Fatalf("expected a successful echo, got %+v", result)
	}
}

func TestExecuteUnknownToolFailsWithoutError(t *testing.T) {
	r := New()
	result := r.Execute(context.Background(), models.ToolCall{ID: "c1", Name: "missing", Arguments: `{}`})
	if result.Success {
		t.Fatalf("expected failure for an unregistered tool")
	}
	if !strings.Contains(result.Error, "not found") {
		t.Fatalf("expected a not-found error message, got %q", result.Error)
	}
}

func TestExecuteRejectsArgumentsFailingSchema(t *testing.T) {
	r := New()
	registerEcho(t, r)

	result := r.Execute(context.Background(), models.ToolCall{ID: "c1", Name: "echo", Arguments: `{"wrong_field":1}`})
	if result.Success {
		t.Fatalf("expected schema validation to fail the call")
	}
}

func TestExecuteRejectsInvalidJSON(t *testing.T) {
	r := New()
	registerEcho(t, r)

	result := r.Execute(context.Background(), models.ToolCall{ID: "c1", Name: "echo", Arguments: `not json`})
	if result.Success {
		t.Fatalf("expected invalid JSON arguments to fail the call")
	}
}

func TestExecuteRejectsOversizedArguments(t *testing.T) {
	r := New()
	registerEcho(t, r)

	huge := strings.Repeat("a", MaxArgumentsSize+1)
	result := r.Execute(context.Background(), models.ToolCall{ID: "c1", Name: "echo", Arguments: huge})
	if result.Success {
		t.Fatalf("expected an oversized argument payload to fail the call")
	}
}

func TestRegisterRejectsOverlongName(t *testing.T) {
	r := New()
	name := strings.Repeat("n", MaxToolNameLength+1)
	if err := r.Register(name, "", []byte(`{}`), func(ctx context.Context, args json.RawMessage) (string, error) { return "", nil }); err == nil {
		t.Fatalf("expected an error registering an overlong tool name")
	}
}

func TestUnregisterRemovesToolFromSpecsAndExecute(t *testing.T) {
	r := New()
	registerEcho(t, r)
	r.Unregister("echo")

	if len(r.Specs()) != 0 {
		t.Fatalf("expected Specs to be empty after Unregister, got %+v", r.Specs())
	}
	result := r.Execute(context.Background(), models.ToolCall{ID: "c1", Name: "echo", Arguments: `{"msg":"hi"}`})
	if result.Success {
		t.Fatalf("expected Execute to fail for an unregistered tool")
	}
}

func TestRegisterReplacesExistingRegistration(t *testing.T) {
	r := New()
	registerEcho(t, r)
	err := r.Register("echo", "replacement", []byte(echoSchema), func(ctx context.Context, args json.RawMessage) (string, error) {
		return "replaced", nil
	})
	if err != nil {
		t.Fatalf("unexpected error re-registering: %v", err)
	}

	result := r.Execute(context.Background(), models.ToolCall{ID: "c1", Name: "echo", Arguments: `{"msg":"hi"}`})
	if result.Output != "replaced" {
		t.Fatalf("expected the replacement handler to run, got %+v", result)
	}
}
