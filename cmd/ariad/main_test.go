package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/Najia-afk/Aria-moltbot-sub003/internal/config"
)

// missingConfig returns a path to a nonexistent config file in a fresh temp
// dir, so loadRuntime falls back to config.Default() (an in-memory store).
func missingConfig(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "missing.yaml")
}

func TestBootstrapCmdWritesConfigFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "ariad.yaml")
	root := buildRootCmd()
	root.SetArgs([]string{"bootstrap", "--out", out})
	root.SetOut(&bytes.Buffer{})
	if err := root.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := config.Load(out)
	if err != nil {
		t.Fatalf("unexpected error loading the bootstrapped config: %v", err)
	}
	if cfg.Auth.SigningKey == "" {
		t.Fatalf("expected a generated signing key in the bootstrapped config")
	}
}

func TestStatusCmdRunsAgainstMemoryStore(t *testing.T) {
	root := buildRootCmd()
	root.SetArgs([]string{"--config", missingConfig(t), "status"})
	var buf bytes.Buffer
	root.SetOut(&buf)
	if err := root.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBreakerStatusAndResetRoundTrip(t *testing.T) {
	cfgPath := missingConfig(t)

	root := buildRootCmd()
	root.SetArgs([]string{"--config", cfgPath, "breaker", "status"})
	if err := root.Execute(); err != nil {
		t.Fatalf("unexpected error listing breakers: %v", err)
	}

	root = buildRootCmd()
	root.SetArgs([]string{"--config", cfgPath, "breaker", "reset", "llm-primary"})
	if err := root.Execute(); err != nil {
		t.Fatalf("unexpected error resetting a breaker: %v", err)
	}
}

func TestSessionCloseRefusesCallersOwnSession(t *testing.T) {
	root := buildRootCmd()
	root.SetArgs([]string{"--config", missingConfig(t), "session", "close", "sess-1", "--caller-session", "sess-1"})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected an error refusing to close the caller's own session")
	}
}

func TestAgentTerminateUnknownAgentReturnsError(t *testing.T) {
	root := buildRootCmd()
	root.SetArgs([]string{"--config", missingConfig(t), "agent", "terminate", "does-not-exist"})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected an error terminating an unknown agent")
	}
}
