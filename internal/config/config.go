// Package config loads the runtime's YAML configuration file, expanding
// ${VAR}-style environment references before parsing, grounded on the
// teacher's internal/config.LoadRaw (os.ExpandEnv over raw file bytes before
// any format-specific decode) simplified to a single YAML document instead
// of the teacher's $include-resolving multi-file loader, since this runtime
// ships one configuration file per deployment.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Najia-afk/Aria-moltbot-sub003/internal/agentpool"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/errkind"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/models"
)

// DatabaseConfig configures the backing store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "postgres", "sqlite", or "memory"
	DSN    string `yaml:"dsn"`
}

// TransportConfig configures outbound HTTP behavior.
type TransportConfig struct {
	TimeoutSeconds      int `yaml:"timeout_seconds"`
	RetryMaxAttempts    int `yaml:"retry_max_attempts"`
	CircuitThreshold    int `yaml:"circuit_threshold"`
	CircuitResetSeconds int `yaml:"circuit_reset_seconds"`
}

// AgentPoolConfig configures spawn ceilings.
type AgentPoolConfig struct {
	MaxConcurrentAgents int                    `yaml:"max_concurrent_agents"`
	TypeCeilings        map[string]int         `yaml:"type_ceilings"`
}

// SessionConfig configures pruning thresholds.
type SessionConfig struct {
	IdleMinutes     int `yaml:"idle_minutes"`
	StaleSubagentHr int `yaml:"stale_subagent_hours"`
}

// CronConfig configures the scheduler.
type CronConfig struct {
	MaxWorkers int `yaml:"max_workers"`
}

// ChatEngineConfig configures the tool-calling loop and the LLM gateway
// endpoint(s) it calls through Transport.
type ChatEngineConfig struct {
	MaxToolIterations  int    `yaml:"max_tool_iterations"`
	Model              string `yaml:"model"`
	FallbackModel      string `yaml:"fallback_model"`
	GatewayURL         string `yaml:"gateway_url"`
	GatewayToken       string `yaml:"gateway_token"`
	FallbackGatewayURL string `yaml:"fallback_gateway_url"`
}

// AuthConfig configures JWT bearer-token auth.
type AuthConfig struct {
	SigningKey      string `yaml:"signing_key"`
	TokenTTLMinutes int    `yaml:"token_ttl_minutes"`
}

// ArtifactsConfig configures artifact storage.
type ArtifactsConfig struct {
	RootPath string `yaml:"root_path"`
}

// ObservabilityConfig configures metrics/tracing endpoints.
type ObservabilityConfig struct {
	MetricsAddr    string `yaml:"metrics_addr"`
	TracingEnabled bool   `yaml:"tracing_enabled"`
}

// Config is the runtime's top-level configuration document.
type Config struct {
	LogLevel      string              `yaml:"log_level"`
	Database      DatabaseConfig      `yaml:"database"`
	Transport     TransportConfig     `yaml:"transport"`
	AgentPool     AgentPoolConfig     `yaml:"agent_pool"`
	Sessions      SessionConfig       `yaml:"sessions"`
	Cron          CronConfig          `yaml:"cron"`
	ChatEngine    ChatEngineConfig    `yaml:"chat_engine"`
	Auth          AuthConfig          `yaml:"auth"`
	Artifacts     ArtifactsConfig     `yaml:"artifacts"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// Default returns a Config with every field at its documented baseline.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Database: DatabaseConfig{Driver: "memory"},
		Transport: TransportConfig{
			TimeoutSeconds:      30,
			RetryMaxAttempts:    3,
			CircuitThreshold:    5,
			CircuitResetSeconds: 60,
		},
		AgentPool: AgentPoolConfig{MaxConcurrentAgents: 25},
		Sessions:  SessionConfig{IdleMinutes: 30, StaleSubagentHr: 1},
		Cron:      CronConfig{MaxWorkers: 4},
		ChatEngine: ChatEngineConfig{
			MaxToolIterations: 10,
			Model:             "default",
			GatewayURL:        "http://localhost:4000/v1/chat/completions",
		},
		Artifacts: ArtifactsConfig{RootPath: "./data/artifacts"},
	}
}

// TypeCeilings converts the loaded map into agentpool.TypeCeilings, falling
// back to the package defaults for any type not named in configuration.
func (c *Config) TypeCeilings() agentpool.TypeCeilings {
	out := agentpool.DefaultTypeCeilings()
	for k, v := range c.AgentPool.TypeCeilings {
		out[models.AgentType(k)] = v
	}
	return out
}

// Load reads path, expands ${VAR} references against the process
// environment, and parses the result as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errkind.New(errkind.Fatal, "config.Load", err)
	}
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, errkind.New(errkind.Fatal, "config.Load", err)
	}
	return cfg, nil
}

// Bootstrap writes a starter configuration file to path with a freshly
// generated JWT signing secret, for first-run setup.
func Bootstrap(path string) error {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return errkind.New(errkind.Fatal, "config.Bootstrap", err)
	}

	cfg := Default()
	cfg.Auth = AuthConfig{SigningKey: hex.EncodeToString(secret), TokenTTLMinutes: 60}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return errkind.New(errkind.Fatal, "config.Bootstrap", err)
	}
	header := fmt.Sprintf("# generated %s\n", time.Now().UTC().Format(time.RFC3339))
	return errkind.New(errkind.Fatal, "config.Bootstrap", os.WriteFile(path, append([]byte(header), out...), 0o600))
}
