// Package main is the CLI entry point for the Aria runtime control plane: a
// long-lived process that spawns and governs sub-agents, schedules cron
// jobs, and runs a periodic work cycle over a tool-calling chat engine.
//
// Start the server:
//
//	ariad serve --config ariad.yaml
//
// Check runtime status:
//
//	ariad status --config ariad.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Najia-afk/Aria-moltbot-sub003/internal/agentpool"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/artifacts"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/chatengine"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/config"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/cron"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/orchestrator"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/repository"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/sessions"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/tools"
	"github.com/Najia-afk/Aria-moltbot-sub003/internal/transport"
)

const mainAgentSystemPrompt = "You are Aria's main control-loop agent. Advance the current goal using the tools available to you, and report what you did."

var (
	version = "dev"
	commit  = "none"
)

var configPath string

func main() {
	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "ariad",
		Short:   "Runtime control plane for the Aria agent fleet",
		Version: fmt.Sprintf("%s (%s)", version, commit),
	}
	root.PersistentFlags().StringVar(&configPath, "config", "ariad.yaml", "path to the runtime configuration file")
	root.AddCommand(
		buildServeCmd(),
		buildStatusCmd(),
		buildSessionCmd(),
		buildAgentCmd(),
		buildBreakerCmd(),
		buildBootstrapCmd(),
	)
	return root
}

// runtime bundles every wired collaborator the CLI subcommands need. It is
// the composition root: every package above is constructed here and nowhere
// else, grounded on the teacher's cmd/nexus/main.go style of building
// collaborators directly in command RunE closures rather than through a DI
// framework.
type runtime struct {
	cfg          *config.Config
	store        *repository.Store
	transport    *transport.Transport
	pool         *agentpool.Pool
	sessionMgr   *sessions.Manager
	scheduler    *cron.Scheduler
	chatEngine   *chatengine.Engine
	orchestrator *orchestrator.Orchestrator
	tools        *tools.Registry
	artifacts    *artifacts.Store
	logger       *slog.Logger
}

func loadRuntime() (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		cfg = config.Default()
	}

	logLevel := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	var store *repository.Store
	switch cfg.Database.Driver {
	case "postgres":
		store, err = repository.NewPostgresStore(cfg.Database.DSN, repository.DefaultPostgresConfig())
		if err != nil {
			return nil, err
		}
	case "sqlite":
		store, err = repository.NewSQLiteStore(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
	default:
		store = repository.NewMemoryStore()
	}

	tr := transport.New(
		transport.WithLogger(logger),
		transport.WithRetryConfig(transport.RetryConfig{
			MaxAttempts: cfg.Transport.RetryMaxAttempts,
		}),
	)

	pool := agentpool.New(store.Agents, agentpool.Config{
		MaxConcurrentAgents: cfg.AgentPool.MaxConcurrentAgents,
		TypeCeilings:        cfg.TypeCeilings(),
	}, logger)

	sessionMgr := sessions.New(store.Sessions, sessions.Config{}, logger)

	artifactStore, err := artifacts.New(cfg.Artifacts.RootPath)
	if err != nil {
		return nil, err
	}

	toolRegistry := tools.New()

	gatewayTimeout := time.Duration(cfg.Transport.TimeoutSeconds) * time.Second
	providers := []chatengine.Provider{
		chatengine.NewGatewayProvider(tr, chatengine.GatewayConfig{
			Endpoint:    "llm-primary",
			URL:         cfg.ChatEngine.GatewayURL,
			BearerToken: cfg.ChatEngine.GatewayToken,
			Timeout:     gatewayTimeout,
		}),
	}
	if cfg.ChatEngine.FallbackGatewayURL != "" {
		providers = append(providers, chatengine.NewGatewayProvider(tr, chatengine.GatewayConfig{
			Endpoint:    "llm-fallback",
			URL:         cfg.ChatEngine.FallbackGatewayURL,
			BearerToken: cfg.ChatEngine.GatewayToken,
			Timeout:     gatewayTimeout,
		}))
	}

	engine := chatengine.New(providers, tr.Registry(), toolRegistry, store.Messages, chatengine.Config{
		MaxToolIterations: cfg.ChatEngine.MaxToolIterations,
	}, logger)

	workCycle := &mainAgentWorkCycle{
		engine:       engine,
		sessions:     sessionMgr,
		model:        cfg.ChatEngine.Model,
		systemPrompt: mainAgentSystemPrompt,
	}
	orch := orchestrator.New(standingGoal{now: time.Now}, workCycle, tr.Registry(), store.ActivityLog, store.Heartbeats, artifactStore, orchestrator.DefaultConfig(), logger)

	runner := &actionRunner{orch: orch, heartbeats: store.Heartbeats, now: time.Now, logger: logger}
	scheduler := cron.New(store.Jobs, store.Executions, runner, cron.Config{MaxWorkers: cfg.Cron.MaxWorkers},
		cron.WithLogger(logger), cron.WithHeartbeatSink(&storeHeartbeatSink{repo: store.Heartbeats}))

	return &runtime{
		cfg:          cfg,
		store:        store,
		transport:    tr,
		pool:         pool,
		sessionMgr:   sessionMgr,
		scheduler:    scheduler,
		chatEngine:   engine,
		orchestrator: orch,
		tools:        toolRegistry,
		artifacts:    artifactStore,
		logger:       logger,
	}, nil
}

func buildServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the control plane until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := rt.scheduler.Start(ctx); err != nil {
				return err
			}
			rt.orchestrator.Start(ctx)

			rt.logger.Info("ariad starting", "version", version)
			<-ctx.Done()
			rt.logger.Info("ariad shutting down")

			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			if err := rt.scheduler.Stop(stopCtx); err != nil {
				rt.logger.Warn("scheduler did not stop cleanly", "error", err)
			}
			rt.orchestrator.Stop()

			return rt.store.Close()
		},
	}
}

func buildStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print a summary of runtime health",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime()
			if err != nil {
				return err
			}
			stats, err := rt.sessionMgr.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("sessions: total=%d active=%d\n", stats.TotalSessions, stats.ActiveSessions)
			for _, snap := range rt.transport.Registry().Snapshots() {
				fmt.Printf("breaker %s: state=%s failures=%d\n", snap.Name, snap.State, snap.Failures)
			}
			return nil
		},
	}
}

func buildSessionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "session", Short: "Manage sessions"}
	var callerID string
	var reason string
	closeCmd := &cobra.Command{
		Use:   "close <session-id>",
		Short: "Force-close a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime()
			if err != nil {
				return err
			}
			if callerID == args[0] {
				return fmt.Errorf("refusing: cannot force-close the caller's own session")
			}
			return rt.sessionMgr.Close(cmd.Context(), args[0], reason)
		},
	}
	closeCmd.Flags().StringVar(&callerID, "caller-session", "", "the calling session id, for protection checks")
	closeCmd.Flags().StringVar(&reason, "reason", "operator_close", "recorded in metadata.end_reason")
	cmd.AddCommand(closeCmd)
	return cmd
}

func buildAgentCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "agent", Short: "Manage agents"}
	terminateCmd := &cobra.Command{
		Use:   "terminate <agent-id>",
		Short: "Disable an agent permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime()
			if err != nil {
				return err
			}
			return rt.pool.TerminateAgent(cmd.Context(), args[0])
		},
	}
	cmd.AddCommand(terminateCmd)
	return cmd
}

func buildBreakerCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "breaker", Short: "Inspect and reset circuit breakers"}
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "List circuit breaker states",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime()
			if err != nil {
				return err
			}
			for _, snap := range rt.transport.Registry().Snapshots() {
				fmt.Printf("%s\t%s\tfailures=%d\n", snap.Name, snap.State, snap.Failures)
			}
			return nil
		},
	}
	resetCmd := &cobra.Command{
		Use:   "reset <endpoint>",
		Short: "Force a circuit breaker closed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime()
			if err != nil {
				return err
			}
			rt.transport.CircuitBreaker(args[0]).Reset()
			return nil
		},
	}
	cmd.AddCommand(statusCmd, resetCmd)
	return cmd
}

func buildBootstrapCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Write a starter configuration file with a generated auth secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Bootstrap(out)
		},
	}
	cmd.Flags().StringVar(&out, "out", "ariad.yaml", "path to write the generated configuration")
	return cmd
}
