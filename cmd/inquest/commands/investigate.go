package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/inquest-labs/inquest/internal/agent/audit"
	"github.com/inquest-labs/inquest/internal/agent/breaker"
	"github.com/inquest-labs/inquest/internal/agent/classifier"
	"github.com/inquest-labs/inquest/internal/agent/council"
	"github.com/inquest-labs/inquest/internal/agent/events"
	"github.com/inquest-labs/inquest/internal/agent/provider"
	"github.com/inquest-labs/inquest/internal/agent/runner"
	"github.com/inquest-labs/inquest/internal/agent/session"
	"github.com/inquest-labs/inquest/internal/agent/tools"
	"github.com/inquest-labs/inquest/internal/apiclient"
	"github.com/inquest-labs/inquest/internal/config"
	"github.com/inquest-labs/inquest/internal/tracing"
)

var (
	sessionFlag string
	mockFlag    bool
)

var investigateCmd = &cobra.Command{
	Use:   "investigate [query]",
	Short: "Run one investigation turn for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		logger, err := setupLogger(logLevelFlag)
		if err != nil {
			return err
		}

		cfg, err := config.Load(configPathFlag)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		tp, err := tracing.NewTracingProvider(tracing.Config{
			Enabled:   cfg.TracingEnabled,
			Endpoint:  cfg.TracingEndpoint,
			TLSCAPath: cfg.TracingTLSCAPath,
		}, logger)
		if err != nil {
			return err
		}
		defer func() { _ = tp.Shutdown(context.Background()) }()

		// Tool registry: real telemetry client or canned mocks
		var registry *tools.Registry
		if mockFlag {
			registry = tools.NewMockRegistry()
		} else {
			registry = tools.NewRegistry(tools.Dependencies{
				Telemetry: apiclient.New(cfg.TelemetryURL),
				Logger:    logger,
			})
		}

		promReg := prometheus.NewRegistry()
		breakers := breaker.NewSet(breaker.Config{
			FailureThreshold: cfg.BreakerFailureThreshold,
			CoolDown:         cfg.BreakerCoolDown,
			MaxCoolDown:      cfg.BreakerMaxCoolDown,
		}, logger, promReg)

		var llm provider.Provider
		if mockFlag {
			llm = &provider.MockProvider{}
		} else {
			llm, err = provider.NewAnthropicProvider(provider.Config{
				Model:     cfg.Model,
				MaxTokens: cfg.MaxTokens,
			})
			if err != nil {
				return err
			}
		}

		cls, err := classifier.New(llm, logger, classifier.Options{})
		if err != nil {
			return err
		}

		var auditLog *audit.Logger
		if cfg.AuditLogPath != "" {
			auditLog, err = audit.NewLogger(cfg.AuditLogPath, sessionFlag)
			if err != nil {
				return err
			}
			defer func() { _ = auditLog.Close() }()
			defer func() { _ = auditLog.LogSessionEnd() }()
			_ = auditLog.LogSessionStart(cfg.Model, cfg.TelemetryURL)
			breakers.Observe(func(dependency, from, to string) {
				_ = auditLog.LogBreakerTransition(dependency, from, to)
			})
		}

		orchCfg := council.OrchestratorConfig{
			PanelTimeout:    cfg.PanelTimeout,
			MaxDebateRounds: cfg.MaxDebateRounds,
		}

		worker := council.NewWorker(llm, registry, breakers, logger, council.WorkerConfig{
			MaxModelCalls: cfg.MaxModelCalls,
			TokenBudget:   cfg.ContextTokenBudget,
			Audit:         auditLog,
		})
		orchestrator := council.NewOrchestrator(worker, logger, orchCfg, auditLog, promReg)
		router := council.NewRouter(registry, breakers, worker, orchestrator)

		// Panel sets come from the watcher: the initial load lands before the
		// turn starts, later edits take effect between rounds
		if cfg.PanelSetsPath != "" {
			watcher, err := config.NewPanelSetsWatcher(config.PanelSetsWatcherConfig{
				FilePath: cfg.PanelSetsPath,
			}, logger, func(sets *config.PanelSetsFile) error {
				orchestrator.SetPanelSets(toPanelSpecs(sets.Standard),
					council.PanelSpec{Name: sets.Fast.Name, Tools: sets.Fast.Tools})
				return nil
			})
			if err != nil {
				return err
			}
			if err := watcher.Start(ctx); err != nil {
				return err
			}
			defer watcher.Stop()
		}

		sessionDir := cfg.SessionDir
		if sessionDir == "" {
			sessionDir, err = session.DefaultDir()
			if err != nil {
				return err
			}
		}
		store, err := session.NewFileStore(sessionDir)
		if err != nil {
			return err
		}

		run := runner.New(cls, router, store, logger, runner.Options{
			Deadline: cfg.InvestigationDeadline,
			Audit:    auditLog,
			Tracer:   tp.GetTracer("inquest"),
		})

		stream, err := run.RunTurn(ctx, sessionFlag, query)
		if err != nil {
			return err
		}

		return printStream(cmd, stream)
	},
}

func init() {
	investigateCmd.Flags().StringVar(&sessionFlag, "session", "",
		"Session ID to continue; empty starts a new session")
	investigateCmd.Flags().BoolVar(&mockFlag, "mock", false,
		"Use canned tool and model responses instead of real backends")
}

// printStream renders the turn's event stream to stdout.
func printStream(cmd *cobra.Command, stream <-chan events.Event) error {
	for ev := range stream {
		switch ev.Type {
		case events.TypeState:
			cmd.Printf("session %s (phase %s, revision %d)\n",
				ev.State.ID, ev.State.Phase, ev.State.Revision)
		case events.TypePanelStarted:
			cmd.Printf("  panel %s started\n", ev.Panel)
		case events.TypePanelFinished:
			cmd.Printf("  panel %s finished: %s\n", ev.Panel, ev.Status)
		case events.TypeFinal:
			if ev.Error != "" {
				return fmt.Errorf("investigation failed: %s", ev.Error)
			}
			if ev.Result == nil {
				cmd.Println("no result produced")
				continue
			}
			cmd.Println()
			cmd.Println(ev.Result.Narrative)
			for i, cause := range ev.Result.Causes {
				marker := ""
				if !cause.Corroborated {
					marker = " [speculative]"
				}
				cmd.Printf("%d. %s (%.2f, panels: %s, evidence: %d)%s\n",
					i+1, cause.Cause, cause.Confidence,
					strings.Join(cause.Panels, ","), cause.EvidenceCount, marker)
			}
			if ev.Result.Partial {
				cmd.Println("\n(partial result)")
			}
		}
	}
	return nil
}

func toPanelSpecs(defs []config.PanelDef) []council.PanelSpec {
	specs := make([]council.PanelSpec, 0, len(defs))
	for _, d := range defs {
		specs = append(specs, council.PanelSpec{Name: d.Name, Tools: d.Tools})
	}
	return specs
}
