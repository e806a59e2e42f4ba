package council

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/inquest-labs/inquest/internal/agent/breaker"
	"github.com/inquest-labs/inquest/internal/agent/classifier"
	"github.com/inquest-labs/inquest/internal/agent/events"
	"github.com/inquest-labs/inquest/internal/agent/investigation"
	"github.com/inquest-labs/inquest/internal/agent/synthesis"
	"github.com/inquest-labs/inquest/internal/agent/tools"
)

// RouteResult is the outcome of one routed query, with the state revision it
// produced so callers can detect stale writes.
type RouteResult struct {
	Mode     classifier.Mode
	Result   *investigation.SynthesisResult
	Revision uint64
}

// Router dispatches a classified query to exactly one execution strategy and
// returns its result unchanged. It performs no analysis of its own.
type Router struct {
	registry     *tools.Registry
	breakers     *breaker.Set
	worker       *Worker
	orchestrator *Orchestrator
	directWindow time.Duration
}

// NewRouter creates a mode router.
func NewRouter(registry *tools.Registry, breakers *breaker.Set, worker *Worker, orchestrator *Orchestrator) *Router {
	return &Router{
		registry:     registry,
		breakers:     breakers,
		worker:       worker,
		orchestrator: orchestrator,
		directWindow: time.Hour,
	}
}

// Route invokes the strategy the verdict names.
func (r *Router) Route(ctx context.Context, verdict classifier.Verdict, query string, state *investigation.State, emitter *events.Emitter) (*RouteResult, error) {
	var (
		result *investigation.SynthesisResult
		err    error
	)

	switch verdict.Mode {
	case classifier.ModeDirect:
		result, err = r.direct(ctx, verdict, query, state)
	case classifier.ModeSubAgent:
		result, err = r.subAgent(ctx, verdict, query, state, emitter)
	case classifier.ModeCouncil:
		result, err = r.orchestrator.Investigate(ctx, query, verdict.Rigor, state, emitter)
	default:
		return nil, fmt.Errorf("unknown mode %q", verdict.Mode)
	}
	if result == nil && err != nil {
		return nil, err
	}

	return &RouteResult{
		Mode:     verdict.Mode,
		Result:   result,
		Revision: state.Revision,
	}, err
}

var (
	servicePattern = regexp.MustCompile(`(?i)service\s+([a-z0-9][a-z0-9._-]*)`)
	forPattern     = regexp.MustCompile(`(?i)\bfor\s+([a-z0-9][a-z0-9._-]*)`)
)

// extractService pulls a service name out of the query. "service X" is
// preferred over the looser "for X" phrasing.
func extractService(query string) string {
	if m := servicePattern.FindStringSubmatch(query); m != nil {
		return m[1]
	}
	if m := forPattern.FindStringSubmatch(query); m != nil {
		return m[1]
	}
	return ""
}

// direct answers a narrow query with a single tool call, no panel and no
// model call. Tool arguments are derived from the query: the service name if
// one is mentioned, and a trailing one-hour window.
func (r *Router) direct(ctx context.Context, verdict classifier.Verdict, query string, state *investigation.State) (*investigation.SynthesisResult, error) {
	now := time.Now()
	args := map[string]interface{}{
		"start_time": now.Add(-r.directWindow).Unix(),
		"end_time":   now.Unix(),
	}
	if service := extractService(query); service != "" {
		args["service"] = service
	}
	input, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to build tool input: %w", err)
	}

	tool, ok := r.registry.Get(verdict.Tool)
	if !ok {
		return nil, fmt.Errorf("tool %q not found", verdict.Tool)
	}

	var toolResult *tools.Result
	invoke := func() error {
		toolResult = r.registry.Execute(ctx, verdict.Tool, input)
		if !toolResult.Success {
			if toolResult.InvalidInput {
				return fmt.Errorf("%w: %s", breaker.ErrCallerFault, toolResult.Error)
			}
			return errors.New(toolResult.Error)
		}
		return nil
	}

	dep := tool.Dependency()
	if dep != "" {
		err = r.breakers.For(dep).Do(invoke)
	} else {
		err = invoke()
	}
	if err != nil {
		return nil, fmt.Errorf("direct tool call failed: %w", err)
	}

	finding := investigation.Finding{
		Panel:      verdict.Panel,
		Round:      1,
		Summary:    toolResult.Summary,
		Confidence: 0.9,
		Evidence: []investigation.ToolCallRecord{{
			Tool:       verdict.Tool,
			Success:    true,
			Summary:    toolResult.Summary,
			DurationMs: toolResult.ExecutionTimeMs,
		}},
	}
	state.AppendFinding(finding)

	return &investigation.SynthesisResult{
		Narrative:  toolResult.Summary,
		Rounds:     1,
		ProducedAt: time.Now().UTC(),
	}, nil
}

// subAgent delegates the query to one specialist panel.
func (r *Router) subAgent(ctx context.Context, verdict classifier.Verdict, query string, state *investigation.State, emitter *events.Emitter) (*investigation.SynthesisResult, error) {
	spec := r.panelSpec(verdict.Panel)

	if err := state.AdvancePhase(investigation.PhaseTriage); err != nil {
		return nil, err
	}

	task := investigation.PanelTask{
		ID:       uuid.NewString(),
		Panel:    spec.Name,
		Tools:    spec.Tools,
		Question: query,
		Round:    1,
		Deadline: time.Now().Add(r.orchestrator.config.PanelTimeout),
	}

	if emitter != nil {
		emitter.PanelStarted(task.Panel)
	}
	result := r.orchestrator.runPanel(ctx, task)
	if emitter != nil {
		emitter.PanelFinished(task.Panel, result.Status)
	}

	r.orchestrator.foldRound(state, []investigation.PanelResult{*result})
	if err := state.AdvancePhase(investigation.PhaseSynthesis); err != nil {
		return nil, err
	}
	return synthesis.Synthesize([]investigation.PanelResult{*result}, state, 1), nil
}

// panelSpec resolves a panel name against the configured sets, falling back
// to the fast-mode triage panel for unknown names.
func (r *Router) panelSpec(name string) PanelSpec {
	standard, fast := r.orchestrator.panelSets()
	for _, s := range standard {
		if s.Name == name {
			return s
		}
	}
	return fast
}
