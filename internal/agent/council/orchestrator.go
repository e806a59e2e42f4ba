package council

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/inquest-labs/inquest/internal/agent/audit"
	"github.com/inquest-labs/inquest/internal/agent/classifier"
	"github.com/inquest-labs/inquest/internal/agent/events"
	"github.com/inquest-labs/inquest/internal/agent/investigation"
	"github.com/inquest-labs/inquest/internal/agent/synthesis"
)

// phase is the orchestrator's internal state machine position.
type phase string

const (
	phaseDispatching   phase = "dispatching"
	phaseAwaitingPanel phase = "awaiting_panels"
	phaseDebating      phase = "debating"
	phaseSynthesizing  phase = "synthesizing"
	phaseDone          phase = "done"
)

// timeoutGrace is how long after a panel's deadline the orchestrator waits
// for a cooperatively cancelled worker to hand back a partial result before
// synthesizing a timeout result for it.
const timeoutGrace = 2 * time.Second

// PanelSpec binds a panel name to its tool subset. New panels are added by
// extending the configuration table, not by new types.
type PanelSpec struct {
	Name  string
	Tools []string
}

// OrchestratorConfig bounds a council investigation.
type OrchestratorConfig struct {
	// PanelTimeout bounds each panel execution. Defaults to 60s.
	PanelTimeout time.Duration

	// MaxDebateRounds bounds the critique loop. Defaults to 2.
	MaxDebateRounds int

	// StandardPanels is the panel set for standard rigor.
	StandardPanels []PanelSpec

	// FastPanel is the single panel dispatched for fast rigor.
	FastPanel PanelSpec
}

func (c OrchestratorConfig) withDefaults() OrchestratorConfig {
	if c.PanelTimeout <= 0 {
		c.PanelTimeout = 60 * time.Second
	}
	if c.MaxDebateRounds <= 0 {
		c.MaxDebateRounds = 2
	}
	if len(c.StandardPanels) == 0 {
		c.StandardPanels = DefaultPanels()
	}
	if c.FastPanel.Name == "" {
		c.FastPanel = PanelSpec{
			Name:  classifier.TriagePanel,
			Tools: []string{"error_rate", "list_alerts", "recent_changes"},
		}
	}
	return c
}

// DefaultPanels returns the standard five-panel council.
func DefaultPanels() []PanelSpec {
	return []PanelSpec{
		{Name: "trace", Tools: []string{"search_traces"}},
		{Name: "logs", Tools: []string{"query_logs"}},
		{Name: "metrics", Tools: []string{"query_metrics", "error_rate"}},
		{Name: "alerts", Tools: []string{"list_alerts"}},
		{Name: "change", Tools: []string{"recent_changes"}},
	}
}

// Orchestrator fans a query out to multiple panel workers, optionally runs a
// bounded debate loop, and synthesizes the results. It is the only writer to
// the investigation state; panel results are folded in only after a round
// closes, so no result from round N+1 is considered before round N is done.
type Orchestrator struct {
	worker  *Worker
	logger  *slog.Logger
	config  OrchestratorConfig
	audit   *audit.Logger
	results *prometheus.CounterVec

	// mu guards the panel tables, which can be hot-swapped by a config
	// reload between investigations.
	mu sync.RWMutex
}

// NewOrchestrator creates a council orchestrator. auditLog and reg may be nil.
func NewOrchestrator(worker *Worker, logger *slog.Logger, cfg OrchestratorConfig, auditLog *audit.Logger, reg prometheus.Registerer) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		worker: worker,
		logger: logger,
		config: cfg.withDefaults(),
		audit:  auditLog,
	}
	if reg != nil {
		o.results = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inquest_panel_results_total",
			Help: "Panel results by panel name and terminal status.",
		}, []string{"panel", "status"})
		reg.MustRegister(o.results)
	}
	return o
}

// SetPanelSets replaces the panel tables. The swap takes effect on the next
// investigation; rounds already dispatched keep their original tasks.
func (o *Orchestrator) SetPanelSets(standard []PanelSpec, fast PanelSpec) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(standard) > 0 {
		o.config.StandardPanels = standard
	}
	if fast.Name != "" {
		o.config.FastPanel = fast
	}
}

// panelSets returns the current panel tables.
func (o *Orchestrator) panelSets() ([]PanelSpec, PanelSpec) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.config.StandardPanels, o.config.FastPanel
}

// Investigate runs a full council investigation for one query. The emitter
// receives per-panel progress events; the final event is emitted by the
// caller. Always returns a SynthesisResult; a deadline breach mid-round
// yields a partial one.
func (o *Orchestrator) Investigate(ctx context.Context, query string, rigor classifier.Rigor, state *investigation.State, emitter *events.Emitter) (*investigation.SynthesisResult, error) {
	current := phaseDispatching
	setPhase := func(next phase) {
		o.logger.Debug("orchestrator phase transition",
			"from", string(current), "to", string(next))
		current = next
	}
	round := 1
	var allResults []investigation.PanelResult

	specs, fast := o.panelSets()
	if rigor == classifier.RigorFast {
		specs = []PanelSpec{fast}
	}

	if err := state.AdvancePhase(investigation.PhaseTriage); err != nil {
		return nil, err
	}

	tasks := o.buildTasks(specs, query, round)
	setPhase(phaseAwaitingPanel)
	roundResults := o.runRound(ctx, tasks, emitter)
	o.foldRound(state, roundResults)
	allResults = append(allResults, roundResults...)

	if ctx.Err() != nil {
		// Deadline breached mid-investigation: best-effort partial result
		result := synthesis.Synthesize(allResults, state, round)
		result.Partial = true
		return result, ctx.Err()
	}

	setPhase(phaseSynthesizing)
	draft := synthesis.Synthesize(allResults, state, round)

	if rigor == classifier.RigorDebate {
		setPhase(phaseDebating)
		if err := state.AdvancePhase(investigation.PhaseDeepDive); err != nil {
			return nil, err
		}

		for debate := 0; debate < o.config.MaxDebateRounds; debate++ {
			critique := synthesis.Criticize(draft)
			if critique == nil {
				break
			}
			round++
			o.logger.Info("debate round dispatched",
				"round", round, "claim", critique.Claim)
			state.AddOpenQuestion(critique.Question)

			debateSpecs := o.specsFor(critique.Panels, specs)
			debateTasks := o.buildTasks(debateSpecs, critique.Question, round)
			roundResults = o.runRound(ctx, debateTasks, emitter)
			o.foldRound(state, roundResults)
			allResults = append(allResults, roundResults...)

			if ctx.Err() != nil {
				break
			}
			draft = synthesis.Synthesize(allResults, state, round)
			if len(draft.Conflicts) == 0 {
				state.ResolveOpenQuestion(critique.Question)
			}
		}
		draft = synthesis.Synthesize(allResults, state, round)
	}

	if err := state.AdvancePhase(investigation.PhaseSynthesis); err != nil {
		return nil, err
	}
	setPhase(phaseDone)

	if o.audit != nil {
		_ = o.audit.LogSynthesisComplete(len(draft.Causes), len(draft.Conflicts), round, draft.Partial)
	}
	if ctx.Err() != nil {
		draft.Partial = true
		return draft, ctx.Err()
	}
	return draft, nil
}

// buildTasks creates one PanelTask per spec, all sharing the round number.
func (o *Orchestrator) buildTasks(specs []PanelSpec, question string, round int) []investigation.PanelTask {
	deadline := time.Now().Add(o.config.PanelTimeout)
	tasks := make([]investigation.PanelTask, 0, len(specs))
	for _, spec := range specs {
		tasks = append(tasks, investigation.PanelTask{
			ID:       uuid.NewString(),
			Panel:    spec.Name,
			Tools:    spec.Tools,
			Question: question,
			Round:    round,
			Deadline: deadline,
		})
	}
	return tasks
}

// runRound executes all tasks concurrently and blocks until every task has a
// terminal result or its per-panel timeout fires. The result count always
// equals the task count; no task silently disappears.
func (o *Orchestrator) runRound(ctx context.Context, tasks []investigation.PanelTask, emitter *events.Emitter) []investigation.PanelResult {
	results := make([]investigation.PanelResult, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	for i := range tasks {
		g.Go(func() error {
			task := tasks[i]
			if emitter != nil {
				emitter.PanelStarted(task.Panel)
			}
			if o.audit != nil {
				_ = o.audit.LogPanelDispatched(task.Panel, task.ID, task.Round)
			}

			results[i] = *o.runPanel(gctx, task)

			if emitter != nil {
				emitter.PanelFinished(task.Panel, results[i].Status)
			}
			if o.audit != nil {
				_ = o.audit.LogPanelCompleted(task.Panel, task.ID,
					string(results[i].Status), results[i].Confidence,
					results[i].Duration.Milliseconds())
			}
			if o.results != nil {
				o.results.WithLabelValues(task.Panel, string(results[i].Status)).Inc()
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// runPanel runs one worker under the per-panel timeout. Cancellation is
// advisory: after the deadline the worker gets a short grace period to hand
// back whatever partial result it assembled before a timeout result is
// synthesized for it.
func (o *Orchestrator) runPanel(ctx context.Context, task investigation.PanelTask) *investigation.PanelResult {
	pctx, cancel := context.WithDeadline(ctx, task.Deadline)
	defer cancel()

	done := make(chan *investigation.PanelResult, 1)
	start := time.Now()
	go func() {
		done <- o.worker.Run(pctx, task)
	}()

	select {
	case result := <-done:
		return result
	case <-pctx.Done():
	}

	grace := time.NewTimer(timeoutGrace)
	defer grace.Stop()
	select {
	case result := <-done:
		result.Status = investigation.PanelTimeout
		if result.FailureReason == "" {
			result.FailureReason = "panel deadline elapsed"
		}
		return result
	case <-grace.C:
		o.logger.Warn("panel did not stop at deadline", "panel", task.Panel)
		return &investigation.PanelResult{
			TaskID:        task.ID,
			Panel:         task.Panel,
			Round:         task.Round,
			Status:        investigation.PanelTimeout,
			FailureReason: "panel deadline elapsed",
			Duration:      time.Since(start),
		}
	}
}

// foldRound appends the round's usable findings to the state. The
// orchestrator is the sole state writer; this runs after the round closed,
// so concurrent panels never interleave partial updates.
func (o *Orchestrator) foldRound(state *investigation.State, results []investigation.PanelResult) {
	for i := range results {
		r := &results[i]
		if r.Usable() {
			state.AppendFinding(*r.Finding)
		} else if r.FailureReason != "" {
			state.AddOpenQuestion(fmt.Sprintf("%s panel incomplete: %s", r.Panel, r.FailureReason))
		}
	}
}

// specsFor restricts the round's panel set to the named panels, falling back
// to the full set when none match.
func (o *Orchestrator) specsFor(names []string, all []PanelSpec) []PanelSpec {
	if len(names) == 0 {
		return all
	}
	byName := make(map[string]PanelSpec, len(all))
	for _, s := range all {
		byName[s.Name] = s
	}
	var out []PanelSpec
	for _, name := range names {
		if s, ok := byName[name]; ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return all
	}
	return out
}
