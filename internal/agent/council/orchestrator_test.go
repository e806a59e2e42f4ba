package council

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inquest-labs/inquest/internal/agent/classifier"
	"github.com/inquest-labs/inquest/internal/agent/events"
	"github.com/inquest-labs/inquest/internal/agent/investigation"
	"github.com/inquest-labs/inquest/internal/agent/provider"
	"github.com/inquest-labs/inquest/internal/agent/tools"
)

// blockingProvider never answers until the context is cancelled.
type blockingProvider struct {
	calls atomic.Int32
}

func (p *blockingProvider) Chat(ctx context.Context, systemPrompt string, messages []provider.Message, defs []provider.ToolDefinition) (*provider.Response, error) {
	p.calls.Add(1)
	<-ctx.Done()
	return nil, ctx.Err()
}

func (p *blockingProvider) Complete(ctx context.Context, prompt string, schema map[string]interface{}, deadline time.Duration) (json.RawMessage, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (p *blockingProvider) Name() string  { return "blocking" }
func (p *blockingProvider) Model() string { return "blocking" }

func twoPanelConfig() OrchestratorConfig {
	return OrchestratorConfig{
		PanelTimeout:    time.Minute,
		MaxDebateRounds: 2,
		StandardPanels: []PanelSpec{
			{Name: "logs", Tools: []string{"query_logs"}},
			{Name: "trace", Tools: []string{"search_traces"}},
		},
	}
}

func TestEveryDispatchedPanelYieldsAResult(t *testing.T) {
	p := &provider.MockProvider{
		ChatResponses: []*provider.Response{
			submitFindingResponse("bad deploy", "deploy correlates with errors", 0.8),
			submitFindingResponse("bad deploy", "trace latency jumped at deploy time", 0.85),
		},
	}
	w := NewWorker(p, tools.NewMockRegistry(), newBreakerSet(), nil, WorkerConfig{})
	o := NewOrchestrator(w, nil, twoPanelConfig(), nil, nil)

	state := investigation.NewState("s1")
	emitter := events.NewEmitter(32)
	result, err := o.Investigate(context.Background(), "why is checkout failing?", classifier.RigorStandard, state, emitter)
	require.NoError(t, err)
	require.NotNil(t, result)

	// Two panels dispatched, two findings folded in, none lost
	assert.Len(t, state.Findings, 2)
	assert.Equal(t, investigation.PhaseSynthesis, state.Phase)
	require.Len(t, result.Causes, 1)
	assert.ElementsMatch(t, []string{"logs", "trace"}, result.Causes[0].Panels)
}

func TestFastRigorDispatchesSinglePanel(t *testing.T) {
	p := &provider.MockProvider{
		ChatResponses: []*provider.Response{
			submitFindingResponse("", "nothing anomalous in the window", 0.6),
		},
	}
	w := NewWorker(p, tools.NewMockRegistry(), newBreakerSet(), nil, WorkerConfig{})
	o := NewOrchestrator(w, nil, twoPanelConfig(), nil, nil)

	state := investigation.NewState("s1")
	result, err := o.Investigate(context.Background(), "quick check on checkout", classifier.RigorFast, state, nil)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, 1, p.ChatCalls, "fast mode dispatches exactly one panel")
	require.Len(t, state.Findings, 1)
	assert.Equal(t, classifier.TriagePanel, state.Findings[0].Panel)
}

func TestPanelSetSwapTakesEffectNextInvestigation(t *testing.T) {
	p := &provider.MockProvider{
		ChatResponses: []*provider.Response{
			submitFindingResponse("bad deploy", "deploy correlates with error onset", 0.7),
		},
	}
	w := NewWorker(p, tools.NewMockRegistry(), newBreakerSet(), nil, WorkerConfig{})
	o := NewOrchestrator(w, nil, twoPanelConfig(), nil, nil)

	// A config reload replaces the two-panel table with a single panel
	o.SetPanelSets([]PanelSpec{{Name: "change", Tools: []string{"recent_changes"}}}, PanelSpec{})

	state := investigation.NewState("s1")
	result, err := o.Investigate(context.Background(), "why is checkout failing?", classifier.RigorStandard, state, nil)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, 1, p.ChatCalls, "only the swapped-in panel is dispatched")
	require.Len(t, state.Findings, 1)
	assert.Equal(t, "change", state.Findings[0].Panel)
}

func TestTimedOutPanelIsFoldedInAsTimeout(t *testing.T) {
	cfg := twoPanelConfig()
	cfg.PanelTimeout = 50 * time.Millisecond

	p := &blockingProvider{}
	w := NewWorker(p, tools.NewMockRegistry(), newBreakerSet(), nil, WorkerConfig{})
	o := NewOrchestrator(w, nil, cfg, nil, nil)

	state := investigation.NewState("s1")
	emitter := events.NewEmitter(32)
	result, err := o.Investigate(context.Background(), "why is checkout failing?", classifier.RigorStandard, state, emitter)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Partial)
	assert.Empty(t, result.Causes)
	// Unfinished panels are recorded as open questions, not dropped
	assert.NotEmpty(t, state.OpenQuestions)
}

func TestDebateRoundsAreBounded(t *testing.T) {
	// Scripted so every round produces the same unresolved two-way conflict:
	// equal confidence, no tool evidence, different causes. The critic never
	// reports resolution, so the loop must stop at MaxDebateRounds.
	var responses []*provider.Response
	for round := 0; round < 3; round++ {
		responses = append(responses,
			submitFindingResponse("connection pool exhausted", "pool saturation in logs", 0.6),
			submitFindingResponse("bad payments deploy", "latency shifted at deploy", 0.65),
		)
	}
	p := &provider.MockProvider{ChatResponses: responses}
	w := NewWorker(p, tools.NewMockRegistry(), newBreakerSet(), nil, WorkerConfig{})
	o := NewOrchestrator(w, nil, twoPanelConfig(), nil, nil)

	state := investigation.NewState("s1")
	result, err := o.Investigate(context.Background(), "sev1 checkout outage", classifier.RigorDebate, state, nil)
	require.NoError(t, err)
	require.NotNil(t, result)

	// Initial round plus at most MaxDebateRounds debate rounds
	assert.Equal(t, 3, result.Rounds)
	assert.Equal(t, 6, p.ChatCalls)
	assert.NotEmpty(t, result.Conflicts, "unresolved conflict is surfaced, not silently picked")
	assert.Len(t, state.Findings, 6, "every round's findings are appended with provenance")
}

func TestDebateStopsWhenCriticIsSatisfied(t *testing.T) {
	// A single corroborated cause: the critic reports resolution immediately
	p := &provider.MockProvider{
		ChatResponses: []*provider.Response{
			submitFindingResponse("bad deploy", "errors started at deploy", 0.8),
			submitFindingResponse("bad deploy", "latency shifted at deploy", 0.85),
		},
	}
	w := NewWorker(p, tools.NewMockRegistry(), newBreakerSet(), nil, WorkerConfig{})
	o := NewOrchestrator(w, nil, twoPanelConfig(), nil, nil)

	state := investigation.NewState("s1")
	result, err := o.Investigate(context.Background(), "sev1 checkout outage", classifier.RigorDebate, state, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Rounds, "no debate rounds when nothing is contested")
	assert.Equal(t, 2, p.ChatCalls)
}

func TestInvestigationDeadlineYieldsPartialResult(t *testing.T) {
	cfg := twoPanelConfig()
	cfg.PanelTimeout = time.Minute

	p := &blockingProvider{}
	w := NewWorker(p, tools.NewMockRegistry(), newBreakerSet(), nil, WorkerConfig{})
	o := NewOrchestrator(w, nil, cfg, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	state := investigation.NewState("s1")
	result, err := o.Investigate(ctx, "why is checkout failing?", classifier.RigorStandard, state, nil)

	require.Error(t, err)
	require.NotNil(t, result, "deadline breach still returns a best-effort partial result")
	assert.True(t, result.Partial)
}

func TestEmitterReceivesPanelProgress(t *testing.T) {
	p := &provider.MockProvider{
		ChatResponses: []*provider.Response{
			submitFindingResponse("bad deploy", "x", 0.8),
			submitFindingResponse("bad deploy", "y", 0.8),
		},
	}
	w := NewWorker(p, tools.NewMockRegistry(), newBreakerSet(), nil, WorkerConfig{})
	o := NewOrchestrator(w, nil, twoPanelConfig(), nil, nil)

	state := investigation.NewState("s1")
	emitter := events.NewEmitter(32)
	_, err := o.Investigate(context.Background(), "why is checkout failing?", classifier.RigorStandard, state, emitter)
	require.NoError(t, err)
	emitter.Final(nil, nil)

	var started, finished int
	for ev := range emitter.Events() {
		switch ev.Type {
		case events.TypePanelStarted:
			started++
		case events.TypePanelFinished:
			finished++
		}
	}
	assert.Equal(t, 2, started)
	assert.Equal(t, 2, finished)
}
