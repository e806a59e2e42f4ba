package council

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inquest-labs/inquest/internal/agent/classifier"
	"github.com/inquest-labs/inquest/internal/agent/investigation"
	"github.com/inquest-labs/inquest/internal/agent/provider"
	"github.com/inquest-labs/inquest/internal/agent/tools"
)

func newTestRouter(p *provider.MockProvider) (*Router, *tools.Registry) {
	registry := tools.NewMockRegistry()
	breakers := newBreakerSet()
	worker := NewWorker(p, registry, breakers, nil, WorkerConfig{})
	orch := NewOrchestrator(worker, nil, twoPanelConfig(), nil, nil)
	return NewRouter(registry, breakers, worker, orch), registry
}

func TestExtractService(t *testing.T) {
	cases := map[string]string{
		"What is the error rate for service checkout?": "checkout",
		"error rate for checkout":                      "checkout",
		"is payments-v2 healthy":                       "",
		"check service payments.api please":            "payments.api",
	}
	for query, want := range cases {
		assert.Equal(t, want, extractService(query), "query: %s", query)
	}
}

func TestRouteDirectAnswersWithSingleToolCall(t *testing.T) {
	p := &provider.MockProvider{}
	r, _ := newTestRouter(p)

	state := investigation.NewState("s1")
	verdict := classifier.Verdict{
		Mode:  classifier.ModeDirect,
		Panel: "metrics",
		Tool:  "error_rate",
	}

	routed, err := r.Route(context.Background(), verdict, "What is the error rate for service checkout?", state, nil)
	require.NoError(t, err)
	require.NotNil(t, routed.Result)

	assert.Equal(t, classifier.ModeDirect, routed.Mode)
	assert.Equal(t, 0, p.ChatCalls, "direct mode makes no model calls")
	assert.Contains(t, routed.Result.Narrative, "error rate")
	require.Len(t, state.Findings, 1)
	assert.Equal(t, "metrics", state.Findings[0].Panel)
	require.Len(t, state.Findings[0].Evidence, 1)
	assert.Equal(t, state.Revision, routed.Revision)
	assert.Greater(t, routed.Revision, uint64(0))
}

func TestRouteDirectFailsOnOpenBreaker(t *testing.T) {
	p := &provider.MockProvider{}
	r, _ := newTestRouter(p)
	for i := 0; i < 5; i++ {
		r.breakers.For(tools.DepMetrics).RecordFailure()
	}

	state := investigation.NewState("s1")
	verdict := classifier.Verdict{Mode: classifier.ModeDirect, Tool: "error_rate"}

	_, err := r.Route(context.Background(), verdict, "error rate for service checkout", state, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unavailable")
	assert.Empty(t, state.Findings, "no finding is recorded for a failed direct call")
}

func TestRouteDirectUnknownTool(t *testing.T) {
	r, _ := newTestRouter(&provider.MockProvider{})

	state := investigation.NewState("s1")
	verdict := classifier.Verdict{Mode: classifier.ModeDirect, Tool: "bogus"}

	_, err := r.Route(context.Background(), verdict, "whatever", state, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRouteSubAgentRunsOnePanel(t *testing.T) {
	p := &provider.MockProvider{
		ChatResponses: []*provider.Response{
			submitFindingResponse("payment gateway timeout", "gateway timeouts dominate the logs", 0.75),
		},
	}
	r, _ := newTestRouter(p)

	state := investigation.NewState("s1")
	verdict := classifier.Verdict{Mode: classifier.ModeSubAgent, Panel: "logs"}

	routed, err := r.Route(context.Background(), verdict, "show me the logs for checkout", state, nil)
	require.NoError(t, err)
	require.NotNil(t, routed.Result)

	assert.Equal(t, 1, p.ChatCalls)
	assert.Equal(t, investigation.PhaseSynthesis, state.Phase)
	require.Len(t, state.Findings, 1)
	assert.Equal(t, "logs", state.Findings[0].Panel)
	require.Len(t, routed.Result.Causes, 1)
	assert.Equal(t, "payment gateway timeout", routed.Result.Causes[0].Cause)
}

func TestRouteSubAgentUnknownPanelFallsBackToTriage(t *testing.T) {
	p := &provider.MockProvider{
		ChatResponses: []*provider.Response{
			submitFindingResponse("", "nothing conclusive", 0.5),
		},
	}
	r, _ := newTestRouter(p)

	state := investigation.NewState("s1")
	verdict := classifier.Verdict{Mode: classifier.ModeSubAgent, Panel: "does-not-exist"}

	_, err := r.Route(context.Background(), verdict, "something odd", state, nil)
	require.NoError(t, err)
	require.Len(t, state.Findings, 1)
	assert.Equal(t, classifier.TriagePanel, state.Findings[0].Panel)
}

func TestRouteUnknownModeFails(t *testing.T) {
	r, _ := newTestRouter(&provider.MockProvider{})

	state := investigation.NewState("s1")
	_, err := r.Route(context.Background(), classifier.Verdict{Mode: "teleport"}, "q", state, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
