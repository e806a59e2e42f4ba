package council

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inquest-labs/inquest/internal/agent/audit"
	"github.com/inquest-labs/inquest/internal/agent/breaker"
	"github.com/inquest-labs/inquest/internal/agent/investigation"
	"github.com/inquest-labs/inquest/internal/agent/provider"
	"github.com/inquest-labs/inquest/internal/agent/tools"
)

func submitFindingResponse(cause, summary string, confidence float64) *provider.Response {
	input, _ := json.Marshal(map[string]interface{}{
		"cause":      cause,
		"summary":    summary,
		"confidence": confidence,
	})
	return &provider.Response{
		StopReason: provider.StopReasonToolUse,
		ToolCalls: []provider.ToolUseBlock{
			{ID: "tu_1", Name: "submit_finding", Input: input},
		},
	}
}

func toolCallResponse(id, name string, args map[string]interface{}) *provider.Response {
	input, _ := json.Marshal(args)
	return &provider.Response{
		StopReason: provider.StopReasonToolUse,
		ToolCalls: []provider.ToolUseBlock{
			{ID: id, Name: name, Input: input},
		},
	}
}

func testTask(panel string, toolNames ...string) investigation.PanelTask {
	return investigation.PanelTask{
		ID:       "task-1",
		Panel:    panel,
		Tools:    toolNames,
		Question: "why is checkout failing?",
		Round:    1,
		Deadline: time.Now().Add(time.Minute),
	}
}

func newBreakerSet() *breaker.Set {
	return breaker.NewSet(breaker.Config{FailureThreshold: 5, CoolDown: time.Minute}, nil, nil)
}

func TestWorkerSuccessOnSubmittedFinding(t *testing.T) {
	p := &provider.MockProvider{
		ChatResponses: []*provider.Response{
			toolCallResponse("tu_0", "error_rate", map[string]interface{}{
				"service": "checkout", "start_time": 1, "end_time": 2,
			}),
			submitFindingResponse("elevated error rate", "checkout is degraded", 0.8),
		},
	}
	w := NewWorker(p, tools.NewMockRegistry(), newBreakerSet(), nil, WorkerConfig{})

	result := w.Run(context.Background(), testTask("metrics", "error_rate"))

	assert.Equal(t, investigation.PanelSuccess, result.Status)
	require.NotNil(t, result.Finding)
	assert.Equal(t, "elevated error rate", result.Finding.Cause)
	assert.Equal(t, 0.8, result.Confidence)
	require.Len(t, result.ToolCalls, 1)
	assert.True(t, result.ToolCalls[0].Success)
	require.Len(t, result.Finding.Evidence, 1, "evidence carries the tool calls made")
}

func TestWorkerBudgetExhaustionYieldsPartialFailure(t *testing.T) {
	// The model keeps calling tools and never submits a finding
	var responses []*provider.Response
	for i := 0; i < 5; i++ {
		responses = append(responses, toolCallResponse("tu", "error_rate", map[string]interface{}{
			"service": "checkout", "start_time": 1, "end_time": 2,
		}))
	}
	p := &provider.MockProvider{ChatResponses: responses}
	w := NewWorker(p, tools.NewMockRegistry(), newBreakerSet(), nil, WorkerConfig{MaxModelCalls: 3})

	result := w.Run(context.Background(), testTask("metrics", "error_rate"))

	assert.Equal(t, investigation.PanelPartialFailure, result.Status)
	assert.Contains(t, result.FailureReason, "budget")
	assert.Equal(t, 3, p.ChatCalls)
}

func TestWorkerTrippedPrimaryDependencyYieldsFailure(t *testing.T) {
	breakers := newBreakerSet()
	// Trip the metrics backend before the panel runs
	for i := 0; i < 5; i++ {
		breakers.For(tools.DepMetrics).RecordFailure()
	}
	require.Equal(t, breaker.Open, breakers.For(tools.DepMetrics).State())

	p := &provider.MockProvider{
		ChatResponses: []*provider.Response{
			toolCallResponse("tu_0", "error_rate", map[string]interface{}{
				"service": "checkout", "start_time": 1, "end_time": 2,
			}),
		},
	}
	w := NewWorker(p, tools.NewMockRegistry(), breakers, nil, WorkerConfig{})

	start := time.Now()
	result := w.Run(context.Background(), testTask("metrics", "error_rate"))

	assert.Equal(t, investigation.PanelFailure, result.Status)
	assert.Contains(t, result.FailureReason, tools.DepMetrics, "failure names the unavailable dependency")
	assert.Less(t, time.Since(start), time.Second, "open breaker fails fast, no retry delay")
}

func TestWorkerTextOnlyAnswerIsPartial(t *testing.T) {
	p := &provider.MockProvider{
		ChatResponses: []*provider.Response{
			{Content: "probably a bad deploy", StopReason: provider.StopReasonEndTurn},
		},
	}
	w := NewWorker(p, tools.NewMockRegistry(), newBreakerSet(), nil, WorkerConfig{})

	result := w.Run(context.Background(), testTask("triage", "error_rate"))

	assert.Equal(t, investigation.PanelPartialFailure, result.Status)
	require.NotNil(t, result.Finding)
	assert.Equal(t, "probably a bad deploy", result.Finding.Summary)
}

func TestWorkerDeadlineYieldsTimeout(t *testing.T) {
	p := &provider.MockProvider{}
	w := NewWorker(p, tools.NewMockRegistry(), newBreakerSet(), nil, WorkerConfig{})

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	result := w.Run(ctx, testTask("metrics", "error_rate"))
	assert.Equal(t, investigation.PanelTimeout, result.Status)
}

func TestWorkerMalformedFindingIsRetriedViaToolError(t *testing.T) {
	bad, _ := json.Marshal(map[string]interface{}{"confidence": 3.5})
	p := &provider.MockProvider{
		ChatResponses: []*provider.Response{
			{
				StopReason: provider.StopReasonToolUse,
				ToolCalls:  []provider.ToolUseBlock{{ID: "tu_1", Name: "submit_finding", Input: bad}},
			},
			submitFindingResponse("oom kill", "pods restarted under memory pressure", 0.7),
		},
	}
	w := NewWorker(p, tools.NewMockRegistry(), newBreakerSet(), nil, WorkerConfig{})

	result := w.Run(context.Background(), testTask("logs", "query_logs"))
	assert.Equal(t, investigation.PanelSuccess, result.Status)
	assert.Equal(t, 2, p.ChatCalls)
}

func TestWorkerBadToolInputDoesNotTripBreaker(t *testing.T) {
	registry := tools.NewRegistry(tools.Dependencies{})
	registry.Register(tools.NewErrorRateTool(nil))

	// The model repeats a call with a missing required field, then gives up
	var responses []*provider.Response
	for i := 0; i < 4; i++ {
		responses = append(responses, toolCallResponse("tu", "error_rate", map[string]interface{}{
			"start_time": 1, "end_time": 2,
		}))
	}
	responses = append(responses, submitFindingResponse("", "could not measure the error rate", 0.2))

	breakers := breaker.NewSet(breaker.Config{FailureThreshold: 3, CoolDown: time.Minute}, nil, nil)
	p := &provider.MockProvider{ChatResponses: responses}
	w := NewWorker(p, registry, breakers, nil, WorkerConfig{})

	result := w.Run(context.Background(), testTask("metrics", "error_rate"))

	assert.Equal(t, investigation.PanelSuccess, result.Status)
	assert.Equal(t, breaker.Closed, breakers.For(tools.DepMetrics).State(),
		"malformed arguments are a model mistake, not a backend failure")
	require.Len(t, result.ToolCalls, 4)
	for _, rec := range result.ToolCalls {
		assert.False(t, rec.Success)
	}
}

func TestWorkerCompactionPassIsAudited(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	auditLog, err := audit.NewLogger(path, "s1")
	require.NoError(t, err)

	p := &provider.MockProvider{
		ChatResponses: []*provider.Response{
			toolCallResponse("tu_0", "query_logs", map[string]interface{}{
				"start_time": 1, "end_time": 2,
			}),
			submitFindingResponse("gateway timeout", "timeouts dominate the logs", 0.7),
		},
	}
	// A budget smaller than one tool result forces a compaction pass
	w := NewWorker(p, tools.NewMockRegistry(), newBreakerSet(), nil, WorkerConfig{
		TokenBudget: 40,
		Audit:       auditLog,
	})

	result := w.Run(context.Background(), testTask("logs", "query_logs"))
	require.Equal(t, investigation.PanelSuccess, result.Status)
	require.NoError(t, auditLog.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"compaction"`)
	assert.Contains(t, string(data), `"panel":"logs"`)
}
