package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// MockTool is a tool that returns canned responses for testing.
type MockTool struct {
	name        string
	description string
	dependency  string
	schema      map[string]interface{}
	response    *Result
	delay       time.Duration
}

func (t *MockTool) Name() string                        { return t.name }
func (t *MockTool) Description() string                 { return t.description }
func (t *MockTool) Dependency() string                  { return t.dependency }
func (t *MockTool) InputSchema() map[string]interface{} { return t.schema }

func (t *MockTool) Execute(ctx context.Context, input json.RawMessage) (*Result, error) {
	// Simulate execution delay
	if t.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(t.delay):
		}
	}

	if t.response == nil {
		return &Result{
			Success: true,
			Summary: fmt.Sprintf("Mock response for %s", t.name),
			Data:    map[string]interface{}{"mock": true},
		}, nil
	}

	return &Result{
		Success:         t.response.Success,
		Data:            t.response.Data,
		Error:           t.response.Error,
		Summary:         t.response.Summary,
		ExecutionTimeMs: t.delay.Milliseconds(),
	}, nil
}

// NewMockTool creates a mock tool with a canned response. Intended for tests
// and for running the agent loop without a telemetry backend.
func NewMockTool(name, dependency string, response *Result, delay time.Duration) *MockTool {
	return &MockTool{
		name:        name,
		description: fmt.Sprintf("Mock %s tool", name),
		dependency:  dependency,
		schema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
		response: response,
		delay:    delay,
	}
}

// NewMockRegistry creates a tool registry with mock tools that return canned
// responses. This is used for demos and tests without a real telemetry API.
func NewMockRegistry() *Registry {
	r := &Registry{
		tools:  make(map[string]Tool),
		logger: slog.Default(),
	}

	r.register(&MockTool{
		name:        "error_rate",
		description: "Get the error rate for a service over a time window",
		dependency:  DepMetrics,
		schema: map[string]interface{}{
			"type":     "object",
			"required": []string{"service", "start_time", "end_time"},
			"properties": map[string]interface{}{
				"service":    map[string]interface{}{"type": "string"},
				"start_time": map[string]interface{}{"type": "integer"},
				"end_time":   map[string]interface{}{"type": "integer"},
			},
		},
		response: &Result{
			Success: true,
			Summary: "checkout error rate 12.40% (620 of 5000 requests)",
			Data: map[string]interface{}{
				"service":     "checkout",
				"error_rate":  0.124,
				"total_count": 5000,
				"error_count": 620,
			},
		},
		delay: 150 * time.Millisecond,
	})

	r.register(&MockTool{
		name:        "search_traces",
		description: "Search distributed traces matching filters",
		dependency:  DepTraces,
		schema: map[string]interface{}{
			"type":     "object",
			"required": []string{"start_time", "end_time"},
			"properties": map[string]interface{}{
				"service":         map[string]interface{}{"type": "string"},
				"start_time":      map[string]interface{}{"type": "integer"},
				"end_time":        map[string]interface{}{"type": "integer"},
				"min_duration_ms": map[string]interface{}{"type": "integer"},
				"errors_only":     map[string]interface{}{"type": "boolean"},
			},
		},
		response: &Result{
			Success: true,
			Summary: "Found 3 traces (42 matched)",
			Data: map[string]interface{}{
				"traces": []map[string]interface{}{
					{"trace_id": "a1b2c3", "root_span": "POST /checkout", "service": "checkout", "duration_ms": 4820, "span_count": 31, "has_error": true},
					{"trace_id": "d4e5f6", "root_span": "POST /checkout", "service": "checkout", "duration_ms": 5103, "span_count": 29, "has_error": true},
					{"trace_id": "g7h8i9", "root_span": "POST /checkout", "service": "checkout", "duration_ms": 4511, "span_count": 33, "has_error": true},
				},
				"total": 42,
			},
		},
		delay: 250 * time.Millisecond,
	})

	r.register(&MockTool{
		name:        "query_logs",
		description: "Query log entries matching filters",
		dependency:  DepLogs,
		schema: map[string]interface{}{
			"type":     "object",
			"required": []string{"start_time", "end_time"},
			"properties": map[string]interface{}{
				"service":    map[string]interface{}{"type": "string"},
				"query":      map[string]interface{}{"type": "string"},
				"severity":   map[string]interface{}{"type": "string"},
				"start_time": map[string]interface{}{"type": "integer"},
				"end_time":   map[string]interface{}{"type": "integer"},
			},
		},
		response: &Result{
			Success: true,
			Summary: "Found 2 log entries (118 matched)",
			Data: map[string]interface{}{
				"entries": []map[string]interface{}{
					{"timestamp": 1767182400, "service": "checkout", "severity": "error", "message": "payment gateway timeout after 5000ms"},
					{"timestamp": 1767182412, "service": "checkout", "severity": "error", "message": "context deadline exceeded calling payments:8443"},
				},
				"total": 118,
			},
		},
		delay: 200 * time.Millisecond,
	})

	r.register(&MockTool{
		name:        "recent_changes",
		description: "List deploys and config changes in a time window",
		dependency:  DepChanges,
		schema: map[string]interface{}{
			"type":     "object",
			"required": []string{"start_time", "end_time"},
			"properties": map[string]interface{}{
				"service":    map[string]interface{}{"type": "string"},
				"start_time": map[string]interface{}{"type": "integer"},
				"end_time":   map[string]interface{}{"type": "integer"},
			},
		},
		response: &Result{
			Success: true,
			Summary: "Found 1 changes",
			Data: map[string]interface{}{
				"changes": []map[string]interface{}{
					{"timestamp": 1767181800, "service": "payments", "kind": "deploy", "description": "payments v2.14.0 rollout", "version": "v2.14.0"},
				},
				"total": 1,
			},
		},
		delay: 100 * time.Millisecond,
	})

	return r
}
