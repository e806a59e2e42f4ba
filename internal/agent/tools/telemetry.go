package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/inquest-labs/inquest/internal/apiclient"
)

// Backend dependency names shared with the circuit breaker layer.
const (
	DepTraces  = "traces"
	DepLogs    = "logs"
	DepMetrics = "metrics"
	DepAlerts  = "alerts"
	DepChanges = "changes"
)

// timeRangeProps is the shared schema fragment for windowed queries.
func timeRangeProps() map[string]interface{} {
	return map[string]interface{}{
		"start_time": map[string]interface{}{
			"type":        "integer",
			"description": "Unix timestamp (seconds) for the start of the time range",
		},
		"end_time": map[string]interface{}{
			"type":        "integer",
			"description": "Unix timestamp (seconds) for the end of the time range",
		},
	}
}

// ErrorRateTool returns the error rate for one service over a time window.
type ErrorRateTool struct {
	client *apiclient.Client
}

func NewErrorRateTool(client *apiclient.Client) *ErrorRateTool {
	return &ErrorRateTool{client: client}
}

func (t *ErrorRateTool) Name() string       { return "error_rate" }
func (t *ErrorRateTool) Dependency() string { return DepMetrics }

func (t *ErrorRateTool) Description() string {
	return `Get the error rate for a service over a time window.

Use this tool to:
- Answer "what is the error rate of service X" directly
- Check whether a service is currently degraded
- Compare error volume before and after a suspected change

Input:
- service: Name of the service to check
- start_time: Unix timestamp (seconds) for the start of the time range
- end_time: Unix timestamp (seconds) for the end of the time range`
}

func (t *ErrorRateTool) InputSchema() map[string]interface{} {
	props := timeRangeProps()
	props["service"] = map[string]interface{}{
		"type":        "string",
		"description": "Name of the service to check",
	}
	return map[string]interface{}{
		"type":       "object",
		"required":   []string{"service", "start_time", "end_time"},
		"properties": props,
	}
}

func (t *ErrorRateTool) Execute(ctx context.Context, input json.RawMessage) (*Result, error) {
	var in struct {
		Service   string `json:"service"`
		StartTime int64  `json:"start_time"`
		EndTime   int64  `json:"end_time"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return &Result{Success: false, InvalidInput: true, Error: fmt.Sprintf("invalid input: %v", err)}, nil
	}
	if in.Service == "" {
		return &Result{Success: false, InvalidInput: true, Error: "service is required"}, nil
	}

	resp, err := t.client.ErrorRate(ctx, in.Service, in.StartTime, in.EndTime)
	if err != nil {
		return nil, err
	}

	return &Result{
		Success: true,
		Data:    resp,
		Summary: fmt.Sprintf("%s error rate %.2f%% (%d of %d requests)", resp.Service, resp.ErrorRate*100, resp.ErrorCount, resp.TotalCount),
	}, nil
}

// SearchTracesTool searches distributed traces by service, duration, and
// error status.
type SearchTracesTool struct {
	client *apiclient.Client
}

func NewSearchTracesTool(client *apiclient.Client) *SearchTracesTool {
	return &SearchTracesTool{client: client}
}

func (t *SearchTracesTool) Name() string       { return "search_traces" }
func (t *SearchTracesTool) Dependency() string { return DepTraces }

func (t *SearchTracesTool) Description() string {
	return `Search distributed traces matching filters.

Use this tool to:
- Find slow or failed requests for a service
- Identify which downstream call dominates request latency
- Collect example traces backing a latency or error hypothesis

Input:
- service (optional): Filter to traces rooted at this service
- start_time: Unix timestamp (seconds) for the start of the time range
- end_time: Unix timestamp (seconds) for the end of the time range
- min_duration_ms (optional): Only traces at least this slow
- errors_only (optional): Only traces containing an error span
- limit (optional): Maximum traces to return (default: 20)`
}

func (t *SearchTracesTool) InputSchema() map[string]interface{} {
	props := timeRangeProps()
	props["service"] = map[string]interface{}{"type": "string"}
	props["min_duration_ms"] = map[string]interface{}{"type": "integer"}
	props["errors_only"] = map[string]interface{}{"type": "boolean"}
	props["limit"] = map[string]interface{}{"type": "integer"}
	return map[string]interface{}{
		"type":       "object",
		"required":   []string{"start_time", "end_time"},
		"properties": props,
	}
}

func (t *SearchTracesTool) Execute(ctx context.Context, input json.RawMessage) (*Result, error) {
	var in struct {
		Service       string `json:"service"`
		StartTime     int64  `json:"start_time"`
		EndTime       int64  `json:"end_time"`
		MinDurationMs int64  `json:"min_duration_ms"`
		ErrorsOnly    bool   `json:"errors_only"`
		Limit         int    `json:"limit"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return &Result{Success: false, InvalidInput: true, Error: fmt.Sprintf("invalid input: %v", err)}, nil
	}

	resp, err := t.client.SearchTraces(ctx, apiclient.TraceSearchRequest{
		Service:       in.Service,
		Start:         in.StartTime,
		End:           in.EndTime,
		MinDurationMs: in.MinDurationMs,
		ErrorsOnly:    in.ErrorsOnly,
		Limit:         in.Limit,
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Success: true,
		Data:    resp,
		Summary: fmt.Sprintf("Found %d traces (%d matched)", len(resp.Traces), resp.Total),
	}, nil
}

// QueryLogsTool queries log entries by service, severity, and text.
type QueryLogsTool struct {
	client *apiclient.Client
}

func NewQueryLogsTool(client *apiclient.Client) *QueryLogsTool {
	return &QueryLogsTool{client: client}
}

func (t *QueryLogsTool) Name() string       { return "query_logs" }
func (t *QueryLogsTool) Dependency() string { return DepLogs }

func (t *QueryLogsTool) Description() string {
	return `Query log entries matching filters.

Use this tool to:
- Find error messages emitted by a failing service
- Confirm or refute a hypothesis with log evidence
- Establish when a failure pattern first appeared

Input:
- service (optional): Filter to logs from this service
- query (optional): Full-text filter applied to messages
- severity (optional): Minimum severity (debug, info, warn, error)
- start_time: Unix timestamp (seconds) for the start of the time range
- end_time: Unix timestamp (seconds) for the end of the time range
- limit (optional): Maximum entries to return (default: 50)`
}

func (t *QueryLogsTool) InputSchema() map[string]interface{} {
	props := timeRangeProps()
	props["service"] = map[string]interface{}{"type": "string"}
	props["query"] = map[string]interface{}{"type": "string"}
	props["severity"] = map[string]interface{}{
		"type": "string",
		"enum": []string{"debug", "info", "warn", "error"},
	}
	props["limit"] = map[string]interface{}{"type": "integer"}
	return map[string]interface{}{
		"type":       "object",
		"required":   []string{"start_time", "end_time"},
		"properties": props,
	}
}

func (t *QueryLogsTool) Execute(ctx context.Context, input json.RawMessage) (*Result, error) {
	var in struct {
		Service   string `json:"service"`
		Query     string `json:"query"`
		Severity  string `json:"severity"`
		StartTime int64  `json:"start_time"`
		EndTime   int64  `json:"end_time"`
		Limit     int    `json:"limit"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return &Result{Success: false, InvalidInput: true, Error: fmt.Sprintf("invalid input: %v", err)}, nil
	}

	resp, err := t.client.QueryLogs(ctx, apiclient.LogQueryRequest{
		Service:  in.Service,
		Query:    in.Query,
		Severity: in.Severity,
		Start:    in.StartTime,
		End:      in.EndTime,
		Limit:    in.Limit,
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Success: true,
		Data:    resp,
		Summary: fmt.Sprintf("Found %d log entries (%d matched)", len(resp.Entries), resp.Total),
	}, nil
}

// QueryMetricsTool evaluates a metric expression over a time range.
type QueryMetricsTool struct {
	client *apiclient.Client
}

func NewQueryMetricsTool(client *apiclient.Client) *QueryMetricsTool {
	return &QueryMetricsTool{client: client}
}

func (t *QueryMetricsTool) Name() string       { return "query_metrics" }
func (t *QueryMetricsTool) Dependency() string { return DepMetrics }

func (t *QueryMetricsTool) Description() string {
	return `Evaluate a metric expression over a time range.

Use this tool to:
- Inspect latency, saturation, or throughput around the incident window
- Correlate a metric shift with a deploy or config change
- Quantify the blast radius of a regression

Input:
- expr: Metric expression to evaluate
- start_time: Unix timestamp (seconds) for the start of the time range
- end_time: Unix timestamp (seconds) for the end of the time range
- step_seconds (optional): Resolution step (default: 60)`
}

func (t *QueryMetricsTool) InputSchema() map[string]interface{} {
	props := timeRangeProps()
	props["expr"] = map[string]interface{}{
		"type":        "string",
		"description": "Metric expression to evaluate",
	}
	props["step_seconds"] = map[string]interface{}{"type": "integer"}
	return map[string]interface{}{
		"type":       "object",
		"required":   []string{"expr", "start_time", "end_time"},
		"properties": props,
	}
}

func (t *QueryMetricsTool) Execute(ctx context.Context, input json.RawMessage) (*Result, error) {
	var in struct {
		Expr        string `json:"expr"`
		StartTime   int64  `json:"start_time"`
		EndTime     int64  `json:"end_time"`
		StepSeconds int    `json:"step_seconds"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return &Result{Success: false, InvalidInput: true, Error: fmt.Sprintf("invalid input: %v", err)}, nil
	}
	if in.Expr == "" {
		return &Result{Success: false, InvalidInput: true, Error: "expr is required"}, nil
	}

	resp, err := t.client.QueryMetrics(ctx, apiclient.MetricQueryRequest{
		Expr:        in.Expr,
		Start:       in.StartTime,
		End:         in.EndTime,
		StepSeconds: in.StepSeconds,
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Success: true,
		Data:    resp,
		Summary: fmt.Sprintf("Returned %d series for %q", len(resp.Series), in.Expr),
	}, nil
}

// ListAlertsTool lists alerts that fired in a time window.
type ListAlertsTool struct {
	client *apiclient.Client
}

func NewListAlertsTool(client *apiclient.Client) *ListAlertsTool {
	return &ListAlertsTool{client: client}
}

func (t *ListAlertsTool) Name() string       { return "list_alerts" }
func (t *ListAlertsTool) Dependency() string { return DepAlerts }

func (t *ListAlertsTool) Description() string {
	return `List alerts that fired in a time window.

Use this tool to:
- Establish which alerts define the incident
- Check whether related services alerted around the same time
- Order alert firings to find the earliest symptom

Input:
- service (optional): Filter to alerts for this service
- start_time: Unix timestamp (seconds) for the start of the time range
- end_time: Unix timestamp (seconds) for the end of the time range`
}

func (t *ListAlertsTool) InputSchema() map[string]interface{} {
	props := timeRangeProps()
	props["service"] = map[string]interface{}{"type": "string"}
	return map[string]interface{}{
		"type":       "object",
		"required":   []string{"start_time", "end_time"},
		"properties": props,
	}
}

func (t *ListAlertsTool) Execute(ctx context.Context, input json.RawMessage) (*Result, error) {
	var in struct {
		Service   string `json:"service"`
		StartTime int64  `json:"start_time"`
		EndTime   int64  `json:"end_time"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return &Result{Success: false, InvalidInput: true, Error: fmt.Sprintf("invalid input: %v", err)}, nil
	}

	resp, err := t.client.ListAlerts(ctx, in.StartTime, in.EndTime, in.Service)
	if err != nil {
		return nil, err
	}

	return &Result{
		Success: true,
		Data:    resp,
		Summary: fmt.Sprintf("Found %d alerts", len(resp.Alerts)),
	}, nil
}

// RecentChangesTool lists deploys and config changes in a time window.
type RecentChangesTool struct {
	client *apiclient.Client
}

func NewRecentChangesTool(client *apiclient.Client) *RecentChangesTool {
	return &RecentChangesTool{client: client}
}

func (t *RecentChangesTool) Name() string       { return "recent_changes" }
func (t *RecentChangesTool) Dependency() string { return DepChanges }

func (t *RecentChangesTool) Description() string {
	return `List deploys, config changes, and rollbacks in a time window.

Use this tool to:
- Check whether a deploy landed just before the incident started
- Attribute a regression to a specific change
- Find rollback candidates

Input:
- service (optional): Filter to changes for this service
- start_time: Unix timestamp (seconds) for the start of the time range
- end_time: Unix timestamp (seconds) for the end of the time range`
}

func (t *RecentChangesTool) InputSchema() map[string]interface{} {
	props := timeRangeProps()
	props["service"] = map[string]interface{}{"type": "string"}
	return map[string]interface{}{
		"type":       "object",
		"required":   []string{"start_time", "end_time"},
		"properties": props,
	}
}

func (t *RecentChangesTool) Execute(ctx context.Context, input json.RawMessage) (*Result, error) {
	var in struct {
		Service   string `json:"service"`
		StartTime int64  `json:"start_time"`
		EndTime   int64  `json:"end_time"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return &Result{Success: false, InvalidInput: true, Error: fmt.Sprintf("invalid input: %v", err)}, nil
	}

	resp, err := t.client.RecentChanges(ctx, in.StartTime, in.EndTime, in.Service)
	if err != nil {
		return nil, err
	}

	return &Result{
		Success: true,
		Data:    resp,
		Summary: fmt.Sprintf("Found %d changes", len(resp.Changes)),
	}, nil
}
