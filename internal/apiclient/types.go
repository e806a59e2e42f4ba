package apiclient

// ErrorRateResponse is the result of an error-rate query.
type ErrorRateResponse struct {
	Service      string  `json:"service"`
	ErrorRate    float64 `json:"error_rate"`
	TotalCount   int64   `json:"total_count"`
	ErrorCount   int64   `json:"error_count"`
	WindowStart  int64   `json:"window_start"`
	WindowEnd    int64   `json:"window_end"`
}

// TraceSearchRequest filters a trace search.
type TraceSearchRequest struct {
	Service       string
	Start         int64
	End           int64
	MinDurationMs int64
	ErrorsOnly    bool
	Limit         int
}

// TraceSummary is one trace in a search result.
type TraceSummary struct {
	TraceID    string `json:"trace_id"`
	Rootspan   string `json:"root_span"`
	Service    string `json:"service"`
	DurationMs int64  `json:"duration_ms"`
	SpanCount  int    `json:"span_count"`
	HasError   bool   `json:"has_error"`
	StartTime  int64  `json:"start_time"`
}

// TraceSearchResponse is the result of a trace search.
type TraceSearchResponse struct {
	Traces []TraceSummary `json:"traces"`
	Total  int            `json:"total"`
}

// LogQueryRequest filters a log query.
type LogQueryRequest struct {
	Service  string
	Query    string
	Severity string
	Start    int64
	End      int64
	Limit    int
}

// LogEntry is one log line in a query result.
type LogEntry struct {
	Timestamp int64  `json:"timestamp"`
	Service   string `json:"service"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
}

// LogQueryResponse is the result of a log query.
type LogQueryResponse struct {
	Entries []LogEntry `json:"entries"`
	Total   int        `json:"total"`
}

// MetricQueryRequest evaluates a metric expression.
type MetricQueryRequest struct {
	Expr        string
	Start       int64
	End         int64
	StepSeconds int
}

// MetricPoint is one sample in a metric series.
type MetricPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// MetricSeries is one labeled series in a metric query result.
type MetricSeries struct {
	Labels map[string]string `json:"labels"`
	Points []MetricPoint     `json:"points"`
}

// MetricQueryResponse is the result of a metric query.
type MetricQueryResponse struct {
	Series []MetricSeries `json:"series"`
}

// Alert is one alert in a list result.
type Alert struct {
	Name      string            `json:"name"`
	Service   string            `json:"service"`
	Severity  string            `json:"severity"`
	State     string            `json:"state"`
	FiredAt   int64             `json:"fired_at"`
	Labels    map[string]string `json:"labels,omitempty"`
	Summary   string            `json:"summary,omitempty"`
}

// AlertListResponse is the result of an alert list query.
type AlertListResponse struct {
	Alerts []Alert `json:"alerts"`
	Total  int     `json:"total"`
}

// Change is one deploy or configuration change event.
type Change struct {
	Timestamp   int64  `json:"timestamp"`
	Service     string `json:"service"`
	Kind        string `json:"kind"` // deploy, config, rollback
	Description string `json:"description"`
	Author      string `json:"author,omitempty"`
	Version     string `json:"version,omitempty"`
}

// ChangeListResponse is the result of a change list query.
type ChangeListResponse struct {
	Changes []Change `json:"changes"`
	Total   int      `json:"total"`
}
