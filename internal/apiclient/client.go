// Package apiclient provides a narrow HTTP client for the telemetry backend
// that the investigation tools query: traces, logs, metrics, alerts, and
// recent change events.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client handles communication with the telemetry API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a telemetry API client.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Ping checks if the telemetry API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	return c.get(ctx, "/v1/health", nil, &out)
}

// ErrorRate returns the error rate for a service over the given window.
func (c *Client) ErrorRate(ctx context.Context, service string, start, end int64) (*ErrorRateResponse, error) {
	q := url.Values{}
	q.Set("service", service)
	q.Set("start", fmt.Sprintf("%d", start))
	q.Set("end", fmt.Sprintf("%d", end))

	var out ErrorRateResponse
	if err := c.get(ctx, "/v1/metrics/error-rate", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchTraces returns traces matching the given filters.
func (c *Client) SearchTraces(ctx context.Context, req TraceSearchRequest) (*TraceSearchResponse, error) {
	q := url.Values{}
	q.Set("start", fmt.Sprintf("%d", req.Start))
	q.Set("end", fmt.Sprintf("%d", req.End))
	if req.Service != "" {
		q.Set("service", req.Service)
	}
	if req.MinDurationMs > 0 {
		q.Set("min_duration_ms", fmt.Sprintf("%d", req.MinDurationMs))
	}
	if req.ErrorsOnly {
		q.Set("errors_only", "true")
	}
	if req.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", req.Limit))
	}

	var out TraceSearchResponse
	if err := c.get(ctx, "/v1/traces", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QueryLogs returns log entries matching the query.
func (c *Client) QueryLogs(ctx context.Context, req LogQueryRequest) (*LogQueryResponse, error) {
	q := url.Values{}
	q.Set("start", fmt.Sprintf("%d", req.Start))
	q.Set("end", fmt.Sprintf("%d", req.End))
	if req.Service != "" {
		q.Set("service", req.Service)
	}
	if req.Query != "" {
		q.Set("query", req.Query)
	}
	if req.Severity != "" {
		q.Set("severity", req.Severity)
	}
	if req.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", req.Limit))
	}

	var out LogQueryResponse
	if err := c.get(ctx, "/v1/logs", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QueryMetrics evaluates a metric expression over a time range.
func (c *Client) QueryMetrics(ctx context.Context, req MetricQueryRequest) (*MetricQueryResponse, error) {
	q := url.Values{}
	q.Set("expr", req.Expr)
	q.Set("start", fmt.Sprintf("%d", req.Start))
	q.Set("end", fmt.Sprintf("%d", req.End))
	if req.StepSeconds > 0 {
		q.Set("step", fmt.Sprintf("%d", req.StepSeconds))
	}

	var out MetricQueryResponse
	if err := c.get(ctx, "/v1/metrics/query", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAlerts returns alerts that fired in the given window.
func (c *Client) ListAlerts(ctx context.Context, start, end int64, service string) (*AlertListResponse, error) {
	q := url.Values{}
	q.Set("start", fmt.Sprintf("%d", start))
	q.Set("end", fmt.Sprintf("%d", end))
	if service != "" {
		q.Set("service", service)
	}

	var out AlertListResponse
	if err := c.get(ctx, "/v1/alerts", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecentChanges returns deploys and config changes in the given window.
func (c *Client) RecentChanges(ctx context.Context, start, end int64, service string) (*ChangeListResponse, error) {
	q := url.Values{}
	q.Set("start", fmt.Sprintf("%d", start))
	q.Set("end", fmt.Sprintf("%d", end))
	if service != "" {
		q.Set("service", service)
	}

	var out ChangeListResponse
	if err := c.get(ctx, "/v1/changes", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// get performs a GET request and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}
