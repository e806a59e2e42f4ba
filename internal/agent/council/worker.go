// Package council runs the investigation execution strategies: the panel
// worker loop, the concurrent fan-out orchestrator with its bounded debate
// protocol, and the mode router that dispatches between them.
package council

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/inquest-labs/inquest/internal/agent/audit"
	"github.com/inquest-labs/inquest/internal/agent/breaker"
	"github.com/inquest-labs/inquest/internal/agent/contextwindow"
	"github.com/inquest-labs/inquest/internal/agent/investigation"
	"github.com/inquest-labs/inquest/internal/agent/provider"
	"github.com/inquest-labs/inquest/internal/agent/tools"
)

// ModelDependency is the breaker key for the model endpoint.
const ModelDependency = "model"

// submitFindingTool is the terminal tool a panel calls to report its finding.
const submitFindingTool = "submit_finding"

// WorkerConfig bounds one panel execution.
type WorkerConfig struct {
	// MaxModelCalls bounds the reason/act loop. Defaults to 8.
	MaxModelCalls int

	// TokenBudget is the panel's context window budget. Defaults to 16000.
	TokenBudget int

	// Audit, if non-nil, records compaction passes.
	Audit *audit.Logger
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.MaxModelCalls <= 0 {
		c.MaxModelCalls = 8
	}
	if c.TokenBudget <= 0 {
		c.TokenBudget = 16000
	}
	return c
}

// Worker runs one specialist panel's bounded reasoning loop: alternate
// between model calls and tool calls until a finding is submitted, the
// budget is exhausted, or a fatal error occurs.
//
// Contract: Run always returns a PanelResult and never panics past its
// boundary. Budget exhaustion yields PartialFailure with whatever partial
// finding exists; a tripped breaker for the panel's primary dependency
// yields Failure naming that dependency.
type Worker struct {
	provider provider.Provider
	registry *tools.Registry
	breakers *breaker.Set
	logger   *slog.Logger
	config   WorkerConfig
}

// NewWorker creates a panel worker.
func NewWorker(p provider.Provider, registry *tools.Registry, breakers *breaker.Set, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		provider: p,
		registry: registry,
		breakers: breakers,
		logger:   logger,
		config:   cfg.withDefaults(),
	}
}

// Run executes one panel task to a terminal result.
func (w *Worker) Run(ctx context.Context, task investigation.PanelTask) *investigation.PanelResult {
	start := time.Now()
	result := &investigation.PanelResult{
		TaskID: task.ID,
		Panel:  task.Panel,
		Round:  task.Round,
	}
	logger := w.logger.With("panel", task.Panel, "task_id", task.ID, "round", task.Round)

	window := contextwindow.New(w.config.TokenBudget)
	window.Append(contextwindow.Entry{
		Kind:       "question",
		Content:    task.Question,
		Importance: contextwindow.ImportanceFinding,
	})

	toolDefs := append(w.registry.ToProviderTools(task.Tools), submitFindingDefinition())
	messages := []provider.Message{
		{Role: provider.RoleUser, Content: task.Question},
	}

	var partial *investigation.Finding
	modelBreaker := w.breakers.For(ModelDependency)

	for call := 0; call < w.config.MaxModelCalls; call++ {
		if err := ctx.Err(); err != nil {
			return w.finish(result, partial, investigation.PanelTimeout, "deadline elapsed", start)
		}

		// Keep the window within budget before every model step
		report := window.Compact(logger)
		if report.Changed() {
			messages = compactedMessages(task.Question, window)
			if w.config.Audit != nil {
				_ = w.config.Audit.LogCompaction(task.Panel, report.Condensed,
					report.Evicted, report.TokensBefore, report.TokensAfter)
			}
		}

		if !modelBreaker.Allow() {
			return w.finish(result, partial, investigation.PanelFailure,
				fmt.Sprintf("dependency %q unavailable", ModelDependency), start)
		}

		resp, err := w.provider.Chat(ctx, systemPrompt(task), messages, toolDefs)
		if err != nil {
			modelBreaker.RecordFailure()
			if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return w.finish(result, partial, investigation.PanelTimeout, "deadline elapsed", start)
			}
			logger.Warn("model call failed", "error", err)
			return w.finish(result, partial, investigation.PanelFailure,
				fmt.Sprintf("model call failed: %v", err), start)
		}
		modelBreaker.RecordSuccess()

		if len(resp.ToolCalls) == 0 {
			// Text-only answer: treat it as an unstructured finding
			if resp.Content != "" {
				partial = &investigation.Finding{
					Panel:      task.Panel,
					Round:      task.Round,
					Summary:    resp.Content,
					Confidence: 0.4,
					Evidence:   result.ToolCalls,
				}
			}
			return w.finish(result, partial, investigation.PanelPartialFailure,
				"panel ended without submitting a finding", start)
		}

		assistantMsg := provider.Message{Role: provider.RoleAssistant, Content: resp.Content, ToolUse: resp.ToolCalls}
		var toolResults []provider.ToolResultBlock

		for _, call := range resp.ToolCalls {
			if call.Name == submitFindingTool {
				finding, err := parseFinding(task, call.Input, result.ToolCalls)
				if err != nil {
					logger.Warn("malformed finding submission", "error", err)
					toolResults = append(toolResults, provider.ToolResultBlock{
						ToolUseID: call.ID,
						Content:   fmt.Sprintf("invalid finding: %v", err),
						IsError:   true,
					})
					continue
				}
				result.Confidence = finding.Confidence
				result.Finding = finding
				result.Status = investigation.PanelSuccess
				result.Duration = time.Since(start)
				return result
			}

			block := w.invokeTool(ctx, task, call, window, logger)
			toolResults = append(toolResults, block)

			rec := investigation.ToolCallRecord{
				Tool:    call.Name,
				Success: !block.IsError,
				Summary: firstLine(block.Content),
			}
			result.ToolCalls = append(result.ToolCalls, rec)

			if block.IsError && strings.Contains(block.Content, "unavailable") && w.isPrimaryDependencyOpen(task) {
				// The panel's own backend is gone; further reasoning is pointless
				return w.finish(result, partial, investigation.PanelFailure, block.Content, start)
			}
		}

		messages = append(messages, assistantMsg,
			provider.Message{Role: provider.RoleUser, ToolResult: toolResults})
	}

	return w.finish(result, partial, investigation.PanelPartialFailure,
		fmt.Sprintf("model call budget of %d exhausted", w.config.MaxModelCalls), start)
}

// invokeTool runs one tool call behind the breaker for its dependency and
// records the outcome in the context window.
func (w *Worker) invokeTool(ctx context.Context, task investigation.PanelTask, call provider.ToolUseBlock, window *contextwindow.Window, logger *slog.Logger) provider.ToolResultBlock {
	tool, ok := w.registry.Get(call.Name)
	if !ok {
		return provider.ToolResultBlock{
			ToolUseID: call.ID,
			Content:   fmt.Sprintf("tool %q not found", call.Name),
			IsError:   true,
		}
	}

	dep := tool.Dependency()
	var result *tools.Result
	run := func() error {
		result = w.registry.Execute(ctx, call.Name, call.Input)
		if !result.Success {
			if result.InvalidInput {
				return fmt.Errorf("%w: %s", breaker.ErrCallerFault, result.Error)
			}
			return fmt.Errorf("%s", result.Error)
		}
		return nil
	}

	var err error
	if dep != "" {
		err = w.breakers.For(dep).Do(run)
	} else {
		err = run()
	}

	var block provider.ToolResultBlock
	block.ToolUseID = call.ID

	switch {
	case errors.Is(err, breaker.ErrOpen):
		block.Content = fmt.Sprintf("dependency %q unavailable (circuit open)", dep)
		block.IsError = true
	case err != nil:
		block.Content = err.Error()
		block.IsError = true
	default:
		block.Content = renderToolResult(result)
	}

	window.AppendToolResult(call.Name, !block.IsError, block.Content)
	logger.Debug("tool executed", "tool", call.Name, "success", !block.IsError)
	return block
}

// isPrimaryDependencyOpen reports whether the breaker for the panel's first
// assigned tool's backend is open. That backend is the panel's reason for
// existing; without it the panel cannot answer its question.
func (w *Worker) isPrimaryDependencyOpen(task investigation.PanelTask) bool {
	if len(task.Tools) == 0 {
		return false
	}
	tool, ok := w.registry.Get(task.Tools[0])
	if !ok || tool.Dependency() == "" {
		return false
	}
	return w.breakers.For(tool.Dependency()).State() == breaker.Open
}

// finish assembles the terminal result for non-success outcomes.
func (w *Worker) finish(result *investigation.PanelResult, partial *investigation.Finding, status investigation.PanelStatus, reason string, start time.Time) *investigation.PanelResult {
	result.Status = status
	result.FailureReason = reason
	result.Duration = time.Since(start)
	if partial != nil {
		result.Finding = partial
		result.Confidence = partial.Confidence
	}
	return result
}

// parseFinding validates a submit_finding payload.
func parseFinding(task investigation.PanelTask, input json.RawMessage, evidence []investigation.ToolCallRecord) (*investigation.Finding, error) {
	var in struct {
		Cause      string  `json:"cause"`
		Summary    string  `json:"summary"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, err
	}
	if in.Summary == "" {
		return nil, fmt.Errorf("summary is required")
	}
	if in.Confidence < 0 || in.Confidence > 1 {
		return nil, fmt.Errorf("confidence %v out of range [0,1]", in.Confidence)
	}
	return &investigation.Finding{
		Panel:      task.Panel,
		Round:      task.Round,
		Cause:      in.Cause,
		Summary:    in.Summary,
		Confidence: in.Confidence,
		Evidence:   evidence,
	}, nil
}

func submitFindingDefinition() provider.ToolDefinition {
	return provider.ToolDefinition{
		Name:        submitFindingTool,
		Description: "Submit your final finding for this investigation. Call this exactly once, when you have gathered enough evidence to answer the question.",
		InputSchema: map[string]interface{}{
			"type":     "object",
			"required": []string{"summary", "confidence"},
			"properties": map[string]interface{}{
				"cause": map[string]interface{}{
					"type":        "string",
					"description": "The root cause you identified, if any",
				},
				"summary": map[string]interface{}{
					"type":        "string",
					"description": "Narrative of what you found and the evidence behind it",
				},
				"confidence": map[string]interface{}{
					"type":        "number",
					"minimum":     0,
					"maximum":     1,
					"description": "Calibrated confidence in the finding",
				},
			},
		},
	}
}

func systemPrompt(task investigation.PanelTask) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the %s panel in a production incident investigation.\n", task.Panel)
	b.WriteString("Answer the assigned question using only your tools. Gather evidence before concluding.\n")
	b.WriteString("When done, call submit_finding with your conclusion and a calibrated confidence.\n")
	if len(task.Tools) > 0 {
		fmt.Fprintf(&b, "Your tools: %s.\n", strings.Join(task.Tools, ", "))
	}
	return b.String()
}

// compactedMessages rebuilds the message history from the compacted window.
// The model sees the condensed transcript as a single context block plus the
// original question.
func compactedMessages(question string, window *contextwindow.Window) []provider.Message {
	return []provider.Message{
		{Role: provider.RoleUser, Content: question},
		{Role: provider.RoleAssistant, Content: "Investigation context so far:\n" + window.Render()},
		{Role: provider.RoleUser, Content: "Continue the investigation from the context above."},
	}
}

func renderToolResult(result *tools.Result) string {
	if result == nil {
		return ""
	}
	if result.Data == nil {
		return result.Summary
	}
	data, err := json.Marshal(result.Data)
	if err != nil {
		return result.Summary
	}
	if result.Summary != "" {
		return result.Summary + "\n" + string(data)
	}
	return string(data)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 160 {
		s = s[:160]
	}
	return s
}
