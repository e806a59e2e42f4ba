package investigation

import "time"

// PanelTask is one unit of work handed to a panel worker. Tasks are created
// by the council orchestrator per fan-out, consumed exactly once, and
// discarded after the result is folded into the investigation state.
type PanelTask struct {
	// ID uniquely identifies this task.
	ID string `json:"id"`

	// Panel is the specialist panel assigned to this task.
	Panel string `json:"panel"`

	// Tools is the tool subset this panel may call.
	Tools []string `json:"tools"`

	// Question frames what this panel must answer.
	Question string `json:"question"`

	// Round is the council round number this task belongs to.
	Round int `json:"round"`

	// Deadline is when the panel must have produced a result.
	Deadline time.Time `json:"deadline"`
}

// PanelStatus describes the terminal outcome of a panel execution.
type PanelStatus string

const (
	// PanelSuccess means the panel produced a complete finding.
	PanelSuccess PanelStatus = "success"

	// PanelPartialFailure means the panel exhausted its budget before
	// completing; whatever partial finding exists is attached.
	PanelPartialFailure PanelStatus = "partial_failure"

	// PanelFailure means the panel could not produce a finding, typically
	// because a required dependency was unavailable.
	PanelFailure PanelStatus = "failure"

	// PanelTimeout means the per-panel deadline elapsed before the panel
	// finished. Folded in as partial evidence downstream.
	PanelTimeout PanelStatus = "timeout"
)

// Terminal reports whether the status is one of the four terminal outcomes.
func (s PanelStatus) Terminal() bool {
	switch s {
	case PanelSuccess, PanelPartialFailure, PanelFailure, PanelTimeout:
		return true
	}
	return false
}

// PanelResult is the immutable outcome of one panel execution. A panel
// worker always returns a result; it never raises past its boundary.
type PanelResult struct {
	// TaskID is the task this result answers.
	TaskID string `json:"task_id"`

	// Panel is the panel that produced this result.
	Panel string `json:"panel"`

	// Round is the council round this result belongs to.
	Round int `json:"round"`

	// Status is the terminal outcome.
	Status PanelStatus `json:"status"`

	// Finding is the structured finding payload, if any. Present for
	// Success and usually for PartialFailure.
	Finding *Finding `json:"finding,omitempty"`

	// Confidence is the panel's confidence in [0, 1]. Zero when no finding
	// was produced.
	Confidence float64 `json:"confidence"`

	// ToolCalls lists every tool call the panel made, in order.
	ToolCalls []ToolCallRecord `json:"tool_calls,omitempty"`

	// FailureReason names the unavailable dependency or exhausted budget
	// that caused a non-success status.
	FailureReason string `json:"failure_reason,omitempty"`

	// Duration is how long the panel ran.
	Duration time.Duration `json:"duration"`
}

// Usable reports whether the result carries evidence worth synthesizing.
// Timed-out and partially failed panels still contribute partial findings.
func (r *PanelResult) Usable() bool {
	return r.Finding != nil && r.Finding.Summary != ""
}
