// Package contextwindow tracks the token footprint of an agent conversation
// and compacts it when the budget is exceeded. Tokens are estimated, not
// counted exactly; the budget is a soft ceiling that compaction restores.
package contextwindow

import (
	"fmt"
	"time"
)

// Importance ranks entries for compaction. Lower importance is condensed and
// evicted first.
type Importance int

const (
	// ImportanceStatus covers progress chatter and status updates.
	ImportanceStatus Importance = iota
	// ImportanceToolOutput covers successful tool output.
	ImportanceToolOutput
	// ImportanceToolError covers failed tool calls. Kept longer than
	// successes because failures steer the investigation.
	ImportanceToolError
	// ImportanceFinding covers findings and conclusions. Evicted last.
	ImportanceFinding
)

func (i Importance) String() string {
	switch i {
	case ImportanceStatus:
		return "status"
	case ImportanceToolOutput:
		return "tool_output"
	case ImportanceToolError:
		return "tool_error"
	case ImportanceFinding:
		return "finding"
	default:
		return "unknown"
	}
}

// Entry is one item in the context window.
type Entry struct {
	// Kind labels the entry for humans reading a rendered window.
	Kind string

	// Content is the entry text.
	Content string

	// Tokens is the estimated token cost of Content.
	Tokens int

	// Importance ranks the entry for compaction.
	Importance Importance

	// Condensed marks entries produced by compaction. Condensed entries are
	// never condensed again.
	Condensed bool

	// AddedAt is when the entry was appended.
	AddedAt time.Time
}

// EstimateTokens estimates the token cost of a string. Roughly four
// characters per token, rounded up.
func EstimateTokens(s string) int {
	return len(s)/4 + 1
}

// Window is an ordered sequence of entries with a token budget.
// Not safe for concurrent use; each panel worker owns its own window.
type Window struct {
	budget  int
	entries []Entry
	total   int
}

// New creates a window with the given token budget.
func New(budget int) *Window {
	return &Window{budget: budget}
}

// Append adds an entry to the window. If Tokens is zero it is estimated from
// Content.
func (w *Window) Append(e Entry) {
	if e.Tokens == 0 {
		e.Tokens = EstimateTokens(e.Content)
	}
	if e.AddedAt.IsZero() {
		e.AddedAt = time.Now()
	}
	w.entries = append(w.entries, e)
	w.total += e.Tokens
}

// AppendToolResult adds a tool call outcome. Failed calls are ranked as tool
// errors so compaction keeps them longer.
func (w *Window) AppendToolResult(tool string, success bool, content string) {
	imp := ImportanceToolOutput
	if !success {
		imp = ImportanceToolError
	}
	w.Append(Entry{
		Kind:       "tool_result",
		Content:    fmt.Sprintf("[%s] %s", tool, content),
		Importance: imp,
	})
}

// Entries returns a copy of the window contents.
func (w *Window) Entries() []Entry {
	out := make([]Entry, len(w.entries))
	copy(out, w.entries)
	return out
}

// TotalTokens returns the estimated token total of the window.
func (w *Window) TotalTokens() int {
	return w.total
}

// Budget returns the window's token budget.
func (w *Window) Budget() int {
	return w.budget
}

// Len returns the number of entries.
func (w *Window) Len() int {
	return len(w.entries)
}

// Render joins the entry contents into one string for prompt assembly.
func (w *Window) Render() string {
	out := ""
	for i, e := range w.entries {
		if i > 0 {
			out += "\n"
		}
		out += e.Content
	}
	return out
}
