// Package investigation defines the core data structures for the multi-panel
// incident investigation system: the append-only investigation state, panel
// tasks and results, and the synthesized outcome.
package investigation

import (
	"fmt"
	"time"
)

// Phase represents a stage of an investigation.
// Phases only advance forward or stay; they never move backward.
type Phase string

const (
	PhaseAggregate Phase = "aggregate"
	PhaseTriage    Phase = "triage"
	PhaseDeepDive  Phase = "deep_dive"
	PhaseSynthesis Phase = "synthesis"
)

// phaseOrder defines the forward ordering of phases.
var phaseOrder = map[Phase]int{
	PhaseAggregate: 0,
	PhaseTriage:    1,
	PhaseDeepDive:  2,
	PhaseSynthesis: 3,
}

// State is the persistent record of one investigation session.
//
// Findings are append-only: a finding, once recorded, is never overwritten.
// Later findings for the same panel are appended with provenance (panel name
// and round number) so the full history survives debate rounds.
//
// State is owned by the orchestrator for the duration of one investigation
// turn. Panels never write to it directly; the orchestrator folds panel
// results in after each round closes.
type State struct {
	// ID identifies the investigation session.
	ID string `json:"id"`

	// Phase is the current investigation phase.
	Phase Phase `json:"phase"`

	// Findings is the append-only history of recorded findings.
	Findings []Finding `json:"findings"`

	// OpenQuestions lists unresolved questions raised during the investigation.
	OpenQuestions []string `json:"open_questions,omitempty"`

	// Revision increases monotonically on every mutation. Callers can compare
	// revisions to detect stale writes.
	Revision uint64 `json:"revision"`

	// CreatedAt is when the investigation session started.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the state was last mutated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Finding is one panel's conclusion for one round, recorded with provenance.
type Finding struct {
	// Panel is the name of the specialist panel that produced this finding.
	Panel string `json:"panel"`

	// Round is the council round in which the finding was produced.
	Round int `json:"round"`

	// Cause is the claimed root cause. Empty for findings that only report
	// observations.
	Cause string `json:"cause,omitempty"`

	// Summary is the panel's narrative of what it found.
	Summary string `json:"summary"`

	// Confidence is the panel's calibrated confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Evidence lists the tool calls that back this finding.
	Evidence []ToolCallRecord `json:"evidence,omitempty"`

	// RecordedAt is when the finding was folded into the state.
	RecordedAt time.Time `json:"recorded_at"`
}

// ToolCallRecord captures one tool invocation made while producing a finding.
type ToolCallRecord struct {
	Tool       string `json:"tool"`
	Success    bool   `json:"success"`
	Summary    string `json:"summary,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// NewState creates an empty investigation state in the aggregate phase.
func NewState(id string) *State {
	now := time.Now().UTC()
	return &State{
		ID:        id,
		Phase:     PhaseAggregate,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AdvancePhase moves the investigation to the given phase. Staying in the
// current phase is allowed; moving backward is not.
func (s *State) AdvancePhase(p Phase) error {
	next, ok := phaseOrder[p]
	if !ok {
		return fmt.Errorf("unknown phase %q", p)
	}
	if next < phaseOrder[s.Phase] {
		return fmt.Errorf("phase cannot move backward: %s -> %s", s.Phase, p)
	}
	if p != s.Phase {
		s.Phase = p
		s.bump()
	}
	return nil
}

// AppendFinding records a finding with provenance. Earlier findings for the
// same panel are retained.
func (s *State) AppendFinding(f Finding) {
	if f.RecordedAt.IsZero() {
		f.RecordedAt = time.Now().UTC()
	}
	s.Findings = append(s.Findings, f)
	s.bump()
}

// LatestFinding returns the most recent finding for the given panel.
func (s *State) LatestFinding(panel string) (Finding, bool) {
	for i := len(s.Findings) - 1; i >= 0; i-- {
		if s.Findings[i].Panel == panel {
			return s.Findings[i], true
		}
	}
	return Finding{}, false
}

// LatestFindings returns the most recent finding per panel, in the order the
// panels first reported.
func (s *State) LatestFindings() []Finding {
	latest := make(map[string]int)
	var order []string
	for i, f := range s.Findings {
		if _, ok := latest[f.Panel]; !ok {
			order = append(order, f.Panel)
		}
		latest[f.Panel] = i
	}
	out := make([]Finding, 0, len(order))
	for _, panel := range order {
		out = append(out, s.Findings[latest[panel]])
	}
	return out
}

// AddOpenQuestion records an unresolved question. Duplicates are ignored.
func (s *State) AddOpenQuestion(q string) {
	for _, existing := range s.OpenQuestions {
		if existing == q {
			return
		}
	}
	s.OpenQuestions = append(s.OpenQuestions, q)
	s.bump()
}

// ResolveOpenQuestion removes a question from the open set.
func (s *State) ResolveOpenQuestion(q string) {
	for i, existing := range s.OpenQuestions {
		if existing == q {
			s.OpenQuestions = append(s.OpenQuestions[:i], s.OpenQuestions[i+1:]...)
			s.bump()
			return
		}
	}
}

func (s *State) bump() {
	s.Revision++
	s.UpdatedAt = time.Now().UTC()
}
