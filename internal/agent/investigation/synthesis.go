package investigation

import "time"

// MaxConfidence caps synthesized confidence scores to prevent the system
// from presenting any root cause as a certainty.
const MaxConfidence = 0.95

// RankedCause is one candidate root cause in a synthesis result, merged
// across the panels that reported it.
type RankedCause struct {
	// Cause is the claimed root cause.
	Cause string `json:"cause"`

	// Confidence is the highest confidence any contributing panel assigned.
	Confidence float64 `json:"confidence"`

	// Panels lists the panels that independently reported this cause.
	Panels []string `json:"panels"`

	// EvidenceCount is the number of successful tool calls backing the cause
	// across all contributing panels.
	EvidenceCount int `json:"evidence_count"`

	// Corroborated is false when only a single panel reported the cause with
	// no independent tool evidence; downstream consumers flag such causes as
	// speculative.
	Corroborated bool `json:"corroborated"`
}

// Conflict records a disagreement between panels that the tie-break policy
// could not resolve. Conflicts are surfaced, never silently picked.
type Conflict struct {
	// Causes are the competing root-cause claims.
	Causes []string `json:"causes"`

	// Panels maps each competing cause to the panels backing it.
	Panels map[string][]string `json:"panels"`

	// Confidences maps each competing cause to its merged confidence.
	Confidences map[string]float64 `json:"confidences"`

	// Reason explains why the conflict is unresolved.
	Reason string `json:"reason"`
}

// SynthesisResult is the merged outcome of one investigation turn.
type SynthesisResult struct {
	// Narrative is the merged, human-readable account of the investigation.
	Narrative string `json:"narrative"`

	// Causes is the ranked list of candidate root causes, highest
	// confidence first.
	Causes []RankedCause `json:"causes"`

	// Conflicts lists unresolved disagreements between panels.
	Conflicts []Conflict `json:"conflicts,omitempty"`

	// Partial is true when the result was assembled from incomplete panel
	// output (timeouts, tripped breakers, or a turn deadline breach).
	Partial bool `json:"partial"`

	// Rounds is the number of council rounds that contributed.
	Rounds int `json:"rounds"`

	// ProducedAt is when synthesis completed.
	ProducedAt time.Time `json:"produced_at"`
}

// TopCause returns the highest-ranked cause, if any.
func (r *SynthesisResult) TopCause() (RankedCause, bool) {
	if len(r.Causes) == 0 {
		return RankedCause{}, false
	}
	return r.Causes[0], true
}
