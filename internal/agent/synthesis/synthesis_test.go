package synthesis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inquest-labs/inquest/internal/agent/investigation"
)

func successResult(panel, cause string, confidence float64, evidence int) investigation.PanelResult {
	f := &investigation.Finding{
		Panel:      panel,
		Round:      1,
		Cause:      cause,
		Summary:    cause,
		Confidence: confidence,
	}
	for i := 0; i < evidence; i++ {
		f.Evidence = append(f.Evidence, investigation.ToolCallRecord{Tool: "t", Success: true})
	}
	return investigation.PanelResult{
		Panel:      panel,
		Round:      1,
		Status:     investigation.PanelSuccess,
		Finding:    f,
		Confidence: confidence,
	}
}

func TestSynthesizeDeduplicatesSameCause(t *testing.T) {
	state := investigation.NewState("s1")
	results := []investigation.PanelResult{
		successResult("logs", "Payment gateway timeout", 0.6, 2),
		successResult("trace", "payment gateway timeout", 0.8, 3),
	}

	out := Synthesize(results, state, 1)

	require.Len(t, out.Causes, 1)
	top := out.Causes[0]
	assert.Equal(t, 0.8, top.Confidence, "max confidence wins")
	assert.ElementsMatch(t, []string{"logs", "trace"}, top.Panels)
	assert.Equal(t, 5, top.EvidenceCount, "evidence is merged")
	assert.True(t, top.Corroborated)
}

func TestSynthesizeCapsConfidence(t *testing.T) {
	state := investigation.NewState("s1")
	results := []investigation.PanelResult{
		successResult("logs", "oom kill", 0.99, 1),
	}

	out := Synthesize(results, state, 1)
	require.Len(t, out.Causes, 1)
	assert.Equal(t, investigation.MaxConfidence, out.Causes[0].Confidence)
}

func TestSynthesizeFlagsUncorroboratedCause(t *testing.T) {
	state := investigation.NewState("s1")
	results := []investigation.PanelResult{
		successResult("logs", "cosmic rays", 0.5, 0),
	}

	out := Synthesize(results, state, 1)
	require.Len(t, out.Causes, 1)
	assert.False(t, out.Causes[0].Corroborated)
	assert.Contains(t, out.Narrative, "speculative")
}

func TestSynthesizeSurfacesConflictWithinEpsilon(t *testing.T) {
	state := investigation.NewState("s1")
	results := []investigation.PanelResult{
		successResult("logs", "database connection pool exhausted", 0.6, 0),
		successResult("trace", "bad deploy of payments", 0.65, 0),
	}

	out := Synthesize(results, state, 1)

	require.Len(t, out.Causes, 2)
	require.Len(t, out.Conflicts, 1, "confidences 0.6 and 0.65 are within epsilon with equal evidence")
	conflict := out.Conflicts[0]
	assert.Len(t, conflict.Causes, 2)
	assert.Contains(t, out.Narrative, "Unresolved conflict")
}

func TestSynthesizeEvidenceBreaksNearTies(t *testing.T) {
	state := investigation.NewState("s1")
	results := []investigation.PanelResult{
		successResult("logs", "database connection pool exhausted", 0.6, 4),
		successResult("trace", "bad deploy of payments", 0.65, 1),
	}

	out := Synthesize(results, state, 1)
	assert.Empty(t, out.Conflicts, "differing evidence counts resolve near-ties")
}

func TestSynthesizePartialFromNonSuccessResults(t *testing.T) {
	state := investigation.NewState("s1")
	results := []investigation.PanelResult{
		successResult("logs", "oom kill", 0.7, 1),
		{
			Panel:         "trace",
			Status:        investigation.PanelTimeout,
			FailureReason: "panel deadline elapsed",
		},
	}

	out := Synthesize(results, state, 1)
	assert.True(t, out.Partial)
	assert.Contains(t, out.Narrative, "Incomplete coverage")
	assert.Contains(t, out.Narrative, "trace")
}

func TestSynthesizeNoCauses(t *testing.T) {
	state := investigation.NewState("s1")
	out := Synthesize(nil, state, 1)
	assert.Empty(t, out.Causes)
	assert.Contains(t, out.Narrative, "No root cause")

	_, ok := out.TopCause()
	assert.False(t, ok)
}

func TestCriticizePrefersConflicts(t *testing.T) {
	draft := &investigation.SynthesisResult{
		Causes: []investigation.RankedCause{
			{Cause: "a", Confidence: 0.6, Panels: []string{"logs"}},
			{Cause: "b", Confidence: 0.65, Panels: []string{"trace"}},
		},
		Conflicts: []investigation.Conflict{{
			Causes: []string{"a", "b"},
			Panels: map[string][]string{
				"a": {"logs"},
				"b": {"trace"},
			},
		}},
	}

	critique := Criticize(draft)
	require.NotNil(t, critique)
	assert.Equal(t, "a", critique.Claim)
	assert.ElementsMatch(t, []string{"logs", "trace"}, critique.Panels)
}

func TestCriticizeFlagsUncorroboratedTopCause(t *testing.T) {
	draft := &investigation.SynthesisResult{
		Causes: []investigation.RankedCause{
			{Cause: "cosmic rays", Confidence: 0.7, Panels: []string{"logs"}, Corroborated: false},
		},
	}

	critique := Criticize(draft)
	require.NotNil(t, critique)
	assert.Equal(t, "cosmic rays", critique.Claim)
}

func TestCriticizeResolvedDraftReturnsNil(t *testing.T) {
	draft := &investigation.SynthesisResult{
		Causes: []investigation.RankedCause{
			{Cause: "bad deploy", Confidence: 0.8, Panels: []string{"logs", "change"}, Corroborated: true},
		},
	}
	assert.Nil(t, Criticize(draft))
	assert.Nil(t, Criticize(nil))
}
