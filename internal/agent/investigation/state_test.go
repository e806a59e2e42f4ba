package investigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatePhaseAdvancesForwardOnly(t *testing.T) {
	s := NewState("s1")
	assert.Equal(t, PhaseAggregate, s.Phase)

	require.NoError(t, s.AdvancePhase(PhaseTriage))
	require.NoError(t, s.AdvancePhase(PhaseDeepDive))

	err := s.AdvancePhase(PhaseTriage)
	require.Error(t, err)
	assert.Equal(t, PhaseDeepDive, s.Phase)

	// Staying in place is allowed and does not bump the revision
	before := s.Revision
	require.NoError(t, s.AdvancePhase(PhaseDeepDive))
	assert.Equal(t, before, s.Revision)
}

func TestStateAdvancePhaseUnknown(t *testing.T) {
	s := NewState("s1")
	err := s.AdvancePhase(Phase("bogus"))
	require.Error(t, err)
}

func TestStateFindingsAreAppendOnly(t *testing.T) {
	s := NewState("s1")
	s.AppendFinding(Finding{Panel: "logs", Round: 1, Cause: "oom", Summary: "first", Confidence: 0.5})
	s.AppendFinding(Finding{Panel: "logs", Round: 2, Cause: "disk", Summary: "second", Confidence: 0.7})

	// History survives: both findings retained with provenance
	require.Len(t, s.Findings, 2)
	assert.Equal(t, 1, s.Findings[0].Round)
	assert.Equal(t, 2, s.Findings[1].Round)

	latest, ok := s.LatestFinding("logs")
	require.True(t, ok)
	assert.Equal(t, "second", latest.Summary)
}

func TestStateLatestFindingsOrderedByFirstReport(t *testing.T) {
	s := NewState("s1")
	s.AppendFinding(Finding{Panel: "trace", Round: 1, Summary: "t1"})
	s.AppendFinding(Finding{Panel: "logs", Round: 1, Summary: "l1"})
	s.AppendFinding(Finding{Panel: "trace", Round: 2, Summary: "t2"})

	latest := s.LatestFindings()
	require.Len(t, latest, 2)
	assert.Equal(t, "trace", latest[0].Panel)
	assert.Equal(t, "t2", latest[0].Summary)
	assert.Equal(t, "logs", latest[1].Panel)
}

func TestStateRevisionIncreasesMonotonically(t *testing.T) {
	s := NewState("s1")
	r0 := s.Revision
	s.AppendFinding(Finding{Panel: "logs", Summary: "x"})
	r1 := s.Revision
	require.NoError(t, s.AdvancePhase(PhaseTriage))
	r2 := s.Revision

	assert.Greater(t, r1, r0)
	assert.Greater(t, r2, r1)
}

func TestStateOpenQuestions(t *testing.T) {
	s := NewState("s1")
	s.AddOpenQuestion("why did latency spike?")
	s.AddOpenQuestion("why did latency spike?")
	require.Len(t, s.OpenQuestions, 1)

	s.ResolveOpenQuestion("why did latency spike?")
	assert.Empty(t, s.OpenQuestions)
}

func TestPanelResultUsable(t *testing.T) {
	r := &PanelResult{Status: PanelTimeout}
	assert.False(t, r.Usable())

	r.Finding = &Finding{Summary: "partial evidence"}
	assert.True(t, r.Usable(), "timed-out panels with partial findings still contribute")
}

func TestPanelStatusTerminal(t *testing.T) {
	for _, status := range []PanelStatus{PanelSuccess, PanelPartialFailure, PanelFailure, PanelTimeout} {
		assert.True(t, status.Terminal())
	}
	assert.False(t, PanelStatus("running").Terminal())
}
