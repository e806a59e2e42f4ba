// Package synthesis merges heterogeneous panel findings into one ranked,
// provenance-tagged result with explicit conflict surfacing.
package synthesis

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/inquest-labs/inquest/internal/agent/investigation"
)

// ConfidenceEpsilon is the band within which two competing causes are
// considered tied. Ties inside the band fall back to evidence counts; if
// those match too, the conflict is surfaced instead of picked.
const ConfidenceEpsilon = 0.1

// candidate accumulates evidence for one deduplicated cause.
type candidate struct {
	cause      string
	display    string
	confidence float64
	panels     []string
	evidence   int
}

// Synthesize merges the panel results of one round (plus prior state) into a
// single result. Findings naming the same cause are deduplicated: their
// evidence is merged and the highest confidence kept, capped at
// investigation.MaxConfidence. Uncorroborated causes are flagged so
// consumers can mark them speculative.
func Synthesize(results []investigation.PanelResult, state *investigation.State, rounds int) *investigation.SynthesisResult {
	out := &investigation.SynthesisResult{
		Rounds:     rounds,
		ProducedAt: time.Now().UTC(),
	}

	byCause := make(map[string]*candidate)
	var order []string

	for i := range results {
		r := &results[i]
		if r.Status != investigation.PanelSuccess {
			out.Partial = true
		}
		if !r.Usable() {
			continue
		}
		f := r.Finding
		if f.Cause == "" {
			continue
		}

		key := normalizeCause(f.Cause)
		c, ok := byCause[key]
		if !ok {
			c = &candidate{cause: key, display: f.Cause}
			byCause[key] = c
			order = append(order, key)
		}
		if f.Confidence > c.confidence {
			c.confidence = f.Confidence
			c.display = f.Cause
		}
		if !containsString(c.panels, f.Panel) {
			c.panels = append(c.panels, f.Panel)
		}
		for _, ev := range f.Evidence {
			if ev.Success {
				c.evidence++
			}
		}
	}

	for _, key := range order {
		c := byCause[key]
		conf := c.confidence
		if conf > investigation.MaxConfidence {
			conf = investigation.MaxConfidence
		}
		out.Causes = append(out.Causes, investigation.RankedCause{
			Cause:         c.display,
			Confidence:    conf,
			Panels:        c.panels,
			EvidenceCount: c.evidence,
			Corroborated:  len(c.panels) > 1 || c.evidence > 0,
		})
	}

	sort.SliceStable(out.Causes, func(i, j int) bool {
		a, b := out.Causes[i], out.Causes[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.EvidenceCount > b.EvidenceCount
	})

	out.Conflicts = findConflicts(out.Causes)
	out.Narrative = buildNarrative(out, results)
	return out
}

// findConflicts reports competing top causes whose confidences are within
// ConfidenceEpsilon and whose evidence counts do not break the tie.
func findConflicts(causes []investigation.RankedCause) []investigation.Conflict {
	var conflicts []investigation.Conflict
	for i := 0; i < len(causes); i++ {
		for j := i + 1; j < len(causes); j++ {
			a, b := causes[i], causes[j]
			diff := a.Confidence - b.Confidence
			if diff < 0 {
				diff = -diff
			}
			if diff > ConfidenceEpsilon {
				continue
			}
			if a.EvidenceCount != b.EvidenceCount {
				continue
			}
			conflicts = append(conflicts, investigation.Conflict{
				Causes: []string{a.Cause, b.Cause},
				Panels: map[string][]string{
					a.Cause: a.Panels,
					b.Cause: b.Panels,
				},
				Confidences: map[string]float64{
					a.Cause: a.Confidence,
					b.Cause: b.Confidence,
				},
				Reason: fmt.Sprintf("confidence within %.2f and equal corroborating evidence (%d)", ConfidenceEpsilon, a.EvidenceCount),
			})
		}
	}
	return conflicts
}

// buildNarrative assembles the human-readable account.
func buildNarrative(out *investigation.SynthesisResult, results []investigation.PanelResult) string {
	var b strings.Builder

	if top, ok := out.TopCause(); ok {
		fmt.Fprintf(&b, "Most likely cause: %s (confidence %.2f", top.Cause, top.Confidence)
		if len(top.Panels) > 1 {
			fmt.Fprintf(&b, ", corroborated by %s", strings.Join(top.Panels, ", "))
		} else if len(top.Panels) == 1 {
			fmt.Fprintf(&b, ", reported by %s", top.Panels[0])
		}
		b.WriteString(")")
		if !top.Corroborated {
			b.WriteString(" [speculative: no corroborating evidence]")
		}
		b.WriteString(".")
	} else {
		b.WriteString("No root cause could be established from the available evidence.")
	}

	for _, c := range out.Conflicts {
		fmt.Fprintf(&b, "\nUnresolved conflict: %s vs %s (%s).",
			c.Causes[0], c.Causes[1], c.Reason)
	}

	var failed []string
	for i := range results {
		r := &results[i]
		if r.Status == investigation.PanelFailure || r.Status == investigation.PanelTimeout {
			failed = append(failed, fmt.Sprintf("%s (%s)", r.Panel, r.Status))
		}
	}
	if len(failed) > 0 {
		fmt.Fprintf(&b, "\nIncomplete coverage: %s.", strings.Join(failed, ", "))
	}
	if out.Partial {
		b.WriteString("\nThis result is partial; treat confidences as lower bounds on uncertainty, not conclusions.")
	}
	return b.String()
}

func normalizeCause(cause string) string {
	return strings.Join(strings.Fields(strings.ToLower(cause)), " ")
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
