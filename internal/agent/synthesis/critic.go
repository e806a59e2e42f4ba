package synthesis

import (
	"fmt"

	"github.com/inquest-labs/inquest/internal/agent/investigation"
)

// Critique identifies the weakest or most contested claim in a draft result,
// framed as the question the next debate round must answer.
type Critique struct {
	// Claim is the contested or weak cause under scrutiny.
	Claim string

	// Question frames what the debate round must establish.
	Question string

	// Panels are the panels that should re-examine the claim. Empty means
	// all panels from the prior round.
	Panels []string
}

// Criticize inspects a draft synthesis and returns the claim most in need of
// another round. Returns nil when the draft has no unresolved conflicts and
// its top cause is corroborated, which ends the debate early.
func Criticize(draft *investigation.SynthesisResult) *Critique {
	if draft == nil {
		return nil
	}

	// Unresolved conflicts are the most contested claims
	if len(draft.Conflicts) > 0 {
		c := draft.Conflicts[0]
		var panels []string
		for _, cause := range c.Causes {
			panels = append(panels, c.Panels[cause]...)
		}
		return &Critique{
			Claim: c.Causes[0],
			Question: fmt.Sprintf(
				"Panels disagree: %q vs %q at near-equal confidence. Gather evidence that distinguishes these two causes.",
				c.Causes[0], c.Causes[1]),
			Panels: dedupe(panels),
		}
	}

	// An uncorroborated top cause is the weakest claim
	if top, ok := draft.TopCause(); ok && !top.Corroborated {
		return &Critique{
			Claim: top.Cause,
			Question: fmt.Sprintf(
				"The leading cause %q rests on a single panel with no tool evidence. Find evidence that confirms or refutes it.",
				top.Cause),
			Panels: top.Panels,
		}
	}

	return nil
}

func dedupe(list []string) []string {
	seen := make(map[string]bool, len(list))
	var out []string
	for _, v := range list {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
