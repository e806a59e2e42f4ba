package contextwindow

import (
	"fmt"
	"log/slog"
)

// condensedPreview is how many characters of each condensed entry survive
// into the condensation summary.
const condensedPreview = 96

// Report describes what one compaction pass did.
type Report struct {
	// Condensed is the number of entries replaced by condensation summaries.
	Condensed int
	// Evicted is the number of entries dropped outright.
	Evicted int
	// TokensBefore and TokensAfter bracket the pass.
	TokensBefore int
	TokensAfter  int
}

// Changed reports whether the pass modified the window.
func (r Report) Changed() bool {
	return r.Condensed > 0 || r.Evicted > 0
}

// Compact shrinks the window to fit its budget. The pass first condenses
// runs of low-importance entries into short summaries, then evicts entries
// by ascending importance (oldest first), and finally truncates the last
// entry if it alone exceeds the budget. The most recent entry is never
// evicted. Running Compact on a window already within budget is a no-op,
// which makes the pass idempotent.
func (w *Window) Compact(logger *slog.Logger) Report {
	report := Report{TokensBefore: w.total, TokensAfter: w.total}
	if w.total <= w.budget {
		return report
	}

	report.Condensed = w.condenseRuns()
	w.recount()

	if w.total > w.budget {
		report.Evicted = w.evict()
		w.recount()
	}

	if w.total > w.budget {
		w.truncateLast()
		w.recount()
	}

	report.TokensAfter = w.total
	if logger != nil && report.Changed() {
		logger.Debug("context window compacted",
			"condensed", report.Condensed,
			"evicted", report.Evicted,
			"tokens_before", report.TokensBefore,
			"tokens_after", report.TokensAfter)
	}
	return report
}

// condensable reports whether an entry may be folded into a condensation
// summary. Findings, tool errors, and prior summaries are kept verbatim.
func condensable(e Entry) bool {
	return !e.Condensed && e.Importance <= ImportanceToolOutput
}

// condenseRuns replaces each maximal run of two or more condensable entries
// with a single summary entry carrying the run's highest importance. The
// last window entry is excluded so the most recent context stays verbatim.
func (w *Window) condenseRuns() int {
	if len(w.entries) < 2 {
		return 0
	}

	var out []Entry
	var run []Entry
	condensed := 0

	flush := func() {
		if len(run) >= 2 {
			out = append(out, condenseRun(run))
			condensed += len(run)
		} else {
			out = append(out, run...)
		}
		run = nil
	}

	last := len(w.entries) - 1
	for i, e := range w.entries {
		if i != last && condensable(e) {
			run = append(run, e)
			continue
		}
		flush()
		out = append(out, e)
	}
	flush()

	w.entries = out
	return condensed
}

// condenseRun builds the summary entry for one run.
func condenseRun(run []Entry) Entry {
	maxImp := run[0].Importance
	content := ""
	for i, e := range run {
		if e.Importance > maxImp {
			maxImp = e.Importance
		}
		preview := e.Content
		if len(preview) > condensedPreview {
			preview = preview[:condensedPreview]
		}
		if i > 0 {
			content += " | "
		}
		content += preview
	}
	summary := Entry{
		Kind:       "condensed",
		Content:    fmt.Sprintf("[condensed %d entries] %s", len(run), content),
		Importance: maxImp,
		Condensed:  true,
		AddedAt:    run[len(run)-1].AddedAt,
	}
	summary.Tokens = EstimateTokens(summary.Content)
	return summary
}

// evict drops entries by ascending importance tier, oldest first, until the
// window fits the budget. The most recent entry is never evicted.
func (w *Window) evict() int {
	evicted := 0
	for tier := ImportanceStatus; tier <= ImportanceFinding; tier++ {
		for w.total > w.budget {
			idx := -1
			last := len(w.entries) - 1
			for i := 0; i < last; i++ {
				if w.entries[i].Importance == tier {
					idx = i
					break
				}
			}
			if idx < 0 {
				break
			}
			w.total -= w.entries[idx].Tokens
			w.entries = append(w.entries[:idx], w.entries[idx+1:]...)
			evicted++
		}
		if w.total <= w.budget {
			break
		}
	}
	return evicted
}

// truncateLast trims the sole remaining oversized entry so the window always
// ends the pass within budget.
func (w *Window) truncateLast() {
	if len(w.entries) == 0 {
		return
	}
	e := &w.entries[len(w.entries)-1]
	maxChars := w.budget * 4
	if maxChars < 16 {
		maxChars = 16
	}
	if len(e.Content) > maxChars {
		e.Content = e.Content[:maxChars]
	}
	e.Tokens = EstimateTokens(e.Content)
	if e.Tokens > w.budget {
		e.Tokens = w.budget
	}
}

// recount recomputes the token total from the entries.
func (w *Window) recount() {
	total := 0
	for _, e := range w.entries {
		total += e.Tokens
	}
	w.total = total
}
