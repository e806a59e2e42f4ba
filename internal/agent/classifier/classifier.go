// Package classifier maps incoming queries to an execution mode. A fast
// deterministic rule pass runs first; only queries no rule matches fall
// through to a schema-constrained model call.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/inquest-labs/inquest/internal/agent/investigation"
	"github.com/inquest-labs/inquest/internal/agent/provider"
)

// Mode selects the execution strategy for a query.
type Mode string

const (
	// ModeDirect answers with a single tool call, no panel.
	ModeDirect Mode = "direct"
	// ModeSubAgent delegates to one specialist panel.
	ModeSubAgent Mode = "sub_agent"
	// ModeCouncil convenes multiple panels concurrently.
	ModeCouncil Mode = "council"
)

// Rigor selects how thorough a council investigation is.
type Rigor string

const (
	// RigorFast dispatches a single panel.
	RigorFast Rigor = "fast"
	// RigorStandard dispatches the full configured panel set.
	RigorStandard Rigor = "standard"
	// RigorDebate adds bounded critique rounds after synthesis.
	RigorDebate Rigor = "debate"
)

// TriagePanel is the most general specialist, used when classification
// degrades or when fast mode does not name a panel.
const TriagePanel = "triage"

// Verdict is the classifier's decision for one query.
type Verdict struct {
	// Mode is the selected execution strategy.
	Mode Mode `json:"mode"`

	// Panel is the target specialist. Set for SubAgent, and for Direct it
	// names the tool family; empty for Council.
	Panel string `json:"panel,omitempty"`

	// Tool is the single tool to invoke in Direct mode.
	Tool string `json:"tool,omitempty"`

	// Rigor is the council rigor. Only meaningful when Mode is Council.
	Rigor Rigor `json:"rigor,omitempty"`

	// Confidence is the classifier's confidence in this verdict.
	Confidence float64 `json:"confidence"`

	// RuleMatched names the deterministic rule that produced the verdict.
	// Empty when the model fallback decided.
	RuleMatched string `json:"rule_matched,omitempty"`

	// Degraded is true when the model fallback failed and the verdict is
	// the safe default rather than a real classification.
	Degraded bool `json:"degraded,omitempty"`
}

// rule is one deterministic classification rule. Rules are evaluated in
// order; the first match wins.
type rule struct {
	name  string
	match func(q string) bool
	build func(q string) Verdict
}

// Classifier routes queries to execution modes.
type Classifier struct {
	provider provider.Provider
	logger   *slog.Logger
	timeout  time.Duration
	rules    []rule
	cache    *lru.Cache[string, Verdict]
}

// Options configures a Classifier.
type Options struct {
	// Timeout bounds the model fallback call. Defaults to 10s.
	Timeout time.Duration

	// CacheSize is the verdict cache capacity. Defaults to 256.
	CacheSize int
}

// New creates a classifier backed by the given provider for the fallback
// path. The provider may be nil, in which case unmatched queries degrade
// straight to the safe default.
func New(p provider.Provider, logger *slog.Logger, opts Options) (*Classifier, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	cache, err := lru.New[string, Verdict](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create verdict cache: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		provider: p,
		logger:   logger,
		timeout:  opts.Timeout,
		rules:    defaultRules(),
		cache:    cache,
	}, nil
}

// Classify maps a query to an execution mode. Known narrow-scope queries
// never reach the model; ambiguity defaults to Council/Standard; a failed
// model fallback degrades to SubAgent routing to the triage panel.
func (c *Classifier) Classify(ctx context.Context, query string, state *investigation.State) Verdict {
	normalized := normalize(query)

	for _, r := range c.rules {
		if r.match(normalized) {
			v := r.build(normalized)
			v.RuleMatched = r.name
			c.logger.Debug("classification rule matched",
				"rule", r.name, "mode", string(v.Mode))
			return v
		}
	}

	key := cacheKey(normalized, state)
	if cached, ok := c.cache.Get(key); ok {
		return cached
	}

	v, err := c.fallback(ctx, query, state)
	if err != nil {
		c.logger.Warn("model classification failed, degrading to triage",
			"error", err)
		return Verdict{
			Mode:       ModeSubAgent,
			Panel:      TriagePanel,
			Confidence: 0.3,
			Degraded:   true,
		}
	}

	c.cache.Add(key, v)
	return v
}

// cacheKey scopes cached verdicts to the investigation's progress. The same
// query can classify differently once findings exist, because the fallback
// prompt carries the phase and finding count.
func cacheKey(normalized string, state *investigation.State) string {
	if state == nil || len(state.Findings) == 0 {
		return normalized
	}
	return fmt.Sprintf("%s|%s|%d", normalized, state.Phase, len(state.Findings))
}

// fallback asks the model for a schema-constrained classification.
func (c *Classifier) fallback(ctx context.Context, query string, state *investigation.State) (Verdict, error) {
	if c.provider == nil {
		return Verdict{}, fmt.Errorf("no provider configured")
	}

	prompt := buildFallbackPrompt(query, state)
	raw, err := c.provider.Complete(ctx, prompt, verdictSchema(), c.timeout)
	if err != nil {
		return Verdict{}, fmt.Errorf("classification call failed: %w", err)
	}

	var out struct {
		Mode       string  `json:"mode"`
		Panel      string  `json:"panel"`
		Rigor      string  `json:"rigor"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return Verdict{}, fmt.Errorf("malformed classification output: %w", err)
	}

	v := Verdict{
		Panel:      out.Panel,
		Confidence: out.Confidence,
	}

	switch Mode(out.Mode) {
	case ModeDirect, ModeSubAgent, ModeCouncil:
		v.Mode = Mode(out.Mode)
	default:
		// Unknown mode from the model counts as ambiguity
		v.Mode = ModeCouncil
		v.Rigor = RigorStandard
		return v, nil
	}

	if v.Mode == ModeCouncil {
		switch Rigor(out.Rigor) {
		case RigorFast, RigorStandard, RigorDebate:
			v.Rigor = Rigor(out.Rigor)
		default:
			v.Rigor = RigorStandard
		}
	}
	if v.Mode == ModeSubAgent && v.Panel == "" {
		v.Panel = TriagePanel
	}
	return v, nil
}

func buildFallbackPrompt(query string, state *investigation.State) string {
	var b strings.Builder
	b.WriteString("Classify the following incident investigation query into an execution mode.\n\n")
	b.WriteString("Modes:\n")
	b.WriteString("- direct: a single narrow lookup answerable with one tool call\n")
	b.WriteString("- sub_agent: one specialist panel suffices (panels: trace, logs, metrics, alerts, change, triage)\n")
	b.WriteString("- council: broad or high-severity, needs multiple panels; pick rigor fast, standard, or debate\n\n")
	b.WriteString("Prefer council/standard when uncertain.\n\n")
	if state != nil && len(state.Findings) > 0 {
		fmt.Fprintf(&b, "The investigation is in phase %s with %d prior findings.\n\n", state.Phase, len(state.Findings))
	}
	fmt.Fprintf(&b, "Query: %s\n", query)
	return b.String()
}

func verdictSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"mode", "confidence"},
		"properties": map[string]interface{}{
			"mode": map[string]interface{}{
				"type": "string",
				"enum": []string{"direct", "sub_agent", "council"},
			},
			"panel": map[string]interface{}{
				"type": "string",
				"enum": []string{"trace", "logs", "metrics", "alerts", "change", "triage"},
			},
			"rigor": map[string]interface{}{
				"type": "string",
				"enum": []string{"fast", "standard", "debate"},
			},
			"confidence": map[string]interface{}{
				"type":    "number",
				"minimum": 0,
				"maximum": 1,
			},
		},
	}
}

func normalize(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

func containsAny(q string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(q, t) {
			return true
		}
	}
	return false
}

// defaultRules returns the deterministic rule table. New narrow-scope
// patterns are added here, not as new classifier types.
func defaultRules() []rule {
	return []rule{
		{
			name: "error_rate_lookup",
			match: func(q string) bool {
				return strings.Contains(q, "error rate")
			},
			build: func(q string) Verdict {
				return Verdict{
					Mode:       ModeDirect,
					Panel:      "metrics",
					Tool:       "error_rate",
					Confidence: 0.95,
				}
			},
		},
		{
			name: "alert_listing",
			match: func(q string) bool {
				return containsAny(q, "which alerts", "what alerts", "list alerts", "alerts fired", "alerts firing")
			},
			build: func(q string) Verdict {
				return Verdict{
					Mode:       ModeDirect,
					Panel:      "alerts",
					Tool:       "list_alerts",
					Confidence: 0.9,
				}
			},
		},
		{
			name: "recent_change_lookup",
			match: func(q string) bool {
				return containsAny(q, "recent deploy", "recent change", "what changed", "last deploy", "recent rollout")
			},
			build: func(q string) Verdict {
				return Verdict{
					Mode:       ModeDirect,
					Panel:      "change",
					Tool:       "recent_changes",
					Confidence: 0.9,
				}
			},
		},
		{
			name: "log_investigation",
			match: func(q string) bool {
				return containsAny(q, "logs for", "log entries", "in the logs", "error message", "stack trace in")
			},
			build: func(q string) Verdict {
				return Verdict{
					Mode:       ModeSubAgent,
					Panel:      "logs",
					Confidence: 0.85,
				}
			},
		},
		{
			name: "trace_investigation",
			match: func(q string) bool {
				return containsAny(q, "slow request", "latency of", "trace for", "slow trace", "which span")
			},
			build: func(q string) Verdict {
				return Verdict{
					Mode:       ModeSubAgent,
					Panel:      "trace",
					Confidence: 0.85,
				}
			},
		},
		{
			name: "high_severity_incident",
			match: func(q string) bool {
				return containsAny(q, "outage", "sev1", "sev-1", "critical incident", "production down", "all services", "cascading")
			},
			build: func(q string) Verdict {
				return Verdict{
					Mode:       ModeCouncil,
					Rigor:      RigorDebate,
					Confidence: 0.9,
				}
			},
		},
		{
			name: "root_cause_request",
			match: func(q string) bool {
				return containsAny(q, "root cause", "why is", "why did", "investigate", "what is causing", "what caused")
			},
			build: func(q string) Verdict {
				return Verdict{
					Mode:       ModeCouncil,
					Rigor:      RigorStandard,
					Confidence: 0.8,
				}
			},
		},
	}
}
