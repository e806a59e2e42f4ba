package breaker

import (
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Set manages one breaker per dependency, created lazily on first use.
// All breakers in a set share the same configuration.
type Set struct {
	config      Config
	logger      *slog.Logger
	transitions *prometheus.CounterVec

	mu       sync.Mutex
	breakers map[string]*Breaker
	observer func(dependency, from, to string)
}

// NewSet creates a breaker set. If reg is non-nil, a transition counter is
// registered with it.
func NewSet(cfg Config, logger *slog.Logger, reg prometheus.Registerer) *Set {
	s := &Set{
		config:   cfg.withDefaults(),
		logger:   logger,
		breakers: make(map[string]*Breaker),
	}
	if reg != nil {
		s.transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inquest_breaker_transitions_total",
			Help: "Circuit breaker state transitions by dependency and new state.",
		}, []string{"dependency", "to"})
		reg.MustRegister(s.transitions)
	}
	return s
}

// Observe registers an additional transition observer, invoked after the
// built-in logging and metrics. Audit logging hooks in here.
func (s *Set) Observe(fn func(dependency, from, to string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = fn
}

// For returns the breaker guarding the named dependency, creating it on
// first use.
func (s *Set) For(dependency string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.breakers[dependency]
	if !ok {
		b = New(dependency, s.config, s.onTransition)
		s.breakers[dependency] = b
	}
	return b
}

// Snapshots returns a point-in-time view of every breaker in the set.
func (s *Set) Snapshots() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Snapshot, 0, len(s.breakers))
	for _, b := range s.breakers {
		out = append(out, b.Snapshot())
	}
	return out
}

func (s *Set) onTransition(dependency string, from, to State) {
	if s.logger != nil {
		s.logger.Warn("circuit breaker state change",
			"dependency", dependency,
			"from", from.String(),
			"to", to.String())
	}
	if s.transitions != nil {
		s.transitions.WithLabelValues(dependency, to.String()).Inc()
	}

	s.mu.Lock()
	obs := s.observer
	s.mu.Unlock()
	if obs != nil {
		obs(dependency, from.String(), to.String())
	}
}
