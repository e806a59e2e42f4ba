// Package breaker implements per-dependency circuit breakers for the
// telemetry backends that investigation tools call. A tripped breaker makes
// tool calls fail fast instead of piling timeouts onto a degraded backend.
package breaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOpen is returned when a call is rejected because the breaker is open.
var ErrOpen = errors.New("circuit breaker open")

// ErrCallerFault marks a call that failed before reaching the dependency,
// such as rejected input. Do passes it through without recording an outcome,
// so caller mistakes never count against the dependency's health.
var ErrCallerFault = errors.New("invalid request")

// State is the breaker state.
type State int

const (
	// Closed means calls flow normally.
	Closed State = iota
	// Open means calls fail fast without touching the dependency.
	Open
	// HalfOpen means exactly one trial call is admitted to probe recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config controls breaker behavior.
type Config struct {
	// FailureThreshold is the number of consecutive failures that trips the
	// breaker from closed to open.
	FailureThreshold int

	// CoolDown is the initial wait before an open breaker admits a trial
	// call. Doubles on each failed trial.
	CoolDown time.Duration

	// MaxCoolDown caps the exponential cooldown growth.
	MaxCoolDown time.Duration
}

// DefaultConfig returns the default breaker configuration.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		CoolDown:         30 * time.Second,
		MaxCoolDown:      5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.CoolDown <= 0 {
		c.CoolDown = d.CoolDown
	}
	if c.MaxCoolDown <= 0 {
		c.MaxCoolDown = d.MaxCoolDown
	}
	return c
}

// Breaker is a circuit breaker guarding one named dependency.
type Breaker struct {
	dependency string
	config     Config
	onChange   func(dependency string, from, to State)

	mu             sync.Mutex
	state          State
	failures       int
	coolDown       time.Duration
	trialInFlight  bool
	lastFailure    time.Time
	lastTransition time.Time
}

// New creates a breaker for the named dependency. onChange, if non-nil, is
// called on every state transition.
func New(dependency string, cfg Config, onChange func(dependency string, from, to State)) *Breaker {
	cfg = cfg.withDefaults()
	return &Breaker{
		dependency:     dependency,
		config:         cfg,
		onChange:       onChange,
		state:          Closed,
		coolDown:       cfg.CoolDown,
		lastTransition: time.Now(),
	}
}

// Allow reports whether a call may proceed right now. In the half-open state
// only one trial call is admitted until its outcome is recorded.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if time.Since(b.lastFailure) >= b.coolDown {
			b.transition(HalfOpen)
			b.trialInFlight = true
			return true
		}
		return false
	case HalfOpen:
		if b.trialInFlight {
			return false
		}
		b.trialInFlight = true
		return true
	default:
		return false
	}
}

// RecordSuccess marks a successful call. A successful trial in the half-open
// state closes the breaker and resets the cooldown.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.coolDown = b.config.CoolDown
		b.transition(Closed)
	case Closed:
		b.failures = 0
	}
}

// RecordFailure marks a failed call. Consecutive failures in the closed state
// trip the breaker; a failed trial in the half-open state re-opens it with a
// doubled cooldown.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = time.Now()

	switch b.state {
	case Closed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.transition(Open)
		}
	case HalfOpen:
		b.coolDown *= 2
		if b.coolDown > b.config.MaxCoolDown {
			b.coolDown = b.config.MaxCoolDown
		}
		b.transition(Open)
	}
}

// Do runs fn behind the breaker. A rejected call returns an error wrapping
// ErrOpen without invoking fn. Errors wrapping ErrCallerFault are returned
// unchanged without recording an outcome.
func (b *Breaker) Do(fn func() error) error {
	if !b.Allow() {
		return fmt.Errorf("dependency %q unavailable: %w", b.dependency, ErrOpen)
	}
	err := fn()
	switch {
	case err == nil:
		b.RecordSuccess()
	case errors.Is(err, ErrCallerFault):
		b.releaseTrial()
	default:
		b.RecordFailure()
	}
	return err
}

// releaseTrial frees a half-open trial slot without judging the dependency.
// The call never reached the backend, so its outcome proves nothing.
func (b *Breaker) releaseTrial() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == HalfOpen {
		b.trialInFlight = false
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Dependency returns the dependency name this breaker guards.
func (b *Breaker) Dependency() string {
	return b.dependency
}

// Snapshot is a point-in-time view of a breaker for status reporting.
type Snapshot struct {
	Dependency     string        `json:"dependency"`
	State          string        `json:"state"`
	Failures       int           `json:"failures"`
	CoolDown       time.Duration `json:"cool_down"`
	LastTransition time.Time     `json:"last_transition"`
}

// Snapshot returns a point-in-time view of the breaker.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Dependency:     b.dependency,
		State:          b.state.String(),
		Failures:       b.failures,
		CoolDown:       b.coolDown,
		LastTransition: b.lastTransition,
	}
}

// transition switches state and notifies the change hook. Caller holds b.mu.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.lastTransition = time.Now()
	b.trialInFlight = false
	if to == Closed {
		b.failures = 0
	}
	if b.onChange != nil {
		b.onChange(b.dependency, from, to)
	}
}
