// Package events defines the ordered event stream an investigation turn
// emits to its transport: one state announcement, zero or more progress
// events, and exactly one final result.
package events

import (
	"sync"
	"time"

	"github.com/inquest-labs/inquest/internal/agent/investigation"
)

// Type identifies the kind of event.
type Type string

const (
	// TypeState announces the investigation state at turn start.
	TypeState Type = "state"
	// TypePanelStarted reports a panel beginning work.
	TypePanelStarted Type = "panel_started"
	// TypePanelFinished reports a panel reaching a terminal result.
	TypePanelFinished Type = "panel_finished"
	// TypeFinal carries the turn's single terminal result.
	TypeFinal Type = "final"
)

// Event is one item in the ordered stream for a turn.
type Event struct {
	// Type is the event kind.
	Type Type `json:"type"`

	// Seq orders events within a turn, starting at 0.
	Seq int `json:"seq"`

	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"timestamp"`

	// Panel is set on panel progress events.
	Panel string `json:"panel,omitempty"`

	// Status is set on panel_finished events.
	Status investigation.PanelStatus `json:"status,omitempty"`

	// State is set on the state announcement.
	State *investigation.State `json:"state,omitempty"`

	// Result is set on the final event.
	Result *investigation.SynthesisResult `json:"result,omitempty"`

	// Error carries a turn-fatal error message on the final event.
	Error string `json:"error,omitempty"`
}

// Emitter produces the ordered event stream for one turn. It enforces the
// stream contract: the state announcement comes first, progress events
// follow, and exactly one final event terminates the stream.
//
// Safe for concurrent use: panel goroutines emit progress in parallel, and
// the mutex serializes sequence assignment with the channel send so consumers
// always observe contiguous, ascending Seq values.
type Emitter struct {
	mu    sync.Mutex
	ch    chan Event
	seq   int
	final bool
}

// NewEmitter creates an emitter with the given channel buffer size.
func NewEmitter(buffer int) *Emitter {
	if buffer <= 0 {
		buffer = 16
	}
	return &Emitter{ch: make(chan Event, buffer)}
}

// Events returns the receive side of the stream.
func (e *Emitter) Events() <-chan Event {
	return e.ch
}

// State emits the state announcement.
func (e *Emitter) State(s *investigation.State) {
	e.emit(Event{Type: TypeState, State: s})
}

// PanelStarted emits a panel start progress event.
func (e *Emitter) PanelStarted(panel string) {
	e.emit(Event{Type: TypePanelStarted, Panel: panel})
}

// PanelFinished emits a panel completion progress event.
func (e *Emitter) PanelFinished(panel string, status investigation.PanelStatus) {
	e.emit(Event{Type: TypePanelFinished, Panel: panel, Status: status})
}

// Final emits the single terminal event and closes the stream. Further
// emissions are dropped.
func (e *Emitter) Final(result *investigation.SynthesisResult, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.final {
		return
	}
	ev := Event{Type: TypeFinal, Result: result}
	if err != nil {
		ev.Error = err.Error()
	}
	e.send(ev)
	e.final = true
	close(e.ch)
}

func (e *Emitter) emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.final {
		return
	}
	e.send(ev)
}

// send stamps and delivers one event. Caller holds e.mu.
func (e *Emitter) send(ev Event) {
	ev.Seq = e.seq
	ev.Timestamp = time.Now()
	e.seq++
	e.ch <- ev
}
