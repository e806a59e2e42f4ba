package events

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inquest-labs/inquest/internal/agent/investigation"
)

func drain(e *Emitter) []Event {
	var out []Event
	for ev := range e.Events() {
		out = append(out, ev)
	}
	return out
}

func TestStreamOrderAndSequence(t *testing.T) {
	e := NewEmitter(8)
	state := investigation.NewState("s1")

	e.State(state)
	e.PanelStarted("logs")
	e.PanelFinished("logs", investigation.PanelSuccess)
	e.Final(&investigation.SynthesisResult{Narrative: "done"}, nil)

	evs := drain(e)
	require.Len(t, evs, 4)
	assert.Equal(t, TypeState, evs[0].Type)
	assert.Equal(t, TypePanelStarted, evs[1].Type)
	assert.Equal(t, TypePanelFinished, evs[2].Type)
	assert.Equal(t, TypeFinal, evs[3].Type)
	for i, ev := range evs {
		assert.Equal(t, i, ev.Seq)
		assert.False(t, ev.Timestamp.IsZero())
	}
}

func TestConcurrentPanelEventsKeepSequenceContiguous(t *testing.T) {
	e := NewEmitter(4)

	collected := make(chan []Event, 1)
	go func() { collected <- drain(e) }()

	var wg sync.WaitGroup
	for g := 0; g < 5; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				e.PanelStarted("logs")
				e.PanelFinished("logs", investigation.PanelSuccess)
			}
		}()
	}
	wg.Wait()
	e.Final(nil, nil)

	evs := <-collected
	require.Len(t, evs, 201)
	for i, ev := range evs {
		assert.Equal(t, i, ev.Seq, "no duplicate or reordered sequence numbers under fan-out")
	}
	assert.Equal(t, TypeFinal, evs[len(evs)-1].Type)
}

func TestFinalClosesStreamAndDropsLateEvents(t *testing.T) {
	e := NewEmitter(8)
	e.Final(nil, nil)

	// Late emissions must not panic or reopen the stream
	e.PanelStarted("logs")
	e.Final(nil, errors.New("again"))

	evs := drain(e)
	require.Len(t, evs, 1)
	assert.Equal(t, TypeFinal, evs[0].Type)
	assert.Empty(t, evs[0].Error)
}

func TestFinalCarriesError(t *testing.T) {
	e := NewEmitter(8)
	e.Final(nil, errors.New("investigation deadline elapsed"))

	evs := drain(e)
	require.Len(t, evs, 1)
	assert.Equal(t, "investigation deadline elapsed", evs[0].Error)
}

func TestPanelFinishedCarriesStatus(t *testing.T) {
	e := NewEmitter(8)
	e.PanelFinished("trace", investigation.PanelTimeout)
	e.Final(nil, nil)

	evs := drain(e)
	require.Len(t, evs, 2)
	assert.Equal(t, "trace", evs[0].Panel)
	assert.Equal(t, investigation.PanelTimeout, evs[0].Status)
}
