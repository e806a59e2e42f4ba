package breaker

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerTripsAtThreshold(t *testing.T) {
	b := New("traces", Config{FailureThreshold: 3, CoolDown: time.Minute}, nil)

	for i := 0; i < 2; i++ {
		require.True(t, b.Allow())
		b.RecordFailure()
		assert.Equal(t, Closed, b.State())
	}

	require.True(t, b.Allow())
	b.RecordFailure()
	assert.Equal(t, Open, b.State())
}

func TestBreakerFailsFastWhenOpen(t *testing.T) {
	b := New("traces", Config{FailureThreshold: 1, CoolDown: time.Minute}, nil)
	b.RecordFailure()
	require.Equal(t, Open, b.State())

	calls := 0
	start := time.Now()
	err := b.Do(func() error {
		calls++
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOpen))
	assert.Equal(t, 0, calls, "open breaker must not invoke the dependency")
	assert.Less(t, time.Since(start), 50*time.Millisecond, "rejection must be immediate")
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := New("logs", Config{FailureThreshold: 3, CoolDown: time.Minute}, nil)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	// Two more failures should not trip: the streak was broken
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, Closed, b.State())
}

func TestBreakerAdmitsExactlyOneTrialAfterCoolDown(t *testing.T) {
	b := New("metrics", Config{FailureThreshold: 1, CoolDown: 20 * time.Millisecond}, nil)
	b.RecordFailure()
	require.Equal(t, Open, b.State())
	require.False(t, b.Allow())

	time.Sleep(30 * time.Millisecond)

	assert.True(t, b.Allow(), "first call after cool-down is the trial")
	assert.Equal(t, HalfOpen, b.State())
	assert.False(t, b.Allow(), "only one trial is admitted while it is in flight")

	b.RecordSuccess()
	assert.Equal(t, Closed, b.State())
	assert.True(t, b.Allow())
}

func TestBreakerFailedTrialDoublesCoolDown(t *testing.T) {
	cfg := Config{FailureThreshold: 1, CoolDown: 10 * time.Millisecond, MaxCoolDown: 25 * time.Millisecond}
	b := New("alerts", cfg, nil)

	b.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	require.True(t, b.Allow())
	b.RecordFailure()
	require.Equal(t, Open, b.State())

	snap := b.Snapshot()
	assert.Equal(t, 20*time.Millisecond, snap.CoolDown)

	// Another failed trial hits the cap
	time.Sleep(25 * time.Millisecond)
	require.True(t, b.Allow())
	b.RecordFailure()
	snap = b.Snapshot()
	assert.Equal(t, cfg.MaxCoolDown, snap.CoolDown)
}

func TestBreakerSuccessfulTrialResetsCoolDown(t *testing.T) {
	b := New("changes", Config{FailureThreshold: 1, CoolDown: 10 * time.Millisecond, MaxCoolDown: time.Second}, nil)

	b.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	require.True(t, b.Allow())
	b.RecordFailure() // cooldown now 20ms

	time.Sleep(25 * time.Millisecond)
	require.True(t, b.Allow())
	b.RecordSuccess()

	snap := b.Snapshot()
	assert.Equal(t, "closed", snap.State)
	assert.Equal(t, 10*time.Millisecond, snap.CoolDown)
}

func TestBreakerOnChangeCallback(t *testing.T) {
	var transitions []string
	b := New("traces", Config{FailureThreshold: 1, CoolDown: 10 * time.Millisecond}, func(dep string, from, to State) {
		transitions = append(transitions, fmt.Sprintf("%s:%s->%s", dep, from, to))
	})

	b.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	b.Allow()
	b.RecordSuccess()

	require.Equal(t, []string{
		"traces:closed->open",
		"traces:open->half_open",
		"traces:half_open->closed",
	}, transitions)
}

func TestSetCreatesIndependentBreakers(t *testing.T) {
	s := NewSet(Config{FailureThreshold: 1, CoolDown: time.Minute}, nil, nil)

	s.For("traces").RecordFailure()
	assert.Equal(t, Open, s.For("traces").State())
	assert.Equal(t, Closed, s.For("logs").State())

	assert.Same(t, s.For("traces"), s.For("traces"))
	assert.Len(t, s.Snapshots(), 2)
}

func TestBreakerDoRecordsOutcomes(t *testing.T) {
	b := New("logs", Config{FailureThreshold: 2, CoolDown: time.Minute}, nil)

	require.Error(t, b.Do(func() error { return errors.New("boom") }))
	require.NoError(t, b.Do(func() error { return nil }))
	require.Error(t, b.Do(func() error { return errors.New("boom") }))
	assert.Equal(t, Closed, b.State(), "success in between broke the failure streak")
}

func TestBreakerDoIgnoresCallerFaults(t *testing.T) {
	b := New("metrics", Config{FailureThreshold: 2, CoolDown: time.Minute}, nil)

	for i := 0; i < 5; i++ {
		err := b.Do(func() error {
			return fmt.Errorf("%w: service is required", ErrCallerFault)
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrCallerFault))
	}
	assert.Equal(t, Closed, b.State(), "caller mistakes must not trip a healthy backend's breaker")
}

func TestBreakerCallerFaultReleasesTrialSlot(t *testing.T) {
	b := New("metrics", Config{FailureThreshold: 1, CoolDown: 10 * time.Millisecond}, nil)
	b.RecordFailure()
	require.Equal(t, Open, b.State())

	time.Sleep(15 * time.Millisecond)

	// A malformed trial proves nothing about the backend
	require.Error(t, b.Do(func() error { return fmt.Errorf("%w: bad args", ErrCallerFault) }))
	require.Equal(t, HalfOpen, b.State())

	require.NoError(t, b.Do(func() error { return nil }), "a real trial is still admitted")
	assert.Equal(t, Closed, b.State())
}

func TestSetObserverReceivesTransitions(t *testing.T) {
	s := NewSet(Config{FailureThreshold: 1, CoolDown: time.Minute}, nil, nil)

	var got []string
	s.Observe(func(dep, from, to string) {
		got = append(got, fmt.Sprintf("%s:%s->%s", dep, from, to))
	})

	s.For("traces").RecordFailure()
	require.Equal(t, []string{"traces:closed->open"}, got)
}
