package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(cfg Config) (*Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	b := New(cfg)
	b.nowFunc = clock.Now
	return b, clock
}

func TestNew_Defaults(t *testing.T) {
	b := New(Config{})
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 5, b.cfg.FailureThreshold)
	assert.Equal(t, 2, b.cfg.SuccessThreshold)
	assert.Equal(t, 30*time.Second, b.cfg.OpenTimeout)
}

func TestNew_CustomConfig(t *testing.T) {
	b := New(Config{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		OpenTimeout:      10 * time.Second,
	})
	assert.Equal(t, 3, b.cfg.FailureThreshold)
	assert.Equal(t, 1, b.cfg.SuccessThreshold)
	assert.Equal(t, 10*time.Second, b.cfg.OpenTimeout)
}

func TestBreaker_ClosedAllowsRequests(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3})
	require.NoError(t, b.Allow())
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3, OpenTimeout: time.Hour})

	b.RecordFailure()
	b.RecordFailure()
	require.NoError(t, b.Allow(), "should still be closed below threshold")

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3, OpenTimeout: time.Hour})

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	// Two consecutive failures since the success; still closed.
	require.NoError(t, b.Allow())
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_TransitionsToHalfOpenAfterTimeout(t *testing.T) {
	b, clock := newTestBreaker(Config{FailureThreshold: 1, OpenTimeout: time.Minute})

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())

	clock.Advance(time.Minute + time.Second)

	require.NoError(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())
}

func TestBreaker_HalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	b, clock := newTestBreaker(Config{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		OpenTimeout:      time.Minute,
	})

	b.RecordFailure()
	clock.Advance(time.Minute + time.Second)
	require.NoError(t, b.Allow())

	b.RecordSuccess()
	assert.Equal(t, StateHalfOpen, b.State(), "not yet at success threshold")

	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State(), "should close after success threshold")
}

func TestBreaker_HalfOpenReopensOnFailure(t *testing.T) {
	b, clock := newTestBreaker(Config{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		OpenTimeout:      time.Minute,
	})

	b.RecordFailure()
	clock.Advance(time.Minute + time.Second)
	require.NoError(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State(), "should reopen on failure in half-open")
}

func TestBreaker_HalfOpenProbeBudget(t *testing.T) {
	b, clock := newTestBreaker(Config{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		OpenTimeout:      time.Minute,
	})

	b.RecordFailure()
	clock.Advance(time.Minute + time.Second)

	require.NoError(t, b.Allow(), "first probe flips to half-open")
	require.NoError(t, b.Allow(), "second probe fits the budget")
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen, "third call exceeds the probe budget")

	// Probes report success; the breaker closes and traffic resumes.
	b.RecordSuccess()
	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
	require.NoError(t, b.Allow())
}

func TestBreaker_UnreportedProbesReArm(t *testing.T) {
	b, clock := newTestBreaker(Config{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		OpenTimeout:      time.Minute,
	})

	b.RecordFailure()
	clock.Advance(time.Minute + time.Second)
	require.NoError(t, b.Allow())
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	// The probe never reports back; after another window a new probe
	// goes out instead of wedging half-open forever.
	clock.Advance(time.Minute + time.Second)
	require.NoError(t, b.Allow())
}

func TestBreaker_Execute(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 2, OpenTimeout: time.Hour})

	calls := 0
	boom := errors.New("verifier unreachable")

	err := b.Execute(func() error { calls++; return nil })
	require.NoError(t, err)

	err = b.Execute(func() error { calls++; return boom })
	assert.ErrorIs(t, err, boom)
	err = b.Execute(func() error { calls++; return boom })
	assert.ErrorIs(t, err, boom)

	// Threshold reached: fn must not run anymore.
	err = b.Execute(func() error { calls++; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 3, calls)
}

func TestBreaker_ExecuteRecoversThroughHalfOpen(t *testing.T) {
	b, clock := newTestBreaker(Config{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		OpenTimeout:      time.Minute,
	})

	require.Error(t, b.Execute(func() error { return errors.New("boom") }))
	assert.ErrorIs(t, b.Execute(func() error { return nil }), ErrCircuitOpen)

	clock.Advance(time.Minute + time.Second)

	require.NoError(t, b.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_StateChangeCallback(t *testing.T) {
	var transitions []struct{ from, to State }
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	b := New(Config{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		OpenTimeout:      time.Minute,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, struct{ from, to State }{from, to})
		},
	})
	b.nowFunc = clock.Now

	// closed -> open
	b.RecordFailure()
	b.RecordFailure()
	require.Len(t, transitions, 1)
	assert.Equal(t, StateClosed, transitions[0].from)
	assert.Equal(t, StateOpen, transitions[0].to)

	// open -> half-open
	clock.Advance(time.Minute + time.Second)
	_ = b.Allow()
	require.Len(t, transitions, 2)
	assert.Equal(t, StateOpen, transitions[1].from)
	assert.Equal(t, StateHalfOpen, transitions[1].to)

	// half-open -> closed
	b.RecordSuccess()
	require.Len(t, transitions, 3)
	assert.Equal(t, StateHalfOpen, transitions[2].from)
	assert.Equal(t, StateClosed, transitions[2].to)
}

func TestBreaker_StateAppliesOpenTimeout(t *testing.T) {
	b, clock := newTestBreaker(Config{FailureThreshold: 1, OpenTimeout: time.Minute})

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.state) // direct field read on purpose

	clock.Advance(time.Minute + time.Second)

	assert.Equal(t, StateHalfOpen, b.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestBreaker_OpenDoesNotAllowBeforeTimeout(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 1, OpenTimeout: time.Hour})

	b.RecordFailure()
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestBreaker_ConcurrentAccess(t *testing.T) {
	// Exercises RecordSuccess, RecordFailure, Allow, and State under
	// concurrency. Run with: go test -race ./internal/circuitbreaker/
	b := New(Config{
		FailureThreshold: 10,
		SuccessThreshold: 5,
		OpenTimeout:      time.Millisecond,
	})

	const goroutines = 20
	const iterations = 500

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				switch id % 4 {
				case 0:
					b.RecordSuccess()
				case 1:
					b.RecordFailure()
				case 2:
					_ = b.Allow()
				case 3:
					_ = b.State()
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Contains(t, []State{StateClosed, StateOpen, StateHalfOpen}, b.State())
}
