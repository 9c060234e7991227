package resilience

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

var errBackend = errors.New("backend down")

func fail() error { return errBackend }
func ok() error   { return nil }

func TestCircuitBreaker_InitialState(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Second)
	if cb.State() != StateClosed {
		t.Errorf("expected initial state closed, got %v", cb.State())
	}
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker(3, time.Second, WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		if err := cb.Execute(fail); !errors.Is(err, errBackend) {
			t.Fatalf("call %d: expected backend error, got %v", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %v", cb.State())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Fatal("open breaker must not call fn")
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Second)
	_ = cb.Execute(fail)
	_ = cb.Execute(ok)
	_ = cb.Execute(fail)
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after non-consecutive failures, got %v", cb.State())
	}
	_ = cb.Execute(fail)
	if cb.State() != StateOpen {
		t.Fatalf("expected open after two consecutive failures, got %v", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenTrial(t *testing.T) {
	tests := []struct {
		name  string
		trial func() error
		want  State
	}{
		{name: "success closes", trial: ok, want: StateClosed},
		{name: "failure reopens", trial: fail, want: StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
			cb := NewCircuitBreaker(1, 5*time.Second, WithClock(clock.Now))
			_ = cb.Execute(fail)

			clock.Advance(4 * time.Second)
			if err := cb.Execute(ok); !errors.Is(err, ErrCircuitOpen) {
				t.Fatalf("expected rejection before cooldown, got %v", err)
			}

			clock.Advance(time.Second)
			_ = cb.Execute(tt.trial)
			if cb.State() != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, cb.State())
			}
		})
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	var transitions []string
	cb := NewCircuitBreaker(1, time.Second,
		WithClock(clock.Now),
		WithStateChange(func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}),
	)

	_ = cb.Execute(fail)
	clock.Advance(time.Second)
	_ = cb.Execute(ok)

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("expected %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("transition %d: expected %s, got %s", i, want[i], transitions[i])
		}
	}
}

func TestCircuitBreaker_HalfOpenAdmitsOneTrial(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker(1, time.Second, WithClock(clock.Now))
	_ = cb.Execute(fail)
	clock.Advance(time.Second)

	entered := make(chan struct{})
	finish := make(chan struct{})
	trialDone := make(chan error, 1)
	go func() {
		trialDone <- cb.Execute(func() error {
			close(entered)
			<-finish
			return nil
		})
	}()
	<-entered

	const callers = 8
	var wg sync.WaitGroup
	var calls atomic.Int32
	errs := make(chan error, callers)
	for range callers {
		wg.Go(func() {
			errs <- cb.Execute(func() error { calls.Add(1); return nil })
		})
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("expected ErrCircuitOpen during the trial, got %v", err)
		}
	}
	if calls.Load() != 0 {
		t.Fatalf("%d calls ran during the trial", calls.Load())
	}

	close(finish)
	if err := <-trialDone; err != nil {
		t.Fatalf("trial error = %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after successful trial, got %v", cb.State())
	}
	if err := cb.Execute(ok); err != nil {
		t.Fatalf("closed breaker refused: %v", err)
	}
}

func TestCircuitBreaker_FailedTrialFreesSlot(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker(1, time.Second, WithClock(clock.Now))
	_ = cb.Execute(fail)
	clock.Advance(time.Second)
	_ = cb.Execute(fail)

	clock.Advance(time.Second)
	if err := cb.Execute(ok); err != nil {
		t.Fatalf("second trial refused: %v", err)
	}
}

func TestState_String(t *testing.T) {
	if State(42).String() != "unknown" {
		t.Fatalf("expected unknown, got %s", State(42).String())
	}
}
