package aml_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/aml-go/aml"
	_ "github.com/aml-go/aml/backend/auto"
)

func newTestLoop(t *testing.T) *aml.Loop {
	t.Helper()
	loop, err := aml.New()
	if err != nil {
		t.Fatalf("aml.New: %v", err)
	}
	t.Cleanup(func() { aml.Unref(loop) })
	return loop
}

// Scenario 1 from spec.md §8: a ticker firing every 1ms, stopped by Exit
// after 10 ticks, should have run its callback exactly 10 times.
func TestSingleTicker(t *testing.T) {
	loop := newTestLoop(t)

	var count int32
	ticker := aml.NewTicker(time.Millisecond, func(any) {
		if atomic.AddInt32(&count, 1) == 10 {
			loop.Exit()
		}
	})
	defer aml.Unref(ticker)

	if err := loop.Start(ticker); err != nil {
		t.Fatalf("Start ticker: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- loop.Run() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return within 2s")
	}

	if got := atomic.LoadInt32(&count); got != 10 {
		t.Fatalf("expected exactly 10 ticks, got %d", got)
	}
}

// Exit called from any goroutine causes a subsequent Run to return after
// at most one more dispatch pass, per spec.md §8.
func TestExitFromAnotherGoroutineStopsRun(t *testing.T) {
	loop := newTestLoop(t)

	done := make(chan error, 1)
	go func() { done <- loop.Run() }()

	time.Sleep(10 * time.Millisecond)
	loop.Exit()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after Exit")
	}
}

// Interrupt called during a blocking Poll(-1) must cause Poll to return
// within a bounded time regardless of other subscriptions, per spec.md §8.
func TestInterruptUnblocksPoll(t *testing.T) {
	loop := newTestLoop(t)

	done := make(chan error, 1)
	go func() { done <- loop.Poll(-1) }()

	time.Sleep(10 * time.Millisecond)
	if err := loop.Interrupt(); err != nil {
		t.Fatalf("Interrupt: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Poll returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Poll did not return after Interrupt")
	}
}

// Idle callbacks run after every Dispatch, in insertion order, per
// spec.md §4.4/§5.
func TestIdleRunsAfterEveryDispatch(t *testing.T) {
	loop := newTestLoop(t)

	var order []int
	i1 := aml.NewIdle(func(any) { order = append(order, 1) })
	i2 := aml.NewIdle(func(any) { order = append(order, 2) })
	defer aml.Unref(i1)
	defer aml.Unref(i2)

	if err := loop.Start(i1); err != nil {
		t.Fatalf("Start i1: %v", err)
	}
	if err := loop.Start(i2); err != nil {
		t.Fatalf("Start i2: %v", err)
	}

	loop.Poll(0)
	loop.Dispatch()
	loop.Poll(0)
	loop.Dispatch()

	if len(order) != 4 {
		t.Fatalf("expected 4 idle invocations across 2 dispatches, got %d", len(order))
	}
	for i := 0; i < len(order); i += 2 {
		if order[i] != 1 || order[i+1] != 2 {
			t.Fatalf("expected insertion order [1 2] each pass, got %v", order)
		}
	}
}

// Scenario 6 from spec.md §8: a Loop's own FD can be embedded as a
// Handler inside another (outer) Loop, and draining the inner Loop's
// events via Poll(0)/Dispatch() leaves nothing pending.
func TestNestedLoop(t *testing.T) {
	inner := newTestLoop(t)
	outer := newTestLoop(t)

	var innerFired, outerObservedReady int32
	it := aml.NewTimer(0, func(any) { atomic.AddInt32(&innerFired, 1) })
	defer aml.Unref(it)
	if err := inner.Start(it); err != nil {
		t.Fatalf("Start inner timer: %v", err)
	}

	outerHandler := aml.NewHandler(inner.FD(), aml.EventRead, func(any) {
		atomic.AddInt32(&outerObservedReady, 1)
	})
	defer aml.Unref(outerHandler)
	if err := outer.Start(outerHandler); err != nil {
		t.Fatalf("Start outer handler on inner's FD: %v", err)
	}

	// A duration-0 timer is immediately expired and interrupts its loop
	// per spec.md §4.2, so inner's self-pipe is already nudged here.
	if err := outer.Poll(time.Second); err != nil {
		t.Fatalf("outer Poll: %v", err)
	}
	outer.Dispatch()

	if atomic.LoadInt32(&outerObservedReady) == 0 {
		t.Fatalf("expected the outer loop to observe the inner loop's FD readiness")
	}

	if err := inner.Poll(0); err != nil {
		t.Fatalf("inner Poll: %v", err)
	}
	inner.Dispatch()

	if atomic.LoadInt32(&innerFired) != 1 {
		t.Fatalf("expected the inner timer to have fired exactly once")
	}
}

func TestZeroDurationTimerFiresImmediately(t *testing.T) {
	loop := newTestLoop(t)

	fired := make(chan struct{}, 1)
	timer := aml.NewTimer(0, func(any) { fired <- struct{}{} })
	defer aml.Unref(timer)

	if err := loop.Start(timer); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := loop.Poll(time.Second); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	loop.Dispatch()

	select {
	case <-fired:
	default:
		t.Fatalf("expected a zero-duration timer to have fired by the first Dispatch")
	}
}

func TestStartOnSecondLoopRejected(t *testing.T) {
	a := newTestLoop(t)
	b := newTestLoop(t)

	timer := aml.NewTimer(time.Hour, func(any) {})
	defer aml.Unref(timer)

	if err := a.Start(timer); err != nil {
		t.Fatalf("Start on a: %v", err)
	}
	if err := b.Start(timer); err != aml.ErrStartedOnAnother {
		t.Fatalf("expected ErrStartedOnAnother, got %v", err)
	}
	if err := a.Start(timer); err != aml.ErrAlreadyStarted {
		t.Fatalf("expected ErrAlreadyStarted restarting on the same loop, got %v", err)
	}
}

func TestStartingTheLoopItselfFails(t *testing.T) {
	loop := newTestLoop(t)
	if err := loop.Start(loop); err != aml.ErrCannotStartLoop {
		t.Fatalf("expected ErrCannotStartLoop, got %v", err)
	}
}

func TestWrongObjectKindRejected(t *testing.T) {
	loop := newTestLoop(t)
	if err := loop.Start(42); err != aml.ErrWrongObjectKind {
		t.Fatalf("expected ErrWrongObjectKind, got %v", err)
	}
}
