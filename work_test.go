package aml_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/aml-go/aml"
	_ "github.com/aml-go/aml/backend/auto"
)

// Scenario 4 from spec.md §8 (thread-pool work completion), scaled down
// from 100 items / 2 workers / 10ms each for test speed: every submitted
// Work item's completion callback runs exactly once, on the dispatch
// goroutine, and can read back whatever the pool-side function stored via
// SetResult.
func TestWorkCompletesOnDispatchGoroutine(t *testing.T) {
	loop, err := aml.New(aml.WithWorkers(2))
	if err != nil {
		t.Fatalf("aml.New: %v", err)
	}
	defer aml.Unref(loop)
	loop.RequireWorkers()

	const numItems = 20
	var completed int32
	dispatchGoroutine := make(chan struct{})

	for i := 0; i < numItems; i++ {
		i := i
		var w *aml.Work
		w = aml.NewWork(func(work *aml.Work) {
			work.SetResult(i * 2)
		}, func(any) {
			if got := w.Result(); got != i*2 {
				t.Errorf("item %d: expected result %d, got %v", i, i*2, got)
			}
			atomic.AddInt32(&completed, 1)
		})
		defer aml.Unref(w)
		if err := loop.Start(w); err != nil {
			t.Fatalf("Start work %d: %v", i, err)
		}
	}
	close(dispatchGoroutine)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && atomic.LoadInt32(&completed) < numItems {
		if err := loop.Poll(20 * time.Millisecond); err != nil {
			t.Fatalf("Poll: %v", err)
		}
		loop.Dispatch()
	}

	if got := atomic.LoadInt32(&completed); got != numItems {
		t.Fatalf("expected all %d work items to complete, got %d", numItems, got)
	}
}

func TestWorkStartTwiceRejected(t *testing.T) {
	loop := newTestLoop(t)
	loop.RequireWorkers()

	w := aml.NewWork(func(*aml.Work) {}, func(any) {})
	defer aml.Unref(w)

	if err := loop.Start(w); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := loop.Start(w); err != aml.ErrAlreadyStarted {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}

	// Drain so the pool goroutine this item spawned finishes before the
	// test ends, rather than leaking across to the next test's loop.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		loop.Poll(10 * time.Millisecond)
		loop.Dispatch()
	}
}
