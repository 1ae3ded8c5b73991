package aml_test

import (
	"sync"
	"testing"

	"github.com/aml-go/aml"
)

// Scenario 5 from spec.md §8: a weak reference recovered from another
// goroutine after the object's strong count has dropped to zero must fail
// cleanly, never crash, and never resurrect the object.
func TestTryRefAfterUnrefFails(t *testing.T) {
	idle := aml.NewIdle(func(any) {})
	id := aml.ID(idle)

	aml.Unref(idle)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, ok := aml.TryRef(id); ok {
			t.Error("expected TryRef to fail for an unreffed object")
		}
	}()
	wg.Wait()
}

func TestTryRefSucceedsWhileLive(t *testing.T) {
	idle := aml.NewIdle(func(any) {})
	defer aml.Unref(idle)
	id := aml.ID(idle)

	obj, ok := aml.TryRef(id)
	if !ok {
		t.Fatalf("expected TryRef to succeed for a live object")
	}
	if obj != idle {
		t.Fatalf("expected TryRef to return the same object")
	}
	aml.Unref(obj) // balance the ref TryRef took
}

func TestUserdataRoundTrips(t *testing.T) {
	idle := aml.NewIdle(func(any) {})
	defer aml.Unref(idle)

	if idle.Userdata() != nil {
		t.Fatalf("expected nil userdata before SetUserdata")
	}
	idle.SetUserdata("hello")
	if got := idle.Userdata(); got != "hello" {
		t.Fatalf("expected userdata %q, got %v", "hello", got)
	}
}

func TestBackendDataRoundTrips(t *testing.T) {
	idle := aml.NewIdle(func(any) {})
	defer aml.Unref(idle)

	if aml.BackendData(idle) != nil {
		t.Fatalf("expected nil backend data before SetBackendData")
	}
	aml.SetBackendData(idle, 42)
	if got := aml.BackendData(idle); got != 42 {
		t.Fatalf("expected backend data 42, got %v", got)
	}
}
