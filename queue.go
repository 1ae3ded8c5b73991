package aml

import "sync"

// eventQueue is the FIFO of objects pending dispatch, grounded in the
// original's struct aml_event_queue (a singly-linked list under its own
// mutex, drained once per aml_dispatch). A slice is the idiomatic Go
// substitute for a small, frequently-appended, fully-drained list.
//
// The original takes care to block all signals for the duration of the
// insert so that a real SIGCHLD/SIGINT handler can never nest inside the
// queue's critical section and deadlock against itself. Go has no
// equivalent hazard: the backends read signals from a signalfd or an
// EVFILT_SIGNAL event inside Poll, and Go never runs user code on a
// signal-handler stack, so emit below takes the mutex unconditionally
// with no masking step.
type eventQueue struct {
	mu      sync.Mutex
	pending []object
	queued  map[uint64]bool
}

func newEventQueue() *eventQueue {
	return &eventQueue{queued: make(map[uint64]bool)}
}

// emit enqueues obj for dispatch unless it is already pending. Re-arming
// an already-queued object is a no-op: the original coalesces repeat
// readiness notifications for the same source into a single dispatch,
// which is why Handler keeps an OR-latched revents mask rather than one
// queue entry per readiness bit.
func (q *eventQueue) emit(obj object) {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := obj.id()
	if q.queued[id] {
		return
	}
	q.queued[id] = true
	q.pending = append(q.pending, obj)
}

// drain removes and returns every currently queued object, in FIFO order,
// and clears their queued marks. Called once per Dispatch, after timers
// and before idle callbacks, per spec.
func (q *eventQueue) drain() []object {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	out := q.pending
	q.pending = nil
	for _, o := range out {
		delete(q.queued, o.id())
	}
	return out
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
