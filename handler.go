package aml

import "sync/atomic"

// Event is a bitmask of the readiness conditions a Handler can wait on,
// mirroring the original's AML_EVENT_* flags.
type Event uint32

const (
	EventNone  Event = 0
	EventRead  Event = 1 << 0
	EventWrite Event = 1 << 1
	EventOOB   Event = 1 << 2
)

// Handler waits for readiness on a file descriptor. Its revents field is
// an OR-latch: readiness bits accumulate between dispatches rather than
// queuing one event per bit, so a descriptor that is both readable and
// writable when polled produces exactly one dispatch carrying both bits,
// not two.
type Handler struct {
	base
	fd      int
	mask    atomic.Uint32
	revents atomic.Uint32
}

// NewHandler constructs a Handler watching fd for the readiness
// conditions in mask, invoking cb on each dispatch.
func NewHandler(fd int, mask Event, cb Callback) *Handler {
	h := &Handler{fd: fd}
	h.k = kindHandler
	h.callback = cb
	h.mask.Store(uint32(mask))
	register(h, &h.base)
	return h
}

// FD returns the watched file descriptor.
func (h *Handler) FD() int { return h.fd }

// SetEventMask changes which readiness conditions are waited on. Takes
// effect on the next Poll.
func (h *Handler) SetEventMask(mask Event) {
	h.mask.Store(uint32(mask))
	h.mu.Lock()
	started, l := h.started, h.loop
	h.mu.Unlock()
	if started {
		l.backendModFD(h)
	}
}

// EventMask returns the currently armed readiness conditions.
func (h *Handler) EventMask() Event { return Event(h.mask.Load()) }

// Revents returns the readiness bits observed by the most recent poll
// that triggered dispatch.
func (h *Handler) Revents() Event { return Event(h.revents.Load()) }

// emitRevents ORs newBits into the latch and enqueues h for dispatch if it
// was not already pending — called from a backend's poll loop, matching
// aml_emit's handler case.
func (h *Handler) emitRevents(newBits Event, l *Loop) {
	h.revents.Or(uint32(newBits))
	l.emit(h)
}

func (h *Handler) start(l *Loop) error {
	h.mu.Lock()
	if h.started {
		defer h.mu.Unlock()
		if h.loop == l {
			return ErrAlreadyStarted
		}
		return ErrStartedOnAnother
	}
	h.loop = l
	h.started = true
	h.mu.Unlock()
	if err := l.backendAddFD(h); err != nil {
		h.mu.Lock()
		h.started = false
		h.loop = nil
		h.mu.Unlock()
		return err
	}
	return nil
}

func (h *Handler) stop() error {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return ErrNotStarted
	}
	l := h.loop
	h.mu.Unlock()
	if err := l.backendDelFD(h); err != nil {
		return err
	}
	h.mu.Lock()
	h.started = false
	h.loop = nil
	h.revents.Store(0)
	h.mu.Unlock()
	return nil
}

func (h *Handler) dispatch() {
	h.mu.Lock()
	cb := h.callback
	h.mu.Unlock()
	if cb != nil {
		cb(h)
	}
	h.revents.Store(0)
}
