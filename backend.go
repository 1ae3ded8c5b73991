package aml

import (
	"sync"
	"time"
)

// Backend is the pluggable polling mechanism a Loop drives. It mirrors the
// original's struct aml_backend function-pointer table one row per
// required operation; Go expresses the same contract as an interface
// instead of a struct of function pointers.
type Backend interface {
	// AddFD arms h for the readiness conditions in h.EventMask().
	AddFD(h *Handler) error
	// ModFD updates the armed readiness conditions for h.
	ModFD(h *Handler) error
	// DelFD disarms h.
	DelFD(h *Handler) error

	// AddSignal arms s for delivery.
	AddSignal(s *Signal) error
	// DelSignal disarms s.
	DelSignal(s *Signal) error

	// Poll blocks for up to wait (wait < 0 means block indefinitely, 0
	// means return immediately after one non-blocking check) for at
	// least one readiness condition or signal, or until Interrupt is
	// called, then delivers any readiness via the Loop's emit path
	// (Handler.emitRevents, Signal.deliver). wait is already the minimum
	// of the caller's requested timeout and the earliest armed timer's
	// deadline — computed once by Loop.Poll via the original's
	// aml_get_next_timeout — so backends never need to consult the timer
	// set themselves.
	Poll(l *Loop, wait time.Duration) error

	// Interrupt unblocks a concurrent Poll call from another goroutine,
	// e.g. because Exit or a new timer changed the earliest deadline.
	Interrupt() error

	// Close releases backend-held resources (epoll fd, kqueue fd, etc.).
	Close() error
}

// BackendConstructor builds a Backend instance. Constructors are supplied
// to RegisterBackend, analogous to the original's one aml_backend struct
// per target OS, selected at link time; Go backends self-register in
// init() instead, gated by build tags so only the current platform's
// backend is even compiled in.
type BackendConstructor func() (Backend, error)

var (
	backendRegMu sync.Mutex
	backendReg   = map[string]BackendConstructor{}
)

// RegisterBackend makes a backend constructor available under name for
// NewWithBackend and the AML_BACKEND environment variable. It is meant to
// be called from a backend package's init(), grounded in the teacher's
// event-bus engine registry pattern (RegisterEngine/engineRegistry).
// Registering the same name twice panics — a programmer error, not a
// runtime condition callers should handle.
func RegisterBackend(name string, ctor BackendConstructor) {
	backendRegMu.Lock()
	defer backendRegMu.Unlock()
	if _, exists := backendReg[name]; exists {
		panic("aml: backend already registered: " + name)
	}
	backendReg[name] = ctor
}

// RegisteredBackends returns the names of every backend registered so
// far, for diagnostics.
func RegisteredBackends() []string {
	backendRegMu.Lock()
	defer backendRegMu.Unlock()
	names := make([]string, 0, len(backendReg))
	for name := range backendReg {
		names = append(names, name)
	}
	return names
}

func lookupBackend(name string) (BackendConstructor, bool) {
	backendRegMu.Lock()
	defer backendRegMu.Unlock()
	ctor, ok := backendReg[name]
	return ctor, ok
}
