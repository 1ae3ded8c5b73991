package aml

import "os"

// Signal fires its callback when the loop's backend observes the named
// OS signal. Delivery is always synchronous with dispatch: the original
// translates a raw signalfd/kevent notification into a normal emit rather
// than running any code on the actual signal-handler stack, and the Go
// backends do the same: epoll reads a signalfd and kqueue an EVFILT_SIGNAL
// event inside Poll, on the goroutine that calls Poll.
type Signal struct {
	base
	signo os.Signal
}

// NewSignal constructs a Signal source for signo, invoking cb each time it
// is delivered while started.
func NewSignal(signo os.Signal, cb Callback) *Signal {
	s := &Signal{signo: signo}
	s.k = kindSignal
	s.callback = cb
	register(s, &s.base)
	return s
}

// Signo returns the OS signal this source watches.
func (s *Signal) Signo() os.Signal { return s.signo }

func (s *Signal) start(l *Loop) error {
	s.mu.Lock()
	if s.started {
		defer s.mu.Unlock()
		if s.loop == l {
			return ErrAlreadyStarted
		}
		return ErrStartedOnAnother
	}
	s.loop = l
	s.started = true
	s.mu.Unlock()
	return l.backendAddSignal(s)
}

func (s *Signal) stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	l := s.loop
	s.mu.Unlock()
	if err := l.backendDelSignal(s); err != nil {
		return err
	}
	s.mu.Lock()
	s.started = false
	s.loop = nil
	s.mu.Unlock()
	return nil
}

// deliver is called by a backend when signo fires; it enqueues the source
// for dispatch.
func (s *Signal) deliver(l *Loop) {
	l.emit(s)
}

func (s *Signal) dispatch() {
	s.mu.Lock()
	cb := s.callback
	s.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}
