package aml

import (
	"os"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aml-go/aml/internal/threadpool"
)

// Loop is the single-dispatch-thread reactor. All callbacks registered on
// a Loop run on whichever goroutine calls Dispatch or Run for that Loop —
// never concurrently with each other, never on a different goroutine —
// matching the original's single-threaded dispatch guarantee.
type Loop struct {
	base

	backend Backend

	timers *timerSet
	queue  *eventQueue
	idle   *idleList

	pool          *threadpool.Pool
	poolAcquired  bool
	poolMu        sync.Mutex

	selfPipeR *os.File
	selfPipeW *os.File
	selfPipe  *Handler

	exiting atomic.Bool
	logger  Logger
}

// starter is implemented by every startable variant (Handler, Timer,
// Ticker, Signal, Work, Idle); Loop itself does not implement it, so
// Start(loop) on a Loop returns ErrCannotStartLoop.
type starter interface {
	start(l *Loop) error
	stop() error
}

// dispatcher is implemented by every variant that Dispatch can invoke.
type dispatcher interface {
	dispatch()
}

// Option configures a Loop at construction.
type Option func(*loopConfig)

type loopConfig struct {
	workers int
	logger  Logger
}

// WithWorkers sets how many goroutines the process-wide thread pool starts
// with. It is applied when this Loop is constructed, and only if the pool
// is not running at that moment; the pool starts with the size set by the
// most recently constructed Loop. Defaults to runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(c *loopConfig) { c.workers = n }
}

// WithLogger attaches a Logger for recovered callback panics and for Poll
// errors seen by Run. The default is no logging.
func WithLogger(l Logger) Option {
	return func(c *loopConfig) { c.logger = l }
}

var processPool = threadpool.New(runtime.GOMAXPROCS(0))

// New constructs a Loop using the platform's default backend (selected by
// build tag, overridable with the AML_BACKEND environment variable).
func New(opts ...Option) (*Loop, error) {
	name := os.Getenv("AML_BACKEND")
	if name == "" {
		name = defaultBackendName
	}
	return NewWithBackend(name, opts...)
}

// NewWithBackend constructs a Loop using the backend registered under
// name, per the C9 registry (RegisterBackend). Grounded in the teacher's
// engine-router pattern of naming a pluggable implementation and
// resolving it through a package-level registry rather than a compile-time
// switch.
func NewWithBackend(name string, opts ...Option) (*Loop, error) {
	ctor, ok := lookupBackend(name)
	if !ok {
		if name == defaultBackendName {
			return nil, ErrNoDefaultBackend
		}
		return nil, ErrUnknownBackend
	}

	cfg := &loopConfig{workers: runtime.GOMAXPROCS(0)}
	for _, o := range opts {
		o(cfg)
	}

	be, err := ctor()
	if err != nil {
		return nil, err
	}

	processPool.SetSize(cfg.workers)

	l := &Loop{
		backend: be,
		timers:  newTimerSet(),
		queue:   newEventQueue(),
		idle:    newIdleList(),
		pool:    processPool,
		logger:  cfg.logger,
	}
	l.k = kindLoop
	register(l, &l.base)

	if err := l.initSelfPipe(); err != nil {
		be.Close()
		return nil, err
	}

	return l, nil
}

// initSelfPipe starts an internal Handler on the read end of an os.Pipe,
// grounded in the original's aml__init_self_pipe/on_self_pipe_read. emit
// writes a byte to the pipe whenever an object is queued, which is what
// makes FD readable while events are pending; the handler reads those
// bytes back. Every backend gets this pipe. Interrupt does not use it: it
// always goes through the backend's own Interrupt method.
func (l *Loop) initSelfPipe() error {
	r, w, err := os.Pipe()
	if err != nil {
		return err
	}
	l.selfPipeR, l.selfPipeW = r, w
	l.selfPipe = NewHandler(int(r.Fd()), EventRead, func(obj any) {
		// r is in blocking mode once Fd has been called, so read only
		// once: the handler is dispatched only after the backend reported
		// the pipe readable, and any bytes beyond buf keep it readable
		// for the next Poll.
		buf := make([]byte, 64)
		r.Read(buf)
	})
	return l.Start(l.selfPipe)
}

// RequireWorkers acquires the process-wide thread pool for this Loop's
// use; it must be called before a Work is started on this Loop. Safe to
// call more than once: only the first call acquires the pool, and that one
// reference is released when the Loop's last reference is dropped.
func (l *Loop) RequireWorkers() {
	l.poolMu.Lock()
	defer l.poolMu.Unlock()
	if !l.poolAcquired {
		l.pool.Acquire()
		l.poolAcquired = true
	}
}

func (l *Loop) release() {
	l.poolMu.Lock()
	if l.poolAcquired {
		l.pool.Release()
		l.poolAcquired = false
	}
	l.poolMu.Unlock()
	if l.selfPipe != nil {
		l.Stop(l.selfPipe)
		Unref(l.selfPipe)
	}
	if l.selfPipeR != nil {
		l.selfPipeR.Close()
	}
	if l.selfPipeW != nil {
		l.selfPipeW.Close()
	}
	l.backend.Close()
}

// FD returns a file descriptor that becomes readable whenever this Loop
// has events pending dispatch, letting one Loop be embedded as a Handler
// source inside another — the original's nested-event-loop use case.
func (l *Loop) FD() int {
	return int(l.selfPipeR.Fd())
}

// Start arms obj on this Loop. obj must be a *Handler, *Timer, *Ticker,
// *Signal, *Work, or *Idle constructed with the matching New* function;
// passing the Loop itself returns ErrCannotStartLoop.
func (l *Loop) Start(obj any) error {
	if obj == l {
		return ErrCannotStartLoop
	}
	s, ok := obj.(starter)
	if !ok {
		return ErrWrongObjectKind
	}
	return s.start(l)
}

// Stop disarms obj on this Loop.
func (l *Loop) Stop(obj any) error {
	if obj == l {
		return ErrCannotStartLoop
	}
	s, ok := obj.(starter)
	if !ok {
		return ErrWrongObjectKind
	}
	return s.stop()
}

// IsStarted reports whether obj is currently armed on some Loop.
func (l *Loop) IsStarted(obj any) bool {
	b, ok := obj.(interface{ isStarted() bool })
	if !ok {
		return false
	}
	return b.isStarted()
}

// Poll waits for at most wait (negative blocks indefinitely, zero never
// blocks) for readiness, narrowed to the earliest armed timer's deadline
// if that is sooner — the original's aml_get_next_timeout computation,
// carried out here so every backend receives an already-clamped budget.
func (l *Loop) Poll(wait time.Duration) error {
	if l.idle.len() > 0 {
		wait = 0
	} else {
		now := time.Now()
		if d, ok := l.timers.nextTimeout(now); ok {
			if wait < 0 || d < wait {
				wait = d
			}
		}
	}
	return l.backend.Poll(l, wait)
}

// Dispatch runs one round: every timer whose deadline has passed is
// emitted into the event queue (oldest deadline first), then the queue is
// drained and every object in it is dispatched in emission order — so
// handlers, signals and completed Work items emitted before this call run
// ahead of the timers just expired — then every started Idle source runs
// once. This ordering is the original aml_dispatch's ordering exactly.
func (l *Loop) Dispatch() {
	now := time.Now()
	for _, e := range l.timers.expired(now) {
		e.fire(e.deadline)
	}

	for _, o := range l.queue.drain() {
		if d, ok := o.(dispatcher); ok {
			l.runCallback(d)
		}
	}

	for _, i := range l.idle.snapshot() {
		l.runCallback(i)
	}
}

// runCallback invokes d.dispatch(), recovering a panicking callback into a
// logged error rather than crashing the whole loop — application
// callbacks are not part of aml's own invariants, so a bug in one should
// not bring down an otherwise healthy reactor. Invariant violations inside
// aml's own code still panic uncaught, by design (see errors.go).
//
// d is ref'd before dispatch() and unref'd after, bracketing the callback
// with an extra strong reference exactly as the original's aml_dispatch
// does around obj->cb: a callback that Unrefs its own source to zero must
// not see that source released out from under its own stack frame.
func (l *Loop) runCallback(d dispatcher) {
	Ref(d)
	defer Unref(d)
	defer func() {
		if r := recover(); r != nil {
			if l.logger != nil {
				l.logger.Error("aml: callback panicked", "recover", r)
			}
		}
	}()
	d.dispatch()
}

// Run calls Poll and Dispatch in a loop until Exit is called. A Poll error
// does not end Run: it is passed to the Logger, if any, and the round goes
// on to Dispatch.
func (l *Loop) Run() error {
	for !l.exiting.Load() {
		if err := l.Poll(-1); err != nil && l.logger != nil {
			l.logger.Error("aml: poll failed", "error", err)
		}
		l.Dispatch()
	}
	l.exiting.Store(false)
	return nil
}

// Exit requests that a concurrent or future Run return after its current
// Dispatch. Safe to call from any goroutine, including from inside a
// callback.
func (l *Loop) Exit() {
	l.exiting.Store(true)
	l.Interrupt()
}

// Interrupt unblocks a concurrent Poll call, e.g. after arming a new timer
// with an earlier deadline than whatever Poll is currently waiting on.
func (l *Loop) Interrupt() error {
	return l.backendInterrupt()
}

// BackendState returns the Backend instance bound to l, for backend
// authoring code (e.g. a second Backend implementation wrapping this one)
// that needs to reach the active backend without threading it through
// separately — the Go analogue of the original's aml_get_backend_state.
func (l *Loop) BackendState() Backend {
	return l.backend
}

// --- backend call wrappers used by the event-source variants ---

func (l *Loop) backendAddFD(h *Handler) error  { return l.backend.AddFD(h) }
func (l *Loop) backendModFD(h *Handler) error  { return l.backend.ModFD(h) }
func (l *Loop) backendDelFD(h *Handler) error  { return l.backend.DelFD(h) }
func (l *Loop) backendAddSignal(s *Signal) error { return l.backend.AddSignal(s) }
func (l *Loop) backendDelSignal(s *Signal) error { return l.backend.DelSignal(s) }
func (l *Loop) backendInterrupt() error        { return l.backend.Interrupt() }

// emit delivers a ready event source to this Loop's queue and nudges the
// self-pipe so FD() genuinely becomes readable whenever work is pending —
// including for a Work completion delivered from a thread-pool goroutine,
// which is exactly the case the original's self-pipe was built for: an
// aml_interrupt from a thread that is not the dispatch thread.
func (l *Loop) emit(o object) {
	l.queue.emit(o)
	l.nudgeSelfPipe()
}

func (l *Loop) nudgeSelfPipe() {
	if l.selfPipeW == nil {
		return
	}
	// Best effort: the self-pipe only needs to carry an edge, not every
	// byte, so a full pipe (reader not currently draining) is not an
	// error worth reporting.
	l.selfPipeW.Write([]byte{0})
}

// NextDeadlines is a diagnostics helper used by the health package to
// report the next few timer deadlines without exposing timerSet itself.
func (l *Loop) NextDeadlines(max int) []time.Time {
	l.timers.mu.Lock()
	defer l.timers.mu.Unlock()
	out := make([]time.Time, 0, len(l.timers.armed))
	for _, e := range l.timers.armed {
		out = append(out, e.deadline)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	if len(out) > max {
		out = out[:max]
	}
	return out
}

// TimerCount reports how many Timer/Ticker sources are currently armed.
func (l *Loop) TimerCount() int {
	l.timers.mu.Lock()
	defer l.timers.mu.Unlock()
	return len(l.timers.armed)
}

// QueueDepth reports how many event sources are currently pending
// dispatch.
func (l *Loop) QueueDepth() int {
	return l.queue.len()
}

// IdleCount reports how many Idle sources are currently started.
func (l *Loop) IdleCount() int {
	return l.idle.len()
}
