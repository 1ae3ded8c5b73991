package aml

import "sync"

// Idle fires its callback once per Dispatch call, after timers and the
// event queue have both been processed, for as long as it is started.
// Idle sources never block Poll's wait budget to zero by themselves
// unless at least one is started — grounded in the original's idle list,
// which only forces a non-blocking poll when non-empty.
type Idle struct {
	base
}

// NewIdle constructs an Idle source invoking cb on every dispatch while
// started.
func NewIdle(cb Callback) *Idle {
	i := &Idle{}
	i.k = kindIdle
	i.callback = cb
	register(i, &i.base)
	return i
}

func (i *Idle) start(l *Loop) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.started {
		if i.loop == l {
			return ErrAlreadyStarted
		}
		return ErrStartedOnAnother
	}
	i.loop = l
	i.started = true
	l.idle.add(i)
	return nil
}

func (i *Idle) stop() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.started {
		return ErrNotStarted
	}
	i.loop.idle.remove(i)
	i.started = false
	return nil
}

func (i *Idle) dispatch() {
	i.mu.Lock()
	cb := i.callback
	i.mu.Unlock()
	if cb != nil {
		cb(i)
	}
}

// idleList is the set of currently started Idle sources, grounded in the
// original's aml->idle_list. Its own mutex is distinct from any Idle's
// base.mu: Start/Stop can run on a goroutine other than the dispatch
// goroutine concurrently with Dispatch's snapshot call.
type idleList struct {
	mu    sync.Mutex
	items []*Idle
}

func newIdleList() *idleList { return &idleList{} }

func (l *idleList) add(i *Idle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, i)
}

func (l *idleList) remove(i *Idle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for idx, x := range l.items {
		if x == i {
			l.items = append(l.items[:idx], l.items[idx+1:]...)
			return
		}
	}
}

func (l *idleList) snapshot() []*Idle {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Idle, len(l.items))
	copy(out, l.items)
	return out
}

func (l *idleList) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}
