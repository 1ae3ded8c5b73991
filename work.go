package aml

// WorkFunc runs on a thread-pool worker goroutine, off the dispatch
// goroutine entirely. It must not touch the Loop or any other event
// source directly — only through TryRef, exactly as the original requires
// (work functions run concurrently with the dispatch thread and do not
// get the luxury of assuming anything about loop state).
type WorkFunc func(w *Work)

// Work hands a function to the process-wide thread pool and, once it
// returns, delivers a completion callback back on the owning Loop's
// dispatch goroutine.
type Work struct {
	base
	workFn WorkFunc
	result any
}

// NewWork constructs a Work source. fn runs on a pool worker once started;
// done runs on the dispatch goroutine after fn returns.
func NewWork(fn WorkFunc, done Callback) *Work {
	w := &Work{workFn: fn}
	w.k = kindWork
	w.callback = done
	register(w, &w.base)
	return w
}

// SetResult stores a value from inside WorkFunc for the completion
// callback to read via Result. aml does not interpret it.
func (w *Work) SetResult(v any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.result = v
}

// Result returns the value last stored with SetResult.
func (w *Work) Result() any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result
}

func (w *Work) start(l *Loop) error {
	w.mu.Lock()
	if w.started {
		defer w.mu.Unlock()
		if w.loop == l {
			return ErrAlreadyStarted
		}
		return ErrStartedOnAnother
	}
	w.loop = l
	w.started = true
	w.mu.Unlock()

	id := ID(w)
	Ref(w) // the pool's reference, released after the completion callback runs
	l.pool.Submit(func() {
		w.workFn(w)
		obj, ok := TryRef(id)
		if !ok {
			// The Work object itself is no longer live; nothing left to
			// deliver to.
			return
		}
		ww := obj.(*Work)
		ww.mu.Lock()
		loop := ww.loop
		ww.mu.Unlock()
		if loop != nil {
			loop.emit(ww)
		}
		Unref(ww)
	})
	return nil
}

func (w *Work) stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return ErrNotStarted
	}
	// The original cannot cancel an in-flight pthread job either; Stop
	// only prevents the completion callback from running by clearing
	// started, matching aml_stop's documented "best effort" semantics
	// for AML_OBJ_WORK.
	w.started = false
	return nil
}

func (w *Work) dispatch() {
	w.mu.Lock()
	wasStarted := w.started
	w.started = false
	cb := w.callback
	w.mu.Unlock()
	if wasStarted && cb != nil {
		cb(w)
	}
	Unref(w) // balances the extra ref taken in start, now that delivery is done
}
