package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/aml-go/aml"
)

// Watcher reloads the TOML file Load was pointed at whenever it changes
// on disk, delivering each reload on the owning Loop's dispatch goroutine.
//
// fsnotify's own API has no callback: whoever calls fsnotify.NewWatcher
// is handed an Events channel and is expected to range over it on some
// goroutine of their choosing. That goroutine is not the dispatch
// goroutine, so Watcher pairs it with a pipe-backed Handler — the exact
// bridge loop.go's initSelfPipe uses to get a thread-pool worker's
// completion back onto the dispatch thread safely: a background
// goroutine does the blocking wait and writes one byte, a Handler on the
// read end does the actual work, on the one goroutine allowed to run it.
type Watcher struct {
	path   string
	onLoad func(*Loaded, error)
	fw     *fsnotify.Watcher

	pipeR, pipeW *os.File
	handler      *aml.Handler
	loop         *aml.Loop

	mu      sync.Mutex
	pending *Loaded
	pendErr error
	have    bool
}

// Watch starts reloading path into onLoad on loop's dispatch goroutine
// every time the file changes. onLoad runs exactly like any other aml
// callback: synchronously, on whichever goroutine calls loop.Dispatch or
// loop.Run, never concurrently with anything else that Loop dispatches.
func Watch(loop *aml.Loop, path string, onLoad func(*Loaded, error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fw.Close()
		return nil, err
	}
	// Watch the containing directory, not the file itself: editors that
	// save by rename+replace (vim, many config-management tools) would
	// otherwise leave the watch attached to an unlinked inode.
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, err
	}

	r, w, err := os.Pipe()
	if err != nil {
		fw.Close()
		return nil, err
	}

	wch := &Watcher{path: abs, onLoad: onLoad, fw: fw, pipeR: r, pipeW: w, loop: loop}
	wch.handler = aml.NewHandler(int(r.Fd()), aml.EventRead, wch.dispatch)
	if err := loop.Start(wch.handler); err != nil {
		fw.Close()
		r.Close()
		w.Close()
		return nil, err
	}

	go wch.run()
	return wch, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			loaded, err := Load(context.Background(), w.path)
			w.mu.Lock()
			w.pending, w.pendErr, w.have = loaded, err, true
			w.mu.Unlock()
			w.pipeW.Write([]byte{0})
		case _, ok := <-w.fw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) dispatch(obj any) {
	// pipeR is in blocking mode once Fd has been called, so read only
	// once: this runs only after the backend reported the pipe readable.
	buf := make([]byte, 64)
	w.pipeR.Read(buf)
	w.mu.Lock()
	loaded, err, have := w.pending, w.pendErr, w.have
	w.have = false
	w.mu.Unlock()
	if have {
		w.onLoad(loaded, err)
	}
}

// Close stops watching and releases the handler, pipe, and fsnotify
// resources. Safe to call once; a second call returns whatever the
// underlying Close calls return, harmlessly.
func (w *Watcher) Close() error {
	if w.loop.Stop(w.handler) == nil {
		aml.Unref(w.handler)
	}
	ferr := w.fw.Close()
	w.pipeR.Close()
	w.pipeW.Close()
	return ferr
}
