package aml

import "sync"

var (
	defaultMu   sync.Mutex
	defaultLoop *Loop
)

// SetDefault installs l as the process-wide default Loop returned by
// Default. spec.md puts the default pointer explicitly out of scope for
// design discussion; it is carried here only because callers of the
// original's single-process aml_get_default()/aml_set_default() convenience
// pair expect a Go equivalent to exist.
func SetDefault(l *Loop) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLoop = l
}

// Default returns the Loop last installed with SetDefault, or nil if none
// has been set.
func Default() *Loop {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultLoop
}
