package aml

import "sync"

// kind identifies the concrete variant of an event source. It is the Go
// analogue of the original's aml_obj_type tag that every struct carried as
// its first field so the core could recover the variant from a bare
// pointer.
type kind uint8

const (
	kindLoop kind = iota
	kindHandler
	kindTimer
	kindTicker
	kindSignal
	kindWork
	kindIdle
)

func (k kind) String() string {
	switch k {
	case kindLoop:
		return "loop"
	case kindHandler:
		return "handler"
	case kindTimer:
		return "timer"
	case kindTicker:
		return "ticker"
	case kindSignal:
		return "signal"
	case kindWork:
		return "work"
	case kindIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// Callback is the function signature every event source invokes on
// dispatch. obj is the originating source, cast by the caller to the
// concrete type it expects.
type Callback func(obj any)

// object is implemented by every event source (including *Loop itself,
// which is a source of its own self-pipe handler). It is unexported:
// applications interact with the concrete *Handler/*Timer/etc. types, not
// this interface.
type object interface {
	ref()
	unref() bool
	id() uint64
	objKind() kind
}

// base carries the fields every variant shares, mirroring the common
// header every struct in the original placed as its first member so a
// bare pointer could be reinterpreted as struct aml_obj. Go has no pointer
// reinterpretation, so base is embedded by value instead.
type base struct {
	mu       sync.Mutex
	refCount int
	objID    uint64
	k        kind

	loop     *Loop
	started  bool
	userdata any
	callback Callback

	// backendData is the slot spec.md's data model reserves for "opaque
	// backend datum" — state a Backend implementation attaches to a
	// source without colliding with the application's own Userdata.
	// Neither epoll nor kqueue currently need it (both key their
	// per-source state off the fd/signo instead), but it is part of the
	// backend-authoring surface any third Backend can rely on.
	backendData any
}

func (b *base) objKind() kind { return b.k }

// ref increments the strong reference count. Called inside reg.Do, under
// the registry's lock, matching invariant 6: refcounting and the global
// registry share a single critical section.
func (b *base) ref() {
	b.refCount++
}

// unref decrements the strong reference count and reports whether it
// reached zero. Called inside reg.Do, under the registry's lock.
func (b *base) unref() bool {
	b.refCount--
	if b.refCount < 0 {
		panic("aml: reference count went negative")
	}
	return b.refCount == 0
}

func (b *base) id() uint64 { return b.objID }

// isStarted reports whether the object is currently armed on a Loop.
func (b *base) isStarted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started
}

// ID returns the process-wide weak-lookup identifier assigned when the
// object was constructed. It remains valid (but non-dereferenceable via
// TryRef) after the object's refcount reaches zero.
func (b *base) ID() uint64 { return b.objID }

// SetUserdata attaches an arbitrary value to the object, retrievable with
// Userdata. aml never interprets this value.
func (b *base) SetUserdata(v any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.userdata = v
}

// Userdata returns the value last passed to SetUserdata, or nil.
func (b *base) Userdata() any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.userdata
}

// SetBackendData attaches v to obj's backend-owned slot, overwriting
// whatever the active Backend may have stored there previously. Backend
// authors use this instead of SetUserdata so they never collide with
// application state; applications have no reason to call it themselves.
func SetBackendData(obj any, v any) {
	b := mustBase(obj, "SetBackendData")
	b.mu.Lock()
	defer b.mu.Unlock()
	b.backendData = v
}

// BackendData returns whatever the active Backend last stored on obj
// with SetBackendData, or nil if nothing has been stored yet.
func BackendData(obj any) any {
	b := mustBase(obj, "BackendData")
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.backendData
}

func mustBase(obj any, fn string) *base {
	b, ok := obj.(interface{ backendDataHolder() *base })
	if !ok {
		panic("aml: " + fn + " called on a non-aml object")
	}
	return b.backendDataHolder()
}

func (b *base) backendDataHolder() *base { return b }
