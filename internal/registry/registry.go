// Package registry implements the process-wide weak-reference table that
// lets a detached goroutine (typically a thread-pool worker) recover a live
// event source from a bare id without holding a strong reference of its
// own. It is the minimal surviving fraction of the service registry it was
// adapted from: no scopes, no dependency graph, no conflict resolution —
// just id -> holder under one lock, because that is the only operation
// this domain needs.
package registry

import "sync"

// Table is a mutex-guarded id -> entry map.
type Table struct {
	mu      sync.Mutex
	entries map[uint64]any
	nextID  uint64
}

// New returns an empty table. IDs are assigned starting at 1; 0 is never
// issued so callers can treat it as "no id".
func New() *Table {
	return &Table{entries: make(map[uint64]any)}
}

// Ops is the set of operations available inside a Do callback. All of
// them run without taking any lock of their own — the lock is already
// held by Do — so any combination of them composes into a single
// critical section.
type Ops struct {
	t *Table
}

// Add inserts v and returns the id assigned to it.
func (o Ops) Add(v any) uint64 {
	o.t.nextID++
	id := o.t.nextID
	o.t.entries[id] = v
	return id
}

// Remove deletes id from the table. Safe to call even if id is not present.
func (o Ops) Remove(id uint64) {
	delete(o.t.entries, id)
}

// Get looks up id without mutating anything.
func (o Ops) Get(id uint64) (v any, ok bool) {
	v, ok = o.t.entries[id]
	return v, ok
}

// Do runs fn under the table's lock. Every mutation the table supports —
// inserting a new object, removing one, or looking one up to bump its
// refcount — goes through Do so that the registry and an object's strong
// refcount are always observed in step with each other. This is invariant
// 6 of the object model, carried over from the original's single
// aml__ref_mutex guarding both the refcount field and the global list.
func (t *Table) Do(fn func(Ops)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(Ops{t})
}

// Len reports the number of live entries, for diagnostics snapshots.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
