package aml

import "github.com/aml-go/aml/internal/registry"

// reg is the process-wide weak-reference table every event source is
// inserted into at construction and removed from when its strong count
// drops to zero — the Go equivalent of the original's static
// aml__obj_list plus aml__ref_mutex.
var reg = registry.New()

// register inserts a freshly constructed object (refcount already 1) into
// the global table and records the assigned id on it, as one critical
// section.
func register(o object, b *base) {
	reg.Do(func(ops registry.Ops) {
		b.refCount = 1
		b.objID = ops.Add(o)
	})
}

// Ref increments obj's strong reference count.
func Ref(obj any) {
	o := mustObject(obj, "Ref")
	reg.Do(func(registry.Ops) {
		o.ref()
	})
}

// Unref decrements obj's strong reference count. When the count reaches
// zero the object is removed from the weak-lookup table and, if it
// implements a release hook, released.
func Unref(obj any) {
	o := mustObject(obj, "Unref")
	var zero bool
	reg.Do(func(ops registry.Ops) {
		zero = o.unref()
		if zero {
			ops.Remove(o.id())
		}
	})
	if zero {
		if r, ok := obj.(interface{ release() }); ok {
			r.release()
		}
	}
}

// ID returns obj's process-wide weak-lookup identifier.
func ID(obj any) uint64 {
	return mustObject(obj, "ID").id()
}

// TryRef looks up id in the global weak-reference table and, if the
// referenced object is still live, increments its strong count and
// returns it. This is how a thread-pool worker or backend callback
// recovers a loop-owned object from a bare id without racing the owning
// goroutine's Unref: the lookup and the increment happen in the same
// critical section, so the object can never be torn down between "found
// it" and "ref'd it".
func TryRef(id uint64) (any, bool) {
	var result any
	found := false
	reg.Do(func(ops registry.Ops) {
		v, ok := ops.Get(id)
		if !ok {
			return
		}
		o, ok := v.(object)
		if !ok {
			return
		}
		o.ref()
		result, found = v, true
	})
	if !found {
		return nil, false
	}
	return result, true
}

func mustObject(obj any, fn string) object {
	o, ok := obj.(object)
	if !ok {
		panic("aml: " + fn + " called on a non-aml object")
	}
	return o
}
