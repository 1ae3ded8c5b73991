// Package aml implements a portable, embeddable event loop ("reactor")
// that multiplexes file-descriptor readiness, timers, OS signals,
// thread-pool work, and idle callbacks into a single dispatch stream.
//
// Callbacks run exclusively on the goroutine that calls Dispatch or Run.
// Everything else — backend polling, worker execution, signal delivery —
// happens elsewhere and is serialized back onto that goroutine through the
// Loop's event queue. aml is not a futures/task runtime: callbacks run to
// completion and there is no scheduling fairness beyond the ordering rules
// documented on Dispatch.
package aml

// Version identifies this implementation revision.
const Version = "0.1.0"

// ABIVersion is incremented whenever the unstable parts of the surface
// (backend authoring, in particular) change in a way existing backend
// implementations must acknowledge.
const ABIVersion = 1
