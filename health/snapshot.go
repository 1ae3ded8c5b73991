// Package health exposes a read-only, point-in-time view of a Loop's
// internal state — queue depth, armed timer count, started idle sources —
// for embedding applications that want to back a /healthz-style endpoint
// without reaching into aml's unexported internals. Grounded in the
// teacher's health.Aggregator, trimmed from a pluggable
// checker-registry-plus-history subsystem down to the single read this
// domain needs: there is nothing to check, only a snapshot to take.
package health

import (
	"time"

	"github.com/aml-go/aml"
)

// Report is a single point-in-time snapshot.
type Report struct {
	Taken        time.Time  `json:"taken"`
	QueueDepth   int        `json:"queueDepth"`
	TimerCount   int        `json:"timerCount"`
	IdleCount    int        `json:"idleCount"`
	NextDeadline *time.Time `json:"nextDeadline,omitempty"`
}

// Snapshot reads loop's current counters under loop's own internal locks
// and returns a consistent-enough-for-diagnostics view. It never blocks on
// anything but those locks, and never mutates loop.
func Snapshot(loop *aml.Loop) Report {
	r := Report{
		Taken:      time.Now(),
		QueueDepth: loop.QueueDepth(),
		TimerCount: loop.TimerCount(),
		IdleCount:  loop.IdleCount(),
	}
	if deadlines := loop.NextDeadlines(1); len(deadlines) == 1 {
		d := deadlines[0]
		r.NextDeadline = &d
	}
	return r
}
