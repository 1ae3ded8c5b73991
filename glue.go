package aml

// EmitHandlerReady is called by a Backend implementation from inside Poll
// to report that h observed the readiness bits in rev. It OR-latches rev
// into h's revents and enqueues h for dispatch exactly once, matching
// aml_emit's handler case in the original.
func EmitHandlerReady(l *Loop, h *Handler, rev Event) {
	h.emitRevents(rev, l)
}

// EmitSignalReady is called by a Backend implementation from inside Poll
// to report that s's signal was delivered. It enqueues s for dispatch.
func EmitSignalReady(l *Loop, s *Signal) {
	s.deliver(l)
}
