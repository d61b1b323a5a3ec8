package session

// Metrics tracks runtime statistics for a Session, gated by WithMetrics.
// All fields are only ever written from the goroutine running the
// iteration engine, matching the rest of the core's single-threaded
// cooperative discipline; read them after Run returns, or from within a
// callback.
type Metrics struct {
	// Iterations is the number of iterate() passes completed.
	Iterations uint64
	// SourcesFired is the number of source callback invocations.
	SourcesFired uint64
	// SourcesExpired is the number of callback invocations that returned
	// keep_alive == false.
	SourcesExpired uint64
	// SourcesAdded is the number of successful registry Add calls.
	SourcesAdded uint64
	// SourcesRemoved is the number of successful registry Remove calls,
	// whether from SourceRemove or a false keep_alive.
	SourcesRemoved uint64
	// LastAbortLatencyUs is the monotonic-clock duration between the
	// iteration engine observing abort and Run returning, in
	// microseconds, as of the most recent Stop.
	LastAbortLatencyUs int64
}

// Metrics returns the session's metrics, or nil if WithMetrics(true) was
// not supplied at New.
func (s *Session) Metrics() *Metrics {
	return s.metrics
}
