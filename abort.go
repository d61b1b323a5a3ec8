package session

import "sync"

// abortState is the only state shared across goroutines in the whole
// core: a mutex-guarded (abort, running) pair. Every other Session
// field is touched only from the goroutine that called Run, except
// where explicitly documented otherwise (Stop).
type abortState struct {
	mu      sync.Mutex
	abort   bool
	running bool

	// wakeWriteFd is the write end of the session's wake channel, kept
	// here so requestStop can interrupt a blocked poll. -1 once the
	// session is destroyed.
	wakeWriteFd int
}

// setWakeFd installs (or, with -1, detaches) the wake channel's write
// end.
func (a *abortState) setWakeFd(fd int) {
	a.mu.Lock()
	a.wakeWriteFd = fd
	a.mu.Unlock()
}

// requestStop sets the abort flag and pokes the wake channel so a poll
// blocked with an infinite timeout observes the abort without waiting
// for I/O. Safe to call from any goroutine at any time; non-blocking by
// contract — the wake fd is non-blocking, and a full pipe just means a
// wake is already pending.
func (a *abortState) requestStop() {
	a.mu.Lock()
	a.abort = true
	fd := a.wakeWriteFd
	a.mu.Unlock()
	if fd >= 0 {
		_ = writeWake(fd)
	}
}

// isAbortRequested reports whether a stop has been requested.
func (a *abortState) isAbortRequested() bool {
	a.mu.Lock()
	v := a.abort
	a.mu.Unlock()
	return v
}

// setRunning updates the running flag and, when transitioning back to
// not-running, clears any pending abort so the session can be started
// again (FRESH -> RUNNING -> FRESH).
func (a *abortState) setRunning(running bool) {
	a.mu.Lock()
	a.running = running
	if !running {
		a.abort = false
	}
	a.mu.Unlock()
}

// isRunning reports whether the session is between Run being entered and
// Run returning (or StopSync clearing the flag).
func (a *abortState) isRunning() bool {
	a.mu.Lock()
	v := a.running
	a.mu.Unlock()
	return v
}

// abortRequested is the Session-facing accessor iterate.go calls after
// every callback boundary.
func (s *Session) abortRequested() bool {
	return s.abort.isAbortRequested()
}

// Stop requests that Run return. It is cooperative and non-blocking: the
// next callback boundary (or, in an iteration where no source fires, the
// check at the end of that iteration, which the wake channel lets a
// blocked poll reach at once) observes the flag and invokes the
// synchronous stop path.
// Safe to call from any goroutine, including while Run is executing on
// another one — this is the one documented exception to "no mutator
// calls from a foreign goroutine during Run".
func (s *Session) Stop() {
	s.abort.requestStop()
}
