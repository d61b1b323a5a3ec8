package session

import "math"

// computeTimeoutMs computes the composite poll timeout: -1 if no source
// has a finite deadline, 0 if the earliest deadline already passed,
// otherwise the ceiling of the remaining microseconds converted to
// milliseconds, clamped to the largest value a signed 32-bit poll(2)
// timeout can carry.
func computeTimeoutMs(minDueUs, nowUs int64) int {
	if minDueUs == dueInfinite {
		return -1
	}
	if minDueUs <= nowUs {
		return 0
	}
	diff := minDueUs - nowUs
	ms := diff / 1000
	if diff%1000 != 0 {
		ms++
	}
	if ms > math.MaxInt32 {
		ms = math.MaxInt32
	}
	return int(ms)
}

// aggregateRevents ORs together the Revents of a source's contiguous
// descriptor slot.
func aggregateRevents(descriptors []Descriptor, fdIndex, numFds int) EventMask {
	var revents EventMask
	for _, d := range descriptors[fdIndex : fdIndex+numFds] {
		revents |= d.Revents
	}
	return revents
}

// iterate runs exactly one pass of the iteration engine: scan
// deadlines, poll, dispatch. It returns stop == true when
// the caller's run loop must terminate — either because the registry is
// empty, or because a pending abort was observed and handled via
// stopSync.
func (s *Session) iterate() (stop bool, err error) {
	// Step 1: empty-registry guard.
	if s.registry.Count() == 0 {
		if s.abortRequested() {
			s.abortObservedAtUs = s.clock.NowUs()
			s.stopSync()
		}
		return true, nil
	}

	// Step 2: scan deadlines (also clears each source's triggered flag).
	minDue := s.registry.MinDue()
	now := s.clock.NowUs()

	// Step 3: optional USB deadline collaborator.
	var usbObj PollObject
	haveUSB := s.usbProvider != nil
	if haveUSB {
		usbObj = s.usbProvider.PollObject()
		if due, ok := s.usbProvider.NextDeadlineUs(now); ok && due < minDue {
			minDue = due
		}
	}

	// Step 4: compute timeout, invoke the poll driver. The wake
	// channel's read end is polled as one extra trailing slot so Stop
	// interrupts even an infinite-timeout wait; its readiness is
	// drained and discounted before dispatch so it never counts as
	// source I/O.
	timeoutMs := computeTimeoutMs(minDue, now)
	regDescs := s.registry.Descriptors()
	polled := make([]Descriptor, len(regDescs)+1)
	copy(polled, regDescs)
	polled[len(regDescs)] = Descriptor{Fd: int32(s.wakeReadFd), Events: EventReadable}
	readyCount, err := pollFDs(polled, timeoutMs)
	if err != nil {
		return false, err
	}
	for i := range regDescs {
		regDescs[i].Revents = polled[i].Revents
	}
	if polled[len(regDescs)].Revents != 0 {
		drainWake(s.wakeReadFd)
		readyCount--
	}

	// Step 5: record stop_time immediately on return from poll.
	stopTime := s.clock.NowUs()

	if s.metrics != nil {
		s.metrics.Iterations++
	}

	triggeredAny := false

	// Step 6: dispatch loop, restarting whenever the source list mutates.
	for {
		restarted := false
		i := 0
		for i < s.registry.Count() {
			sources := s.registry.Sources()
			src := sources[i]

			if src.triggered {
				i++
				continue
			}

			fdIndex := s.registry.FDIndex(i)
			descriptors := s.registry.Descriptors()
			revents := aggregateRevents(descriptors, fdIndex, src.NumFds)

			if readyCount > 0 && revents == 0 {
				// Timers do not fire in an iteration where real I/O
				// happened; starvation-free because ready_count == 0
				// iterations process all due timers.
				i++
				continue
			}

			due := src.DueUs
			if haveUSB && src.PollObject == usbObj {
				if usbDue, ok := s.usbProvider.NextDeadlineUs(now); ok && usbDue < due {
					due = usbDue
				}
			}

			if revents == 0 && stopTime < due {
				i++
				continue
			}

			// Re-arm before invocation: the source may be gone after.
			if src.TimeoutUs >= 0 {
				src.DueUs = stopTime + src.TimeoutUs
			}
			src.triggered = true

			var fd int32 = -1
			if src.NumFds == 1 {
				fd = descriptors[fdIndex].Fd
			}
			passedRevents := revents
			if readyCount <= 0 {
				passedRevents = 0
			}

			keepAlive := src.Callback(fd, passedRevents, src.UserData)
			triggeredAny = true
			if s.metrics != nil {
				s.metrics.SourcesFired++
			}
			if !keepAlive {
				// The callback's own poll object is still valid; remove
				// by identity rather than by the now-possibly-stale index.
				removeErr := s.registry.Remove(src.PollObject)
				if s.metrics != nil {
					s.metrics.SourcesExpired++
					if removeErr == nil {
						s.metrics.SourcesRemoved++
					}
				}
			}

			if s.abortRequested() {
				s.abortObservedAtUs = s.clock.NowUs()
				s.stopSync()
				return true, nil
			}

			// Restart: the source list may have mutated (add/remove,
			// possibly cascading from within the callback). The
			// triggered marker on sources handled above prevents
			// re-firing them on the rescan.
			restarted = true
			break
		}
		if !restarted {
			break
		}
	}

	// Step 7: if nothing fired this iteration, still check abort once.
	if !triggeredAny && s.abortRequested() {
		s.abortObservedAtUs = s.clock.NowUs()
		s.stopSync()
		return true, nil
	}

	return false, nil
}
