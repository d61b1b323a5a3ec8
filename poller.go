//go:build linux || darwin || netbsd || freebsd || openbsd || dragonfly

// The poll driver performs one blocking poll(2) wait across the
// aggregated descriptors the registry holds for the current iteration.
// Unlike a persistent-registration epoll/kqueue design, nothing here is
// stateful across calls: the descriptor slice comes from the registry
// fresh every iteration (see registry.go's Descriptors).
package session

import (
	"golang.org/x/sys/unix"
)

// EventMask follows the host OS poll(2) convention: readable, writable,
// error, hangup. It is an unchanged pass-through to source callbacks.
type EventMask int16

const (
	EventReadable EventMask = unix.POLLIN
	EventWritable EventMask = unix.POLLOUT
	EventError    EventMask = unix.POLLERR
	EventHangup   EventMask = unix.POLLHUP
)

// Descriptor is one aggregated poll slot: a raw file descriptor paired
// with the events its owning source asked for. The registry produces a
// contiguous slice of these, one call to pollFDs consumes the whole
// slice, and revents are read back out by index.
type Descriptor struct {
	Fd      int32
	Events  EventMask
	Revents EventMask
}

// pollFDs performs exactly one poll(2) wait across descriptors.
// timeoutMs follows the poll(2) convention: -1 blocks indefinitely, 0
// returns immediately, >0 waits at most that many milliseconds. It returns the number of descriptors with non-zero
// revents. A signal interruption (EINTR) is not an error: it is reported
// as a zero-ready, nil-error return, same as a timeout.
func pollFDs(descriptors []Descriptor, timeoutMs int) (readyCount int, err error) {
	if len(descriptors) == 0 {
		// A pure timer wait: still honour the timeout by sleeping via
		// poll(2) on an empty set, which is a legal and portable way to
		// block a caller-specified duration without a dedicated fd.
		n, pollErr := unix.Poll(nil, timeoutMs)
		if pollErr != nil && pollErr != unix.EINTR {
			return 0, wrapf(CodeERR, pollErr, "poll")
		}
		return n, nil
	}

	pollFds := make([]unix.PollFd, len(descriptors))
	for i, d := range descriptors {
		pollFds[i] = unix.PollFd{Fd: d.Fd, Events: int16(d.Events)}
	}

	n, pollErr := unix.Poll(pollFds, timeoutMs)
	if pollErr != nil {
		if pollErr == unix.EINTR {
			return 0, nil
		}
		return 0, wrapf(CodeERR, pollErr, "poll")
	}

	for i := range pollFds {
		descriptors[i].Revents = EventMask(pollFds[i].Revents)
	}
	return n, nil
}
