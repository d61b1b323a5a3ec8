//go:build linux

package session

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// createWakeFd creates an eventfd for wake-up notifications (Linux).
// Returns the single eventfd as both the read and write end.
func createWakeFd() (readFd, writeFd int, err error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return -1, -1, err
	}
	return fd, fd, nil
}

// closeWakeFd closes the wake eventfd.
func closeWakeFd(readFd, writeFd int) {
	if readFd >= 0 {
		_ = unix.Close(readFd)
	}
}

// writeWake posts one wake token; the eventfd accumulates tokens until
// drained, so concurrent Stop calls coalesce into one readable event.
func writeWake(fd int) error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(fd, buf[:])
	return err
}

// drainWake consumes every pending wake token. The fd is non-blocking,
// so the loop ends on the first EAGAIN.
func drainWake(fd int) {
	var buf [8]byte
	for {
		if _, err := unix.Read(fd, buf[:]); err != nil {
			return
		}
	}
}
