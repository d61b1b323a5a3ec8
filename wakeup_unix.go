//go:build darwin || netbsd || freebsd || openbsd || dragonfly

package session

import (
	"golang.org/x/sys/unix"
)

// createWakeFd creates a self-pipe for wake-up notifications. Returns
// the read end and the write end, both non-blocking.
func createWakeFd() (readFd, writeFd int, err error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return -1, -1, err
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return -1, -1, err
		}
	}
	return fds[0], fds[1], nil
}

// closeWakeFd closes both wake pipe ends.
func closeWakeFd(readFd, writeFd int) {
	if readFd >= 0 {
		_ = unix.Close(readFd)
	}
	if writeFd >= 0 && writeFd != readFd {
		_ = unix.Close(writeFd)
	}
}

// writeWake posts one wake byte. The pipe is non-blocking; a full pipe
// means a wake is already pending, so the error is ignorable.
func writeWake(fd int) error {
	_, err := unix.Write(fd, []byte{1})
	return err
}

// drainWake consumes every pending wake byte. The fd is non-blocking,
// so the loop ends on the first EAGAIN.
func drainWake(fd int) {
	var buf [64]byte
	for {
		if _, err := unix.Read(fd, buf[:]); err != nil {
			return
		}
	}
}
