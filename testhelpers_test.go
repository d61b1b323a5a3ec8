//go:build linux || darwin || netbsd || freebsd || openbsd || dragonfly

package session

import (
	"os"
	"testing"

	"golang.org/x/sys/unix"
)

// Raw fd helpers for driving pipe descriptors in poll-driver tests.

func closeFD(fd int) error {
	return unix.Close(fd)
}

func readFD(fd int, buf []byte) (int, error) {
	return unix.Read(fd, buf)
}

func writeFD(fd int, buf []byte) (int, error) {
	return unix.Write(fd, buf)
}

// mustPipe returns the raw fds of a pipe usable with pollFDs, and
// registers cleanup of the backing *os.File handles. Poll-driver tests
// exercise genuine readiness on real descriptors rather than a mock.
func mustPipe(t *testing.T) (rfd, wfd int) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	t.Cleanup(func() {
		_ = r.Close()
		_ = w.Close()
	})
	return int(r.Fd()), int(w.Fd())
}
