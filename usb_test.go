//go:build linux || darwin || netbsd || freebsd || openbsd || dragonfly

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUSBProvider struct {
	obj PollObject
	due int64
	ok  bool
}

func (p *fakeUSBProvider) PollObject() PollObject { return p.obj }

func (p *fakeUSBProvider) NextDeadlineUs(nowUs int64) (int64, bool) {
	return p.due, p.ok
}

// The provider's deadline folds into the composite timeout, and the
// matching source fires at the provider's deadline even though its own
// is far later.
func TestUSBDeadlineFoldsIntoDispatch(t *testing.T) {
	fc := NewFakeClock(0)
	provider := &fakeUSBProvider{obj: NewFDPollObject(-1), due: 10_000, ok: true}
	s, err := New(WithClock(fc), WithUSBDeadlineProvider(provider))
	require.NoError(t, err)

	var fired int
	require.NoError(t, s.SourceAdd(-1, 0, 1000, func(int32, EventMask, any) bool {
		fired++
		return true
	}, nil))

	fc.Set(10_000)
	_, err = s.iterate()
	require.NoError(t, err)
	assert.Equal(t, 1, fired, "the USB context's source fires at the provider's deadline")
}

// With no pending provider deadline, the source honours only its own.
func TestUSBProviderWithoutDeadlineIsIgnored(t *testing.T) {
	fc := NewFakeClock(0)
	provider := &fakeUSBProvider{obj: NewFDPollObject(-1), ok: false}
	s, err := New(WithClock(fc), WithUSBDeadlineProvider(provider))
	require.NoError(t, err)

	var fired int
	require.NoError(t, s.SourceAdd(-1, 0, 1000, func(int32, EventMask, any) bool {
		fired++
		return true
	}, nil))

	fc.Set(10_000)
	_, err = s.iterate()
	require.NoError(t, err)
	assert.Zero(t, fired)

	fc.Set(1_000_000)
	_, err = s.iterate()
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
}

// A provider deadline never fires a source other than the USB context's.
func TestUSBDeadlineDoesNotFireUnrelatedSources(t *testing.T) {
	fc := NewFakeClock(0)
	usbPollFD := &PollFD{Fd: -1}
	provider := &fakeUSBProvider{obj: NewPollFDPollObject(usbPollFD), due: 10_000, ok: true}
	s, err := New(WithClock(fc), WithUSBDeadlineProvider(provider))
	require.NoError(t, err)

	var fired int
	require.NoError(t, s.SourceAdd(-1, 0, 1000, func(int32, EventMask, any) bool {
		fired++
		return true
	}, nil))

	fc.Set(10_000)
	_, err = s.iterate()
	require.NoError(t, err)
	assert.Zero(t, fired, "a non-USB source must wait for its own deadline")
}
