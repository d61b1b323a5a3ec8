package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopCallback(fd int32, revents EventMask, userData any) bool { return true }

// After Add(o) then Remove(o), the registry returns to its prior length
// and descriptor array.
func TestAddRemoveRoundTrip(t *testing.T) {
	r := NewRegistry()
	obj := NewFDPollObject(7)

	require.NoError(t, r.Add([]Descriptor{{Fd: 7, Events: EventReadable}}, 1, 10, noopCallback, nil, obj, 0))
	require.Equal(t, 1, r.Count())
	require.Len(t, r.Descriptors(), 1)

	require.NoError(t, r.Remove(obj))
	assert.Equal(t, 0, r.Count())
	assert.Len(t, r.Descriptors(), 0)
}

// The descriptor array's length equals the sum of NumFds over live
// sources, and source i's descriptors occupy contiguous slots starting
// at the prefix sum.
func TestDescriptorAlignment(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Add(nil, 0, 10, noopCallback, nil, NewFDPollObject(1), 0))
	require.NoError(t, r.Add([]Descriptor{{Fd: 2}}, 1, 10, noopCallback, nil, NewFDPollObject(2), 0))
	require.NoError(t, r.Add([]Descriptor{{Fd: 3}, {Fd: 4}}, 2, 10, noopCallback, nil, NewFDPollObject(3), 0))

	var total int
	for _, s := range r.Sources() {
		total += s.NumFds
	}
	assert.Len(t, r.Descriptors(), total)

	assert.Equal(t, 0, r.FDIndex(0))
	assert.Equal(t, 0, r.FDIndex(1))
	assert.Equal(t, 1, r.FDIndex(2))

	descriptors := r.Descriptors()
	assert.Equal(t, int32(2), descriptors[r.FDIndex(1)].Fd)
	assert.Equal(t, int32(3), descriptors[r.FDIndex(2)].Fd)
	assert.Equal(t, int32(4), descriptors[r.FDIndex(2)+1].Fd)

	// Remove the middle source and re-check alignment.
	require.NoError(t, r.Remove(NewFDPollObject(2)))
	total = 0
	for _, s := range r.Sources() {
		total += s.NumFds
	}
	assert.Len(t, r.Descriptors(), total)
	descriptors = r.Descriptors()
	assert.Equal(t, int32(3), descriptors[r.FDIndex(1)].Fd)
	assert.Equal(t, int32(4), descriptors[r.FDIndex(1)+1].Fd)
}

func TestDuplicatePollObjectRejected(t *testing.T) {
	r := NewRegistry()
	obj := NewFDPollObject(5)
	require.NoError(t, r.Add([]Descriptor{{Fd: 5}}, 1, 10, noopCallback, nil, obj, 0))

	err := r.Add([]Descriptor{{Fd: 5}}, 1, 10, noopCallback, nil, obj, 0)
	require.ErrorIs(t, err, ErrDuplicatePollObject)
	assert.Equal(t, 1, r.Count())
}

func TestRegistryAddRejectsZeroFdInfiniteTimeout(t *testing.T) {
	r := NewRegistry()
	err := r.Add(nil, 0, -1, noopCallback, nil, NewFDPollObject(1), 0)
	require.ErrorIs(t, err, ErrInfiniteTimerOnly)
	assert.Equal(t, 0, r.Count())
}

func TestRegistryAddRejectsMismatchedDescriptorCount(t *testing.T) {
	r := NewRegistry()
	err := r.Add([]Descriptor{{Fd: 1}}, 2, 10, noopCallback, nil, NewFDPollObject(1), 0)
	require.Error(t, err)
	assert.Equal(t, 0, r.Count())
}

func TestRegistryRemoveUnknownReturnsNotFound(t *testing.T) {
	r := NewRegistry()
	err := r.Remove(NewFDPollObject(42))
	require.ErrorIs(t, err, ErrSourceNotFound)
}

func TestRegistryTimeoutArithmetic(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(nil, 0, 15, noopCallback, nil, NewFDPollObject(1), 1000))
	src := r.Sources()[0]
	assert.EqualValues(t, 15000, src.TimeoutUs)
	assert.EqualValues(t, 1000+15000, src.DueUs)
}

func TestRegistryInfiniteTimeoutSentinel(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add([]Descriptor{{Fd: 9}}, 1, -1, noopCallback, nil, NewFDPollObject(9), 1000))
	src := r.Sources()[0]
	assert.EqualValues(t, -1, src.TimeoutUs)
	assert.Equal(t, dueInfinite, src.DueUs)
}

func TestRegistryMinDueAndTriggeredReset(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(nil, 0, 10, noopCallback, nil, NewFDPollObject(1), 0))
	require.NoError(t, r.Add(nil, 0, 5, noopCallback, nil, NewFDPollObject(2), 0))
	r.Sources()[0].triggered = true

	min := r.MinDue()
	assert.EqualValues(t, 5000, min)
	for _, s := range r.Sources() {
		assert.False(t, s.triggered)
	}
}

func TestRegistryMinDueEmptyIsInfinite(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, dueInfinite, r.MinDue())
}

// PollObject identity must distinguish kind, not just the underlying
// value: an fd and a *PollFD must never collide.
func TestPollObjectKindDistinguishesIdenticalValues(t *testing.T) {
	fdObj := NewFDPollObject(1)
	pfd := &PollFD{Fd: 1}
	pfdObj := NewPollFDPollObject(pfd)
	assert.NotEqual(t, fdObj, pfdObj)
}
