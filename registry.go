package session

import "math"

// dueInfinite is the sentinel "never" deadline for a source with an
// infinite timeout: it only ever fires on I/O.
const dueInfinite = int64(math.MaxInt64)

// PollObjectKind distinguishes the three admissible shapes of opaque
// identity a source can be registered under: rather than let a raw fd
// and a pointer bit-pattern collide in a single integer, each
// PollObject carries a tag alongside its value.
type PollObjectKind int

const (
	// PollObjectFD identifies a source added via SourceAdd(fd, ...).
	PollObjectFD PollObjectKind = iota
	// PollObjectPollFD identifies a source added via
	// SourceAddPollFD(pollfd, ...): identity is the *PollFD's pointer.
	PollObjectPollFD
	// PollObjectChannel identifies a source added via
	// SourceAddChannel(channel, ...): identity is the *Channel's pointer.
	PollObjectChannel
)

// PollObject is the opaque, comparable identity key used for
// registration, lookup, and removal. Two PollObjects are equal only if
// they share a Kind and an underlying value, so an int fd can never be
// mistaken for a pointer identity even if their bit patterns coincide.
type PollObject struct {
	Kind PollObjectKind
	fd   int
	ptr  any
}

// NewFDPollObject returns the PollObject identifying an fd-based source.
func NewFDPollObject(fd int) PollObject {
	return PollObject{Kind: PollObjectFD, fd: fd}
}

// PollFD is the descriptor-plus-identity wrapper SourceAddPollFD keys
// sources by: the pointer itself, not its contents, is the identity.
type PollFD struct {
	Fd     int32
	Events EventMask
}

// NewPollFDPollObject returns the PollObject identifying a *PollFD-based
// source; p's pointer identity is the key.
func NewPollFDPollObject(p *PollFD) PollObject {
	return PollObject{Kind: PollObjectPollFD, ptr: p}
}

// Channel is an opaque device-channel handle; only its pointer identity
// matters to the registry.
type Channel struct {
	Name  string
	Index int
}

// NewChannelPollObject returns the PollObject identifying a *Channel-based
// source; c's pointer identity is the key.
func NewChannelPollObject(c *Channel) PollObject {
	return PollObject{Kind: PollObjectChannel, ptr: c}
}

// SourceCallback is invoked when a source fires. fd is the single
// descriptor that became ready, or a sentinel (-1) when the source
// multiplexes more than one (num_fds != 1); revents is 0 for a pure
// timeout. The return value is the "keep me registered" flag: returning
// false removes the source immediately after the call.
type SourceCallback func(fd int32, revents EventMask, userData any) (keepAlive bool)

// Source is the central registry entity: a registered timer-or-I/O event
// producer with a callback.
type Source struct {
	PollObject PollObject
	NumFds     int
	TimeoutUs  int64 // -1 means infinite (I/O-only)
	DueUs      int64 // absolute monotonic deadline; dueInfinite if TimeoutUs < 0
	Callback   SourceCallback
	UserData   any

	triggered bool
}

// Registry is the ordered collection of event sources and their
// aggregated poll descriptors. It maintains the invariant that source
// i's descriptors occupy the NumFds[i] contiguous slots starting at the
// prefix sum of NumFds[0..i) — see FDIndex.
type Registry struct {
	sources     []*Source
	descriptors []Descriptor
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Count returns the number of live sources.
func (r *Registry) Count() int {
	return len(r.sources)
}

// Sources returns the live sources in registration order. The returned
// slice is owned by the registry; callers must not retain it across a
// mutating call.
func (r *Registry) Sources() []*Source {
	return r.sources
}

// Descriptors returns the flat, aligned poll descriptor array built from
// every live source's contribution, in registration order.
func (r *Registry) Descriptors() []Descriptor {
	return r.descriptors
}

// FDIndex returns the prefix-sum offset into Descriptors() at which
// source index i's descriptors begin.
func (r *Registry) FDIndex(i int) int {
	idx := 0
	for j := 0; j < i; j++ {
		idx += r.sources[j].NumFds
	}
	return idx
}

// find returns the index of the source with the given identity, or -1.
func (r *Registry) find(obj PollObject) int {
	for i, s := range r.sources {
		if s.PollObject == obj {
			return i
		}
	}
	return -1
}

// Add registers a new source. descriptors must have exactly numFds
// entries (each with Fd/Events populated; Revents is ignored and
// overwritten by the poll driver). timeoutMs < 0 means infinite (I/O
// only); timeoutMs >= 0 is converted to microseconds and armed relative
// to nowUs.
//
// Add fails (CodeARG, ErrDuplicatePollObject) if obj is already
// registered, and fails (CodeARG, ErrInfiniteTimerOnly) if numFds == 0
// and timeoutMs < 0 — such a source could never fire.
func (r *Registry) Add(
	descriptors []Descriptor,
	numFds int,
	timeoutMs int,
	cb SourceCallback,
	userData any,
	obj PollObject,
	nowUs int64,
) error {
	if r.find(obj) >= 0 {
		return ErrDuplicatePollObject
	}
	if numFds == 0 && timeoutMs < 0 {
		return ErrInfiniteTimerOnly
	}
	if len(descriptors) != numFds {
		return wrapf(CodeARG, nil, "add: got %d descriptors, want %d", len(descriptors), numFds)
	}

	var timeoutUs, dueUs int64
	if timeoutMs < 0 {
		timeoutUs = -1
		dueUs = dueInfinite
	} else {
		timeoutUs = int64(timeoutMs) * 1000
		dueUs = nowUs + timeoutUs
	}

	src := &Source{
		PollObject: obj,
		NumFds:     numFds,
		TimeoutUs:  timeoutUs,
		DueUs:      dueUs,
		Callback:   cb,
		UserData:   userData,
	}
	r.sources = append(r.sources, src)
	r.descriptors = append(r.descriptors, descriptors...)
	return nil
}

// Remove unregisters the source identified by obj, compacting both the
// source list and the parallel descriptor array so alignment (FDIndex)
// remains correct. Removing an unknown identity returns
// ErrSourceNotFound — never fatal, since identities may be reused.
func (r *Registry) Remove(obj PollObject) error {
	i := r.find(obj)
	if i < 0 {
		return ErrSourceNotFound
	}
	fdStart := r.FDIndex(i)
	numFds := r.sources[i].NumFds

	r.sources = append(r.sources[:i], r.sources[i+1:]...)
	r.descriptors = append(r.descriptors[:fdStart], r.descriptors[fdStart+numFds:]...)
	return nil
}

// MinDue returns the earliest DueUs across all live sources, or
// dueInfinite if every source has an infinite timeout (or the registry
// is empty). It also clears each source's triggered marker: the
// deadline scan doubles as the top-of-iteration reset.
func (r *Registry) MinDue() int64 {
	minDue := dueInfinite
	for _, s := range r.sources {
		s.triggered = false
		if s.DueUs < minDue {
			minDue = s.DueUs
		}
	}
	return minDue
}
