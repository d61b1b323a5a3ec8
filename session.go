package session

import (
	"context"

	"github.com/joeycumines/logiface"
)

// Session is the root aggregate: attached devices, the
// data-feed bus, an optional trigger, the source registry, and the
// mutex-guarded (abort, running) pair are all reached through it.
type Session struct {
	abort abortState

	devices      []Device
	ownedDevices []Device

	bus     *Bus
	trigger *Trigger

	registry    *Registry
	clock       Clock
	usbProvider USBDeadlineProvider

	logger  *logiface.Logger[logiface.Event]
	metrics *Metrics

	// wakeReadFd/wakeWriteFd are the session's wake channel: Stop
	// writes to it, the iteration engine polls the read end alongside
	// every source descriptor so an abort interrupts even a poll
	// blocked with an infinite timeout. Both are -1 after Destroy.
	wakeReadFd  int
	wakeWriteFd int

	// ctx is the context passed to the most recent Start call, reused by
	// StopSync for AcquisitionStop.
	ctx context.Context

	// abortObservedAtUs is set by iterate.go the instant it observes a
	// pending abort, consumed by Run to compute LastAbortLatencyUs.
	abortObservedAtUs int64
}

// New constructs a fresh, FRESH-state Session. Configuration flows
// through functional Options rather than a shared context handle.
func New(opts ...Option) (*Session, error) {
	cfg, err := resolveSessionOptions(opts)
	if err != nil {
		return nil, err
	}
	wakeRead, wakeWrite, err := createWakeFd()
	if err != nil {
		return nil, wrapf(CodeERR, err, "create wake fd")
	}
	s := &Session{
		bus:         NewBus(),
		registry:    NewRegistry(),
		clock:       cfg.clock,
		usbProvider: cfg.usbProvider,
		logger:      cfg.logger,
		wakeReadFd:  wakeRead,
		wakeWriteFd: wakeWrite,
		ctx:         context.Background(),
	}
	s.abort.setWakeFd(wakeWrite)
	if cfg.metrics {
		s.metrics = &Metrics{}
	}
	return s, nil
}

// Destroy detaches all devices, releases owned devices, clears the
// trigger, and drops the source and descriptor arrays. It must not be
// called while Run is active on another goroutine.
func (s *Session) Destroy() {
	for _, dev := range s.devices {
		if a, ok := dev.(Attachable); ok {
			a.SetAttachedSession(nil)
		}
	}
	s.devices = nil
	s.ownedDevices = nil
	s.trigger = nil
	s.registry = NewRegistry()
	s.bus.RemoveAllSubscribers()
	s.abort.setWakeFd(-1)
	closeWakeFd(s.wakeReadFd, s.wakeWriteFd)
	s.wakeReadFd = -1
	s.wakeWriteFd = -1
}

// DevAdd attaches dev to the session. If the session is already
// RUNNING, the device's acquisition is immediately started so it can
// participate in the current run.
func (s *Session) DevAdd(ctx context.Context, dev Device) error {
	if dev == nil {
		return wrapf(CodeARG, nil, "DevAdd: dev must not be nil")
	}
	if a, ok := dev.(Attachable); ok {
		if a.AttachedSession() != nil {
			return wrapf(CodeARG, nil, "DevAdd: device already attached to a session")
		}
	}
	for _, existing := range s.devices {
		if existing == dev {
			return wrapf(CodeARG, nil, "DevAdd: device already attached to this session")
		}
	}

	if drv := dev.Driver(); drv != nil {
		if err := drv.DevOpen(ctx, dev); err != nil {
			return wrapf(CodeERR, err, "DevAdd: %s.DevOpen", drv.Name())
		}
	}

	s.devices = append(s.devices, dev)
	if a, ok := dev.(Attachable); ok {
		a.SetAttachedSession(s)
	}

	if s.abort.isRunning() {
		if err := s.startDevice(ctx, dev); err != nil {
			return err
		}
	}
	return nil
}

// DevRemoveAll detaches every device, clearing back-pointers on any that
// implement Attachable.
func (s *Session) DevRemoveAll() {
	for _, dev := range s.devices {
		if a, ok := dev.(Attachable); ok {
			a.SetAttachedSession(nil)
		}
	}
	s.devices = nil
}

// DevList returns the attached devices in attach order. The returned
// slice is owned by the Session; callers must not retain it across a
// mutating call.
func (s *Session) DevList() []Device {
	return s.devices
}

// NewVirtualDevice creates and attaches a session-owned device with no
// driver. Owned devices are released by Destroy rather than the caller;
// a driverless device is attached without an open call.
func (s *Session) NewVirtualDevice(channels []Channel) Device {
	dev := &virtualDevice{channels: channels, session: s}
	s.ownedDevices = append(s.ownedDevices, dev)
	s.devices = append(s.devices, dev)
	return dev
}

// TriggerSet installs the session's trigger specification. A nil trigger
// clears it.
func (s *Session) TriggerSet(t *Trigger) {
	s.trigger = t
}

// TriggerGet returns the session's current trigger specification, or nil.
func (s *Session) TriggerGet() *Trigger {
	return s.trigger
}

// DatafeedCallbackAdd registers a subscriber on the session's bus.
func (s *Session) DatafeedCallbackAdd(cb Subscriber, userData any) {
	s.bus.AddSubscriber(cb, userData)
}

// DatafeedCallbackRemoveAll clears every registered subscriber.
func (s *Session) DatafeedCallbackRemoveAll() {
	s.bus.RemoveAllSubscribers()
}

// TransformAdd appends a transform to the bus's rewrite chain, in the
// order it should run.
func (s *Session) TransformAdd(t Transform) {
	s.bus.AddTransform(t)
}

// Send drives a packet through the bus on behalf of dev: the transform
// chain, then subscriber fan-out.
func (s *Session) Send(dev Device, pkt *Packet) error {
	return s.bus.Send(dev, pkt)
}

// SourceAdd is the convenience form over a single descriptor: fd < 0
// means timer-only. The fd value, negative or not, is the source's
// identity for SourceRemove, so concurrent timer-only sources must use
// distinct negative values.
func (s *Session) SourceAdd(fd int32, events EventMask, timeoutMs int, cb SourceCallback, userData any) error {
	numFds := 1
	var descriptors []Descriptor
	if fd < 0 {
		numFds = 0
	} else {
		descriptors = []Descriptor{{Fd: fd, Events: events}}
	}
	obj := NewFDPollObject(int(fd))
	if err := s.registry.Add(descriptors, numFds, timeoutMs, cb, userData, obj, s.clock.NowUs()); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.SourcesAdded++
	}
	return nil
}

// SourceAddPollFD registers a source keyed by a *PollFD's pointer
// identity.
func (s *Session) SourceAddPollFD(pollfd *PollFD, timeoutMs int, cb SourceCallback, userData any) error {
	if pollfd == nil {
		return wrapf(CodeARG, nil, "SourceAddPollFD: pollfd must not be nil")
	}
	descriptors := []Descriptor{{Fd: pollfd.Fd, Events: pollfd.Events}}
	obj := NewPollFDPollObject(pollfd)
	if err := s.registry.Add(descriptors, 1, timeoutMs, cb, userData, obj, s.clock.NowUs()); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.SourcesAdded++
	}
	return nil
}

// SourceAddChannel registers a source keyed by a *Channel's pointer
// identity. fd is the descriptor to poll on the channel's
// behalf; fd < 0 registers a timer-only source.
func (s *Session) SourceAddChannel(channel *Channel, fd int32, events EventMask, timeoutMs int, cb SourceCallback, userData any) error {
	if channel == nil {
		return wrapf(CodeARG, nil, "SourceAddChannel: channel must not be nil")
	}
	numFds := 1
	var descriptors []Descriptor
	if fd < 0 {
		numFds = 0
	} else {
		descriptors = []Descriptor{{Fd: fd, Events: events}}
	}
	obj := NewChannelPollObject(channel)
	if err := s.registry.Add(descriptors, numFds, timeoutMs, cb, userData, obj, s.clock.NowUs()); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.SourcesAdded++
	}
	return nil
}

// SourceRemove unregisters the source added via SourceAdd(fd, ...).
func (s *Session) SourceRemove(fd int32) error {
	return s.sourceRemove(NewFDPollObject(int(fd)))
}

// SourceRemovePollFD unregisters the source added via SourceAddPollFD.
func (s *Session) SourceRemovePollFD(pollfd *PollFD) error {
	return s.sourceRemove(NewPollFDPollObject(pollfd))
}

// SourceRemoveChannel unregisters the source added via SourceAddChannel.
func (s *Session) SourceRemoveChannel(channel *Channel) error {
	return s.sourceRemove(NewChannelPollObject(channel))
}

func (s *Session) sourceRemove(obj PollObject) error {
	err := s.registry.Remove(obj)
	if err != nil {
		s.logger.Err().Err(err).Log("source remove failed")
		return err
	}
	if s.metrics != nil {
		s.metrics.SourcesRemoved++
	}
	return nil
}

// startDevice commits a device's configuration and starts acquisition,
// if its driver provides AcquisitionStarter. Device configuration is
// the device's own opaque concern; there is no further commit surface
// here.
func (s *Session) startDevice(ctx context.Context, dev Device) error {
	drv := dev.Driver()
	if drv == nil {
		return nil
	}
	starter, ok := drv.(AcquisitionStarter)
	if !ok {
		return nil
	}
	if err := starter.AcquisitionStart(ctx, dev, nil); err != nil {
		return wrapf(CodeERR, err, "%s.AcquisitionStart", drv.Name())
	}
	return nil
}

// Start requires at least one attached device, verifies the trigger
// (if any), then for each device commits config and starts acquisition.
// It aborts on the first failure and returns it without rolling back
// already-started devices.
func (s *Session) Start(ctx context.Context) error {
	if len(s.devices) == 0 {
		return ErrNoDevices
	}
	if err := s.trigger.Verify(); err != nil {
		return err
	}
	s.ctx = ctx
	for _, dev := range s.devices {
		if err := s.startDevice(ctx, dev); err != nil {
			return err
		}
	}
	return nil
}

// Run sets running = true and iterates the engine until the source
// registry empties or an abort is observed and handled, then returns.
// It does not itself tear down devices beyond what StopSync performs
// when an abort fires mid-run.
func (s *Session) Run() error {
	s.abort.setRunning(true)
	defer s.abort.setRunning(false)

	for {
		stop, err := s.iterate()
		if err != nil {
			return err
		}
		if stop {
			if s.metrics != nil && s.abortObservedAtUs != 0 {
				s.metrics.LastAbortLatencyUs = s.clock.NowUs() - s.abortObservedAtUs
				s.abortObservedAtUs = 0
			}
			return nil
		}
	}
}

// StopSync is the session-goroutine-only synchronous stop path: it
// calls each device's AcquisitionStop, if its driver provides
// one, and clears running. iterate.go invokes it the moment it observes
// a pending abort; it is not meant to be called directly by users —
// call Stop instead.
func (s *Session) StopSync() {
	s.stopSync()
}

func (s *Session) stopSync() {
	for _, dev := range s.devices {
		drv := dev.Driver()
		if drv == nil {
			continue
		}
		if stopper, ok := drv.(AcquisitionStopper); ok {
			if err := stopper.AcquisitionStop(s.ctx, dev, nil); err != nil {
				s.logErr("AcquisitionStop failed", drv.Name(), err)
			}
		}
	}
	s.abort.setRunning(false)
}

// logErr is a best-effort structured-logging helper; a nil logger is
// silent (logiface's zero value reports LevelDisabled).
func (s *Session) logErr(msg, driver string, err error) {
	s.logger.Err().Str("driver", driver).Err(err).Log(msg)
}
