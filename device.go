package session

import "context"

// Driver is the consumed device-driver interface. A device with a nil
// Driver() is virtual: it is attached without an open call.
type Driver interface {
	// Name identifies the driver for logging.
	Name() string
	// DevOpen prepares dev for use. Called by DevAdd for every device
	// that has a driver.
	DevOpen(ctx context.Context, dev Device) error
}

// AcquisitionStarter is implemented by drivers that need to commit
// per-device configuration and begin producing data when a session
// starts. It is optional: a Driver that doesn't implement it is treated
// as already acquiring (or not requiring a start step).
type AcquisitionStarter interface {
	AcquisitionStart(ctx context.Context, dev Device, userData any) error
}

// AcquisitionStopper is implemented by drivers that need to be told to
// stop producing data when a session stops. Optional, mirroring
// AcquisitionStarter.
type AcquisitionStopper interface {
	AcquisitionStop(ctx context.Context, dev Device, userData any) error
}

// Device is a single acquisition device attached to a session.
type Device interface {
	// Driver returns the device's driver, or nil for a virtual device.
	Driver() Driver
	// Channels returns the device's channel list.
	Channels() []Channel
}

// Attachable is optionally implemented by a Device that wants the
// session back-pointer invariant — a device is attached to at most one
// session, and its back-pointer is consistent with membership —
// enforced by DevAdd/DevRemoveAll/Destroy rather than left to the
// caller.
type Attachable interface {
	Device
	AttachedSession() *Session
	SetAttachedSession(*Session)
}

// virtualDevice is a session-owned device with no driver, created via
// Session.NewVirtualDevice. Destroy releases these directly rather than
// expecting the caller to.
type virtualDevice struct {
	channels []Channel
	session  *Session
}

func (d *virtualDevice) Driver() Driver          { return nil }
func (d *virtualDevice) Channels() []Channel     { return d.channels }
func (d *virtualDevice) AttachedSession() *Session { return d.session }
func (d *virtualDevice) SetAttachedSession(s *Session) { d.session = s }
