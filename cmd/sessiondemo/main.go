// Command sessiondemo demonstrates the session core: a hardware-less demo
// device whose driver fires a timer source and emits packets through the
// data-feed bus to a logging subscriber, stopped cooperatively after a
// short run.
//
// Run with: go run ./cmd/sessiondemo
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gosigrok/session"
)

// demoDriver is a virtual acquisition driver: no real hardware, just a
// ticking timer source that emits LOGIC packets until told to stop.
type demoDriver struct {
	sess  *session.Session
	dev   session.Device
	count int
}

func (d *demoDriver) Name() string { return "demo" }

func (d *demoDriver) DevOpen(ctx context.Context, dev session.Device) error {
	return nil
}

func (d *demoDriver) AcquisitionStart(ctx context.Context, dev session.Device, userData any) error {
	d.dev = dev
	return d.sess.SourceAdd(-1, 0, 50, d.onTick, nil)
}

func (d *demoDriver) AcquisitionStop(ctx context.Context, dev session.Device, userData any) error {
	fmt.Printf("demo: stopped after %d samples\n", d.count)
	return nil
}

func (d *demoDriver) onTick(fd int32, revents session.EventMask, userData any) bool {
	d.count++
	pkt := &session.Packet{
		Tag: session.PacketLogic,
		Logic: &session.Logic{
			UnitSize: 1,
			Length:   1,
			Data:     []byte{byte(d.count)},
		},
	}
	_ = d.sess.Send(d.dev, pkt)
	return true
}

type demoDevice struct {
	driver   session.Driver
	channels []session.Channel
	sess     *session.Session
}

func (d *demoDevice) Driver() session.Driver            { return d.driver }
func (d *demoDevice) Channels() []session.Channel       { return d.channels }
func (d *demoDevice) AttachedSession() *session.Session { return d.sess }
func (d *demoDevice) SetAttachedSession(s *session.Session) { d.sess = s }

func main() {
	// WithLogger is omitted: a nil *logiface.Logger is valid and silent,
	// so this demo relies on stdout prints instead of structured logs.
	// A production caller would build a *logiface.Logger[logiface.Event]
	// from one of logiface's backend packages (stumpy, zerolog, slog)
	// and pass it via session.WithLogger.
	sess, err := session.New(session.WithMetrics(true))
	if err != nil {
		panic(err)
	}
	defer sess.Destroy()

	drv := &demoDriver{sess: sess}
	dev := &demoDevice{driver: drv, channels: []session.Channel{{Name: "D0", Index: 0}}}

	sess.DatafeedCallbackAdd(func(dev session.Device, pkt *session.Packet, userData any) {
		fmt.Printf("packet: %s\n", pkt.Tag)
	}, nil)

	ctx := context.Background()
	if err := sess.DevAdd(ctx, dev); err != nil {
		panic(err)
	}
	if err := sess.Start(ctx); err != nil {
		panic(err)
	}

	go func() {
		time.Sleep(2 * time.Second)
		sess.Stop()
	}()

	if err := sess.Run(); err != nil {
		fmt.Printf("run exited with: %v\n", err)
	}

	if m := sess.Metrics(); m != nil {
		fmt.Printf("iterations=%d fired=%d expired=%d\n", m.Iterations, m.SourcesFired, m.SourcesExpired)
	}
}
