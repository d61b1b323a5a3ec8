package session

// Transform is an ordered element of the data-feed bus's rewrite chain.
// Receive returns the packet to forward, or nil to
// truncate delivery for that packet (a success, not an error). An error
// aborts the chain and fails the Send call.
type Transform interface {
	Receive(in *Packet) (out *Packet, err error)
}

// TransformFunc adapts a plain function to a Transform.
type TransformFunc func(in *Packet) (*Packet, error)

// Receive implements Transform.
func (f TransformFunc) Receive(in *Packet) (*Packet, error) {
	return f(in)
}

// Subscriber is the final consumer of packets post-transform.
type Subscriber func(dev Device, packet *Packet, userData any)

type subscriberEntry struct {
	cb       Subscriber
	userData any
}

// Bus is the data-feed bus: an ordered transform chain plus subscriber
// fan-out for typed packets, shared by every device attached to a
// session.
type Bus struct {
	transforms  []Transform
	subscribers []subscriberEntry
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// AddTransform appends a transform to the chain, in the order it should
// run.
func (b *Bus) AddTransform(t Transform) {
	b.transforms = append(b.transforms, t)
}

// AddSubscriber registers a subscriber callback, in the order it should
// be delivered to.
func (b *Bus) AddSubscriber(cb Subscriber, userData any) {
	b.subscribers = append(b.subscribers, subscriberEntry{cb: cb, userData: userData})
}

// RemoveAllSubscribers clears every registered subscriber.
func (b *Bus) RemoveAllSubscribers() {
	b.subscribers = nil
}

// Send walks the transform chain in registration order, truncating
// silently (a success) on the first "no output", then broadcasts
// whatever packet survives to every subscriber in registration order.
// Send runs entirely on the caller's goroutine with no internal
// concurrency, so subscribers observe packets per device in call order:
// there is no queue to reorder or batch.
func (b *Bus) Send(dev Device, pkt *Packet) error {
	cur := pkt
	for _, t := range b.transforms {
		out, err := t.Receive(cur)
		if err != nil {
			return wrapf(CodeERR, err, "transform rejected %s packet", cur.Tag)
		}
		if out == nil {
			return nil
		}
		cur = out
	}
	for _, sub := range b.subscribers {
		sub.cb(dev, cur, sub.userData)
	}
	return nil
}
