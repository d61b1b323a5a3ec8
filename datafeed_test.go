package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSubscriber appends the tag of every delivered packet.
func recordingSubscriber(tags *[]PacketTag) Subscriber {
	return func(dev Device, pkt *Packet, userData any) {
		*tags = append(*tags, pkt.Tag)
	}
}

// A transform that returns nil for META truncates delivery of those
// packets without failing the send; everything else passes through.
func TestTransformTruncation(t *testing.T) {
	b := NewBus()

	var secondSaw []PacketTag
	b.AddTransform(TransformFunc(func(in *Packet) (*Packet, error) {
		if in.Tag == PacketMeta {
			return nil, nil
		}
		return in, nil
	}))
	b.AddTransform(TransformFunc(func(in *Packet) (*Packet, error) {
		secondSaw = append(secondSaw, in.Tag)
		return in, nil
	}))

	var delivered []PacketTag
	b.AddSubscriber(recordingSubscriber(&delivered), nil)

	require.NoError(t, b.Send(nil, &Packet{Tag: PacketHeader, Header: &Header{}}))
	require.NoError(t, b.Send(nil, &Packet{Tag: PacketMeta, Meta: &Meta{}}))
	require.NoError(t, b.Send(nil, &Packet{Tag: PacketEnd}))

	assert.Equal(t, []PacketTag{PacketHeader, PacketEnd}, delivered)
	assert.Equal(t, []PacketTag{PacketHeader, PacketEnd}, secondSaw,
		"truncation must stop the chain before later transforms")
}

func TestTransformErrorAbortsDelivery(t *testing.T) {
	b := NewBus()
	boom := errors.New("boom")
	b.AddTransform(TransformFunc(func(in *Packet) (*Packet, error) {
		return nil, boom
	}))

	var delivered []PacketTag
	b.AddSubscriber(recordingSubscriber(&delivered), nil)

	err := b.Send(nil, &Packet{Tag: PacketLogic, Logic: &Logic{}})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, CodeERR, se.Code)
	assert.Empty(t, delivered)
}

func TestTransformRewriteReachesSubscribers(t *testing.T) {
	b := NewBus()
	b.AddTransform(TransformFunc(func(in *Packet) (*Packet, error) {
		if in.Tag == PacketLogic {
			return &Packet{Tag: PacketEnd}, nil
		}
		return in, nil
	}))

	var delivered []PacketTag
	b.AddSubscriber(recordingSubscriber(&delivered), nil)

	require.NoError(t, b.Send(nil, &Packet{Tag: PacketLogic, Logic: &Logic{}}))
	assert.Equal(t, []PacketTag{PacketEnd}, delivered)
}

// Subscribers observe packets per device strictly in the order Send was
// called: no reordering, no batching.
func TestSendDeliversInCallOrder(t *testing.T) {
	b := NewBus()

	var seen []byte
	b.AddSubscriber(func(dev Device, pkt *Packet, userData any) {
		seen = append(seen, pkt.Logic.Data[0])
	}, nil)

	for i := byte(0); i < 10; i++ {
		require.NoError(t, b.Send(nil, &Packet{Tag: PacketLogic, Logic: &Logic{
			UnitSize: 1, Length: 1, Data: []byte{i},
		}}))
	}

	assert.Equal(t, []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, seen)
}

func TestSubscribersFireInRegistrationOrder(t *testing.T) {
	b := NewBus()

	var order []string
	b.AddSubscriber(func(Device, *Packet, any) { order = append(order, "first") }, nil)
	b.AddSubscriber(func(Device, *Packet, any) { order = append(order, "second") }, nil)

	require.NoError(t, b.Send(nil, &Packet{Tag: PacketEnd}))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestSubscriberReceivesDeviceAndUserData(t *testing.T) {
	b := NewBus()
	dev := &virtualDevice{}
	marker := "user data"

	var gotDev Device
	var gotData any
	b.AddSubscriber(func(d Device, pkt *Packet, userData any) {
		gotDev = d
		gotData = userData
	}, marker)

	require.NoError(t, b.Send(dev, &Packet{Tag: PacketEnd}))
	assert.Same(t, dev, gotDev)
	assert.Equal(t, marker, gotData)
}

func TestRemoveAllSubscribers(t *testing.T) {
	b := NewBus()
	var delivered []PacketTag
	b.AddSubscriber(recordingSubscriber(&delivered), nil)
	b.RemoveAllSubscribers()

	require.NoError(t, b.Send(nil, &Packet{Tag: PacketEnd}))
	assert.Empty(t, delivered)
}
