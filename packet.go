package session

import "sync/atomic"

// PacketTag identifies a datafeed packet variant. Tags without a
// documented payload carry no body.
type PacketTag int

const (
	PacketHeader PacketTag = iota
	PacketEnd
	PacketMeta
	PacketTrigger
	PacketLogic
	PacketAnalog
	PacketAnalog2
	PacketFrameBegin
	PacketFrameEnd
)

// String renders the tag for logging.
func (t PacketTag) String() string {
	switch t {
	case PacketHeader:
		return "HEADER"
	case PacketEnd:
		return "END"
	case PacketMeta:
		return "META"
	case PacketTrigger:
		return "TRIGGER"
	case PacketLogic:
		return "LOGIC"
	case PacketAnalog:
		return "ANALOG"
	case PacketAnalog2:
		return "ANALOG2"
	case PacketFrameBegin:
		return "FRAME_BEGIN"
	case PacketFrameEnd:
		return "FRAME_END"
	default:
		return "UNKNOWN"
	}
}

// Header is the fixed-size HEADER packet payload.
type Header struct {
	StartTimeSec  int64
	StartTimeNsec int64
}

// ConfigKey identifies a single device/session configuration option
// carried in a META packet's entry list.
type ConfigKey int

// ConfigVariant is the shared, immutable value of one ConfigEntry. It
// carries its own reference count so CopyPacket can retain the value
// rather than deep-copy it.
type ConfigVariant struct {
	Value any
	refs  *int32
}

// NewConfigVariant wraps a value as a fresh, singly-referenced variant.
func NewConfigVariant(value any) ConfigVariant {
	refs := int32(1)
	return ConfigVariant{Value: value, refs: &refs}
}

func (v ConfigVariant) retain() ConfigVariant {
	if v.refs != nil {
		atomic.AddInt32(v.refs, 1)
	}
	return v
}

func (v ConfigVariant) release() {
	if v.refs != nil {
		atomic.AddInt32(v.refs, -1)
	}
}

// ConfigEntry is one key/value pair inside a META packet.
type ConfigEntry struct {
	Key   ConfigKey
	Value ConfigVariant
}

// Meta is the META packet payload: a list of configuration entries.
type Meta struct {
	Entries []ConfigEntry
}

// Logic is the LOGIC packet payload: a run of digital samples. len(Data)
// must equal Length*UnitSize.
type Logic struct {
	UnitSize int
	Length   int
	Data     []byte
}

// Analog is the ANALOG packet payload: a run of analog samples across a
// fixed set of channels. Channels is held by reference — CopyPacket
// clones the slice, not the Channel values behind it.
type Analog struct {
	Channels   []*Channel
	NumSamples int
	MQ         string
	Unit       string
	Data       []float32
}

// Analog2 is the ANALOG2 packet payload: like Analog, but additionally
// carrying the measurement's significant-digit encoding. Digits is the
// resolution of the measured value; SpecDigits is the precision the
// instrument specifies for display.
type Analog2 struct {
	Channels   []*Channel
	NumSamples int
	MQ         string
	Unit       string
	Digits     int
	SpecDigits int
	Data       []float32
}

// Packet is the tagged-variant datafeed packet. Exactly one of
// the payload fields is populated, selected by Tag; TRIGGER, END,
// FRAME_BEGIN and FRAME_END carry no payload.
type Packet struct {
	Tag     PacketTag
	Header  *Header
	Meta    *Meta
	Logic   *Logic
	Analog  *Analog
	Analog2 *Analog2
}

// CopyPacket performs a deep copy appropriate to the tag: payload-less
// tags clone the header alone, HEADER clones the fixed-size struct,
// META retains each entry's shared variant, and LOGIC/ANALOG/ANALOG2
// clone their full sample buffers.
func CopyPacket(pkt *Packet) (*Packet, error) {
	switch pkt.Tag {
	case PacketTrigger, PacketEnd, PacketFrameBegin, PacketFrameEnd:
		return &Packet{Tag: pkt.Tag}, nil

	case PacketHeader:
		h := *pkt.Header
		return &Packet{Tag: pkt.Tag, Header: &h}, nil

	case PacketMeta:
		entries := make([]ConfigEntry, len(pkt.Meta.Entries))
		for i, e := range pkt.Meta.Entries {
			entries[i] = ConfigEntry{Key: e.Key, Value: e.Value.retain()}
		}
		return &Packet{Tag: pkt.Tag, Meta: &Meta{Entries: entries}}, nil

	case PacketLogic:
		data := make([]byte, len(pkt.Logic.Data))
		copy(data, pkt.Logic.Data)
		return &Packet{Tag: pkt.Tag, Logic: &Logic{
			UnitSize: pkt.Logic.UnitSize,
			Length:   pkt.Logic.Length,
			Data:     data,
		}}, nil

	case PacketAnalog:
		data := make([]float32, len(pkt.Analog.Data))
		copy(data, pkt.Analog.Data)
		channels := make([]*Channel, len(pkt.Analog.Channels))
		copy(channels, pkt.Analog.Channels)
		return &Packet{Tag: pkt.Tag, Analog: &Analog{
			Channels:   channels,
			NumSamples: pkt.Analog.NumSamples,
			MQ:         pkt.Analog.MQ,
			Unit:       pkt.Analog.Unit,
			Data:       data,
		}}, nil

	case PacketAnalog2:
		data := make([]float32, len(pkt.Analog2.Data))
		copy(data, pkt.Analog2.Data)
		channels := make([]*Channel, len(pkt.Analog2.Channels))
		copy(channels, pkt.Analog2.Channels)
		return &Packet{Tag: pkt.Tag, Analog2: &Analog2{
			Channels:   channels,
			NumSamples: pkt.Analog2.NumSamples,
			MQ:         pkt.Analog2.MQ,
			Unit:       pkt.Analog2.Unit,
			Digits:     pkt.Analog2.Digits,
			SpecDigits: pkt.Analog2.SpecDigits,
			Data:       data,
		}}, nil

	default:
		return nil, ErrUnknownPacketTag
	}
}

// FreePacket releases a copy's owned resources: the reference-counted
// shared variant data behind a META packet's entries. LOGIC, ANALOG,
// ANALOG2, and HEADER payloads own nothing but GC-managed memory, so
// there is nothing further to release for them.
func FreePacket(pkt *Packet) error {
	if pkt == nil {
		return nil
	}
	switch pkt.Tag {
	case PacketTrigger, PacketEnd, PacketFrameBegin, PacketFrameEnd,
		PacketHeader, PacketLogic, PacketAnalog, PacketAnalog2:
		return nil
	case PacketMeta:
		for _, e := range pkt.Meta.Entries {
			e.Value.release()
		}
		return nil
	default:
		return ErrUnknownPacketTag
	}
}
