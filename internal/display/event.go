package display

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unsafe"
)

// EventKind discriminates the payload union of a wire Event. Values are the
// compositor protocol's fourcc codes.
type EventKind uint32

// Wire event kinds.
const (
	KindNull                   EventKind = 'n'<<24 | 'u'<<16 | 'l'<<8 | 'l'
	KindVsync                  EventKind = 'v'<<24 | 's'<<16 | 'y'<<8 | 'n'
	KindHotplug                EventKind = 'h'<<24 | 'o'<<16 | 't'<<8 | 'p'
	KindModeChanged            EventKind = 'm'<<24 | 'o'<<16 | 'd'<<8 | 'e'
	KindFrameRateOverride      EventKind = 'f'<<24 | 'r'<<16 | 't'<<8 | 'o'
	KindFrameRateOverrideFlush EventKind = 'f'<<24 | 'r'<<16 | 't'<<8 | 'f'
)

// String returns a short name for logging and filter expressions.
func (k EventKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindVsync:
		return "vsync"
	case KindHotplug:
		return "hotplug"
	case KindModeChanged:
		return "mode_changed"
	case KindFrameRateOverride:
		return "frame_rate_override"
	case KindFrameRateOverrideFlush:
		return "frame_rate_override_flush"
	default:
		return fmt.Sprintf("unknown(%#x)", uint32(k))
	}
}

// EventSize is the fixed size of an encoded Event in bytes.
const EventSize = 24 + payloadSize

const payloadSize = int(unsafe.Sizeof(VsyncPayload{}))

// Event is one packed record from the compositor event channel.
// The layout matches the wire protocol exactly: a fixed header followed by a
// payload union sized to the largest member. Interpret Data through the typed
// accessor matching Kind.
type Event struct {
	Kind      EventKind
	_         uint32 // padding keeps DisplayID 8-byte aligned
	DisplayID DisplayID
	Timestamp int64 // CLOCK_MONOTONIC nanoseconds
	Data      EventData
}

// EventData overlays all payload kinds. The interpretation depends on
// Event.Kind.
type EventData struct {
	Raw [payloadSize]byte
}

// VsyncPayload is the union member for KindVsync.
type VsyncPayload struct {
	Count                       uint32 // pulses since the last delivered vsync
	_                           uint32
	Timelines                   [FrameTimelineCap]FrameTimeline
	PreferredFrameTimelineIndex int32
	_                           int32
	FrameInterval               int64
}

// HotplugPayload is the union member for KindHotplug.
type HotplugPayload struct {
	Connected uint32 // 0 or 1
	_         uint32
}

// ModeChangedPayload is the union member for KindModeChanged.
type ModeChangedPayload struct {
	ModeID       int32
	_            uint32
	RenderPeriod int64
}

// FrameRateOverridePayload is the union member for KindFrameRateOverride.
// Overrides arrive one per record and are terminated by a
// KindFrameRateOverrideFlush record carrying no payload.
type FrameRateOverridePayload struct {
	OwnerID     uint32
	FrameRateHz float32
}

// Vsync returns the vsync payload, or nil if the kind does not match.
func (e *Event) Vsync() *VsyncPayload {
	if e.Kind != KindVsync {
		return nil
	}
	return (*VsyncPayload)(unsafe.Pointer(&e.Data))
}

// Hotplug returns the hotplug payload, or nil if the kind does not match.
func (e *Event) Hotplug() *HotplugPayload {
	if e.Kind != KindHotplug {
		return nil
	}
	return (*HotplugPayload)(unsafe.Pointer(&e.Data))
}

// ModeChanged returns the mode change payload, or nil if the kind does not
// match.
func (e *Event) ModeChanged() *ModeChangedPayload {
	if e.Kind != KindModeChanged {
		return nil
	}
	return (*ModeChangedPayload)(unsafe.Pointer(&e.Data))
}

// FrameRateOverride returns the override payload, or nil if the kind does not
// match.
func (e *Event) FrameRateOverride() *FrameRateOverridePayload {
	if e.Kind != KindFrameRateOverride {
		return nil
	}
	return (*FrameRateOverridePayload)(unsafe.Pointer(&e.Data))
}

// DecodeEvent parses one packed wire record. Records of any other length are
// rejected; the protocol has no variable-size events.
func DecodeEvent(b []byte) (Event, error) {
	var ev Event
	if len(b) != EventSize {
		return ev, fmt.Errorf("wire record is %d bytes, want %d", len(b), EventSize)
	}
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &ev); err != nil {
		return ev, fmt.Errorf("decoding wire record: %w", err)
	}
	return ev, nil
}

// MarshalBinary encodes the event into its packed wire representation.
func (e *Event) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(EventSize)
	if err := binary.Write(&buf, binary.LittleEndian, e); err != nil {
		return nil, fmt.Errorf("encoding wire record: %w", err)
	}
	return buf.Bytes(), nil
}

// SetVsync stamps e as a vsync event with the given payload.
func (e *Event) SetVsync(p VsyncPayload) {
	e.Kind = KindVsync
	*(*VsyncPayload)(unsafe.Pointer(&e.Data)) = p
}

// SetHotplug stamps e as a hotplug event.
func (e *Event) SetHotplug(connected bool) {
	e.Kind = KindHotplug
	p := (*HotplugPayload)(unsafe.Pointer(&e.Data))
	*p = HotplugPayload{}
	if connected {
		p.Connected = 1
	}
}

// SetModeChanged stamps e as a mode change event.
func (e *Event) SetModeChanged(modeID int32, renderPeriod int64) {
	e.Kind = KindModeChanged
	*(*ModeChangedPayload)(unsafe.Pointer(&e.Data)) = ModeChangedPayload{ModeID: modeID, RenderPeriod: renderPeriod}
}

// SetFrameRateOverride stamps e as a single frame rate override record.
func (e *Event) SetFrameRateOverride(o FrameRateOverride) {
	e.Kind = KindFrameRateOverride
	*(*FrameRateOverridePayload)(unsafe.Pointer(&e.Data)) = FrameRateOverridePayload{OwnerID: o.OwnerID, FrameRateHz: o.FrameRateHz}
}
