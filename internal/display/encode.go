package display

import "fmt"

// RawVsyncPayload is the encoder's input: the timeline data as it came off
// the wire, before translation into the observer-facing record.
//
// The wire format fixes the timeline count at FrameTimelineCap, so a
// compositor-produced payload always has exactly that many entries. Payloads
// built elsewhere are still validated.
type RawVsyncPayload struct {
	Timelines                   []FrameTimeline
	PreferredFrameTimelineIndex int32
	FrameInterval               int64
}

// Raw converts the wire payload into the encoder's input form.
func (p *VsyncPayload) Raw() RawVsyncPayload {
	return RawVsyncPayload{
		Timelines:                   p.Timelines[:],
		PreferredFrameTimelineIndex: p.PreferredFrameTimelineIndex,
		FrameInterval:               p.FrameInterval,
	}
}

// EncodeVsync translates a raw vsync payload into a VsyncEventData record.
// Timelines are copied positionally; the preferred index and frame interval
// pass through unchanged. Deterministic, no side effects.
func EncodeVsync(raw RawVsyncPayload) (VsyncEventData, error) {
	var out VsyncEventData
	if len(raw.Timelines) != FrameTimelineCap {
		return out, fmt.Errorf("raw payload has %d timelines, want %d", len(raw.Timelines), FrameTimelineCap)
	}
	if raw.PreferredFrameTimelineIndex < 0 || raw.PreferredFrameTimelineIndex >= FrameTimelineCap {
		return out, fmt.Errorf("preferred timeline index %d out of range [0,%d)", raw.PreferredFrameTimelineIndex, FrameTimelineCap)
	}
	copy(out.FrameTimelines[:], raw.Timelines)
	out.PreferredFrameTimelineIndex = raw.PreferredFrameTimelineIndex
	out.FrameInterval = raw.FrameInterval
	return out, nil
}
