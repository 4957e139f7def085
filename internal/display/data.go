package display

// FrameTimelineCap is the number of frame timelines carried by every vsync
// event. The compositor always populates all of them; it is a property of the
// wire protocol, not a tunable.
const FrameTimelineCap = 4

// DisplayID identifies a physical display. It is stable while the display
// stays connected; the compositor may reuse it across hotplug cycles.
type DisplayID int64

// FrameTimeline is one candidate presentation slot for a vsync pulse.
// All times are CLOCK_MONOTONIC nanoseconds.
type FrameTimeline struct {
	VsyncID                  int64
	ExpectedPresentationTime int64
	DeadlineTimestamp        int64
}

// VsyncEventData describes the presentation choices for one vsync pulse.
// The receiver reuses a single externally-owned instance for every delivery,
// so observers must copy out anything they need past the callback.
type VsyncEventData struct {
	FrameTimelines              [FrameTimelineCap]FrameTimeline
	PreferredFrameTimelineIndex int32
	FrameInterval               int64
}

// PreferredTimeline returns the timeline the compositor recommends targeting.
func (d *VsyncEventData) PreferredTimeline() FrameTimeline {
	return d.FrameTimelines[d.PreferredFrameTimelineIndex]
}

// CopyInto writes d's fields into dst field by field. The destination keeps
// its identity; other holders of dst observe the new values in place.
func (d *VsyncEventData) CopyInto(dst *VsyncEventData) {
	for i := range d.FrameTimelines {
		dst.FrameTimelines[i].VsyncID = d.FrameTimelines[i].VsyncID
		dst.FrameTimelines[i].ExpectedPresentationTime = d.FrameTimelines[i].ExpectedPresentationTime
		dst.FrameTimelines[i].DeadlineTimestamp = d.FrameTimelines[i].DeadlineTimestamp
	}
	dst.PreferredFrameTimelineIndex = d.PreferredFrameTimelineIndex
	dst.FrameInterval = d.FrameInterval
}

// FrameRateOverride reports a per-application frame rate cap. Duplicate owner
// ids pass through as received; the bridge does not enforce set semantics.
type FrameRateOverride struct {
	OwnerID     uint32
	FrameRateHz float32
}
