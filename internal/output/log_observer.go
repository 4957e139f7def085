package output

import (
	"log"

	"github.com/mwehr/displaybridge/internal/display"
	"github.com/mwehr/displaybridge/internal/timesync"
)

// LogObserver logs every delivered event. It owns the shared event-data
// buffer the receiver populates.
type LogObserver struct {
	buffer    *display.VsyncEventData
	converter *timesync.Converter
}

// NewLogObserver creates a LogObserver around the given shared buffer.
func NewLogObserver(buffer *display.VsyncEventData, converter *timesync.Converter) *LogObserver {
	return &LogObserver{buffer: buffer, converter: converter}
}

// Buffer returns the shared event-data buffer owned by this observer.
func (o *LogObserver) Buffer() *display.VsyncEventData { return o.buffer }

// OnVsync logs the pulse and the buffer contents populated for it.
func (o *LogObserver) OnVsync(timestamp int64, id display.DisplayID, count uint32) error {
	preferred := o.buffer.PreferredTimeline()
	log.Printf("display %d: vsync at %s count=%d vsyncId=%d interval=%dns",
		id, o.wall(timestamp), count, preferred.VsyncID, o.buffer.FrameInterval)
	return nil
}

// OnHotplug logs a connect or disconnect.
func (o *LogObserver) OnHotplug(timestamp int64, id display.DisplayID, connected bool) error {
	state := "disconnected"
	if connected {
		state = "connected"
	}
	log.Printf("display %d: %s at %s", id, state, o.wall(timestamp))
	return nil
}

// OnModeChanged logs a display mode switch.
func (o *LogObserver) OnModeChanged(timestamp int64, id display.DisplayID, modeID int32, renderPeriod int64) error {
	log.Printf("display %d: mode %d (render period %dns) at %s", id, modeID, renderPeriod, o.wall(timestamp))
	return nil
}

// OnFrameRateOverrides logs the override batch.
func (o *LogObserver) OnFrameRateOverrides(timestamp int64, id display.DisplayID, overrides []display.FrameRateOverride) error {
	log.Printf("display %d: %d frame rate override(s) at %s", id, len(overrides), o.wall(timestamp))
	for _, ov := range overrides {
		log.Printf("  owner %d -> %g Hz", ov.OwnerID, ov.FrameRateHz)
	}
	return nil
}

func (o *LogObserver) wall(monotonicNanos int64) string {
	return o.converter.MonotonicToWallClock(monotonicNanos).Format("15:04:05.000")
}
