package output

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mwehr/displaybridge/internal/display"
	"github.com/mwehr/displaybridge/internal/timesync"
)

// SpanObserver emits one span per delivered event, timestamped with the
// event's wall-clock time. It owns the shared event-data buffer.
type SpanObserver struct {
	tracer    trace.Tracer
	buffer    *display.VsyncEventData
	converter *timesync.Converter
}

// NewSpanObserver creates a SpanObserver around the given shared buffer.
func NewSpanObserver(tracer trace.Tracer, buffer *display.VsyncEventData, converter *timesync.Converter) *SpanObserver {
	return &SpanObserver{tracer: tracer, buffer: buffer, converter: converter}
}

// Buffer returns the shared event-data buffer owned by this observer.
func (o *SpanObserver) Buffer() *display.VsyncEventData { return o.buffer }

// OnVsync emits a span covering the pulse's preferred frame timeline.
func (o *SpanObserver) OnVsync(timestamp int64, id display.DisplayID, count uint32) error {
	preferred := o.buffer.PreferredTimeline()
	o.emit("display.vsync", timestamp,
		attribute.Int64("display.id", int64(id)),
		attribute.Int64("vsync.count", int64(count)),
		attribute.Int64("vsync.id", preferred.VsyncID),
		attribute.Int64("vsync.frame_interval_ns", o.buffer.FrameInterval),
		attribute.Int64("vsync.deadline_ns", preferred.DeadlineTimestamp),
	)
	return nil
}

// OnHotplug emits a span for a connect or disconnect.
func (o *SpanObserver) OnHotplug(timestamp int64, id display.DisplayID, connected bool) error {
	o.emit("display.hotplug", timestamp,
		attribute.Int64("display.id", int64(id)),
		attribute.Bool("display.connected", connected),
	)
	return nil
}

// OnModeChanged emits a span for a mode switch.
func (o *SpanObserver) OnModeChanged(timestamp int64, id display.DisplayID, modeID int32, renderPeriod int64) error {
	o.emit("display.mode_changed", timestamp,
		attribute.Int64("display.id", int64(id)),
		attribute.Int64("display.mode_id", int64(modeID)),
		attribute.Int64("display.render_period_ns", renderPeriod),
	)
	return nil
}

// OnFrameRateOverrides emits a span carrying the override batch size.
func (o *SpanObserver) OnFrameRateOverrides(timestamp int64, id display.DisplayID, overrides []display.FrameRateOverride) error {
	attrs := []attribute.KeyValue{
		attribute.Int64("display.id", int64(id)),
		attribute.Int("overrides.count", len(overrides)),
	}
	for _, ov := range overrides {
		key := fmt.Sprintf("overrides.owner_%d_hz", ov.OwnerID)
		attrs = append(attrs, attribute.Float64(key, float64(ov.FrameRateHz)))
	}
	o.emit("display.frame_rate_overrides", timestamp, attrs...)
	return nil
}

func (o *SpanObserver) emit(name string, timestamp int64, attrs ...attribute.KeyValue) {
	when := o.converter.MonotonicToWallClock(timestamp)
	_, span := o.tracer.Start(context.Background(), name,
		trace.WithTimestamp(when),
		trace.WithAttributes(attrs...),
	)
	span.End(trace.WithTimestamp(when))
}
