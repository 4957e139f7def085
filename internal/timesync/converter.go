// Package timesync converts the compositor's monotonic event timestamps to
// wall-clock time for logs and spans.
package timesync

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Converter maps CLOCK_MONOTONIC nanosecond timestamps to wall-clock time
// using a reference pair captured at construction.
type Converter struct {
	wallBase time.Time
	monoBase int64
}

// NewConverter captures a wall-clock/monotonic reference pair.
func NewConverter() (*Converter, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return nil, fmt.Errorf("reading CLOCK_MONOTONIC: %w", err)
	}
	return &Converter{
		wallBase: time.Now(),
		monoBase: ts.Nano(),
	}, nil
}

// MonotonicToWallClock converts a CLOCK_MONOTONIC nanosecond timestamp to
// wall-clock time. Pure once the reference pair is captured.
func (c *Converter) MonotonicToWallClock(monotonicNanos int64) time.Time {
	return c.wallBase.Add(time.Duration(monotonicNanos - c.monoBase))
}
