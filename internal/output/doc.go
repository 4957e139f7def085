// Package output provides observer implementations for the owning side of
// the bridge: a log observer for the demo binary and an OpenTelemetry span
// observer that emits one span per delivered event.
//
// Both own the shared VsyncEventData buffer they hand to the receiver, and
// read it in place during OnVsync; the receiver has already populated it
// field by field before the callback runs.
package output
