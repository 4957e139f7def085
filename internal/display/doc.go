// Package display defines the canonical display event data model and the
// packed wire format used on the compositor event channel.
//
// The wire Event is a fixed-size record: a common header (kind, display id,
// timestamp) followed by a payload union interpreted according to the kind.
// Typed accessors expose the union members; DecodeEvent and MarshalBinary
// convert between records and their little-endian byte representation.
//
// EncodeVsync is the pure translation from a raw vsync payload into the
// VsyncEventData record delivered to observers.
package display
