// Package compositor provides the event source side of the bridge: an
// in-process compositor service that registers subscriptions, arms one-shot
// vsync requests, and pushes packed display events to each subscriber over a
// socketpair-backed channel.
//
// The channel mimics the real compositor transport: the service side writes
// without blocking and drops records when the socket buffer is full; the
// subscriber side blocks reading one fixed-size record at a time.
package compositor
