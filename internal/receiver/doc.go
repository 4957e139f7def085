// Package receiver implements the display event receiver core: the lifecycle
// state machine, the weak observer binding, and the dispatch of decoded
// compositor events to an observer owned by another party.
//
// The receiver never extends the observer's lifetime. It holds weak handles
// to the observer and to the shared VsyncEventData buffer, resolves both
// fresh on every dispatch, and silently drops events once either has been
// collected. Dropping is defined behavior, not an error: it is how the bridge
// winds down after the owning side abandons it.
//
// Lifecycle is Created → Initialized → Disposed. Disposed is terminal and
// disposal is drain-then-drop: an in-flight dispatch that already observed a
// live receiver completes its delivery, and no new dispatch begins after the
// subscription is unregistered.
package receiver
