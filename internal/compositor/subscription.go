package compositor

import (
	"errors"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/mwehr/displaybridge/internal/display"
)

// ErrSubscriptionClosed reports an operation against an unregistered
// subscription.
var ErrSubscriptionClosed = errors.New("subscription closed")

// Subscription is one registered event consumer. The receiver core owns it:
// it arms vsync requests, reads events through Reader, and unregisters on
// dispose.
type Subscription struct {
	svc       *Service
	id        uuid.UUID
	flags     RegistrationFlags
	scope     display.DisplayID
	ch        *eventChannel
	armed     atomic.Bool
	closed    atomic.Bool
	lastPulse map[display.DisplayID]int64 // guarded by svc.mu
}

// ID returns the subscription's identifier.
func (sub *Subscription) ID() uuid.UUID { return sub.id }

// Reader returns the subscriber endpoint of the event channel.
func (sub *Subscription) Reader() *Connection { return sub.ch.recv }

// ScheduleVsync arms delivery of exactly one future vsync pulse. Arming
// while already armed collapses into the pending request.
func (sub *Subscription) ScheduleVsync() error {
	if sub.closed.Load() {
		return ErrSubscriptionClosed
	}
	sub.svc.mu.Lock()
	closed := sub.svc.closed
	sub.svc.mu.Unlock()
	if closed {
		return ErrServiceClosed
	}
	sub.armed.Store(true)
	return nil
}

// LatestVsyncEventData synchronously computes event data for the
// subscription's display as of now, independent of the push path.
// Returns ErrNoVsync if the display has not pulsed yet.
func (sub *Subscription) LatestVsyncEventData() (display.VsyncEventData, error) {
	if sub.closed.Load() {
		return display.VsyncEventData{}, ErrSubscriptionClosed
	}
	return sub.svc.latestVsyncEventData(sub, Now())
}

// Unregister removes the subscription from the service and closes both ends
// of its event channel. Idempotent.
func (sub *Subscription) Unregister() error {
	if !sub.closed.CompareAndSwap(false, true) {
		return nil
	}
	sub.svc.unregister(sub)
	return sub.ch.recv.Close()
}

func (sub *Subscription) inScope(id display.DisplayID) bool {
	return sub.scope == ScopeAllDisplays || sub.scope == id
}
