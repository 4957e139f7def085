package compositor

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/mwehr/displaybridge/internal/display"
)

// RegistrationFlags select which optional event kinds a subscription
// receives. Vsync, hotplug and null events are always delivered.
type RegistrationFlags uint32

const (
	// RegisterModeChanged opts in to display mode change events.
	RegisterModeChanged RegistrationFlags = 1 << iota
	// RegisterFrameRateOverrides opts in to frame rate override events.
	RegisterFrameRateOverrides
)

// ScopeAllDisplays subscribes to events from every display.
const ScopeAllDisplays display.DisplayID = 0

// ErrNoVsync reports that a display has not produced a vsync pulse yet, so
// there is no event data to return. Distinct from a failed query.
var ErrNoVsync = errors.New("no vsync delivered yet")

// ErrServiceClosed reports an operation against a closed service.
var ErrServiceClosed = errors.New("compositor service closed")

// DisplayConfig describes one display the service simulates.
type DisplayConfig struct {
	ID        display.DisplayID
	PeriodNs  int64 // vsync period
	ModeID    int32
	Connected bool
}

type displayState struct {
	cfg   DisplayConfig
	pulse int64 // vsync pulses emitted so far
	vsync int64 // next vsync id
}

// Service is an in-process compositor: it owns the simulated displays and
// pushes events to registered subscriptions.
type Service struct {
	mu       sync.Mutex
	displays map[display.DisplayID]*displayState
	order    []display.DisplayID // registration order; first is primary
	subs     map[uuid.UUID]*Subscription
	closed   bool
}

// NewService creates a Service with the given displays.
func NewService(displays ...DisplayConfig) *Service {
	s := &Service{
		displays: make(map[display.DisplayID]*displayState),
		subs:     make(map[uuid.UUID]*Subscription),
	}
	for _, cfg := range displays {
		s.displays[cfg.ID] = &displayState{cfg: cfg}
		s.order = append(s.order, cfg.ID)
	}
	return s
}

// Register creates a subscription scoped to one display (or ScopeAllDisplays)
// with the given optional event kinds enabled.
func (s *Service) Register(flags RegistrationFlags, scope display.DisplayID) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrServiceClosed
	}
	if scope != ScopeAllDisplays {
		if _, ok := s.displays[scope]; !ok {
			return nil, fmt.Errorf("unknown display %d", scope)
		}
	}

	ch, err := newEventChannel()
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		svc:       s,
		id:        uuid.New(),
		flags:     flags,
		scope:     scope,
		ch:        ch,
		lastPulse: make(map[display.DisplayID]int64),
	}
	s.subs[sub.id] = sub
	return sub, nil
}

// Close shuts the service down and closes every subscription's channel.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	for id, sub := range s.subs {
		sub.ch.closeSend()
		delete(s.subs, id)
	}
	return nil
}

// EmitVsync emits one vsync pulse on a display. Only subscriptions that have
// armed a request receive the event; their armed flag clears on delivery.
func (s *Service) EmitVsync(id display.DisplayID, timestamp int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds, ok := s.displays[id]
	if !ok || s.closed {
		return
	}
	ds.pulse++
	// One id per candidate timeline keeps consecutive pulses on disjoint
	// vsync id ranges.
	ds.vsync += display.FrameTimelineCap

	for _, sub := range s.subs {
		if !sub.inScope(id) {
			continue
		}
		if !sub.armed.CompareAndSwap(true, false) {
			continue
		}

		var p display.VsyncPayload
		count := ds.pulse - sub.lastPulse[id]
		sub.lastPulse[id] = ds.pulse
		p.Count = uint32(count)
		fillVsyncPayload(&p, ds, timestamp)

		ev := display.Event{DisplayID: id, Timestamp: timestamp}
		ev.SetVsync(p)
		s.deliver(sub, &ev)
	}
}

// fillVsyncPayload populates timelines for the pulse at timestamp, one
// candidate per future vsync period.
func fillVsyncPayload(p *display.VsyncPayload, ds *displayState, timestamp int64) {
	period := ds.cfg.PeriodNs
	for i := 0; i < display.FrameTimelineCap; i++ {
		expected := timestamp + int64(i+1)*period
		p.Timelines[i] = display.FrameTimeline{
			VsyncID:                  ds.vsync + int64(i),
			ExpectedPresentationTime: expected,
			DeadlineTimestamp:        expected - period/4,
		}
	}
	p.PreferredFrameTimelineIndex = 0
	p.FrameInterval = period
}

// EmitHotplug reports a display connect or disconnect to all subscriptions.
func (s *Service) EmitHotplug(id display.DisplayID, timestamp int64, connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ds, ok := s.displays[id]; ok {
		ds.cfg.Connected = connected
	}
	for _, sub := range s.subs {
		if !sub.inScope(id) {
			continue
		}
		ev := display.Event{DisplayID: id, Timestamp: timestamp}
		ev.SetHotplug(connected)
		s.deliver(sub, &ev)
	}
}

// EmitModeChanged reports a display mode switch to opted-in subscriptions.
func (s *Service) EmitModeChanged(id display.DisplayID, timestamp int64, modeID int32, renderPeriod int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ds, ok := s.displays[id]; ok {
		ds.cfg.ModeID = modeID
		ds.cfg.PeriodNs = renderPeriod
	}
	for _, sub := range s.subs {
		if !sub.inScope(id) || sub.flags&RegisterModeChanged == 0 {
			continue
		}
		ev := display.Event{DisplayID: id, Timestamp: timestamp}
		ev.SetModeChanged(modeID, renderPeriod)
		s.deliver(sub, &ev)
	}
}

// EmitFrameRateOverrides sends the current override set to opted-in
// subscriptions: one record per override, terminated by a flush record.
func (s *Service) EmitFrameRateOverrides(id display.DisplayID, timestamp int64, overrides []display.FrameRateOverride) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs {
		if !sub.inScope(id) || sub.flags&RegisterFrameRateOverrides == 0 {
			continue
		}
		for _, o := range overrides {
			ev := display.Event{DisplayID: id, Timestamp: timestamp}
			ev.SetFrameRateOverride(o)
			s.deliver(sub, &ev)
		}
		flush := display.Event{Kind: display.KindFrameRateOverrideFlush, DisplayID: id, Timestamp: timestamp}
		s.deliver(sub, &flush)
	}
}

// EmitNull sends a no-op tick to all subscriptions on a display.
func (s *Service) EmitNull(id display.DisplayID, timestamp int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs {
		if !sub.inScope(id) {
			continue
		}
		ev := display.Event{Kind: display.KindNull, DisplayID: id, Timestamp: timestamp}
		s.deliver(sub, &ev)
	}
}

func (s *Service) deliver(sub *Subscription, ev *display.Event) {
	if err := sub.ch.send(ev); err != nil {
		if errors.Is(err, errChannelFull) {
			log.Printf("subscription %s: channel full, dropping %v event", sub.id, ev.Kind)
			return
		}
		log.Printf("subscription %s: %v", sub.id, err)
	}
}

// latestVsyncEventData computes fresh event data for the subscription's
// display, as of now. Called from Subscription.
func (s *Service) latestVsyncEventData(sub *Subscription, now int64) (display.VsyncEventData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return display.VsyncEventData{}, ErrServiceClosed
	}

	id := sub.scope
	if id == ScopeAllDisplays {
		if len(s.order) == 0 {
			return display.VsyncEventData{}, errors.New("no displays")
		}
		id = s.order[0]
	}
	ds, ok := s.displays[id]
	if !ok {
		return display.VsyncEventData{}, fmt.Errorf("unknown display %d", id)
	}
	if ds.pulse == 0 {
		return display.VsyncEventData{}, ErrNoVsync
	}

	var p display.VsyncPayload
	fillVsyncPayload(&p, ds, now)
	return display.EncodeVsync(p.Raw())
}

func (s *Service) unregister(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub.id]; ok {
		sub.ch.closeSend()
		delete(s.subs, sub.id)
	}
}

// Now returns the current CLOCK_MONOTONIC reading in nanoseconds, the clock
// all event timestamps are expressed in.
func Now() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		// Fall back to wall time deltas; only reachable on broken platforms.
		return time.Now().UnixNano()
	}
	return ts.Nano()
}
