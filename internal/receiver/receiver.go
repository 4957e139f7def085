package receiver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/mwehr/displaybridge/internal/compositor"
	"github.com/mwehr/displaybridge/internal/display"
	"github.com/mwehr/displaybridge/internal/eventstream"
	"github.com/mwehr/displaybridge/internal/filter"
)

// Observer consumes display events. Handlers run on the dispatch loop
// goroutine; a returned error is propagated to the loop's owner through the
// OnHandlerError option and never affects the receiver's own state.
//
// For vsync, the shared VsyncEventData buffer is populated in place before
// OnVsync runs; observers must copy out anything they keep past the call.
type Observer interface {
	OnVsync(timestamp int64, id display.DisplayID, count uint32) error
	OnHotplug(timestamp int64, id display.DisplayID, connected bool) error
	OnModeChanged(timestamp int64, id display.DisplayID, modeID int32, renderPeriod int64) error
	OnFrameRateOverrides(timestamp int64, id display.DisplayID, overrides []display.FrameRateOverride) error
}

// State is the receiver lifecycle state.
type State int32

// Lifecycle states. Disposed is terminal.
const (
	StateCreated State = iota
	StateInitialized
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// observerRef is a weak handle to the observer, resolved fresh on every
// dispatch. Resolution failure means the owning side released the observer.
type observerRef interface {
	resolve() Observer
}

type weakObserver[O any, PO interface {
	*O
	Observer
}] struct {
	p weak.Pointer[O]
}

func (w weakObserver[O, PO]) resolve() Observer {
	if v := w.p.Value(); v != nil {
		return PO(v)
	}
	return nil
}

// Options configure a Receiver.
type Options struct {
	// Flags select optional event kinds (mode changes, frame rate
	// overrides) at registration time.
	Flags compositor.RegistrationFlags
	// Scope restricts the subscription to one display;
	// compositor.ScopeAllDisplays subscribes to every display.
	Scope display.DisplayID
	// Filter, if set, is evaluated before each dispatch.
	Filter *filter.Filter
	// OnHandlerError receives observer handler failures. It runs on the
	// dispatch loop goroutine. Defaults to logging.
	OnHandlerError func(error)
}

// Receiver bridges compositor events to a weakly-held observer.
type Receiver struct {
	source *compositor.Service
	obs    observerRef
	buffer weak.Pointer[display.VsyncEventData]
	opts   Options

	state      atomic.Int32
	vsyncArmed atomic.Bool

	sub    *compositor.Subscription
	stream *eventstream.Stream
	cancel context.CancelFunc

	disposeOnce sync.Once

	// pending accumulates frame rate override records between flush marks.
	// Touched only on the dispatch loop goroutine.
	pending map[display.DisplayID][]display.FrameRateOverride
}

// New creates a receiver bound to an observer and a shared event-data
// buffer. Both are held weakly: the receiver never keeps either alive, and
// events arriving after they are collected are dropped silently.
// Observer and buffer must be non-nil heap pointers.
func New[O any, PO interface {
	*O
	Observer
}](source *compositor.Service, observer PO, buffer *display.VsyncEventData, opts Options) *Receiver {
	return &Receiver{
		source:  source,
		obs:     weakObserver[O, PO]{p: weak.Make((*O)(observer))},
		buffer:  weak.Make(buffer),
		opts:    opts,
		pending: make(map[display.DisplayID][]display.FrameRateOverride),
	}
}

// Initialize registers with the compositor and starts the dispatch loop.
// A rejected registration is terminal: the receiver transitions straight to
// Disposed and must not be reused.
func (r *Receiver) Initialize() error {
	switch State(r.state.Load()) {
	case StateInitialized:
		return &InitError{Err: errors.New("already initialized")}
	case StateDisposed:
		return &InitError{Err: ErrDisposed}
	}

	sub, err := r.source.Register(r.opts.Flags, r.opts.Scope)
	if err != nil {
		r.state.Store(int32(StateDisposed))
		return &InitError{Err: err}
	}
	r.sub = sub

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.stream = eventstream.New(sub.Reader(), r, eventstream.WithErrorCallback(r.handlerError))
	if err := r.stream.Start(ctx); err != nil {
		cancel()
		_ = sub.Unregister()
		r.state.Store(int32(StateDisposed))
		return &InitError{Err: err}
	}

	r.state.Store(int32(StateInitialized))
	return nil
}

// ScheduleVsync arms delivery of exactly one future vsync event. Calling it
// while a request is already armed is a no-op; there is no request queue.
func (r *Receiver) ScheduleVsync() error {
	switch State(r.state.Load()) {
	case StateCreated:
		return &ScheduleError{Err: ErrNotInitialized}
	case StateDisposed:
		return &ScheduleError{Err: ErrDisposed}
	}

	// Arm the local flag before the subscription so a pulse emitted right
	// after registration finds it set. Forwarding even while already armed
	// keeps the two flags consistent when a consumed pulse never produced a
	// delivery (filtered out, or its record dropped on a full channel): the
	// service-side flag cleared on emission and must be set again.
	r.vsyncArmed.Store(true)
	if err := r.sub.ScheduleVsync(); err != nil {
		r.vsyncArmed.Store(false)
		return &ScheduleError{Err: err}
	}
	return nil
}

// LatestVsyncEventData synchronously queries the compositor for current
// vsync event data, independent of the push path. ErrNoData (wrapped in
// QueryError) distinguishes "no vsync yet" from a failed query.
func (r *Receiver) LatestVsyncEventData() (display.VsyncEventData, error) {
	var zero display.VsyncEventData
	switch State(r.state.Load()) {
	case StateCreated:
		return zero, &QueryError{Err: ErrNotInitialized}
	case StateDisposed:
		return zero, &QueryError{Err: ErrDisposed}
	}

	data, err := r.sub.LatestVsyncEventData()
	if err != nil {
		if errors.Is(err, compositor.ErrNoVsync) {
			return zero, &QueryError{Err: ErrNoData}
		}
		return zero, &QueryError{Err: err}
	}
	return data, nil
}

// Dispose unregisters from the compositor and stops the dispatch loop.
// Idempotent and safe to call from any goroutine except the dispatch loop
// itself (an observer callback must not dispose its own receiver).
//
// Disposal is drain-then-drop: the state flips first, so no dispatch after
// that point resolves the observer; one already past the check completes its
// delivery before Dispose returns.
func (r *Receiver) Dispose() {
	r.disposeOnce.Do(r.dispose)
}

func (r *Receiver) dispose() {
	prev := State(r.state.Swap(int32(StateDisposed)))
	if prev != StateInitialized {
		return
	}
	// Unregistration is the point of no return: it closes the event
	// channel, so the loop reads nothing further and exits.
	_ = r.sub.Unregister()
	r.cancel()
	_ = r.stream.Stop()
}

// HandleEvent implements eventstream.Handler. It runs on the dispatch loop
// goroutine.
func (r *Receiver) HandleEvent(ev *display.Event) error {
	if State(r.state.Load()) != StateInitialized {
		// Disposed (or never initialized): drop silently.
		return nil
	}
	if ev.Kind == display.KindVsync {
		// The armed flag tracks the request lifecycle, not delivery: the
		// arriving pulse consumes the request even if the event is filtered
		// out below or nothing can be delivered, so the next ScheduleVsync
		// arms a fresh one. An unsolicited pulse is dropped here.
		if !r.vsyncArmed.CompareAndSwap(true, false) {
			return nil
		}
	}
	if r.opts.Filter != nil && !r.opts.Filter.Match(ev) {
		return nil
	}

	switch ev.Kind {
	case display.KindVsync:
		return r.dispatchVsync(ev)
	case display.KindHotplug:
		return r.dispatchHotplug(ev)
	case display.KindModeChanged:
		return r.dispatchModeChanged(ev)
	case display.KindFrameRateOverride:
		r.accumulateOverride(ev)
		return nil
	case display.KindFrameRateOverrideFlush:
		return r.dispatchFrameRateOverrides(ev)
	case display.KindNull:
		// Intentional no-op tick.
		return nil
	default:
		log.Printf("receiver: ignoring unknown event kind %v", ev.Kind)
		return nil
	}
}

func (r *Receiver) dispatchVsync(ev *display.Event) error {
	obs := r.obs.resolve()
	if obs == nil {
		return nil
	}
	buf := r.buffer.Value()
	if buf == nil {
		return nil
	}

	p := ev.Vsync()
	data, err := display.EncodeVsync(p.Raw())
	if err != nil {
		// Unreachable for wire-decoded events; guards in-process senders.
		return fmt.Errorf("encoding vsync payload: %w", err)
	}
	data.CopyInto(buf)

	return obs.OnVsync(ev.Timestamp, ev.DisplayID, p.Count)
}

func (r *Receiver) dispatchHotplug(ev *display.Event) error {
	obs := r.obs.resolve()
	if obs == nil {
		return nil
	}
	return obs.OnHotplug(ev.Timestamp, ev.DisplayID, ev.Hotplug().Connected != 0)
}

func (r *Receiver) dispatchModeChanged(ev *display.Event) error {
	obs := r.obs.resolve()
	if obs == nil {
		return nil
	}
	p := ev.ModeChanged()
	return obs.OnModeChanged(ev.Timestamp, ev.DisplayID, p.ModeID, p.RenderPeriod)
}

func (r *Receiver) accumulateOverride(ev *display.Event) {
	p := ev.FrameRateOverride()
	r.pending[ev.DisplayID] = append(r.pending[ev.DisplayID], display.FrameRateOverride{
		OwnerID:     p.OwnerID,
		FrameRateHz: p.FrameRateHz,
	})
}

func (r *Receiver) dispatchFrameRateOverrides(ev *display.Event) error {
	batch := r.pending[ev.DisplayID]
	delete(r.pending, ev.DisplayID)

	obs := r.obs.resolve()
	if obs == nil {
		return nil
	}
	if batch == nil {
		// Zero overrides is a valid delivery: empty, never nil.
		batch = []display.FrameRateOverride{}
	}
	return obs.OnFrameRateOverrides(ev.Timestamp, ev.DisplayID, batch)
}

func (r *Receiver) handlerError(err error) {
	if r.opts.OnHandlerError != nil {
		r.opts.OnHandlerError(err)
		return
	}
	log.Printf("receiver: observer handler failed: %v", err)
}

// CurrentState returns the receiver's lifecycle state.
func (r *Receiver) CurrentState() State {
	return State(r.state.Load())
}
