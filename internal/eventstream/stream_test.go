package eventstream

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/mwehr/displaybridge/internal/display"
)

// chanReader is a RecordReader over an in-memory channel. Close makes any
// blocked ReadRecord return io.EOF, like a closed event channel.
type chanReader struct {
	records chan []byte
	once    sync.Once
}

func newChanReader() *chanReader {
	return &chanReader{records: make(chan []byte, 16)}
}

func (r *chanReader) ReadRecord() ([]byte, error) {
	rec, ok := <-r.records
	if !ok {
		return nil, io.EOF
	}
	return rec, nil
}

func (r *chanReader) push(t *testing.T, ev *display.Event) {
	t.Helper()
	b, err := ev.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	r.records <- b
}

func (r *chanReader) close() {
	r.once.Do(func() { close(r.records) })
}

type collectingHandler struct {
	mu     sync.Mutex
	events []display.Event
	err    error
}

func (h *collectingHandler) HandleEvent(ev *display.Event) error {
	h.mu.Lock()
	h.events = append(h.events, *ev)
	h.mu.Unlock()
	return h.err
}

func (h *collectingHandler) snapshot() []display.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]display.Event(nil), h.events...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestStream_DispatchesInOrder(t *testing.T) {
	reader := newChanReader()
	handler := &collectingHandler{}
	s := New(reader, handler)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	hp := &display.Event{DisplayID: 1, Timestamp: 10}
	hp.SetHotplug(true)
	reader.push(t, hp)
	mc := &display.Event{DisplayID: 1, Timestamp: 20}
	mc.SetModeChanged(3, 8333333)
	reader.push(t, mc)

	waitFor(t, func() bool { return len(handler.snapshot()) == 2 })

	got := handler.snapshot()
	if got[0].Kind != display.KindHotplug || got[0].Timestamp != 10 {
		t.Errorf("first event = %v@%d, want hotplug@10", got[0].Kind, got[0].Timestamp)
	}
	if got[1].Kind != display.KindModeChanged || got[1].Timestamp != 20 {
		t.Errorf("second event = %v@%d, want mode_changed@20", got[1].Kind, got[1].Timestamp)
	}

	reader.close()
	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestStream_SkipsMalformedRecords(t *testing.T) {
	reader := newChanReader()
	handler := &collectingHandler{}
	s := New(reader, handler)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	reader.records <- []byte{0xde, 0xad} // wrong size, must be skipped
	ev := &display.Event{DisplayID: 1, Timestamp: 30}
	ev.SetHotplug(false)
	reader.push(t, ev)

	waitFor(t, func() bool { return len(handler.snapshot()) == 1 })
	if got := handler.snapshot()[0]; got.Kind != display.KindHotplug {
		t.Errorf("event kind = %v, want hotplug", got.Kind)
	}

	reader.close()
	_ = s.Stop()
}

func TestStream_HandlerErrorToCallback(t *testing.T) {
	reader := newChanReader()
	handlerErr := errors.New("handler failed")
	handler := &collectingHandler{err: handlerErr}

	var mu sync.Mutex
	var reported []error
	s := New(reader, handler, WithErrorCallback(func(err error) {
		mu.Lock()
		reported = append(reported, err)
		mu.Unlock()
	}))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	for i := 0; i < 2; i++ {
		ev := &display.Event{DisplayID: 1, Timestamp: int64(i)}
		ev.SetHotplug(true)
		reader.push(t, ev)
	}

	// The loop keeps dispatching past handler failures.
	waitFor(t, func() bool { return len(handler.snapshot()) == 2 })
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reported) == 2
	})
	mu.Lock()
	for _, err := range reported {
		if !errors.Is(err, handlerErr) {
			t.Errorf("reported error = %v, want %v", err, handlerErr)
		}
	}
	mu.Unlock()

	reader.close()
	_ = s.Stop()
}

func TestStream_StopAfterReaderClose(t *testing.T) {
	reader := newChanReader()
	handler := &collectingHandler{}
	s := New(reader, handler)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	// The loop is blocked in ReadRecord; closing the reader unblocks it and
	// Stop then returns promptly.
	reader.close()

	done := make(chan struct{})
	go func() {
		_ = s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stop did not return after reader close")
	}
}

func TestStream_StopIsIdempotent(t *testing.T) {
	reader := newChanReader()
	handler := &collectingHandler{}
	s := New(reader, handler)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	reader.close()
	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestStream_ContextCancelStopsLoop(t *testing.T) {
	reader := newChanReader()
	handler := &collectingHandler{}
	s := New(reader, handler)

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()

	// After cancellation the loop exits on its next pass; unblock the
	// pending read and verify nothing further is dispatched.
	ev := &display.Event{DisplayID: 1, Timestamp: 40}
	ev.SetHotplug(true)
	reader.push(t, ev)
	reader.close()

	time.Sleep(20 * time.Millisecond)
	if n := len(handler.snapshot()); n > 1 {
		t.Errorf("dispatched %d events after cancel, want at most the in-flight one", n)
	}
}
