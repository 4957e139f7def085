// Package eventstream runs the dispatch loop over a compositor event channel.
package eventstream

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"sync"

	"github.com/mwehr/displaybridge/internal/display"
)

// Handler consumes decoded wire events. Dispatch happens on the stream's
// loop goroutine; a returned error is reported through the stream's error
// callback and does not stop the loop.
type Handler interface {
	HandleEvent(event *display.Event) error
}

// RecordReader yields one packed wire record per call, blocking until a
// record is available or the channel is closed.
type RecordReader interface {
	ReadRecord() ([]byte, error)
}

// Stream reads events from a compositor connection and dispatches them to a
// handler.
type Stream struct {
	reader   RecordReader
	handler  Handler
	onError  func(error)
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// Option configures a Stream.
type Option func(*Stream)

// WithErrorCallback routes handler errors to fn instead of the log. The
// callback runs on the loop goroutine.
func WithErrorCallback(fn func(error)) Option {
	return func(s *Stream) { s.onError = fn }
}

// New creates a Stream over the given connection and handler.
func New(reader RecordReader, handler Handler, opts ...Option) *Stream {
	s := &Stream{
		reader:  reader,
		handler: handler,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins reading events in a goroutine. It returns immediately and
// processes events in the background until the context is cancelled, Stop is
// called, or the connection closes.
func (s *Stream) Start(ctx context.Context) error {
	go s.processEvents(ctx)
	return nil
}

// Stop signals the dispatch loop to stop and waits for it to exit.
// Idempotent; an in-flight dispatch completes before Stop returns. The loop
// may be blocked in ReadRecord; close the underlying connection first to
// unblock it.
func (s *Stream) Stop() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
	return nil
}

// processEvents is the dispatch loop: read one record, decode, hand off.
func (s *Stream) processEvents(ctx context.Context) {
	defer close(s.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
			rec, err := s.reader.ReadRecord()
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
					return
				}
				log.Printf("reading from event channel: %v", err)
				continue
			}

			event, err := display.DecodeEvent(rec)
			if err != nil {
				log.Printf("parsing event: %v", err)
				continue
			}

			if err := s.handler.HandleEvent(&event); err != nil {
				if s.onError != nil {
					s.onError(err)
				} else {
					log.Printf("handling event: %v", err)
				}
			}
		}
	}
}
