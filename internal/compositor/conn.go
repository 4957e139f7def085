package compositor

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"golang.org/x/sys/unix"

	"github.com/mwehr/displaybridge/internal/display"
)

// Connection is the subscriber endpoint of an event channel. Reads block
// until a record arrives; Close unblocks a pending read.
type Connection struct {
	conn *net.UnixConn
}

// eventChannel holds both endpoints of a subscription's socketpair. The
// service keeps the raw send fd; the subscriber side is wrapped in a
// net.UnixConn so a blocked read unblocks on Close.
type eventChannel struct {
	sendFD int
	recv   *Connection
}

func newEventChannel() (*eventChannel, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("creating event socketpair: %w", err)
	}

	if err := unix.SetNonblock(fds[0], true); err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return nil, fmt.Errorf("setting send side non-blocking: %w", err)
	}

	f := os.NewFile(uintptr(fds[1]), "compositor-events")
	fc, err := net.FileConn(f)
	_ = f.Close() // FileConn dups the fd
	if err != nil {
		_ = unix.Close(fds[0])
		return nil, fmt.Errorf("wrapping receive side: %w", err)
	}

	uc, ok := fc.(*net.UnixConn)
	if !ok {
		_ = fc.Close()
		_ = unix.Close(fds[0])
		return nil, fmt.Errorf("unexpected connection type %T", fc)
	}

	return &eventChannel{sendFD: fds[0], recv: &Connection{conn: uc}}, nil
}

// send writes one packed record without blocking. A full socket buffer drops
// the record, matching the compositor transport contract.
func (ch *eventChannel) send(ev *display.Event) error {
	b, err := ev.MarshalBinary()
	if err != nil {
		return err
	}
	err = unix.Send(ch.sendFD, b, unix.MSG_DONTWAIT)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return errChannelFull
	}
	if err != nil {
		return fmt.Errorf("writing event record: %w", err)
	}
	return nil
}

func (ch *eventChannel) closeSend() {
	_ = unix.Close(ch.sendFD)
}

var errChannelFull = errors.New("event channel full")

// ReadRecord reads one packed wire record, blocking until one is available.
// It returns io.EOF once the service has closed its end and the channel is
// drained, or net.ErrClosed after Close.
func (c *Connection) ReadRecord() ([]byte, error) {
	buf := make([]byte, display.EventSize)
	n, err := c.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, io.EOF
	}
	if n != display.EventSize {
		return nil, fmt.Errorf("short wire record: %d bytes", n)
	}
	return buf, nil
}

// Close closes the subscriber endpoint. Safe to call more than once.
func (c *Connection) Close() error {
	if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
