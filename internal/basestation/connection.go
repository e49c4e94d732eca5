package basestation

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/nerrad567/gray-logic-basestation/internal/device"
	"github.com/nerrad567/gray-logic-basestation/internal/protocol"
)

// State is a connection's registration state.
type State int

// Connection states.
const (
	StateUnidentified State = iota
	StateIdentified
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnidentified:
		return "unidentified"
	case StateIdentified:
		return "identified"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Socket is the part of net.Conn a Connection uses.
type Socket interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetWriteDeadline(t time.Time) error
	Close() error
	RemoteAddr() net.Addr
}

// Connection is the server-side state of one device socket.
//
// Only the reactor goroutine may touch a Connection.
type Connection struct {
	id   uint64
	sock Socket

	deviceID   device.ID
	identified bool

	// inbound holds the bytes of a frame that has not fully arrived yet.
	inbound []byte
	// outbound holds encoded replies not yet accepted by the socket.
	outbound []byte

	peerClosed bool
}

// NewConnection wraps sock. id is the reactor's handle for the socket and
// is unrelated to the device id.
func NewConnection(id uint64, sock Socket) *Connection {
	return &Connection{id: id, sock: sock}
}

// ID returns the reactor's handle for this connection.
func (c *Connection) ID() uint64 {
	return c.id
}

// RemoteAddr returns the peer address.
func (c *Connection) RemoteAddr() net.Addr {
	return c.sock.RemoteAddr()
}

// State reports whether a device has been bound to the connection.
func (c *Connection) State() State {
	if c.identified {
		return StateIdentified
	}
	return StateUnidentified
}

// DeviceID returns the bound device id, if any.
func (c *Connection) DeviceID() (device.ID, bool) {
	return c.deviceID, c.identified
}

// Bind associates the connection with a device and moves it to
// StateIdentified.
func (c *Connection) Bind(id device.ID) {
	c.deviceID = id
	c.identified = true
}

// Enqueue appends an encoded frame to the outbound buffer.
func (c *Connection) Enqueue(frame []byte) {
	c.outbound = append(c.outbound, frame...)
}

// Pending returns the number of outbound bytes not yet sent.
func (c *Connection) Pending() int {
	return len(c.outbound)
}

// Buffered returns the number of bytes held for an incomplete inbound frame.
func (c *Connection) Buffered() int {
	return len(c.inbound)
}

// Flush writes as much of the outbound buffer as the socket accepts before
// deadline and drops exactly the bytes written. Hitting the deadline is not
// an error: the remainder stays queued for the next pass.
//
// Returns:
//   - int: bytes written
//   - error: a transport error other than the deadline
func (c *Connection) Flush(deadline time.Time) (int, error) {
	if len(c.outbound) == 0 {
		return 0, nil
	}

	if err := c.sock.SetWriteDeadline(deadline); err != nil {
		return 0, fmt.Errorf("setting write deadline: %w", err)
	}

	n, err := c.sock.Write(c.outbound)
	c.consume(n)

	if err != nil && !errors.Is(err, os.ErrDeadlineExceeded) {
		return n, err
	}
	return n, nil
}

func (c *Connection) consume(n int) {
	if n >= len(c.outbound) {
		c.outbound = nil
		return
	}
	c.outbound = c.outbound[n:]
}

// Feed appends freshly read bytes to any buffered partial frame and decodes
// every complete frame, in stream order.
//
// An incomplete trailing frame is kept for the next call. It becomes an
// error once it grows beyond maxBuffered bytes.
//
// Returns:
//   - []protocol.Packet: frames decoded before any failure
//   - error: a *protocol.DecodeError, which the caller treats as fatal for
//     the connection
func (c *Connection) Feed(data []byte, maxBuffered int) ([]protocol.Packet, error) {
	c.inbound = append(c.inbound, data...)

	dec := protocol.NewDecoder(c.inbound)
	var pkts []protocol.Packet
	for pkt, err := range dec.All() {
		if err == nil {
			pkts = append(pkts, pkt)
			continue
		}

		if !errors.Is(err, protocol.ErrTruncated) {
			c.inbound = nil
			return pkts, err
		}

		tail := len(c.inbound) - dec.Offset()
		if tail > maxBuffered {
			tag := c.inbound[dec.Offset()]
			c.inbound = nil
			return pkts, &protocol.DecodeError{
				Offset: dec.Offset(),
				Tag:    tag,
				Err:    protocol.ErrFrameTooLarge,
				Detail: fmt.Sprintf("incomplete frame reached %d bytes, limit %d", tail, maxBuffered),
			}
		}
		c.inbound = append(c.inbound[:0], c.inbound[dec.Offset():]...)
		return pkts, nil
	}

	c.inbound = c.inbound[:0]
	return pkts, nil
}

// Close closes the socket.
func (c *Connection) Close() error {
	return c.sock.Close()
}
