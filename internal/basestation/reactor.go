package basestation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-basestation/internal/protocol"
)

// Reactor defaults.
const (
	DefaultPollInterval   = 100 * time.Millisecond
	DefaultReadBufferSize = 2048
	DefaultMaxFrameSize   = protocol.HeaderLen + protocol.MaxPayloadLen
	DefaultWriteTimeout   = time.Millisecond

	// acceptBackoff throttles the accept goroutine after a failed Accept.
	acceptBackoff = 50 * time.Millisecond
)

// Options configures a Reactor. Zero fields take the defaults above.
type Options struct {
	// Addr is the TCP address to listen on, e.g. ":5000".
	Addr string
	// PollInterval bounds how long the loop sleeps between passes.
	PollInterval time.Duration
	// ReadBufferSize is the number of bytes requested per socket read.
	ReadBufferSize int
	// MaxFrameSize caps the bytes buffered for one incomplete frame.
	// Values below DefaultMaxFrameSize are raised to it so that every
	// frame the decoder accepts can be reassembled.
	MaxFrameSize int
	// WriteTimeout bounds each send attempt.
	WriteTimeout time.Duration
	// MaxConnections limits open device connections. 0 means unlimited.
	MaxConnections int
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = DefaultReadBufferSize
	}
	if o.MaxFrameSize < DefaultMaxFrameSize {
		o.MaxFrameSize = DefaultMaxFrameSize
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	return o
}

// readEvent carries the outcome of one socket read to the loop.
type readEvent struct {
	connID uint64
	data   []byte
	err    error
}

// Reactor is the base station event loop.
//
// Run's goroutine owns all connection state. Accept and Read block in
// helper goroutines that hand their results to the loop over channels.
type Reactor struct {
	opts       Options
	dispatcher *Dispatcher
	metrics    *Metrics
	logger     Logger

	listener net.Listener
	conns    map[uint64]*Connection
	nextID   uint64

	accepted chan net.Conn
	reads    chan readEvent
	done     chan struct{}
	wg       sync.WaitGroup

	started atomic.Bool
}

// NewReactor creates a reactor that hands decoded packets to dispatcher.
// metrics may be nil.
func NewReactor(opts Options, dispatcher *Dispatcher, metrics *Metrics) *Reactor {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Reactor{
		opts:       opts.withDefaults(),
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     noopLogger{},
		conns:      make(map[uint64]*Connection),
		accepted:   make(chan net.Conn),
		reads:      make(chan readEvent),
		done:       make(chan struct{}),
	}
}

// SetLogger sets the logger for the reactor.
func (r *Reactor) SetLogger(logger Logger) {
	r.logger = logger
}

// Listen binds the listening socket. Run calls it if it has not been
// called; calling it first lets the caller learn the bound address.
func (r *Reactor) Listen() error {
	if r.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp4", r.opts.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", r.opts.Addr, err)
	}
	r.listener = ln
	return nil
}

// Addr returns the bound listen address, or nil before Listen.
func (r *Reactor) Addr() net.Addr {
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Run serves device connections until ctx is cancelled.
//
// On cancellation it closes the listener and every connection, waits for
// the helper goroutines and returns nil. Queued replies that were not sent
// are dropped. Socket and protocol errors never end the loop.
//
// Returns:
//   - error: only if the listener cannot be opened or Run was already called
func (r *Reactor) Run(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrReactorStarted
	}

	if err := r.Listen(); err != nil {
		return err
	}

	r.logger.Info("reactor listening", "addr", r.listener.Addr().String())

	r.wg.Add(1)
	go r.acceptLoop()

	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return nil
		case nc := <-r.accepted:
			r.addConnection(nc)
		case ev := <-r.reads:
			r.handleRead(ctx, ev)
		case <-ticker.C:
		}

		r.flushAll()
	}
}

// Connections returns the number of open connections. Only valid on the
// Run goroutine or after Run has returned.
func (r *Reactor) Connections() int {
	return len(r.conns)
}

func (r *Reactor) acceptLoop() {
	defer r.wg.Done()

	for {
		nc, err := r.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			r.logger.Warn("accept failed", "error", err)
			select {
			case <-time.After(acceptBackoff):
				continue
			case <-r.done:
				return
			}
		}

		select {
		case r.accepted <- nc:
		case <-r.done:
			nc.Close() //nolint:errcheck // shutting down
			return
		}
	}
}

func (r *Reactor) readLoop(id uint64, sock Socket) {
	defer r.wg.Done()

	buf := make([]byte, r.opts.ReadBufferSize)
	for {
		n, err := sock.Read(buf)
		if n > 0 {
			select {
			case r.reads <- readEvent{connID: id, data: bytes.Clone(buf[:n])}:
			case <-r.done:
				return
			}
		}
		if err != nil {
			select {
			case r.reads <- readEvent{connID: id, err: err}:
			case <-r.done:
			}
			return
		}
	}
}

func (r *Reactor) addConnection(nc net.Conn) {
	if r.opts.MaxConnections > 0 && len(r.conns) >= r.opts.MaxConnections {
		r.metrics.ConnectionsRejected.Inc()
		r.logger.Warn("connection limit reached, refusing connection",
			"remote", nc.RemoteAddr().String(),
			"limit", r.opts.MaxConnections,
		)
		nc.Close() //nolint:errcheck // refused
		return
	}

	r.nextID++
	c := NewConnection(r.nextID, nc)
	r.conns[c.ID()] = c

	r.metrics.ConnectionsAccepted.Inc()
	r.metrics.ConnectionsActive.Inc()
	r.logger.Info("connection accepted", "conn_id", c.ID(), "remote", nc.RemoteAddr().String())

	r.wg.Add(1)
	go r.readLoop(c.ID(), nc)
}

func (r *Reactor) handleRead(ctx context.Context, ev readEvent) {
	c, ok := r.conns[ev.connID]
	if !ok {
		// Closed by the loop while the reader was still delivering.
		return
	}

	if len(ev.data) > 0 {
		r.metrics.BytesReceived.Add(float64(len(ev.data)))

		pkts, decodeErr := c.Feed(ev.data, r.opts.MaxFrameSize)
		// Events already read are logged even if shutdown has begun.
		dispatchCtx := context.WithoutCancel(ctx)
		for _, pkt := range pkts {
			r.metrics.PacketsReceived.WithLabelValues(pkt.Type().String()).Inc()
			if err := r.dispatcher.Dispatch(dispatchCtx, c, pkt); err != nil {
				r.closeConnection(c, err)
				return
			}
		}
		if decodeErr != nil {
			r.metrics.DecodeErrors.WithLabelValues(decodeKind(decodeErr)).Inc()
			r.closeConnection(c, fmt.Errorf("%w: %w", ErrProtocolViolation, decodeErr))
			return
		}
	}

	if ev.err == nil {
		return
	}

	if !errors.Is(ev.err, io.EOF) {
		r.logger.Warn("read failed", "conn_id", c.ID(), "error", ev.err)
		r.closeConnection(c, nil)
		return
	}

	if c.Buffered() > 0 {
		r.metrics.DecodeErrors.WithLabelValues(decodeKindTruncated).Inc()
		r.closeConnection(c, fmt.Errorf("%w: peer closed with %d bytes of an incomplete frame",
			ErrProtocolViolation, c.Buffered()))
		return
	}

	c.peerClosed = true
	if c.Pending() == 0 {
		r.closeConnection(c, nil)
	}
	// Otherwise flushAll sends the remaining replies, then closes.
}

// flushAll gives every connection with queued bytes one send attempt.
func (r *Reactor) flushAll() {
	deadline := time.Now().Add(r.opts.WriteTimeout)

	for _, c := range r.conns {
		if c.Pending() > 0 {
			n, err := c.Flush(deadline)
			if n > 0 {
				r.metrics.BytesSent.Add(float64(n))
			}
			if err != nil {
				r.logger.Warn("write failed", "conn_id", c.ID(), "error", err)
				r.closeConnection(c, nil)
				continue
			}
		}
		if c.peerClosed && c.Pending() == 0 {
			r.closeConnection(c, nil)
		}
	}
}

// closeConnection tears down c. reason is nil for orderly or transport
// closes and wraps ErrProtocolViolation otherwise. The device stays in
// the registry.
func (r *Reactor) closeConnection(c *Connection, reason error) {
	delete(r.conns, c.ID())
	r.metrics.ConnectionsActive.Dec()

	if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		r.logger.Debug("closing socket", "conn_id", c.ID(), "error", err)
	}

	args := []any{"conn_id", c.ID(), "state", c.State().String()}
	if id, ok := c.DeviceID(); ok {
		args = append(args, "device_id", id)
	}

	if reason != nil {
		r.metrics.ProtocolViolations.Inc()
		r.logger.Warn("closing connection", append(args, "reason", reason)...)
		return
	}
	r.logger.Info("connection closed", args...)
}

func (r *Reactor) shutdown() {
	close(r.done)

	if err := r.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		r.logger.Warn("closing listener", "error", err)
	}

	for _, c := range r.conns {
		if c.Pending() > 0 {
			r.logger.Debug("dropping unsent bytes", "conn_id", c.ID(), "bytes", c.Pending())
		}
		delete(r.conns, c.ID())
		r.metrics.ConnectionsActive.Dec()
		c.Close() //nolint:errcheck // shutting down
	}

	r.wg.Wait()
	r.logger.Info("reactor stopped")
}
