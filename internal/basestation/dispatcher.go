package basestation

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-basestation/internal/device"
	"github.com/nerrad567/gray-logic-basestation/internal/eventlog"
	"github.com/nerrad567/gray-logic-basestation/internal/protocol"
)

// JoinDescription is the event text logged when a device registers.
const JoinDescription = "Joined the network"

// BatteryRecorder receives the battery level a device reports at registration.
type BatteryRecorder interface {
	WriteBatteryLevel(deviceID uint32, info string, level uint8, ts time.Time)
}

// Dispatcher applies decoded packets to connection and registry state.
//
// Not safe for concurrent use; it belongs to the reactor goroutine.
type Dispatcher struct {
	registry *device.Registry
	sink     eventlog.Sink
	battery  BatteryRecorder
	metrics  *Metrics
	now      func() time.Time
	logger   Logger
}

// NewDispatcher creates a dispatcher that allocates ids from registry and
// logs events to sink. metrics may be nil.
func NewDispatcher(registry *device.Registry, sink eventlog.Sink, metrics *Metrics) *Dispatcher {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Dispatcher{
		registry: registry,
		sink:     sink,
		metrics:  metrics,
		now:      time.Now,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// SetClock replaces the time source used for acks and event timestamps.
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.now = now
}

// SetBatteryRecorder enables battery telemetry on registration.
func (d *Dispatcher) SetBatteryRecorder(r BatteryRecorder) {
	d.battery = r
}

// Dispatch handles one packet received on c.
//
// Replies are queued on c; nothing is written to the socket here.
//
// Returns:
//   - error: wrapping ErrProtocolViolation if c must be closed. Event log
//     failures are logged and never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, c *Connection, pkt protocol.Packet) error {
	if reg, ok := pkt.(*protocol.Registration); ok {
		return d.handleRegistration(ctx, c, reg)
	}

	if c.State() != StateIdentified {
		return fmt.Errorf("%w: %s before registration", ErrProtocolViolation, pkt.Type())
	}

	switch p := pkt.(type) {
	case *protocol.StatusUpdate:
		return d.handleStatusUpdate(ctx, c, p)
	case *protocol.ServerAck:
		// Only servers send acks; reserved for peering between stations.
		d.logger.Debug("ignoring server ack from device", "conn_id", c.ID())
		return nil
	case *protocol.Image:
		d.logger.Debug("ignoring image", "conn_id", c.ID(), "bytes", len(p.Data))
		return nil
	default:
		return fmt.Errorf("%w: unhandled packet type %s", ErrProtocolViolation, pkt.Type())
	}
}

func (d *Dispatcher) handleRegistration(ctx context.Context, c *Connection, reg *protocol.Registration) error {
	if id, ok := c.DeviceID(); ok {
		d.metrics.DuplicateRegistrations.Inc()
		d.logger.Info("duplicate registration", "conn_id", c.ID(), "device_id", id)
		d.ack(c, id)
		return nil
	}

	if reg.SourceID != 0 {
		return d.handleRetry(c, reg)
	}

	id, err := d.registry.Register(reg.Info)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}
	if err := d.registry.SetBatteryLevel(id, reg.BatteryLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}

	c.Bind(id)
	d.metrics.Registrations.Inc()
	d.logger.Info("device registered",
		"conn_id", c.ID(),
		"device_id", id,
		"info", reg.Info,
		"battery", reg.BatteryLevel,
	)

	now := d.now()
	d.ackAt(c, id, now)

	if d.battery != nil {
		d.battery.WriteBatteryLevel(uint32(id), reg.Info, reg.BatteryLevel, now)
	}

	d.emit(ctx, eventlog.Event{
		Time:        now,
		DeviceID:    uint32(id),
		DeviceInfo:  reg.Info,
		Priority:    eventlog.PriorityNotice,
		Description: JoinDescription,
	})
	return nil
}

// handleRetry answers a registration from a device that already holds an
// id, typically after reconnecting. The id is echoed and never allocated.
// The connection stays unidentified; only a fresh registration binds it.
func (d *Dispatcher) handleRetry(c *Connection, reg *protocol.Registration) error {
	if reg.SourceID > uint32(device.MaxID) {
		return fmt.Errorf("%w: registration retry with id %d beyond %d", ErrProtocolViolation, reg.SourceID, device.MaxID)
	}

	id := device.ID(reg.SourceID)
	d.metrics.DuplicateRegistrations.Inc()
	d.logger.Info("duplicate registration",
		"conn_id", c.ID(),
		"device_id", id,
		"known", d.registry.Contains(id),
	)
	d.ack(c, id)
	return nil
}

func (d *Dispatcher) handleStatusUpdate(ctx context.Context, c *Connection, su *protocol.StatusUpdate) error {
	id, _ := c.DeviceID()

	dev, err := d.registry.Lookup(id)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}

	priority := eventlog.Priority(su.Priority)
	if !priority.Valid() {
		return fmt.Errorf("%w: priority %d out of range", ErrProtocolViolation, su.Priority)
	}

	if su.SourceID != uint32(id) {
		d.logger.Warn("status update source id differs from registered id",
			"conn_id", c.ID(),
			"device_id", id,
			"source_id", su.SourceID,
		)
	}

	if err := d.registry.Touch(id); err != nil {
		return fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}

	d.emit(ctx, eventlog.Event{
		Time:        d.now(),
		DeviceID:    uint32(id),
		DeviceInfo:  dev.Info,
		Priority:    priority,
		Description: su.Content,
	})
	return nil
}

func (d *Dispatcher) ack(c *Connection, id device.ID) {
	d.ackAt(c, id, d.now())
}

func (d *Dispatcher) ackAt(c *Connection, id device.ID, now time.Time) {
	assigned := uint8(id) //nolint:gosec // ids are capped at device.MaxID

	unix := uint32(now.Unix()) //nolint:gosec // fits until 2106
	c.Enqueue((&protocol.ServerAck{AssignedID: assigned, UnixTime: unix}).Encode())
}

// emit hands e to the sink. Failures are logged and swallowed.
func (d *Dispatcher) emit(ctx context.Context, e eventlog.Event) {
	d.metrics.EventsEmitted.Inc()
	if err := d.sink.InsertEvent(ctx, e); err != nil {
		d.metrics.SinkErrors.Inc()
		d.logger.Error("event log insert failed",
			"device_id", e.DeviceID,
			"priority", e.Priority.String(),
			"error", err,
		)
	}
}
