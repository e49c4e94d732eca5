package basestation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-test/deep"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/nerrad567/gray-logic-basestation/internal/device"
	"github.com/nerrad567/gray-logic-basestation/internal/eventlog"
	"github.com/nerrad567/gray-logic-basestation/internal/protocol"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// memorySink records events in memory.
type memorySink struct {
	events []eventlog.Event
	err    error
}

func (s *memorySink) InsertEvent(_ context.Context, e eventlog.Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

func (s *memorySink) Close() error { return nil }

type batteryCall struct {
	id    uint32
	info  string
	level uint8
}

type fakeBattery struct {
	calls []batteryCall
}

func (b *fakeBattery) WriteBatteryLevel(id uint32, info string, level uint8, _ time.Time) {
	b.calls = append(b.calls, batteryCall{id, info, level})
}

func counterValue(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("reading metric: %v", err)
	}
	if m.GetCounter() != nil {
		return m.GetCounter().GetValue()
	}
	return m.GetGauge().GetValue()
}

type dispatcherFixture struct {
	registry *device.Registry
	sink     *memorySink
	metrics  *Metrics
	d        *Dispatcher
}

func newDispatcherFixture() *dispatcherFixture {
	f := &dispatcherFixture{
		registry: device.NewRegistry(),
		sink:     &memorySink{},
		metrics:  NewMetrics(nil),
	}
	f.d = NewDispatcher(f.registry, f.sink, f.metrics)
	f.d.SetClock(func() time.Time { return fixedNow })
	return f
}

// acks decodes every frame queued on c.
func acks(t *testing.T, c *Connection) []*protocol.ServerAck {
	t.Helper()
	pkts, err := protocol.Decode(c.outbound)
	if err != nil {
		t.Fatalf("decoding queued replies: %v", err)
	}
	out := make([]*protocol.ServerAck, 0, len(pkts))
	for _, p := range pkts {
		ack, ok := p.(*protocol.ServerAck)
		if !ok {
			t.Fatalf("queued %s, want server ack", p.Type())
		}
		out = append(out, ack)
	}
	return out
}

func TestDispatch_Registration(t *testing.T) {
	f := newDispatcherFixture()
	battery := &fakeBattery{}
	f.d.SetBatteryRecorder(battery)
	c := NewConnection(1, &fakeSocket{})

	err := f.d.Dispatch(context.Background(), c, &protocol.Registration{Info: "Kitchen Sensor", BatteryLevel: 90})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	want := []*protocol.ServerAck{{AssignedID: 10, UnixTime: uint32(fixedNow.Unix())}}
	if diff := deep.Equal(acks(t, c), want); diff != nil {
		t.Error(diff)
	}

	if id, ok := c.DeviceID(); !ok || id != 10 {
		t.Errorf("DeviceID() = %d, %v", id, ok)
	}

	dev, err := f.registry.Lookup(10)
	if err != nil {
		t.Fatal(err)
	}
	if dev.Info != "Kitchen Sensor" || dev.BatteryLevel != 90 {
		t.Errorf("registry entry = %+v", dev)
	}

	wantEvents := []eventlog.Event{{
		Time:        fixedNow,
		DeviceID:    10,
		DeviceInfo:  "Kitchen Sensor",
		Priority:    eventlog.PriorityNotice,
		Description: JoinDescription,
	}}
	if diff := deep.Equal(f.sink.events, wantEvents); diff != nil {
		t.Error(diff)
	}

	if diff := deep.Equal(battery.calls, []batteryCall{{10, "Kitchen Sensor", 90}}); diff != nil {
		t.Error(diff)
	}
	if got := counterValue(t, f.metrics.Registrations); got != 1 {
		t.Errorf("registrations = %v, want 1", got)
	}
}

func TestDispatch_IDsAreMonotonicAcrossConnections(t *testing.T) {
	f := newDispatcherFixture()

	for i, want := range []uint8{10, 11, 12} {
		c := NewConnection(uint64(i+1), &fakeSocket{})
		if err := f.d.Dispatch(context.Background(), c, &protocol.Registration{Info: "sensor"}); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
		got := acks(t, c)
		if len(got) != 1 || got[0].AssignedID != want {
			t.Errorf("connection %d acks = %+v, want id %d", i+1, got, want)
		}
	}
}

func TestDispatch_DuplicateRegistrationOnSameConnection(t *testing.T) {
	f := newDispatcherFixture()
	c := NewConnection(1, &fakeSocket{})
	reg := &protocol.Registration{Info: "Hall", BatteryLevel: 50}

	for range 3 {
		if err := f.d.Dispatch(context.Background(), c, reg); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
	}

	for _, ack := range acks(t, c) {
		if ack.AssignedID != 10 {
			t.Errorf("ack id = %d, want 10", ack.AssignedID)
		}
	}
	if f.registry.Len() != 1 || f.registry.NextID() != 11 {
		t.Errorf("registry Len() = %d, NextID() = %d", f.registry.Len(), f.registry.NextID())
	}
	if len(f.sink.events) != 1 {
		t.Errorf("sink saw %d events, want 1 join", len(f.sink.events))
	}
	if got := counterValue(t, f.metrics.DuplicateRegistrations); got != 2 {
		t.Errorf("duplicate registrations = %v, want 2", got)
	}
}

func TestDispatch_RetryWithKnownID(t *testing.T) {
	f := newDispatcherFixture()

	first := NewConnection(1, &fakeSocket{})
	if err := f.d.Dispatch(context.Background(), first, &protocol.Registration{Info: "Garage"}); err != nil {
		t.Fatal(err)
	}

	// The device reconnects and retries with its id.
	second := NewConnection(2, &fakeSocket{})
	if err := f.d.Dispatch(context.Background(), second, &protocol.Registration{SourceID: 10, Info: "Garage"}); err != nil {
		t.Fatalf("Dispatch() retry error = %v", err)
	}

	got := acks(t, second)
	if len(got) != 1 || got[0].AssignedID != 10 {
		t.Errorf("retry acks = %+v, want id 10", got)
	}
	if second.State() != StateUnidentified {
		t.Error("retry with a known id bound the connection")
	}
	if f.registry.NextID() != 11 {
		t.Errorf("NextID() = %d, retry allocated an id", f.registry.NextID())
	}

	// A retrying connection cannot report status on behalf of the device.
	err := f.d.Dispatch(context.Background(), second, &protocol.StatusUpdate{SourceID: 10, Priority: 3, Content: "spoof"})
	if !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("Dispatch() status after retry error = %v, want ErrProtocolViolation", err)
	}
	if len(f.sink.events) != 1 {
		t.Errorf("sink saw %d events, want only the join", len(f.sink.events))
	}
	if id, ok := first.DeviceID(); !ok || id != 10 {
		t.Errorf("first.DeviceID() = %d, %v, want 10, true", id, ok)
	}
}

func TestDispatch_RetryWithUnknownID(t *testing.T) {
	f := newDispatcherFixture()
	c := NewConnection(1, &fakeSocket{})

	if err := f.d.Dispatch(context.Background(), c, &protocol.Registration{SourceID: 42, Info: "x"}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	got := acks(t, c)
	if len(got) != 1 || got[0].AssignedID != 42 {
		t.Errorf("acks = %+v, want echoed id 42", got)
	}
	if c.State() != StateUnidentified {
		t.Error("unknown retry id bound the connection")
	}
	if f.registry.Len() != 0 || len(f.sink.events) != 0 {
		t.Errorf("registry Len() = %d, events = %d", f.registry.Len(), len(f.sink.events))
	}
}

func TestDispatch_Violations(t *testing.T) {
	tests := []struct {
		name     string
		register bool
		pkt      protocol.Packet
	}{
		{
			name: "status before registration",
			pkt:  &protocol.StatusUpdate{SourceID: 10, Priority: 1, Content: "hello"},
		},
		{
			name: "image before registration",
			pkt:  &protocol.Image{SourceID: 10, Data: []byte{1}},
		},
		{
			name: "ack before registration",
			pkt:  &protocol.ServerAck{AssignedID: 10},
		},
		{
			name:     "priority out of range",
			register: true,
			pkt:      &protocol.StatusUpdate{SourceID: 10, Priority: 4, Content: "??"},
		},
		{
			name: "retry id beyond range",
			pkt:  &protocol.Registration{SourceID: 256, Info: "x"},
		},
		{
			name: "empty info",
			pkt:  &protocol.Registration{Info: ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatcherFixture()
			c := NewConnection(1, &fakeSocket{})

			if tt.register {
				if err := f.d.Dispatch(context.Background(), c, &protocol.Registration{Info: "sensor"}); err != nil {
					t.Fatal(err)
				}
			}
			before := len(f.sink.events)
			pending := c.Pending()

			err := f.d.Dispatch(context.Background(), c, tt.pkt)
			if !errors.Is(err, ErrProtocolViolation) {
				t.Fatalf("Dispatch() error = %v, want ErrProtocolViolation", err)
			}
			if len(f.sink.events) != before {
				t.Errorf("sink saw %d new events, want 0", len(f.sink.events)-before)
			}
			if c.Pending() != pending {
				t.Error("violation queued a reply")
			}
		})
	}
}

func TestDispatch_StatusUpdate(t *testing.T) {
	f := newDispatcherFixture()
	c := NewConnection(1, &fakeSocket{})

	if err := f.d.Dispatch(context.Background(), c, &protocol.Registration{Info: "Kitchen Sensor"}); err != nil {
		t.Fatal(err)
	}
	pending := c.Pending()

	err := f.d.Dispatch(context.Background(), c, &protocol.StatusUpdate{SourceID: 10, Priority: 2, Content: "motion detected"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if c.Pending() != pending {
		t.Error("status update queued a reply")
	}
	want := eventlog.Event{
		Time:        fixedNow,
		DeviceID:    10,
		DeviceInfo:  "Kitchen Sensor",
		Priority:    eventlog.PriorityWarning,
		Description: "motion detected",
	}
	if diff := deep.Equal(f.sink.events[len(f.sink.events)-1], want); diff != nil {
		t.Error(diff)
	}
}

func TestDispatch_StatusUsesBoundIDNotSourceID(t *testing.T) {
	f := newDispatcherFixture()
	c := NewConnection(1, &fakeSocket{})

	if err := f.d.Dispatch(context.Background(), c, &protocol.Registration{Info: "Porch"}); err != nil {
		t.Fatal(err)
	}
	if err := f.d.Dispatch(context.Background(), c, &protocol.StatusUpdate{SourceID: 99, Content: "x"}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	last := f.sink.events[len(f.sink.events)-1]
	if last.DeviceID != 10 || last.DeviceInfo != "Porch" {
		t.Errorf("event = %+v, want device 10 Porch", last)
	}
}

func TestDispatch_SinkErrorIsSwallowed(t *testing.T) {
	f := newDispatcherFixture()
	f.sink.err = errors.New("disk full")
	c := NewConnection(1, &fakeSocket{})

	if err := f.d.Dispatch(context.Background(), c, &protocol.Registration{Info: "Attic"}); err != nil {
		t.Fatalf("Dispatch() error = %v, want sink failure swallowed", err)
	}
	if err := f.d.Dispatch(context.Background(), c, &protocol.StatusUpdate{SourceID: 10, Content: "hot"}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if len(acks(t, c)) != 1 {
		t.Error("registration was not acknowledged")
	}
	if got := counterValue(t, f.metrics.SinkErrors); got != 2 {
		t.Errorf("sink errors = %v, want 2", got)
	}
	if got := counterValue(t, f.metrics.EventsEmitted); got != 2 {
		t.Errorf("events emitted = %v, want 2", got)
	}
}

func TestDispatch_IgnoredPackets(t *testing.T) {
	f := newDispatcherFixture()
	c := NewConnection(1, &fakeSocket{})

	if err := f.d.Dispatch(context.Background(), c, &protocol.Registration{Info: "Cam"}); err != nil {
		t.Fatal(err)
	}
	for _, pkt := range []protocol.Packet{
		&protocol.Image{SourceID: 10, Data: []byte{0xFF, 0xD8}},
		&protocol.ServerAck{AssignedID: 10},
	} {
		if err := f.d.Dispatch(context.Background(), c, pkt); err != nil {
			t.Errorf("Dispatch(%s) error = %v", pkt.Type(), err)
		}
	}
	if len(f.sink.events) != 1 {
		t.Errorf("sink saw %d events, want only the join", len(f.sink.events))
	}
}
