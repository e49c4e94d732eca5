package eventlog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// recordingSink keeps every event it receives.
type recordingSink struct {
	events   []Event
	err      error
	closed   bool
	closeErr error
}

func (s *recordingSink) InsertEvent(_ context.Context, e Event) error {
	s.events = append(s.events, e)
	return s.err
}

func (s *recordingSink) Close() error {
	s.closed = true
	return s.closeErr
}

func testEvent() Event {
	return Event{
		Time:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local),
		DeviceID:    10,
		DeviceInfo:  "Kitchen Sensor",
		Priority:    PriorityWarning,
		Description: "motion detected",
	}
}

func TestMulti_DeliversToAll(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	m := Multi(a, nil, b)

	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (nil skipped)", m.Len())
	}
	if err := m.InsertEvent(context.Background(), testEvent()); err != nil {
		t.Fatalf("InsertEvent() error = %v", err)
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("deliveries = %d, %d", len(a.events), len(b.events))
	}
}

func TestMulti_FailureDoesNotStopDelivery(t *testing.T) {
	errA := errors.New("disk full")
	a := &recordingSink{err: errA}
	b := &recordingSink{}

	err := Multi(a, b).InsertEvent(context.Background(), testEvent())
	if !errors.Is(err, errA) {
		t.Errorf("InsertEvent() error = %v, want %v", err, errA)
	}
	if len(b.events) != 1 {
		t.Error("second sink skipped after first failed")
	}
}

func TestMulti_CloseAll(t *testing.T) {
	errA := errors.New("close a")
	a := &recordingSink{closeErr: errA}
	b := &recordingSink{}

	err := Multi(a, b).Close()
	if !errors.Is(err, errA) {
		t.Errorf("Close() error = %v", err)
	}
	if !a.closed || !b.closed {
		t.Error("not every sink was closed")
	}
}

// captureLogger records log calls as "level msg key=value ...".
type captureLogger struct {
	lines []string
}

func (l *captureLogger) log(level, msg string, args ...any) {
	var sb strings.Builder
	sb.WriteString(level + " " + msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", args[i], args[i+1])
	}
	l.lines = append(l.lines, sb.String())
}

func (l *captureLogger) Info(msg string, args ...any) { l.log("INFO", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any) { l.log("WARN", msg, args...) }

func TestLogSink(t *testing.T) {
	logger := &captureLogger{}
	sink := NewLogSink(logger)

	e := testEvent()
	if err := sink.InsertEvent(context.Background(), e); err != nil {
		t.Fatalf("InsertEvent() error = %v", err)
	}
	e.Priority = PriorityNotice
	e.Description = "Joined the network"
	if err := sink.InsertEvent(context.Background(), e); err != nil {
		t.Fatalf("InsertEvent() error = %v", err)
	}

	if len(logger.lines) != 2 {
		t.Fatalf("logged %d lines, want 2", len(logger.lines))
	}
	if !strings.HasPrefix(logger.lines[0], "WARN device event") ||
		!strings.Contains(logger.lines[0], "description=motion detected") {
		t.Errorf("line 0 = %q", logger.lines[0])
	}
	if !strings.HasPrefix(logger.lines[1], "INFO device event") ||
		!strings.Contains(logger.lines[1], "priority=notice") {
		t.Errorf("line 1 = %q", logger.lines[1])
	}
	if err := sink.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
