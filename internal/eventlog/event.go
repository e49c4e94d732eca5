package eventlog

import (
	"fmt"
	"time"
)

// TimestampLayout is the event time format used by the persistent stores:
// local time, second precision.
const TimestampLayout = "2006-01-02 15:04:05"

// Priority grades an event from informational to alert.
type Priority uint8

// Event priorities.
const (
	PriorityInfo    Priority = 0
	PriorityNotice  Priority = 1
	PriorityWarning Priority = 2
	PriorityAlert   Priority = 3
)

// Valid reports whether p is one of the four defined priorities.
func (p Priority) Valid() bool {
	return p <= PriorityAlert
}

// String returns the priority name.
func (p Priority) String() string {
	switch p {
	case PriorityInfo:
		return "info"
	case PriorityNotice:
		return "notice"
	case PriorityWarning:
		return "warning"
	case PriorityAlert:
		return "alert"
	default:
		return fmt.Sprintf("priority(%d)", uint8(p))
	}
}

// Event is one entry of the device event log.
type Event struct {
	Time        time.Time
	DeviceID    uint32
	DeviceInfo  string
	Priority    Priority
	Description string
}

// Timestamp formats Time in local time using TimestampLayout.
func (e Event) Timestamp() string {
	return e.Time.Local().Format(TimestampLayout)
}

// Validate checks the event can be stored.
func (e Event) Validate() error {
	if !e.Priority.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidPriority, uint8(e.Priority))
	}
	return nil
}

// parseTimestamp is the inverse of Event.Timestamp.
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimestampLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing event time %q: %w", s, err)
	}
	return t, nil
}
