package eventlog

import "errors"

// Domain errors for the eventlog package.
var (
	// ErrInvalidPriority is returned when an event priority is outside 0-3.
	ErrInvalidPriority = errors.New("eventlog: invalid priority")

	// ErrClosed is returned when inserting into a closed sink.
	ErrClosed = errors.New("eventlog: sink closed")
)
