package eventlog

import (
	"context"
	"errors"
)

// Sink receives device events.
//
// InsertEvent is called from the event loop and must not block for long.
// Errors are reported to the caller, which logs them; a failing sink never
// affects connection handling.
type Sink interface {
	InsertEvent(ctx context.Context, e Event) error
	Close() error
}

// MultiSink delivers each event to several sinks in order.
type MultiSink struct {
	sinks []Sink
}

// Multi returns a sink that forwards to every non-nil sink in sinks.
func Multi(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// InsertEvent forwards e to every sink. A failing sink does not stop
// delivery to the rest; all failures are joined.
func (m *MultiSink) InsertEvent(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.InsertEvent(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink, in the order they were given.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of sinks.
func (m *MultiSink) Len() int {
	return len(m.sinks)
}
