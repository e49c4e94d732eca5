package eventlog

import "context"

// Logger is the subset of slog used by LogSink.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// LogSink writes one structured line per event. Priorities at or above
// PriorityWarning are logged at warn level.
type LogSink struct {
	logger Logger
}

// NewLogSink returns a sink that logs events to logger.
func NewLogSink(logger Logger) *LogSink {
	return &LogSink{logger: logger}
}

// InsertEvent logs e. It never fails.
func (s *LogSink) InsertEvent(_ context.Context, e Event) error {
	args := []any{
		"time", e.Timestamp(),
		"device_id", e.DeviceID,
		"device_info", e.DeviceInfo,
		"priority", e.Priority.String(),
		"description", e.Description,
	}
	if e.Priority >= PriorityWarning {
		s.logger.Warn("device event", args...)
		return nil
	}
	s.logger.Info("device event", args...)
	return nil
}

// Close is a no-op.
func (s *LogSink) Close() error {
	return nil
}
