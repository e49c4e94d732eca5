// Package logging provides structured logging for the base station.
//
// This package wraps Go's standard log/slog package so every component logs
// with the same handler, level and default fields.
//
// # Features
//
//   - JSON output for log shippers
//   - Text output for a console on the Pi
//   - Default fields (service, version, site) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger = logger.With("run_id", runID)
//	logger.Info("device registered", "device_id", 10, "info", "Kitchen Sensor")
//
// Never log broker passwords or InfluxDB tokens.
package logging
