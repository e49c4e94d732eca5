// Package eventlog records device events emitted by the base station.
//
// An Event is what the dispatcher produces for a device joining the network
// or sending a status update. Events are handed to a Sink; the package
// provides several:
//
//   - SQLiteStore: the durable event log, table eventdata
//   - BoltStore: an embedded alternative for hosts without SQLite
//   - MQTTPublisher: fan-out to the home automation bus
//   - InfluxRecorder: time series of events per device and priority
//   - LogSink: one console line per event
//   - Multi: combines any of the above
//
// Sinks are called synchronously from the event loop, so implementations
// must return quickly. Network sinks queue and return; only the embedded
// stores touch disk before returning.
//
// Usage:
//
//	store := eventlog.NewSQLiteStore(db, runID)
//	sink := eventlog.Multi(store, eventlog.NewLogSink(logger))
//	defer sink.Close()
//
//	err := sink.InsertEvent(ctx, eventlog.Event{
//	    Time:        time.Now(),
//	    DeviceID:    10,
//	    DeviceInfo:  "Kitchen Sensor",
//	    Priority:    eventlog.PriorityWarning,
//	    Description: "motion detected",
//	})
package eventlog
