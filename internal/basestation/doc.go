// Package basestation implements the device-facing TCP server.
//
// Sensors connect over TCP, register to obtain an id, then send status
// updates. The server is built from three parts:
//
//   - Connection: per-socket state (registration state, inbound tail,
//     outbound buffer)
//   - Dispatcher: routes decoded packets, updates the device registry and
//     emits events to the event log
//   - Reactor: the event loop that accepts sockets, reads bytes, decodes
//     frames and flushes replies
//
// # Concurrency
//
// One goroutine, the one that calls Reactor.Run, owns every Connection, the
// Dispatcher and the device.Registry. No locks protect them. Helper
// goroutines only block in Accept and Read and hand results to the loop over
// channels. The loop wakes at least once per poll interval to retry
// pending writes; cancellation is seen at the next wake-up.
//
// # Registration state machine
//
//	Unidentified --Registration{SourceID: 0}--> Identified   (id allocated, ServerAck sent)
//	Unidentified --Registration{SourceID: n}--> ServerAck{n} echoed, bound if n is known
//	Identified   --Registration-->              ServerAck with the existing id
//	Identified   --StatusUpdate-->              event logged
//	Unidentified --anything else-->             connection closed, no reply
//
// # Usage
//
//	registry := device.NewRegistry()
//	metrics := basestation.NewMetrics(prometheus.NewRegistry())
//	dispatcher := basestation.NewDispatcher(registry, sink, metrics)
//	reactor := basestation.NewReactor(basestation.Options{Addr: ":5000"}, dispatcher, metrics)
//	err := reactor.Run(ctx) // returns after ctx is cancelled and all sockets are closed
package basestation
