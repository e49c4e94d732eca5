// Package device provides the Device Registry for the base station.
//
// The registry is the in-memory index of every sensor that has completed
// the registration handshake during the current run. It assigns ids,
// remembers each device's display info and last reported battery level,
// and answers lookups from the dispatcher.
//
// # Id assignment
//
// Ids start at FirstID (10) and increase by one per registration. An id is
// never reused within a run, even after the owning connection goes away,
// so that events logged under an id always refer to the same device. The
// registry is not persisted: a restarted server hands out ids from 10 again.
//
// Ids are acknowledged to devices in a single byte, which caps a run at
// MaxID. Registrations beyond that fail with ErrRegistryFull.
//
// # Concurrency
//
// A Registry is owned by the reactor goroutine and performs no locking.
// It must not be shared between goroutines.
package device
