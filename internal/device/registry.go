package device

import (
	"fmt"
	"slices"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry maps assigned ids to registered devices for one server run.
//
// Not safe for concurrent use; see the package documentation.
type Registry struct {
	next    ID
	devices map[ID]*Device
	now     func() time.Time
	logger  Logger
}

// NewRegistry creates an empty registry whose first assigned id is FirstID.
func NewRegistry() *Registry {
	return &Registry{
		next:    FirstID,
		devices: make(map[ID]*Device),
		now:     time.Now,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetClock replaces the time source used for registration timestamps.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

// Register allocates the next id and records the device under it.
//
// Parameters:
//   - info: Display info sent by the device
//
// Returns:
//   - ID: The newly assigned id
//   - error: ErrInvalidInfo or ErrRegistryFull; no id is consumed on error
func (r *Registry) Register(info string) (ID, error) {
	if info == "" || len(info) > MaxInfoLength {
		return 0, fmt.Errorf("%w: length %d (must be 1-%d bytes)", ErrInvalidInfo, len(info), MaxInfoLength)
	}
	if r.next > MaxID {
		return 0, fmt.Errorf("%w: last id %d already assigned", ErrRegistryFull, MaxID)
	}

	id := r.next
	r.next++

	now := r.now()
	r.devices[id] = &Device{
		ID:           id,
		Info:         info,
		RegisteredAt: now,
		LastSeen:     now,
	}

	r.logger.Debug("device registered", "device_id", id, "info", info)
	return id, nil
}

// Lookup returns a copy of the device registered under id.
// Returns ErrDeviceNotFound if the id was never assigned in this run.
func (r *Registry) Lookup(id ID) (Device, error) {
	d, ok := r.devices[id]
	if !ok {
		return Device{}, fmt.Errorf("%w: id %d", ErrDeviceNotFound, id)
	}
	return *d, nil
}

// Contains reports whether id has been assigned in this run.
func (r *Registry) Contains(id ID) bool {
	_, ok := r.devices[id]
	return ok
}

// SetBatteryLevel records the battery percentage last reported by a device.
func (r *Registry) SetBatteryLevel(id ID, level uint8) error {
	d, ok := r.devices[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrDeviceNotFound, id)
	}
	d.BatteryLevel = level
	return nil
}

// Touch marks the device as seen now.
func (r *Registry) Touch(id ID) error {
	d, ok := r.devices[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrDeviceNotFound, id)
	}
	d.LastSeen = r.now()
	return nil
}

// Len returns the number of devices registered in this run.
func (r *Registry) Len() int {
	return len(r.devices)
}

// NextID returns the id the next successful registration will receive.
func (r *Registry) NextID() ID {
	return r.next
}

// List returns copies of all registered devices ordered by id.
func (r *Registry) List() []Device {
	devices := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, *d)
	}
	slices.SortFunc(devices, func(a, b Device) int {
		return int(a.ID) - int(b.ID)
	})
	return devices
}
