package device

import (
	"strconv"
	"time"
)

// ID is a device identity assigned by the registry.
type ID uint32

// Id range constants.
const (
	// FirstID is the first id handed out in a run. Lower ids are reserved.
	FirstID ID = 10

	// MaxID is the largest id that fits the one-byte acknowledgement field.
	MaxID ID = 255

	// MaxInfoLength bounds the display info a device may register with.
	MaxInfoLength = 255
)

// String returns the decimal form of the id.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Device is a registered sensor.
type Device struct {
	ID ID
	// Info is the display name sent at registration, e.g. "Kitchen Sensor".
	// It does not change after registration.
	Info string
	// BatteryLevel is the most recent battery percentage the device reported.
	BatteryLevel uint8
	// RegisteredAt is when the id was assigned.
	RegisteredAt time.Time
	// LastSeen is updated on every accepted packet from the device.
	LastSeen time.Time
}
