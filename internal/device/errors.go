package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrRegistryFull is returned when every assignable id has been used.
	ErrRegistryFull = errors.New("device: no ids left to assign")

	// ErrInvalidInfo is returned when a device's display info is empty or too long.
	ErrInvalidInfo = errors.New("device: invalid info")
)
