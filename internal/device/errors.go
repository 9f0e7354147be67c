package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a device ID does not exist.
	ErrNotFound = errors.New("device: not found")

	// ErrInvalidAddress is returned when a device address is empty.
	ErrInvalidAddress = errors.New("device: invalid address")

	// ErrInvalidPort is returned when a device port is outside 1-65535.
	ErrInvalidPort = errors.New("device: invalid port")
)
