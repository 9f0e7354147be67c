package terminal

import (
	"errors"
	"net"
)

// Sentinel errors for terminal operations.
var (
	// ErrUnreachable indicates the transport-level probe failed: nothing is
	// accepting connections at the device's address and port.
	ErrUnreachable = errors.New("terminal: device unreachable")

	// ErrConnectionLost indicates an established session stopped responding
	// mid-operation. The listener treats this as a signal to reconnect.
	ErrConnectionLost = errors.New("terminal: connection lost")

	// ErrSignatureMismatch indicates a user write was rejected by every
	// write shape the session supports.
	ErrSignatureMismatch = errors.New("terminal: no supported user write variant")

	// ErrUserNotFound indicates the referenced user does not exist on the
	// device.
	ErrUserNotFound = errors.New("terminal: user not found")

	// ErrUnknownDriver indicates no driver is registered under the
	// requested name.
	ErrUnknownDriver = errors.New("terminal: unknown driver")
)

// IsConnectivity reports whether err indicates a connectivity problem that
// warrants tearing down the session and reconnecting, as opposed to a
// protocol-level failure the caller should surface as-is.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnreachable) || errors.Is(err, ErrConnectionLost) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
