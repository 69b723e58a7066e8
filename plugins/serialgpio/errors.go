package serialgpio

import "errors"

// Sentinel errors for serial GPIO operations. Wrapped errors carry the
// detail; match with errors.Is.
var (
	// ErrOpenFailed indicates the serial port could not be opened.
	ErrOpenFailed = errors.New("serialgpio: open failed")

	// ErrNotConnected indicates an operation was attempted after the
	// port was closed or lost.
	ErrNotConnected = errors.New("serialgpio: not connected")

	// ErrCommandFailed indicates a command could not be written or its
	// response could not be understood.
	ErrCommandFailed = errors.New("serialgpio: command failed")

	// ErrCommandRejected indicates the adapter answered ERR.
	ErrCommandRejected = errors.New("serialgpio: command rejected")

	// ErrCommandTimeout indicates no response arrived in time.
	ErrCommandTimeout = errors.New("serialgpio: command timeout")
)
