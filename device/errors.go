package device

import "errors"

// Device-level failure sentinels. Lifecycle failures (ErrInitialize,
// ErrShutdown) wrap their underlying cause, which is usually ErrIO.
// All are matched with errors.Is.
var (
	// ErrIO indicates a state read or write against the physical or
	// virtual device failed.
	ErrIO = errors.New("device: i/o failure")

	// ErrInitialize indicates a failure while claiming a device or
	// bringing an instance into its configured initial state.
	ErrInitialize = errors.New("device: initialize failed")

	// ErrShutdown indicates a failure while applying the configured
	// shutdown state or releasing the device.
	ErrShutdown = errors.New("device: shutdown failed")
)
