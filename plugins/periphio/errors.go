package periphio

import "errors"

// Sentinel errors for pin resolution and host bring-up. Wrapped errors
// carry the pin name or the underlying host failure; match with errors.Is.
var (
	// ErrHostInit means the periph.io host drivers failed to load.
	ErrHostInit = errors.New("periphio: host initialization failed")

	// ErrUnknownPin means the addressed GPIO line does not exist on this
	// host.
	ErrUnknownPin = errors.New("periphio: unknown gpio pin")
)
