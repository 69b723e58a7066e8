package provider

import "errors"

var (
	// ErrDuplicate is returned when a provider or platform id is already
	// registered. Duplicates never replace a live entry.
	ErrDuplicate = errors.New("provider: duplicate registration")

	// ErrSealed is returned by registration attempts after the load phase
	// has been closed with Seal.
	ErrSealed = errors.New("provider: store sealed")

	// ErrUnsupportedConfig is returned by a provider handed a config shape
	// it does not construct.
	ErrUnsupportedConfig = errors.New("provider: unsupported config")
)
