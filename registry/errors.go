package registry

import "errors"

var (
	// ErrNotFound is returned by lookups and destroys of ids with no live
	// instance.
	ErrNotFound = errors.New("registry: instance not found")

	// ErrDuplicateID is returned when a create would bind an id that is
	// already live. The existing instance is never replaced.
	ErrDuplicateID = errors.New("registry: duplicate instance id")

	// ErrNoProvider is returned when resolution finds no provider: an
	// unknown explicit id, a configured default that is not registered, or
	// no registered provider advertising the requested I/O type.
	ErrNoProvider = errors.New("registry: no suitable provider")

	// ErrAmbiguousProvider is returned when several providers advertise
	// the requested I/O type and neither an explicit choice nor a
	// configured default disambiguates.
	ErrAmbiguousProvider = errors.New("registry: ambiguous provider")

	// ErrTypeMismatch is returned when a stored or newly built instance
	// does not have the shape the caller asked for.
	ErrTypeMismatch = errors.New("registry: io instance type mismatch")

	// ErrNotInitialized is returned when the owning context has not
	// finished its load phase.
	ErrNotInitialized = errors.New("registry: context not initialized")

	// ErrProvider wraps a provider's own construction failure.
	ErrProvider = errors.New("registry: provider failed")
)
