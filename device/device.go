// Package device defines the shared vocabulary for I/O endpoints: category
// tags, the configuration and instance contracts exchanged between the
// registry and providers, and the device-level error sentinels.
package device

import (
	"context"

	"github.com/GeVanCo/pi4j-v2/describe"
)

// Type tags one category of I/O endpoint. The set is open: plugins may
// introduce further categories, and the registry treats tags opaquely.
type Type string

// Built-in I/O categories.
const (
	DigitalOutput Type = "digital-output"
	DigitalInput  Type = "digital-input"
)

func (t Type) String() string { return string(t) }

// Config carries the immutable per-instance settings supplied at creation
// time. Concrete config types are plain value structs; neither the registry
// nor the instance mutates them after creation.
type Config interface {
	// InstanceID returns the requested instance id. Empty means the
	// instance generates its own unique id.
	InstanceID() string

	// InstanceName returns the human-readable name, defaulting to the id.
	InstanceName() string

	// IOType returns the category this config describes.
	IOType() Type
}

// IO is a live, addressable device endpoint tracked by the registry.
//
// Initialize and Shutdown are each invoked exactly once, by the registry,
// under its creation/destruction lock. An instance must not be operated
// before Initialize returns or after Shutdown is called. Describe is a pure
// read-only projection.
type IO interface {
	ID() string
	Name() string
	Type() Type
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Describe() describe.Descriptor
}
