// Package provider defines the extension seam between the runtime and the
// code that talks to actual hardware: the Provider and Platform interfaces,
// the write-once Store they are registered into, and the Service handed to
// plugins during the load phase.
//
// The lifecycle is strictly two-phase. During load, plugins register
// providers and platforms through the Service. The owning context then
// seals the store and only afterwards admits registry traffic, so steady-
// state reads never race a registration.
package provider

import (
	"github.com/GeVanCo/pi4j-v2/describe"
	"github.com/GeVanCo/pi4j-v2/device"
)

// Provider constructs I/O instances of the categories it advertises.
// Implementations are immutable once registered: the store hands the same
// value to every caller, concurrently.
type Provider interface {
	// ID uniquely identifies the provider, e.g. "mock-digital".
	ID() string

	// Name is the human-readable form used in logs and describe trees.
	Name() string

	// Types lists the I/O categories this provider can construct.
	Types() []device.Type

	// Create builds an uninitialized instance from cfg. Providers reject
	// configs they do not understand with ErrUnsupportedConfig; the
	// registry calls Initialize on the result, never Create's caller.
	Create(cfg device.Config) (device.IO, error)
}

// Platform describes the board or environment a set of providers belongs
// to. Platforms carry no behavior of their own; they exist for discovery
// and describe output. When several are registered, the highest weight is
// the default.
type Platform interface {
	ID() string
	Name() string

	// Weight ranks platforms for default selection; higher wins.
	Weight() int

	Describe() describe.Descriptor
}

// Runtime is the view of the owning context that providers and the
// registry need: the sealed store and the load-barrier flag. The context
// implements it; nothing below it caches phase state.
type Runtime interface {
	Providers() *Store
	Initialized() bool
}

// Plugin is the unit of extension loaded at context construction. Its
// Initialize runs during the load phase and registers whatever the plugin
// ships through the supplied service.
type Plugin interface {
	// Name identifies the plugin in logs and load-failure errors.
	Name() string

	Initialize(svc *Service) error
}

// Shutdowner is implemented by plugins holding resources that outlive the
// load phase (connections, goroutines). The context invokes it during
// teardown, after the registry has shut its instances down.
type Shutdowner interface {
	Shutdown() error
}
