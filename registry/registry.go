package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/GeVanCo/pi4j-v2/describe"
	"github.com/GeVanCo/pi4j-v2/device"
	"github.com/GeVanCo/pi4j-v2/provider"
)

// Logger defines the logging interface used by the Registry. This allows
// different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry maps instance ids to live I/O instances. The zero value is not
// usable; construct with New.
type Registry struct {
	rt provider.Runtime

	mu       sync.RWMutex
	ios      map[string]device.IO
	defaults map[device.Type]string // provider id per I/O type, from config
	logger   Logger
}

// Option configures a Registry at construction.
type Option func(*Registry)

// WithDefaultProviders declares the provider id to resolve for each I/O
// type when a create names no provider. A default naming an unregistered
// provider fails that create with ErrNoProvider rather than silently
// falling through to a capability scan.
func WithDefaultProviders(defaults map[device.Type]string) Option {
	return func(r *Registry) {
		for t, id := range defaults {
			r.defaults[t] = id
		}
	}
}

// New builds a registry bound to the runtime that owns the provider store
// and the load barrier.
func New(rt provider.Runtime, opts ...Option) *Registry {
	r := &Registry{
		rt:       rt,
		ios:      make(map[string]device.IO),
		defaults: make(map[device.Type]string),
		logger:   noopLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

// Exists reports whether an instance is live under id.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ios[id]
	return ok
}

// ExistsType reports whether an instance is live under id and carries the
// given I/O category.
func (r *Registry) ExistsType(id string, t device.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	io, ok := r.ios[id]
	return ok && io.Type() == t
}

// All returns a snapshot of the live instances keyed by id. Mutating the
// returned map does not affect the registry.
func (r *Registry) All() map[string]device.IO {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]device.IO, len(r.ios))
	for id, io := range r.ios {
		out[id] = io
	}
	return out
}

// Count reports the number of live instances.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ios)
}

// Destroy shuts the instance down and removes it from the registry. The
// entry is removed even when its shutdown fails; the instance is returned
// either way so the caller can inspect or retry, alongside the wrapped
// shutdown error if any. Absent ids return ErrNotFound.
func (r *Registry) Destroy(ctx context.Context, id string) (device.IO, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	io, ok := r.ios[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	delete(r.ios, id)

	if err := io.Shutdown(ctx); err != nil {
		r.logger.Warn("instance shutdown failed", "id", id, "error", err)
		return io, fmt.Errorf("destroying %q: %w", id, err)
	}
	r.logger.Info("io instance destroyed", "id", id, "type", io.Type())
	return io, nil
}

// Shutdown destroys every live instance in id order and reports the
// joined failures. The registry is empty afterwards regardless.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.ios))
	for id := range r.ios {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		io := r.ios[id]
		delete(r.ios, id)
		if err := io.Shutdown(ctx); err != nil {
			r.logger.Warn("instance shutdown failed", "id", id, "error", err)
			errs = append(errs, fmt.Errorf("shutting down %q: %w", id, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	r.logger.Info("registry shut down", "count", len(ids))
	return nil
}

// Describe reports the registry and every live instance as a descriptor
// tree, children in id order. A panicking instance Describe is isolated:
// logged, and rendered as a bare id node.
func (r *Registry) Describe() describe.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.ios))
	for id := range r.ios {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	d := describe.Descriptor{
		Category: "REGISTRY",
		Name:     "I/O Registered Instances",
		Quantity: len(ids),
	}
	for _, id := range ids {
		d.Children = append(d.Children, r.describeInstance(id, r.ios[id]))
	}
	return d
}

func (r *Registry) describeInstance(id string, io device.IO) (child describe.Descriptor) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("instance describe panic", "id", id, "panic", rec)
			child = describe.Descriptor{Category: string(io.Type()), ID: id, Name: id}
		}
	}()
	return io.Describe()
}
