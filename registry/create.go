package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/GeVanCo/pi4j-v2/device"
	"github.com/GeVanCo/pi4j-v2/provider"
)

// CreateOption narrows provider resolution for a single create call.
type CreateOption func(*createOptions)

type createOptions struct {
	provider   provider.Provider
	providerID string
}

// WithProvider pins the create to an explicit provider instance, skipping
// store resolution entirely.
func WithProvider(p provider.Provider) CreateOption {
	return func(o *createOptions) { o.provider = p }
}

// WithProviderID resolves the provider by id from the store; an unknown id
// fails the create with ErrNoProvider.
func WithProviderID(id string) CreateOption {
	return func(o *createOptions) { o.providerID = id }
}

// Create resolves a provider for cfg, builds the instance, initializes it,
// and inserts it under its id, returning it as T.
//
// Resolution order: explicit provider (WithProvider), explicit id
// (WithProviderID), the configured default for cfg's I/O type, then a
// capability scan of the store. The scan must find exactly one candidate:
// none is ErrNoProvider, several is ErrAmbiguousProvider.
//
// The whole sequence runs under the registry write lock, so a concurrent
// create or destroy of the same id serializes against it. Failures leave
// no trace: a provider error (wrapped ErrProvider), a result that is not a
// T (ErrTypeMismatch), or a failed Initialize all return without
// inserting. Instances acquire device resources in Initialize, not in
// Provider.Create, so these failure paths hold nothing to release.
func Create[T device.IO](ctx context.Context, r *Registry, cfg device.Config, opts ...CreateOption) (T, error) {
	var zero T

	if r.rt == nil || !r.rt.Initialized() {
		return zero, ErrNotInitialized
	}

	var o createOptions
	for _, opt := range opts {
		opt(&o)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Reject a taken id before construction; auto-generated ids are
	// checked again once the instance exists.
	if id := cfg.InstanceID(); id != "" {
		if _, ok := r.ios[id]; ok {
			return zero, fmt.Errorf("%w: %q", ErrDuplicateID, id)
		}
	}

	p, err := r.resolve(cfg.IOType(), o)
	if err != nil {
		return zero, err
	}

	io, err := p.Create(cfg)
	if err != nil {
		return zero, fmt.Errorf("%w: provider %q: %w", ErrProvider, p.ID(), err)
	}
	typed, ok := io.(T)
	if !ok {
		return zero, fmt.Errorf("%w: provider %q built %T", ErrTypeMismatch, p.ID(), io)
	}

	id := io.ID()
	if _, ok := r.ios[id]; ok {
		return zero, fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}

	if err := io.Initialize(ctx); err != nil {
		return zero, err
	}

	r.ios[id] = io
	r.logger.Info("io instance created", "id", id, "type", io.Type(), "provider", p.ID())
	return typed, nil
}

// Get returns the live instance under id converted to T.
func Get[T device.IO](r *Registry, id string) (T, error) {
	var zero T

	r.mu.RLock()
	io, ok := r.ios[id]
	r.mu.RUnlock()

	if !ok {
		return zero, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	typed, ok := io.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q is %T", ErrTypeMismatch, id, io)
	}
	return typed, nil
}

// resolve picks the provider for an I/O type per the documented order.
// Callers hold at least the read lock (for defaults).
func (r *Registry) resolve(t device.Type, o createOptions) (provider.Provider, error) {
	if o.provider != nil {
		return o.provider, nil
	}

	store := r.rt.Providers()
	if o.providerID != "" {
		p, ok := store.Provider(o.providerID)
		if !ok {
			return nil, fmt.Errorf("%w: provider %q not registered", ErrNoProvider, o.providerID)
		}
		return p, nil
	}

	if def := r.defaults[t]; def != "" {
		p, ok := store.Provider(def)
		if !ok {
			return nil, fmt.Errorf("%w: configured default %q for %s not registered", ErrNoProvider, def, t)
		}
		return p, nil
	}

	candidates := store.ByType(t)
	switch len(candidates) {
	case 0:
		return nil, fmt.Errorf("%w: nothing registered for %s", ErrNoProvider, t)
	case 1:
		return candidates[0], nil
	default:
		ids := make([]string, len(candidates))
		for i, p := range candidates {
			ids[i] = p.ID()
		}
		return nil, fmt.Errorf("%w: %s served by %s", ErrAmbiguousProvider, t, strings.Join(ids, ", "))
	}
}
