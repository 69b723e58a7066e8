package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/GeVanCo/pi4j-v2/device"
)

// Store holds the registered providers and platforms. It is written during
// the plugin load phase and sealed before any registry traffic, after which
// every method is a concurrent read. All methods are safe for concurrent
// use.
type Store struct {
	mu        sync.RWMutex
	providers map[string]Provider
	platforms map[string]Platform
	sealed    bool
}

// NewStore returns an empty, unsealed store.
func NewStore() *Store {
	return &Store{
		providers: make(map[string]Provider),
		platforms: make(map[string]Platform),
	}
}

// Add registers a provider. A nil provider, an empty id, a duplicate id, or
// a sealed store all fail; nothing is partially registered.
func (s *Store) Add(p Provider) error {
	if p == nil {
		return fmt.Errorf("%w: nil provider", ErrUnsupportedConfig)
	}
	id := p.ID()
	if id == "" {
		return fmt.Errorf("%w: provider with empty id", ErrUnsupportedConfig)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return fmt.Errorf("%w: provider %q", ErrSealed, id)
	}
	if _, ok := s.providers[id]; ok {
		return fmt.Errorf("%w: provider %q", ErrDuplicate, id)
	}
	s.providers[id] = p
	return nil
}

// AddPlatform registers a platform under the same rules as Add.
func (s *Store) AddPlatform(p Platform) error {
	if p == nil {
		return fmt.Errorf("%w: nil platform", ErrUnsupportedConfig)
	}
	id := p.ID()
	if id == "" {
		return fmt.Errorf("%w: platform with empty id", ErrUnsupportedConfig)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return fmt.Errorf("%w: platform %q", ErrSealed, id)
	}
	if _, ok := s.platforms[id]; ok {
		return fmt.Errorf("%w: platform %q", ErrDuplicate, id)
	}
	s.platforms[id] = p
	return nil
}

// Seal ends the load phase. Sealing twice is a no-op.
func (s *Store) Seal() {
	s.mu.Lock()
	s.sealed = true
	s.mu.Unlock()
}

// Sealed reports whether the load phase has ended.
func (s *Store) Sealed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sealed
}

// Provider returns the provider registered under id.
func (s *Store) Provider(id string) (Provider, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[id]
	return p, ok
}

// Providers returns all registered providers sorted by id.
func (s *Store) Providers() []Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Provider, 0, len(s.providers))
	for _, p := range s.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// ByType returns the providers advertising the given I/O category, sorted
// by id so resolution scans are deterministic.
func (s *Store) ByType(t device.Type) []Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Provider
	for _, p := range s.providers {
		for _, pt := range p.Types() {
			if pt == t {
				out = append(out, p)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Platform returns the platform registered under id.
func (s *Store) Platform(id string) (Platform, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.platforms[id]
	return p, ok
}

// Platforms returns all registered platforms sorted by id.
func (s *Store) Platforms() []Platform {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Platform, 0, len(s.platforms))
	for _, p := range s.platforms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// DefaultPlatform returns the highest-weight platform, ties broken by id.
// ok is false when no platform is registered.
func (s *Store) DefaultPlatform() (Platform, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best Platform
	for _, p := range s.platforms {
		switch {
		case best == nil:
			best = p
		case p.Weight() > best.Weight():
			best = p
		case p.Weight() == best.Weight() && p.ID() < best.ID():
			best = p
		}
	}
	return best, best != nil
}

// Counts reports the number of registered providers and platforms.
func (s *Store) Counts() (providers, platforms int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.providers), len(s.platforms)
}
