package provider

import "fmt"

// Service is the registration facade handed to each plugin's Initialize.
// It scopes what a plugin can reach during the load phase: the store, via
// the register methods, and the owning runtime.
type Service struct {
	store *Store
	rt    Runtime
}

// NewService binds a service to the store it registers into and the
// runtime it exposes.
func NewService(store *Store, rt Runtime) *Service {
	return &Service{store: store, rt: rt}
}

// RegisterProviders adds each provider in order, stopping at the first
// failure. The error names the offending provider.
func (s *Service) RegisterProviders(providers ...Provider) error {
	for _, p := range providers {
		if err := s.store.Add(p); err != nil {
			return fmt.Errorf("registering provider: %w", err)
		}
	}
	return nil
}

// RegisterPlatforms adds each platform in order, stopping at the first
// failure.
func (s *Service) RegisterPlatforms(platforms ...Platform) error {
	for _, p := range platforms {
		if err := s.store.AddPlatform(p); err != nil {
			return fmt.Errorf("registering platform: %w", err)
		}
	}
	return nil
}

// Runtime returns the owning context behind its runtime interface, for
// plugins whose providers need it after the load phase.
func (s *Service) Runtime() Runtime {
	return s.rt
}
