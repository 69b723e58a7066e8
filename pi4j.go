// Package pi4j bootstraps and owns the I/O runtime: it loads plugins into
// the provider store, seals it, opens the registry for traffic, and tears
// everything down again in order.
//
//	New ──▶ plugins Initialize ──▶ store.Seal ──▶ initialized
//	                                                 │
//	                  registry.Create / Get / Destroy│ (steady state)
//	                                                 │
//	Shutdown ──▶ registry.Shutdown ──▶ plugin Shutdown hooks
//
// A Context is the provider.Runtime the registry consults: creation before
// the load phase completes fails with registry.ErrNotInitialized, and
// registration after it fails with provider.ErrSealed. That barrier is the
// whole concurrency story for the store; everything after it is read-only.
package pi4j

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/GeVanCo/pi4j-v2/config"
	"github.com/GeVanCo/pi4j-v2/describe"
	"github.com/GeVanCo/pi4j-v2/device"
	"github.com/GeVanCo/pi4j-v2/digital"
	"github.com/GeVanCo/pi4j-v2/provider"
	"github.com/GeVanCo/pi4j-v2/registry"
)

// Logger defines the logging interface used by the Context. This allows
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

// Context is the root runtime object. It implements provider.Runtime.
type Context struct {
	cfg         *config.Config
	store       *provider.Store
	reg         *registry.Registry
	plugins     []provider.Plugin
	log         Logger
	initialized atomic.Bool
}

// Option configures a Context before the load phase runs.
type Option func(*options)

type options struct {
	cfg       *config.Config
	plugins   []provider.Plugin
	providers []provider.Provider
	platforms []provider.Platform
	log       Logger
}

// WithConfig supplies the runtime configuration; DefaultConfig otherwise.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithPlugins queues plugins for the load phase, in order.
func WithPlugins(plugins ...provider.Plugin) Option {
	return func(o *options) { o.plugins = append(o.plugins, plugins...) }
}

// WithProviders registers providers directly, without a plugin wrapper.
func WithProviders(providers ...provider.Provider) Option {
	return func(o *options) { o.providers = append(o.providers, providers...) }
}

// WithPlatforms registers platforms directly, without a plugin wrapper.
func WithPlatforms(platforms ...provider.Platform) Option {
	return func(o *options) { o.platforms = append(o.platforms, platforms...) }
}

// WithLogger threads a logger through the context and the registry.
func WithLogger(log Logger) Option {
	return func(o *options) { o.log = log }
}

// New runs the load phase and returns an initialized context: plugins
// initialize in order, direct providers and platforms register after them,
// the store seals, the registry opens, and any config-declared instances
// are created. A failure at any step unwinds what already loaded and
// returns the error.
func New(ctx context.Context, opts ...Option) (*Context, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.cfg == nil {
		o.cfg = config.DefaultConfig()
	}
	if o.log == nil {
		o.log = noopLogger{}
	}

	c := &Context{
		cfg:     o.cfg,
		store:   provider.NewStore(),
		plugins: o.plugins,
		log:     o.log,
	}

	svc := provider.NewService(c.store, c)
	for i, p := range c.plugins {
		if err := p.Initialize(svc); err != nil {
			c.unloadPlugins(i)
			return nil, fmt.Errorf("loading plugin %q: %w", p.Name(), err)
		}
		c.log.Info("plugin loaded", "plugin", p.Name())
	}
	if err := svc.RegisterProviders(o.providers...); err != nil {
		c.unloadPlugins(len(c.plugins))
		return nil, err
	}
	if err := svc.RegisterPlatforms(o.platforms...); err != nil {
		c.unloadPlugins(len(c.plugins))
		return nil, err
	}

	c.store.Seal()
	c.initialized.Store(true)

	c.reg = registry.New(c, registry.WithDefaultProviders(typedDefaults(o.cfg.IO.Defaults)))
	c.reg.SetLogger(c.log)

	if err := c.createDeclared(ctx); err != nil {
		sderr := c.Shutdown(ctx)
		return nil, errors.Join(err, sderr)
	}

	providers, platforms := c.store.Counts()
	c.log.Info("context initialized",
		"plugins", len(c.plugins),
		"providers", providers,
		"platforms", platforms,
		"instances", c.reg.Count(),
	)
	return c, nil
}

// typedDefaults converts config's string-keyed defaults to device types.
func typedDefaults(defaults map[string]string) map[device.Type]string {
	out := make(map[device.Type]string, len(defaults))
	for t, id := range defaults {
		out[device.Type(t)] = id
	}
	return out
}

// createDeclared builds the instances declared in config, in declaration
// order, stopping at the first failure.
func (c *Context) createDeclared(ctx context.Context) error {
	for _, inst := range c.cfg.IO.Instances {
		var copts []registry.CreateOption
		if inst.Provider != "" {
			copts = append(copts, registry.WithProviderID(inst.Provider))
		}

		var err error
		switch inst.IOType() {
		case device.DigitalOutput:
			_, err = registry.Create[*digital.Output](ctx, c.reg, inst.OutputConfig(), copts...)
		case device.DigitalInput:
			_, err = registry.Create[*digital.Input](ctx, c.reg, inst.InputConfig(), copts...)
		default:
			err = fmt.Errorf("unknown io type %q", inst.Type)
		}
		if err != nil {
			return fmt.Errorf("creating declared instance %q: %w", inst.ID, err)
		}
	}
	return nil
}

// unloadPlugins invokes the shutdown hooks of the first n plugins, in
// reverse load order, logging failures.
func (c *Context) unloadPlugins(n int) {
	for i := n - 1; i >= 0; i-- {
		if sd, ok := c.plugins[i].(provider.Shutdowner); ok {
			if err := sd.Shutdown(); err != nil {
				c.log.Warn("plugin shutdown failed", "plugin", c.plugins[i].Name(), "error", err)
			}
		}
	}
}

// Providers returns the provider store. Part of provider.Runtime.
func (c *Context) Providers() *provider.Store { return c.store }

// Initialized reports whether the load phase has completed and the context
// has not been shut down. Part of provider.Runtime.
func (c *Context) Initialized() bool { return c.initialized.Load() }

// Registry returns the I/O registry.
func (c *Context) Registry() *registry.Registry { return c.reg }

// Config returns the runtime configuration.
func (c *Context) Config() *config.Config { return c.cfg }

// Shutdown tears the runtime down: every registry instance is destroyed,
// then plugin shutdown hooks run in reverse load order. The context is no
// longer initialized afterwards; registry creation fails. Errors are
// collected, not short-circuited.
func (c *Context) Shutdown(ctx context.Context) error {
	c.initialized.Store(false)

	var errs []error
	if err := c.reg.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	for i := len(c.plugins) - 1; i >= 0; i-- {
		if sd, ok := c.plugins[i].(provider.Shutdowner); ok {
			if err := sd.Shutdown(); err != nil {
				errs = append(errs, fmt.Errorf("plugin %q shutdown: %w", c.plugins[i].Name(), err))
			}
		}
	}
	c.log.Info("context shut down")
	return errors.Join(errs...)
}

// Describe reports the whole runtime as a descriptor tree: providers,
// platforms, and the registry with its instances.
func (c *Context) Describe() describe.Descriptor {
	providers := c.store.Providers()
	provGroup := describe.Descriptor{
		Category: "PROVIDERS",
		Name:     "I/O Providers",
		Quantity: len(providers),
	}
	for _, p := range providers {
		provGroup.Children = append(provGroup.Children, describeProvider(p))
	}

	platforms := c.store.Platforms()
	platGroup := describe.Descriptor{
		Category: "PLATFORMS",
		Name:     "Pi4J Runtime Platforms",
		Quantity: len(platforms),
	}
	for _, p := range platforms {
		platGroup.Children = append(platGroup.Children, p.Describe())
	}

	return describe.Descriptor{
		Category: "CONTEXT",
		Name:     "Pi4J Runtime Context",
		Children: []describe.Descriptor{provGroup, platGroup, c.reg.Describe()},
	}
}

func describeProvider(p provider.Provider) describe.Descriptor {
	types := make([]string, len(p.Types()))
	for i, t := range p.Types() {
		types[i] = string(t)
	}
	return describe.Descriptor{
		Category: "PROVIDER",
		ID:       p.ID(),
		Name:     p.Name(),
		Value:    strings.Join(types, ", "),
	}
}
