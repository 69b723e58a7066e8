// Package periphio provides digital I/O over real GPIO lines through the
// periph.io host drivers.
//
// Lines are addressed by BCM number: address 17 resolves to the pin named
// "GPIO17". The host driver set is initialized lazily on the first create,
// so constructing the plugin on a development machine without GPIO hardware
// is harmless; creates fail with ErrUnknownPin instead.
package periphio

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/GeVanCo/pi4j-v2/describe"
	"github.com/GeVanCo/pi4j-v2/device"
	"github.com/GeVanCo/pi4j-v2/digital"
	"github.com/GeVanCo/pi4j-v2/provider"
)

// ProviderID is the id the provider registers under.
const ProviderID = "periphio-gpio"

// Provider constructs digital instances over periph.io GPIO pins.
type Provider struct {
	initOnce sync.Once
	initErr  error

	// Seams for tests; production values are set by NewProvider.
	initHost func() error
	lookup   func(name string) gpio.PinIO
}

// NewProvider returns a provider resolving pins through the periph.io
// registry. Host drivers load on first use.
func NewProvider() *Provider {
	return &Provider{
		initHost: func() error {
			_, err := host.Init()
			return err
		},
		lookup: gpioreg.ByName,
	}
}

func (p *Provider) ID() string   { return ProviderID }
func (p *Provider) Name() string { return "periph.io GPIO Provider" }

func (p *Provider) Types() []device.Type {
	return []device.Type{device.DigitalOutput, device.DigitalInput}
}

// Create builds an output or input over a GPIO line, keyed by config shape.
func (p *Provider) Create(cfg device.Config) (device.IO, error) {
	if err := p.ensureHost(); err != nil {
		return nil, err
	}

	switch c := cfg.(type) {
	case digital.OutputConfig:
		pin, err := p.pin(c.Address)
		if err != nil {
			return nil, err
		}
		return digital.NewOutput(c, &outputDriver{pin: pin}), nil
	case digital.InputConfig:
		pin, err := p.pin(c.Address)
		if err != nil {
			return nil, err
		}
		return digital.NewInput(c, &inputDriver{
			pin:      pin,
			pull:     c.Pull,
			debounce: c.Debounce,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %T", provider.ErrUnsupportedConfig, cfg)
	}
}

// ensureHost loads the periph.io host drivers once. host.Init is itself
// idempotent; the Once keeps the wrapped error stable across creates.
func (p *Provider) ensureHost() error {
	p.initOnce.Do(func() {
		p.initErr = p.initHost()
	})
	if p.initErr != nil {
		return fmt.Errorf("%w: %w", ErrHostInit, p.initErr)
	}
	return nil
}

// pin resolves a BCM address to a live pin.
func (p *Provider) pin(address int) (gpio.PinIO, error) {
	name := fmt.Sprintf("GPIO%d", address)
	pin := p.lookup(name)
	if pin == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPin, name)
	}
	return pin, nil
}

// Platform is the Raspberry Pi platform registered alongside the provider.
// Its weight outranks simulated platforms so it wins default resolution on
// real hardware.
type Platform struct{}

func (Platform) ID() string   { return "raspberry-pi" }
func (Platform) Name() string { return "Raspberry Pi Platform" }
func (Platform) Weight() int  { return 50 }

func (pl Platform) Describe() describe.Descriptor {
	return describe.Descriptor{
		Category: "PLATFORM",
		ID:       pl.ID(),
		Name:     pl.Name(),
		Value:    "periph.io host",
	}
}

// Plugin registers the provider and platform during the load phase.
type Plugin struct{}

// NewPlugin builds the periph.io GPIO plugin.
func NewPlugin() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "periphio-gpio" }

func (p *Plugin) Initialize(svc *provider.Service) error {
	if err := svc.RegisterProviders(NewProvider()); err != nil {
		return err
	}
	return svc.RegisterPlatforms(Platform{})
}
