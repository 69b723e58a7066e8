package serialgpio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GeVanCo/pi4j-v2/device"
	"github.com/GeVanCo/pi4j-v2/digital"
	"github.com/GeVanCo/pi4j-v2/provider"
)

// ProviderID is the id the provider registers under.
const ProviderID = "serial-gpio"

// commander is the client surface the drivers need. *Client satisfies it;
// tests substitute a fake.
type commander interface {
	ModeOut(addr int) error
	ModeIn(addr int, pull digital.Pull) error
	Set(addr int, s digital.State) error
	Get(addr int) (digital.State, error)
	Watch(addr int, fn func(digital.State))
	Unwatch(addr int)
}

// Provider constructs digital instances on a serial GPIO adapter.
type Provider struct {
	client commander
}

// NewProvider wires a provider to an open client.
func NewProvider(client *Client) *Provider {
	return &Provider{client: client}
}

func (p *Provider) ID() string   { return ProviderID }
func (p *Provider) Name() string { return "Serial GPIO Provider" }

func (p *Provider) Types() []device.Type {
	return []device.Type{device.DigitalOutput, device.DigitalInput}
}

// Create builds an output or input on the adapter pin named by the
// config address.
func (p *Provider) Create(cfg device.Config) (device.IO, error) {
	switch c := cfg.(type) {
	case digital.OutputConfig:
		return digital.NewOutput(c, &outputDriver{
			client: p.client,
			addr:   c.Address,
		}), nil
	case digital.InputConfig:
		return digital.NewInput(c, &inputDriver{
			client:   p.client,
			addr:     c.Address,
			pull:     c.Pull,
			debounce: c.Debounce,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %T", provider.ErrUnsupportedConfig, cfg)
	}
}

// outputDriver drives one adapter pin as an output.
type outputDriver struct {
	client commander
	addr   int
}

func (d *outputDriver) Init(context.Context) error {
	if err := d.client.ModeOut(d.addr); err != nil {
		return fmt.Errorf("claiming pin %d as output: %w", d.addr, err)
	}
	return nil
}

func (d *outputDriver) Apply(s digital.State) error {
	if err := d.client.Set(d.addr, s); err != nil {
		return fmt.Errorf("writing %s to pin %d: %w", s, d.addr, err)
	}
	return nil
}

// Release is a no-op: the protocol has no verb for unclaiming a pin, the
// adapter keeps the last driven level.
func (d *outputDriver) Release(context.Context) error { return nil }

// inputDriver watches one adapter pin's EVENT lines and samples it on
// demand.
type inputDriver struct {
	client   commander
	addr     int
	pull     digital.Pull
	debounce time.Duration

	mu   sync.Mutex
	last time.Time
}

func (d *inputDriver) Init(_ context.Context, watch func(digital.State)) error {
	if err := d.client.ModeIn(d.addr, d.pull); err != nil {
		return fmt.Errorf("claiming pin %d as input: %w", d.addr, err)
	}
	d.client.Watch(d.addr, func(s digital.State) {
		if !d.accept() {
			return
		}
		watch(s)
	})
	return nil
}

// accept applies the debounce window without blocking the read loop:
// edges inside the window are suppressed rather than deferred. Reads
// still sample the live level, so a suppressed settle cannot go stale
// past the next poll.
func (d *inputDriver) accept() bool {
	if d.debounce <= 0 {
		return true
	}
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if now.Sub(d.last) < d.debounce {
		return false
	}
	d.last = now
	return true
}

func (d *inputDriver) Read() (digital.State, error) {
	s, err := d.client.Get(d.addr)
	if err != nil {
		return digital.Unknown, fmt.Errorf("reading pin %d: %w", d.addr, err)
	}
	return s, nil
}

func (d *inputDriver) Release(context.Context) error {
	d.client.Unwatch(d.addr)
	return nil
}

// Plugin registers the provider during the load phase.
type Plugin struct {
	client *Client
}

// NewPlugin builds a plugin over an open client.
func NewPlugin(client *Client) *Plugin {
	return &Plugin{client: client}
}

func (p *Plugin) Name() string { return "serial-gpio" }

func (p *Plugin) Initialize(svc *provider.Service) error {
	return svc.RegisterProviders(NewProvider(p.client))
}
