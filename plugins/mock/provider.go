package mock

import (
	"context"
	"fmt"

	"github.com/GeVanCo/pi4j-v2/describe"
	"github.com/GeVanCo/pi4j-v2/device"
	"github.com/GeVanCo/pi4j-v2/digital"
	"github.com/GeVanCo/pi4j-v2/provider"
)

// ProviderID is the id the provider registers under.
const ProviderID = "mock-gpio"

// Provider constructs digital instances backed by a simulated board.
type Provider struct {
	board *Board
}

// NewProvider wires a provider to board; a nil board gets a fresh one.
func NewProvider(board *Board) *Provider {
	if board == nil {
		board = NewBoard()
	}
	return &Provider{board: board}
}

// Board returns the simulated board behind this provider, for stimulating
// input lines and inspecting output levels.
func (p *Provider) Board() *Board { return p.board }

func (p *Provider) ID() string   { return ProviderID }
func (p *Provider) Name() string { return "Mock GPIO Provider" }

func (p *Provider) Types() []device.Type {
	return []device.Type{device.DigitalOutput, device.DigitalInput}
}

// Create builds an output or input over the board, keyed by config shape.
func (p *Provider) Create(cfg device.Config) (device.IO, error) {
	switch c := cfg.(type) {
	case digital.OutputConfig:
		return digital.NewOutput(c, &outputDriver{board: p.board, address: c.Address}), nil
	case digital.InputConfig:
		return digital.NewInput(c, &inputDriver{board: p.board, address: c.Address}), nil
	default:
		return nil, fmt.Errorf("%w: %T", provider.ErrUnsupportedConfig, cfg)
	}
}

type outputDriver struct {
	board   *Board
	address int
}

func (d *outputDriver) Init(context.Context) error { return nil }

func (d *outputDriver) Apply(s digital.State) error {
	d.board.drive(d.address, s)
	return nil
}

func (d *outputDriver) Release(context.Context) error { return nil }

type inputDriver struct {
	board   *Board
	address int
	remove  func()
}

func (d *inputDriver) Init(_ context.Context, watch func(digital.State)) error {
	d.remove = d.board.watch(d.address, watch)
	return nil
}

func (d *inputDriver) Read() (digital.State, error) {
	return d.board.Level(d.address), nil
}

func (d *inputDriver) Release(context.Context) error {
	if d.remove != nil {
		d.remove()
		d.remove = nil
	}
	return nil
}

// Platform is the virtual platform registered alongside the provider.
type Platform struct{}

func (Platform) ID() string   { return "mock-platform" }
func (Platform) Name() string { return "Mock Platform" }
func (Platform) Weight() int  { return 1 }

func (pl Platform) Describe() describe.Descriptor {
	return describe.Descriptor{
		Category: "PLATFORM",
		ID:       pl.ID(),
		Name:     pl.Name(),
		Value:    "simulated",
	}
}

// Plugin registers the provider and platform during the load phase.
type Plugin struct {
	board *Board
}

// NewPlugin builds a plugin whose provider shares board; nil gets a fresh
// board, reachable afterwards via Provider.Board.
func NewPlugin(board *Board) *Plugin {
	if board == nil {
		board = NewBoard()
	}
	return &Plugin{board: board}
}

func (p *Plugin) Name() string { return "mock-gpio" }

func (p *Plugin) Initialize(svc *provider.Service) error {
	if err := svc.RegisterProviders(NewProvider(p.board)); err != nil {
		return err
	}
	return svc.RegisterPlatforms(Platform{})
}
