package mock

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/GeVanCo/pi4j-v2/device"
	"github.com/GeVanCo/pi4j-v2/digital"
	"github.com/GeVanCo/pi4j-v2/provider"
)

type unknownConfig struct{}

func (unknownConfig) InstanceID() string   { return "x" }
func (unknownConfig) InstanceName() string { return "x" }
func (unknownConfig) IOType() device.Type  { return device.Type("exotic") }

type stateRecorder struct {
	mu     sync.Mutex
	states []digital.State
}

func (r *stateRecorder) OnStateChange(ev digital.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, ev.State)
}

func (r *stateRecorder) seen() []digital.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]digital.State, len(r.states))
	copy(out, r.states)
	return out
}

func TestProviderCreate(t *testing.T) {
	p := NewProvider(nil)

	t.Run("output", func(t *testing.T) {
		io, err := p.Create(digital.OutputConfig{ID: "led", Address: 17})
		if err != nil {
			t.Fatalf("Create() error = %v, want nil", err)
		}
		if _, ok := io.(*digital.Output); !ok {
			t.Errorf("Create() built %T, want *digital.Output", io)
		}
	})

	t.Run("input", func(t *testing.T) {
		io, err := p.Create(digital.InputConfig{ID: "button", Address: 4})
		if err != nil {
			t.Fatalf("Create() error = %v, want nil", err)
		}
		if _, ok := io.(*digital.Input); !ok {
			t.Errorf("Create() built %T, want *digital.Input", io)
		}
	})

	t.Run("foreign config", func(t *testing.T) {
		_, err := p.Create(unknownConfig{})
		if !errors.Is(err, provider.ErrUnsupportedConfig) {
			t.Errorf("Create() error = %v, want ErrUnsupportedConfig", err)
		}
	})
}

func TestOutputDrivesBoard(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(nil)

	io, err := p.Create(digital.OutputConfig{ID: "led", Address: 17, InitialState: digital.Low})
	if err != nil {
		t.Fatalf("Create() error = %v, want nil", err)
	}
	out := io.(*digital.Output)
	if err := out.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v, want nil", err)
	}

	if got := p.Board().Level(17); got != digital.Low {
		t.Errorf("board level after initialize = %s, want LOW", got)
	}
	if err := out.SetState(digital.High); err != nil {
		t.Fatalf("SetState() error = %v, want nil", err)
	}
	if got := p.Board().Level(17); got != digital.High {
		t.Errorf("board level = %s, want HIGH", got)
	}
}

func TestSetLineDrivesInput(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(nil)

	io, err := p.Create(digital.InputConfig{ID: "button", Address: 4})
	if err != nil {
		t.Fatalf("Create() error = %v, want nil", err)
	}
	in := io.(*digital.Input)
	rec := &stateRecorder{}
	in.AddListener(rec)
	if err := in.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v, want nil", err)
	}

	p.Board().SetLine(4, digital.High)
	p.Board().SetLine(4, digital.High) // repeated level: no second event
	p.Board().SetLine(4, digital.Low)

	want := []digital.State{digital.High, digital.Low}
	got := rec.seen()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("input events = %v, want %v", got, want)
	}
	if got := in.State(); got != digital.Low {
		t.Errorf("State() = %s, want LOW from the board", got)
	}

	// After shutdown the watch is removed.
	if err := in.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v, want nil", err)
	}
	p.Board().SetLine(4, digital.High)
	if len(rec.seen()) != len(want) {
		t.Error("released input still receives edges")
	}
}

func TestLoopback(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(nil)

	outIO, err := p.Create(digital.OutputConfig{ID: "driver", Address: 9})
	if err != nil {
		t.Fatalf("Create() error = %v, want nil", err)
	}
	inIO, err := p.Create(digital.InputConfig{ID: "sense", Address: 9})
	if err != nil {
		t.Fatalf("Create() error = %v, want nil", err)
	}
	out, in := outIO.(*digital.Output), inIO.(*digital.Input)

	rec := &stateRecorder{}
	in.AddListener(rec)
	for _, io := range []device.IO{out, in} {
		if err := io.Initialize(ctx); err != nil {
			t.Fatalf("Initialize(%s) error = %v, want nil", io.ID(), err)
		}
	}

	if err := out.SetState(digital.High); err != nil {
		t.Fatalf("SetState() error = %v, want nil", err)
	}
	got := rec.seen()
	if len(got) != 1 || got[0] != digital.High {
		t.Errorf("input saw %v, want [HIGH] looped back from the output", got)
	}
}

func TestPluginRegisters(t *testing.T) {
	store := provider.NewStore()
	svc := provider.NewService(store, nil)

	plugin := NewPlugin(nil)
	if err := plugin.Initialize(svc); err != nil {
		t.Fatalf("Initialize() error = %v, want nil", err)
	}

	if _, ok := store.Provider(ProviderID); !ok {
		t.Errorf("store missing provider %q after plugin load", ProviderID)
	}
	if _, ok := store.Platform("mock-platform"); !ok {
		t.Error("store missing mock platform after plugin load")
	}
}
