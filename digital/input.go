package digital

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/GeVanCo/pi4j-v2/describe"
	"github.com/GeVanCo/pi4j-v2/device"
)

// Input is a digital input endpoint: one device line observed through an
// InputDriver. Hardware edges reported by the driver flow through the same
// compare-then-dispatch state machine as output writes, minus the device
// write.
//
// The zero value is not usable; construct with NewInput.
type Input struct {
	id   string
	name string
	cfg  InputConfig
	drv  InputDriver

	// applyMu serializes observed transitions and their event dispatch.
	applyMu sync.Mutex

	mu   sync.RWMutex // guards last and log
	last State
	log  Logger

	listeners listenerTable
}

// NewInput constructs an input over drv. No watch is active until
// Initialize. When cfg.ID is empty a unique id is generated.
func NewInput(cfg InputConfig, drv InputDriver) *Input {
	id := cfg.ID
	if id == "" {
		id = string(device.DigitalInput) + "-" + uuid.NewString()
	}
	name := cfg.Name
	if name == "" {
		name = id
	}
	return &Input{
		id:   id,
		name: name,
		cfg:  cfg,
		drv:  drv,
		last: Unknown,
		log:  noopLogger{},
	}
}

// SetLogger routes the instance's isolated-failure reporting (listener
// panics, read errors) to l. The default discards everything.
func (i *Input) SetLogger(l Logger) {
	if l == nil {
		l = noopLogger{}
	}
	i.mu.Lock()
	i.log = l
	i.mu.Unlock()
}

func (i *Input) logger() Logger {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.log
}

func (i *Input) ID() string        { return i.id }
func (i *Input) Name() string      { return i.name }
func (i *Input) Type() device.Type { return device.DigitalInput }

// Config returns the immutable creation config.
func (i *Input) Config() InputConfig { return i.cfg }

// Initialize claims and configures the line (pull, debounce) and registers
// the edge watch. Invoked once by the registry. No event fires for the
// line's pre-existing level; the first observed edge produces the first
// event.
func (i *Input) Initialize(ctx context.Context) error {
	if err := i.drv.Init(ctx, i.apply); err != nil {
		return fmt.Errorf("%w: input %q: %w", device.ErrInitialize, i.id, err)
	}
	return nil
}

// Shutdown clears the listener table and releases the line and its watch.
// Invoked once by the registry.
func (i *Input) Shutdown(ctx context.Context) error {
	i.listeners.clear()
	if err := i.drv.Release(ctx); err != nil {
		return fmt.Errorf("%w: input %q: %w", device.ErrShutdown, i.id, err)
	}
	return nil
}

// State reads the live level from the device. A read failure is logged
// and reported as Unknown rather than propagated, so polling callers keep
// a usable, if degraded, signal.
func (i *Input) State() State {
	s, err := i.drv.Read()
	if err != nil {
		i.logger().Warn("input read failed", "id", i.id, "error", err)
		return Unknown
	}
	return s
}

// LastKnown returns the most recent level observed through the edge
// watch, Unknown before the first edge. It never touches the device.
func (i *Input) LastKnown() State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.last
}

// apply is the driver's watch callback: one observed level in, at most
// one event out. Repeated levels are dropped.
func (i *Input) apply(s State) {
	i.applyMu.Lock()
	defer i.applyMu.Unlock()

	if s == i.LastKnown() {
		return
	}
	i.mu.Lock()
	i.last = s
	i.mu.Unlock()

	i.listeners.dispatch(i.logger(), Event{Source: i, State: s})
}

// AddListener registers l for state-change events, after all existing
// listeners. The returned token deregisters it.
func (i *Input) AddListener(l Listener) ListenerToken {
	return i.listeners.add(l)
}

// RemoveListener deregisters a token returned by AddListener. It reports
// whether the token was still registered; removing an unknown or
// already-removed token is a no-op.
func (i *Input) RemoveListener(tok ListenerToken) bool {
	return i.listeners.remove(tok)
}

// Describe reports the instance as a single descriptor node carrying the
// last observed level. Describe never touches the device.
func (i *Input) Describe() describe.Descriptor {
	return describe.Descriptor{
		Category: string(device.DigitalInput),
		ID:       i.id,
		Name:     i.name,
		Value:    i.LastKnown().String(),
	}
}
