package digital

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GeVanCo/pi4j-v2/describe"
	"github.com/GeVanCo/pi4j-v2/device"
)

// Callback runs after a pulse or blink completes. A Callback failure or
// panic is logged against the operation and never propagated; it cannot
// fail the operation that triggered it.
type Callback func() error

// Output is a digital output endpoint: one device line driven through an
// OutputDriver, with change events and the pulse/blink timing protocols.
//
// The zero value is not usable; construct with NewOutput. Instances are
// normally created by a provider and lifecycle-managed by the registry.
type Output struct {
	id   string
	name string
	cfg  OutputConfig
	drv  OutputDriver

	// writeMu serializes transitions and their event dispatch so that
	// listeners observe events in exact transition order.
	writeMu sync.Mutex

	mu    sync.RWMutex // guards state and log
	state State
	log   Logger

	listeners listenerTable
}

// NewOutput constructs an output over drv. The instance starts at Unknown
// and is inert until Initialize. When cfg.ID is empty a unique id is
// generated.
func NewOutput(cfg OutputConfig, drv OutputDriver) *Output {
	id := cfg.ID
	if id == "" {
		id = string(device.DigitalOutput) + "-" + uuid.NewString()
	}
	name := cfg.Name
	if name == "" {
		name = id
	}
	return &Output{
		id:    id,
		name:  name,
		cfg:   cfg,
		drv:   drv,
		state: Unknown,
		log:   noopLogger{},
	}
}

// SetLogger routes the instance's isolated-failure reporting (listener
// panics, callback errors) to l. The default discards everything.
func (o *Output) SetLogger(l Logger) {
	if l == nil {
		l = noopLogger{}
	}
	o.mu.Lock()
	o.log = l
	o.mu.Unlock()
}

func (o *Output) logger() Logger {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.log
}

func (o *Output) ID() string        { return o.id }
func (o *Output) Name() string      { return o.name }
func (o *Output) Type() device.Type { return device.DigitalOutput }

// Config returns the immutable creation config.
func (o *Output) Config() OutputConfig { return o.cfg }

// State returns the last applied level, Unknown before the first write.
func (o *Output) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Initialize claims the line through the driver and, when the config
// specifies one, applies the initial level. Invoked once by the registry.
func (o *Output) Initialize(ctx context.Context) error {
	if err := o.drv.Init(ctx); err != nil {
		return fmt.Errorf("%w: output %q: %w", device.ErrInitialize, o.id, err)
	}
	if ini := o.cfg.InitialState; ini != Unknown {
		if err := o.SetState(ini); err != nil {
			return fmt.Errorf("%w: output %q initial state %s: %w", device.ErrInitialize, o.id, ini, err)
		}
	}
	return nil
}

// Shutdown applies the configured shutdown level when one is set, then
// clears the listener table and releases the line. A shutdown-state
// failure aborts the call before the release. Invoked once by the
// registry.
func (o *Output) Shutdown(ctx context.Context) error {
	if sd := o.cfg.ShutdownState; sd != Unknown {
		if err := o.SetState(sd); err != nil {
			return fmt.Errorf("%w: output %q shutdown state %s: %w", device.ErrShutdown, o.id, sd, err)
		}
	}
	o.listeners.clear()
	if err := o.drv.Release(ctx); err != nil {
		return fmt.Errorf("%w: output %q: %w", device.ErrShutdown, o.id, err)
	}
	return nil
}

// SetState drives the line to s. An equal level is a no-op: no device
// write, no event. On change the driver write happens first; only a
// successful write updates the state and dispatches the event, so
// observers never see a level the device refused.
func (o *Output) SetState(s State) error {
	o.writeMu.Lock()
	defer o.writeMu.Unlock()

	if s == o.State() {
		return nil
	}
	if err := o.drv.Apply(s); err != nil {
		return fmt.Errorf("%w: output %q write %s: %w", device.ErrIO, o.id, s, err)
	}
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()

	o.listeners.dispatch(o.logger(), Event{Source: o, State: s})
	return nil
}

// On drives the configured on-state, High unless overridden.
func (o *Output) On() error { return o.SetState(o.onState()) }

// Off drives the inverse of the configured on-state.
func (o *Output) Off() error { return o.SetState(o.onState().Inverse()) }

// Toggle drives the inverse of the current level. At Unknown there is no
// inverse and the call is a no-op.
func (o *Output) Toggle() error { return o.SetState(o.State().Inverse()) }

func (o *Output) onState() State {
	if o.cfg.OnState.Known() {
		return o.cfg.OnState
	}
	return High
}

// Pulse drives s for the given interval, then restores its inverse: one
// synchronous on→off toggle. The calling goroutine blocks for the full
// interval. Microsecond and day units are rejected. cb, when non-nil,
// runs after the restoring transition; its failure is logged, never
// returned. Cancelling ctx aborts the remaining steps and leaves the line
// at its last-set level.
func (o *Output) Pulse(ctx context.Context, interval int64, unit TimeUnit, s State, cb Callback) error {
	d, err := pulseInterval(interval, unit)
	if err != nil {
		return err
	}
	return o.pulse(ctx, d, s, cb)
}

// PulseAsync runs the pulse protocol off the calling goroutine.
// Validation still happens synchronously: an invalid interval or unit
// fails here, before anything starts. The returned Operation cancels and
// awaits the run.
func (o *Output) PulseAsync(interval int64, unit TimeUnit, s State, cb Callback) (*Operation, error) {
	d, err := pulseInterval(interval, unit)
	if err != nil {
		return nil, err
	}
	return newOperation(func(ctx context.Context) error {
		return o.pulse(ctx, d, s, cb)
	}), nil
}

// Blink performs count transitions with delay between them: the first
// drives s, each subsequent one toggles the current level. count counts
// transitions, not visible on/off cycles: ten transitions produce five
// visible blinks, and an odd count leaves the line at the blink level
// rather than back at its starting level. Callers wanting n full cycles
// pass 2n. cb, when non-nil, runs after the final transition with the
// same logged-not-propagated policy as Pulse.
func (o *Output) Blink(ctx context.Context, delay, count int64, unit TimeUnit, s State, cb Callback) error {
	d, err := blinkArgs(delay, count, unit)
	if err != nil {
		return err
	}
	return o.blink(ctx, d, count, s, cb)
}

// BlinkAsync runs the blink protocol off the calling goroutine, with the
// same synchronous validation and transition-count semantics as Blink.
func (o *Output) BlinkAsync(delay, count int64, unit TimeUnit, s State, cb Callback) (*Operation, error) {
	d, err := blinkArgs(delay, count, unit)
	if err != nil {
		return nil, err
	}
	return newOperation(func(ctx context.Context) error {
		return o.blink(ctx, d, count, s, cb)
	}), nil
}

// AddListener registers l for state-change events, after all existing
// listeners. The returned token deregisters it.
func (o *Output) AddListener(l Listener) ListenerToken {
	return o.listeners.add(l)
}

// RemoveListener deregisters a token returned by AddListener. It reports
// whether the token was still registered; removing an unknown or
// already-removed token is a no-op.
func (o *Output) RemoveListener(tok ListenerToken) bool {
	return o.listeners.remove(tok)
}

// Describe reports the instance as a single descriptor node carrying the
// current level.
func (o *Output) Describe() describe.Descriptor {
	return describe.Descriptor{
		Category: string(device.DigitalOutput),
		ID:       o.id,
		Name:     o.name,
		Value:    o.State().String(),
	}
}

func pulseInterval(n int64, unit TimeUnit) (time.Duration, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: pulse interval %d", ErrInvalidInterval, n)
	}
	return unit.Duration(n)
}

func blinkArgs(delay, count int64, unit TimeUnit) (time.Duration, error) {
	if delay <= 0 {
		return 0, fmt.Errorf("%w: blink delay %d", ErrInvalidInterval, delay)
	}
	if count <= 0 {
		return 0, fmt.Errorf("%w: blink transition count %d", ErrInvalidInterval, count)
	}
	return unit.Duration(delay)
}

func (o *Output) pulse(ctx context.Context, d time.Duration, s State, cb Callback) error {
	if err := o.SetState(s); err != nil {
		return err
	}
	if err := sleep(ctx, d); err != nil {
		return err
	}
	if err := o.SetState(s.Inverse()); err != nil {
		return err
	}
	o.runCallback("pulse", cb)
	return nil
}

func (o *Output) blink(ctx context.Context, delay time.Duration, count int64, s State, cb Callback) error {
	if err := o.SetState(s); err != nil {
		return err
	}
	for i := int64(1); i < count; i++ {
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		if err := o.Toggle(); err != nil {
			return err
		}
	}
	o.runCallback("blink", cb)
	return nil
}

// runCallback isolates a completion callback: panics and errors are
// logged against the operation name and never propagate.
func (o *Output) runCallback(op string, cb Callback) {
	if cb == nil {
		return
	}
	log := o.logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error("completion callback panic", "id", o.id, "op", op, "panic", r)
		}
	}()
	if err := cb(); err != nil {
		log.Warn("completion callback failed", "id", o.id, "op", op, "error", err)
	}
}

// sleep blocks for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
