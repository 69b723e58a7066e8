package digital

import "context"

// OutputDriver is the device-access seam a provider implements for one
// output line. Drivers own the native transport (GPIO chip, MQTT daemon,
// serial MCU, simulation) and nothing else: state bookkeeping, events, and
// the timing protocols live in Output and are shared by every provider.
//
// Init claims and configures the line; it is called once, from
// Output.Initialize. Release undoes Init; it is called once, from
// Output.Shutdown. Apply drives the line and is only called between the
// two. Apply takes no context because it sits on the state machine's hot
// path; drivers with slow transports enforce their own internal timeouts.
type OutputDriver interface {
	Init(ctx context.Context) error
	Apply(s State) error
	Release(ctx context.Context) error
}

// InputDriver is the device-access seam for one input line.
//
// Init claims and configures the line and registers watch, which the
// driver invokes with the raw observed level on every hardware edge. The
// driver may invoke watch from any goroutine; Input serializes the
// resulting transitions. Read returns the live level and is valid between
// Init and Release.
type InputDriver interface {
	Init(ctx context.Context, watch func(State)) error
	Read() (State, error)
	Release(ctx context.Context) error
}
