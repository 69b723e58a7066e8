// Package digital implements digital I/O endpoints: outputs with the
// pulse/blink timing protocols and watched inputs, both built around a
// compare-then-dispatch state machine.
//
// # Architecture
//
//	  SetState / On / Off / Toggle                  hardware edge
//	             │                                       │
//	             ▼                                       ▼
//	      ┌──────────────┐                        ┌─────────────┐
//	      │    Output    │                        │    Input    │
//	      │ state + cfg  │                        │ last + cfg  │
//	      └──────┬───────┘                        └──────┬──────┘
//	             │ level differs?                        │ level differs?
//	             │ drive OutputDriver, then              │
//	             ▼                                       ▼
//	      ┌───────────────────────────────────────────────────────┐
//	      │   listeners (registration order, calling goroutine)   │
//	      └───────────────────────────────────────────────────────┘
//
// A transition is observable only when the level actually changes; equal
// writes and repeated edges produce neither device traffic nor events.
//
// Providers supply the device access behind the OutputDriver and
// InputDriver seams. Everything else (state bookkeeping, events, timing
// protocols, lifecycle ordering) lives here and is shared by every
// provider.
//
// # Timing protocols
//
// Pulse performs one on→off toggle, blocking the caller for the interval.
// Blink performs a fixed number of transitions with a delay between them;
// the count counts transitions, not visible on/off cycles. PulseAsync and
// BlinkAsync run the same protocols behind a cancellable Operation handle.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Transitions and their
// event dispatch are serialized per instance, so listeners observe events
// in exact transition order. Dispatch is synchronous on the transitioning
// goroutine: a slow listener stalls the writer, and a listener must not
// synchronously call a state-mutating method on the instance it observes.
package digital
