package digital

import (
	"sync"

	"github.com/GeVanCo/pi4j-v2/device"
)

// Event records a single observed state transition. Events are dispatched
// synchronously, on the goroutine that performed the transition, to the
// listeners registered at that moment, in registration order. They are not
// persisted or queued.
type Event struct {
	// Source is the instance that changed.
	Source device.IO

	// State is the level after the transition.
	State State
}

// Listener receives state-change events for one instance.
//
// Dispatch is synchronous: a slow listener stalls the writer that caused
// the transition. A listener must not synchronously call a state-mutating
// method on the instance it observes; doing so deadlocks.
type Listener interface {
	OnStateChange(Event)
}

// ListenerFunc adapts a plain function to the Listener interface.
type ListenerFunc func(Event)

func (f ListenerFunc) OnStateChange(ev Event) { f(ev) }

// ListenerToken identifies one listener registration. Tokens are unique
// per instance and remain invalid forever once removed.
type ListenerToken uint64

// listenerTable is the ordered listener registry shared by Output and
// Input. Registration order is dispatch order.
type listenerTable struct {
	mu      sync.Mutex
	nextTok ListenerToken
	entries []listenerEntry
}

type listenerEntry struct {
	tok ListenerToken
	l   Listener
}

func (t *listenerTable) add(l Listener) ListenerToken {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextTok++
	t.entries = append(t.entries, listenerEntry{tok: t.nextTok, l: l})
	return t.nextTok
}

func (t *listenerTable) remove(tok ListenerToken) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.entries {
		if e.tok == tok {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (t *listenerTable) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
}

func (t *listenerTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// dispatch delivers ev to every registered listener in order. A panicking
// listener is logged and skipped; the remaining listeners still run.
// Callers serialize dispatch with the transition that produced ev.
func (t *listenerTable) dispatch(log Logger, ev Event) {
	t.mu.Lock()
	snapshot := make([]Listener, len(t.entries))
	for i, e := range t.entries {
		snapshot[i] = e.l
	}
	t.mu.Unlock()

	for _, l := range snapshot {
		deliver(log, l, ev)
	}
}

func deliver(log Logger, l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("state listener panic",
				"id", ev.Source.ID(),
				"state", ev.State.String(),
				"panic", r,
			)
		}
	}()
	l.OnStateChange(ev)
}
