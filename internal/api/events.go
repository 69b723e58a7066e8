package api

import (
	"context"
	"time"

	"github.com/GeVanCo/pi4j-v2/device"
	"github.com/GeVanCo/pi4j-v2/digital"
)

// journalWriteTimeout bounds each journal insert performed on the event
// dispatch path. Dispatch is synchronous with the device write, so a stuck
// database must not stall I/O callers indefinitely.
const journalWriteTimeout = 2 * time.Second

// tapRegistry attaches the state-change observer to every instance already
// in the registry.
func (s *Server) tapRegistry() {
	for _, io := range s.runtime.Registry().All() {
		s.tapInstance(io)
	}
}

// tapInstance forwards an instance's state transitions to the WebSocket
// hub, the journal, and telemetry.
//
// The observer lives for the instance's lifetime: Shutdown clears the
// listener table, so destroyed instances need no explicit untap.
func (s *Server) tapInstance(io device.IO) {
	listener := digital.ListenerFunc(s.recordTransition)

	switch inst := io.(type) {
	case *digital.Output:
		inst.AddListener(listener)
	case *digital.Input:
		inst.AddListener(listener)
	default:
		s.logger.Debug("instance type has no state stream", "id", io.ID(), "type", io.Type().String())
	}
}

// recordTransition is the shared observer body. It runs on the goroutine
// that performed the transition, so every sink here must be quick or
// bounded.
func (s *Server) recordTransition(ev digital.Event) {
	id := ev.Source.ID()
	at := time.Now()

	if s.hub != nil {
		s.hub.Broadcast(ChannelStateChanged, map[string]any{
			"instance_id": id,
			"state":       ev.State,
			"at":          at.UTC().Format(time.RFC3339Nano),
		})
	}

	if s.journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
		if err := s.journal.Record(ctx, id, ev.State, at); err != nil {
			s.logger.Warn("journal write failed", "instance_id", id, "error", err)
		}
		cancel()
	}

	if s.telemetry != nil {
		s.telemetry.RecordState(id, ev.State, at)
	}
}
