package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/GeVanCo/pi4j-v2/digital"
)

// Operation lifecycle constants.
const (
	// OpStatusRunning means the operation is still toggling.
	OpStatusRunning = "running"

	// OpStatusCompleted means the operation ran to completion.
	OpStatusCompleted = "completed"

	// OpStatusCancelled means the operation was cancelled before finishing.
	OpStatusCancelled = "cancelled"

	// OpStatusFailed means the operation aborted on a device error.
	OpStatusFailed = "failed"

	// finishedOpRetention is how long finished operations remain queryable
	// before the cleanup loop drops them.
	finishedOpRetention = 10 * time.Minute

	// opCleanInterval is how often the cleanup loop runs.
	opCleanInterval = time.Minute
)

// trackedOperation pairs an async pulse/blink handle with its API metadata.
type trackedOperation struct {
	ID         string
	InstanceID string
	Kind       string // "pulse" or "blink"
	StartedAt  time.Time
	op         *digital.Operation
}

// status derives the API status string from the operation handle.
func (t *trackedOperation) status() string {
	select {
	case <-t.op.Done():
	default:
		return OpStatusRunning
	}

	switch err := t.op.Err(); {
	case err == nil:
		return OpStatusCompleted
	case errors.Is(err, context.Canceled):
		return OpStatusCancelled
	default:
		return OpStatusFailed
	}
}

// view renders the operation for JSON responses.
func (t *trackedOperation) view() map[string]any {
	v := map[string]any{
		"operation_id": t.ID,
		"instance_id":  t.InstanceID,
		"kind":         t.Kind,
		"status":       t.status(),
		"started_at":   t.StartedAt.UTC().Format(time.RFC3339),
	}
	if t.status() == OpStatusFailed {
		v["error"] = t.op.Err().Error()
	}
	return v
}

// finished reports whether the underlying operation has ended.
func (t *trackedOperation) finished() bool {
	select {
	case <-t.op.Done():
		return true
	default:
		return false
	}
}

// operationStore tracks async operations by UUID.
type operationStore struct {
	ops map[string]*trackedOperation
	mu  sync.Mutex
}

func newOperationStore() *operationStore {
	return &operationStore{ops: make(map[string]*trackedOperation)}
}

// track registers a new operation and returns its handle id.
func (st *operationStore) track(instanceID, kind string, op *digital.Operation) *trackedOperation {
	t := &trackedOperation{
		ID:         uuid.NewString(),
		InstanceID: instanceID,
		Kind:       kind,
		StartedAt:  time.Now(),
		op:         op,
	}
	st.mu.Lock()
	st.ops[t.ID] = t
	st.mu.Unlock()
	return t
}

// get looks up an operation by id.
func (st *operationStore) get(id string) (*trackedOperation, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	t, ok := st.ops[id]
	return t, ok
}

// cancelAll cancels every running operation. Called during server shutdown.
func (st *operationStore) cancelAll() {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, t := range st.ops {
		t.op.Cancel()
	}
}

// clean drops finished operations older than the retention window.
func (st *operationStore) clean() {
	cutoff := time.Now().Add(-finishedOpRetention)

	st.mu.Lock()
	defer st.mu.Unlock()
	for id, t := range st.ops {
		if t.finished() && t.StartedAt.Before(cutoff) {
			delete(st.ops, id)
		}
	}
}

// cleanLoop runs clean periodically until the context is cancelled.
func (st *operationStore) cleanLoop(ctx context.Context) {
	ticker := time.NewTicker(opCleanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.clean()
		}
	}
}

// handleGetOperation returns the current status of an async operation.
func (s *Server) handleGetOperation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, ok := s.ops.get(id)
	if !ok {
		writeNotFound(w, "operation not found")
		return
	}

	writeJSON(w, http.StatusOK, t.view())
}

// handleCancelOperation cancels a running async operation.
//
// Cancellation is cooperative: it stops future toggles but never undoes an
// in-flight device write. Cancelling a finished operation is a no-op.
func (s *Server) handleCancelOperation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, ok := s.ops.get(id)
	if !ok {
		writeNotFound(w, "operation not found")
		return
	}

	t.op.Cancel()
	s.logger.Info("operation cancelled", "operation_id", id, "instance_id", t.InstanceID)

	writeJSON(w, http.StatusOK, t.view())
}
