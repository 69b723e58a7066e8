package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/GeVanCo/pi4j-v2/device"
	"github.com/GeVanCo/pi4j-v2/digital"
	"github.com/GeVanCo/pi4j-v2/registry"
)

// createIORequest is the request body for POST /io.
type createIORequest struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Type     string `json:"type"`
	Provider string `json:"provider,omitempty"`
	Address  int    `json:"address"`

	// Output settings.
	InitialState  digital.State `json:"initial_state,omitempty"`
	ShutdownState digital.State `json:"shutdown_state,omitempty"`
	OnState       digital.State `json:"on_state,omitempty"`

	// Input settings.
	Pull       digital.Pull `json:"pull,omitempty"`
	DebounceMS int          `json:"debounce_ms,omitempty"`
}

// setStateRequest is the request body for PUT /io/{id}/state.
type setStateRequest struct {
	State digital.State `json:"state"`
}

// pulseRequest is the request body for POST /io/{id}/pulse.
type pulseRequest struct {
	Interval int64         `json:"interval"`
	Unit     string        `json:"unit"`
	State    digital.State `json:"state,omitempty"`
}

// blinkRequest is the request body for POST /io/{id}/blink.
type blinkRequest struct {
	Delay int64         `json:"delay"`
	Count int64         `json:"count"`
	Unit  string        `json:"unit"`
	State digital.State `json:"state,omitempty"`
}

// ioView renders an instance for JSON responses.
func ioView(io device.IO) map[string]any {
	v := map[string]any{
		"id":   io.ID(),
		"name": io.Name(),
		"type": io.Type().String(),
	}

	switch inst := io.(type) {
	case *digital.Output:
		cfg := inst.Config()
		v["state"] = inst.State()
		v["address"] = cfg.Address
		if cfg.InitialState.Known() {
			v["initial_state"] = cfg.InitialState
		}
		if cfg.ShutdownState.Known() {
			v["shutdown_state"] = cfg.ShutdownState
		}
		if cfg.OnState.Known() {
			v["on_state"] = cfg.OnState
		}
	case *digital.Input:
		cfg := inst.Config()
		v["state"] = inst.State()
		v["address"] = cfg.Address
		v["pull"] = cfg.Pull
		if cfg.Debounce > 0 {
			v["debounce_ms"] = cfg.Debounce.Milliseconds()
		}
	}

	return v
}

// handleListIO returns all registered instances, sorted by id.
//
// Query parameters:
//   - type: filter by I/O category (digital-output, digital-input)
func (s *Server) handleListIO(w http.ResponseWriter, r *http.Request) {
	typeFilter := r.URL.Query().Get("type")

	all := s.runtime.Registry().All()
	views := make([]map[string]any, 0, len(all))
	for _, io := range all {
		if typeFilter != "" && io.Type().String() != typeFilter {
			continue
		}
		views = append(views, ioView(io))
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i]["id"].(string) < views[j]["id"].(string)
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"instances": views,
		"count":     len(views),
	})
}

// handleCreateIO creates a new I/O instance through the registry.
func (s *Server) handleCreateIO(w http.ResponseWriter, r *http.Request) {
	var req createIORequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.ID == "" {
		writeBadRequest(w, "id field is required")
		return
	}

	var opts []registry.CreateOption
	if req.Provider != "" {
		opts = append(opts, registry.WithProviderID(req.Provider))
	}

	var (
		io  device.IO
		err error
	)
	switch device.Type(req.Type) {
	case device.DigitalOutput:
		io, err = registry.Create[*digital.Output](r.Context(), s.runtime.Registry(), digital.OutputConfig{
			ID:            req.ID,
			Name:          req.Name,
			Address:       req.Address,
			InitialState:  req.InitialState,
			ShutdownState: req.ShutdownState,
			OnState:       req.OnState,
		}, opts...)
	case device.DigitalInput:
		io, err = registry.Create[*digital.Input](r.Context(), s.runtime.Registry(), digital.InputConfig{
			ID:       req.ID,
			Name:     req.Name,
			Address:  req.Address,
			Pull:     req.Pull,
			Debounce: time.Duration(req.DebounceMS) * time.Millisecond,
		}, opts...)
	default:
		writeBadRequest(w, "unknown io type: "+req.Type)
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, registry.ErrDuplicateID):
			writeConflict(w, err.Error())
		case errors.Is(err, registry.ErrNoProvider), errors.Is(err, registry.ErrAmbiguousProvider):
			writeBadRequest(w, err.Error())
		default:
			s.logger.Warn("io create failed", "id", req.ID, "error", err)
			writeInternalError(w, "failed to create instance")
		}
		return
	}

	// Stream this instance's transitions like bootstrap-declared ones.
	s.tapInstance(io)

	writeJSON(w, http.StatusCreated, ioView(io))
}

// handleGetIO returns a single instance by id.
func (s *Server) handleGetIO(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	io, err := registry.Get[device.IO](s.runtime.Registry(), id)
	if err != nil {
		writeNotFound(w, "instance not found")
		return
	}

	writeJSON(w, http.StatusOK, ioView(io))
}

// handleDescribeIO returns the describe tree for a single instance.
func (s *Server) handleDescribeIO(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	io, err := registry.Get[device.IO](s.runtime.Registry(), id)
	if err != nil {
		writeNotFound(w, "instance not found")
		return
	}

	writeJSON(w, http.StatusOK, io.Describe())
}

// handleDestroyIO shuts down and removes an instance.
func (s *Server) handleDestroyIO(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.runtime.Registry().Destroy(r.Context(), id); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeNotFound(w, "instance not found")
			return
		}
		// The instance is removed even when its shutdown failed.
		s.logger.Warn("instance shutdown reported error", "id", id, "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGetIOState returns the current state of an instance.
func (s *Server) handleGetIOState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	io, err := registry.Get[device.IO](s.runtime.Registry(), id)
	if err != nil {
		writeNotFound(w, "instance not found")
		return
	}

	var state digital.State
	switch inst := io.(type) {
	case *digital.Output:
		state = inst.State()
	case *digital.Input:
		state = inst.State()
	default:
		writeBadRequest(w, "instance has no digital state")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"instance_id": id,
		"state":       state,
	})
}

// handleSetIOState writes a new state to a digital output.
func (s *Server) handleSetIOState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	out, err := registry.Get[*digital.Output](s.runtime.Registry(), id)
	if err != nil {
		if errors.Is(err, registry.ErrTypeMismatch) {
			writeBadRequest(w, "instance is not a digital output")
			return
		}
		writeNotFound(w, "instance not found")
		return
	}

	var req setStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if !req.State.Known() {
		writeBadRequest(w, "state must be HIGH or LOW")
		return
	}

	if err := out.SetState(req.State); err != nil {
		s.logger.Warn("state write failed", "id", id, "error", err)
		writeInternalError(w, "device write failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"instance_id": id,
		"state":       out.State(),
	})
}

// handlePulseIO starts an async pulse on a digital output.
//
// The response is 202 Accepted with an operation id; poll
// GET /operations/{id} or watch the WebSocket stream for progress.
func (s *Server) handlePulseIO(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	out, err := registry.Get[*digital.Output](s.runtime.Registry(), id)
	if err != nil {
		if errors.Is(err, registry.ErrTypeMismatch) {
			writeBadRequest(w, "instance is not a digital output")
			return
		}
		writeNotFound(w, "instance not found")
		return
	}

	var req pulseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	unit, err := digital.ParseTimeUnit(req.Unit)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	state := req.State
	if !state.Known() {
		state = digital.High
	}

	op, err := out.PulseAsync(req.Interval, unit, state, nil)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	t := s.ops.track(id, "pulse", op)
	s.logger.Info("pulse started",
		"instance_id", id,
		"operation_id", t.ID,
		"interval", req.Interval,
		"unit", unit.String(),
	)

	writeJSON(w, http.StatusAccepted, t.view())
}

// handleBlinkIO starts an async blink on a digital output.
//
// Count is the total number of transitions, not on/off cycles: a count of
// four from LOW yields LOW→HIGH→LOW→HIGH→LOW.
func (s *Server) handleBlinkIO(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	out, err := registry.Get[*digital.Output](s.runtime.Registry(), id)
	if err != nil {
		if errors.Is(err, registry.ErrTypeMismatch) {
			writeBadRequest(w, "instance is not a digital output")
			return
		}
		writeNotFound(w, "instance not found")
		return
	}

	var req blinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	unit, err := digital.ParseTimeUnit(req.Unit)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	state := req.State
	if !state.Known() {
		state = digital.High
	}

	op, err := out.BlinkAsync(req.Delay, req.Count, unit, state, nil)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	t := s.ops.track(id, "blink", op)
	s.logger.Info("blink started",
		"instance_id", id,
		"operation_id", t.ID,
		"delay", req.Delay,
		"count", req.Count,
		"unit", unit.String(),
	)

	writeJSON(w, http.StatusAccepted, t.view())
}

// handleIOHistory returns recorded state transitions for an instance,
// newest first.
//
// Query parameters:
//   - limit: maximum entries to return (default 50, capped at 200)
func (s *Server) handleIOHistory(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeNotFound(w, "state history is not enabled")
		return
	}

	id := chi.URLParam(r, "id")
	if !s.runtime.Registry().Exists(id) {
		writeNotFound(w, "instance not found")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		limit = parsed
	}

	entries, err := s.journal.History(r.Context(), id, limit)
	if err != nil {
		s.logger.Warn("history query failed", "id", id, "error", err)
		writeInternalError(w, "failed to query history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"instance_id": id,
		"entries":     entries,
		"count":       len(entries),
	})
}
