// Package api provides the HTTP REST API and WebSocket server for the pi4jd
// daemon.
//
// It exposes registry operations (list, create, destroy), output state
// control, async pulse/blink operations, state history queries, and a
// real-time state-change stream over WebSocket.
//
// The server follows the same lifecycle pattern as the other daemon
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: all methods are safe for concurrent use from multiple
// goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	pi4j "github.com/GeVanCo/pi4j-v2"
	"github.com/GeVanCo/pi4j-v2/config"
	"github.com/GeVanCo/pi4j-v2/history"
	"github.com/GeVanCo/pi4j-v2/internal/logging"
	"github.com/GeVanCo/pi4j-v2/telemetry"
)

// drainTimeout bounds how long Close waits for in-flight requests.
const drainTimeout = 10 * time.Second

// Deps collects what the server needs from the rest of the daemon.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Runtime *pi4j.Context

	// Journal receives every state transition and serves history queries.
	// Optional; history endpoints return 404 when absent.
	Journal *history.Journal

	// Telemetry receives every state transition. Optional.
	Telemetry *telemetry.Exporter

	Version string
}

// Server is the HTTP API server for pi4jd.
//
// It manages the HTTP listener, routes, middleware, the async operation
// table, and the WebSocket hub. The server is created with New() and
// started with Start().
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	runtime   *pi4j.Context
	journal   *history.Journal
	telemetry *telemetry.Exporter
	version   string

	server  *http.Server
	hub     *Hub
	ops     *operationStore
	tickets *ticketStore
	cancel  context.CancelFunc // cancels background goroutines on Close()
}

// New wires a server from deps. Nothing listens until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Runtime == nil {
		return nil, errors.New("pi4j runtime context is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		runtime:   deps.Runtime,
		journal:   deps.Journal,
		telemetry: deps.Telemetry,
		version:   deps.Version,
		ops:       newOperationStore(),
		tickets:   newTicketStore(),
	}, nil
}

// Start launches the WebSocket hub, attaches state-change observers to
// every registered instance, and brings up the HTTP listener in a
// background goroutine. Stop with Close().
func (s *Server) Start(ctx context.Context) error {
	// Close() must be able to stop background goroutines regardless of
	// what the parent context does.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.cfg.WebSocket, s.logger)
	go s.hub.Run(srvCtx)

	// Finished async operations linger briefly for status polling, then
	// get swept.
	go s.ops.cleanLoop(srvCtx)

	// Forward state changes from already-registered instances (declared in
	// config and created during bootstrap) to the journal, telemetry, and
	// WebSocket clients. Instances created through the API are tapped by
	// the create handler.
	s.tapRegistry()

	timeouts := s.cfg.Timeouts
	s.server = &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)),
		Handler:           s.buildRouter(),
		ReadTimeout:       secs(timeouts.Read),
		ReadHeaderTimeout: secs(timeouts.Read),
		WriteTimeout:      secs(timeouts.Write),
		IdleTimeout:       secs(timeouts.Idle),
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api listener failed", "error", err)
		}
	}()

	s.logger.Info("api server listening", "addr", s.server.Addr)
	return nil
}

// Close stops the server. Running async operations are cancelled, then
// in-flight requests get up to drainTimeout to finish before remaining
// connections are cut.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Stops the hub and the operation sweeper.
	if s.cancel != nil {
		s.cancel()
	}

	s.ops.cancelAll()

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	s.logger.Info("api server stopping")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("stopping api server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health: %w", err)
	}
	if s.server == nil {
		return errors.New("api server not running")
	}
	return nil
}

func secs(n int) time.Duration {
	return time.Duration(n) * time.Second
}
