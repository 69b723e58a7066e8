package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/GeVanCo/pi4j-v2/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 1000 // milliseconds
)

// Exporter streams state transitions into an InfluxDB v2 bucket.
//
// Points go through the client's non-blocking write API: Record calls
// buffer locally and a background batcher ships them. All methods are safe
// for concurrent use.
type Exporter struct {
	client influxdb2.Client
	writes api.WriteAPI

	closed atomic.Bool

	hookMu  sync.RWMutex
	onError func(error)
}

// Connect builds the client, verifies the server answers a ping, and
// starts the async write pipeline. It fails with ErrDisabled when the
// config switches telemetry off.
func Connect(cfg config.TelemetryConfig) (*Exporter, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	e := &Exporter{
		client: client,
		writes: client.WriteAPI(cfg.Org, cfg.Bucket),
	}
	go e.relayWriteErrors(e.writes.Errors())

	return e, nil
}

// writeOptions translates config into client options, falling back to
// defaults for unset or negative batching values.
func writeOptions(cfg config.TelemetryConfig) *influxdb2.Options {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	flush := cfg.FlushInterval
	if flush <= 0 {
		flush = defaultFlushInterval
	}
	// #nosec G115 -- both values are positive after the fallbacks
	return influxdb2.DefaultOptions().
		SetBatchSize(uint(batch)).
		SetFlushInterval(uint(flush))
}

// ping fails unless the server answers and calls itself healthy.
func ping(ctx context.Context, client influxdb2.Client) error {
	up, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	if !up {
		return errors.New("server reports unhealthy")
	}
	return nil
}

// relayWriteErrors forwards async batch failures to the registered hook.
// The channel closes when the client shuts down.
func (e *Exporter) relayWriteErrors(errs <-chan error) {
	for err := range errs {
		e.hookMu.RLock()
		hook := e.onError
		e.hookMu.RUnlock()

		if hook != nil {
			hook(err)
		}
	}
}

// SetOnError registers a callback for asynchronous write failures. Record
// calls never return errors themselves; this hook is the only place batch
// problems surface.
func (e *Exporter) SetOnError(hook func(error)) {
	e.hookMu.Lock()
	e.onError = hook
	e.hookMu.Unlock()
}

// Close flushes buffered points and shuts the client down. Extra calls are
// no-ops.
func (e *Exporter) Close() error {
	if e.client == nil || !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	e.writes.Flush()
	e.client.Close()
	return nil
}

// HealthCheck actively pings the server.
func (e *Exporter) HealthCheck(ctx context.Context) error {
	if !e.IsConnected() {
		return ErrNotConnected
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(pingCtx, e.client); err != nil {
		return fmt.Errorf("telemetry health: %w", err)
	}
	return nil
}

// IsConnected reports whether the exporter is open. It reflects local
// state only; HealthCheck asks the server.
func (e *Exporter) IsConnected() bool {
	return e.client != nil && !e.closed.Load()
}

// Flush blocks until all buffered points are handed to the server.
func (e *Exporter) Flush() {
	if e.IsConnected() {
		e.writes.Flush()
	}
}
