package telemetry

import "errors"

// Errors reported by the exporter. Callers branch on them with errors.Is.
var (
	// ErrDisabled means telemetry is switched off in the configuration.
	ErrDisabled = errors.New("telemetry: disabled in configuration")

	// ErrConnectionFailed means the initial connection attempt failed.
	ErrConnectionFailed = errors.New("telemetry: connection failed")

	// ErrNotConnected means the exporter was closed or never connected.
	ErrNotConnected = errors.New("telemetry: not connected")
)
