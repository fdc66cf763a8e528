package influxdb

import "errors"

var (
	// ErrDisabled indicates the telemetry writer is disabled in config.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed indicates the server could not be reached or
	// reported unhealthy at connect time.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected indicates an operation was attempted after the
	// client was closed.
	ErrNotConnected = errors.New("influxdb: not connected")
)
