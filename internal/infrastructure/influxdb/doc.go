// Package influxdb records hub telemetry as time-series data.
//
// It wraps the official influxdb-client-go v2 library for the optional
// telemetry writer: device status levels, room temperatures and
// setpoints, and presence transitions are written as they change so
// history survives the hub's in-memory state.
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking; batch errors are delivered via a
// callback. Connection and health check errors are returned directly.
package influxdb
