// Package api provides the HTTP surface for ZWave Hub.
//
// It hosts the WebSocket endpoint the UI clients connect to, a health
// endpoint aggregating component status, and read-only JSON snapshots
// of the device registry for tooling that does not want a WebSocket.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
package api
