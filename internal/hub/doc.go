// Package hub manages the set of live UI WebSocket connections.
//
// A connection's first message must be "AUTH~<credential>". The
// credential goes through the auth gate; rejection gets a typed
// {"command":"AUTH","auth":false} envelope before the connection is
// closed, and success admits the session and immediately delivers the
// full registry snapshot so new clients never wait for the next
// broadcast. After admission, inbound messages are plain-text commands
// dispatched through the Router, and registry change events are fanned
// out as JSON envelopes.
//
// Delivery to one session never blocks another: each session has a
// bounded send buffer and deliveries to a full buffer are dropped.
package hub
