// Package controller owns the single connection to the Z-Wave
// controller process.
//
// The wire protocol has no request/response correlation: a reply is
// whatever line arrives after a request. The session therefore keeps
// exactly one request in flight, tagging the awaited reply with the
// request's kind, and tears the connection down if a reply times out
// so a late line can never be matched to the wrong request. Lines are
// newline-framed; records within a line use the '#'/'~' format decoded
// by the protocol package.
//
// The session reconnects with exponential backoff and re-requests the
// full device, room, scene, and presence state after every (re)connect.
// While disconnected, commands fail fast with ErrControllerUnavailable
// rather than queuing.
package controller
