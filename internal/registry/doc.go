// Package registry holds the in-memory state mirrored from the Z-Wave
// controller: devices, rooms, scenes, and the process-wide presence
// flag.
//
// The registry is single-writer, multi-reader. The controller session
// applies controller-reported state; UI-facing code only takes
// snapshots. Apply operations report whether anything changed so the
// caller can decide whether a broadcast is warranted.
package registry
