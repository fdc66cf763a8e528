package registry

import "errors"

var (
	// ErrUnknownRoom indicates a room update for a name never seen in a
	// room list. The caller should log and ignore it.
	ErrUnknownRoom = errors.New("registry: unknown room")
)
