package hub

import "errors"

var (
	// ErrBadCommand indicates a command with missing or unparseable
	// arguments.
	ErrBadCommand = errors.New("hub: malformed command")

	// ErrUnknownDevice indicates a command naming a node the registry
	// has never seen.
	ErrUnknownDevice = errors.New("hub: unknown device")

	// ErrTypeMismatch indicates a command whose device type does not
	// match the type recorded for that node.
	ErrTypeMismatch = errors.New("hub: device type mismatch")
)
