package controller

import "errors"

var (
	// ErrControllerUnavailable indicates the controller connection is
	// down or the bounded request queue is full. The command is not
	// queued; callers surface this to the issuing client only.
	ErrControllerUnavailable = errors.New("controller: unavailable")

	// ErrRequestTimeout indicates no reply line arrived in time. The
	// session drops the connection to resynchronise the stream.
	ErrRequestTimeout = errors.New("controller: request timed out")

	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("controller: session already started")
)
