package mqtt

import "errors"

var (
	// ErrConnectionFailed indicates the initial broker connection did
	// not come up within the timeout.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNotConnected indicates an operation was attempted while the
	// broker connection is down.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrPublishFailed indicates the broker did not acknowledge a
	// publish in time.
	ErrPublishFailed = errors.New("mqtt: publish failed")
)
