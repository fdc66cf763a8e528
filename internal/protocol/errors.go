package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRecord indicates a record with too few fields or an
	// unparseable field. Decoders skip the record and keep going.
	ErrMalformedRecord = errors.New("protocol: malformed record")

	// ErrInvalidStatus indicates a status outside the domain of the
	// device type it is being encoded for.
	ErrInvalidStatus = errors.New("protocol: invalid status for device type")

	// ErrReservedCharacter indicates a field value containing a wire
	// delimiter, which cannot be escaped in this protocol.
	ErrReservedCharacter = errors.New("protocol: field contains reserved character")
)

// DecodeError describes one skipped record within an otherwise
// successful decode. It wraps ErrMalformedRecord so callers can match
// with errors.Is.
type DecodeError struct {
	Index  int    // position of the record in the reply
	Record string // raw record text
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("protocol: record %d malformed (%s): %q", e.Index, e.Reason, e.Record)
}

func (e *DecodeError) Unwrap() error { return ErrMalformedRecord }
