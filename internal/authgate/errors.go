package authgate

import "errors"

var (
	// ErrInvalid indicates the credential failed verification: bad
	// signature, wrong audience, expired, or rejected by the provider.
	ErrInvalid = errors.New("authgate: credential invalid")

	// ErrProfileUnavailable indicates the credential verified but the
	// profile fetch failed. Callers must treat this as not
	// authenticated; a session is never admitted on a partial result.
	ErrProfileUnavailable = errors.New("authgate: profile unavailable")
)
