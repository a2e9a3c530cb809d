package identity

import "errors"

// Sentinel error kinds, stable for errors.Is and for mapping to HTTP status
// codes at the API boundary.
var (
	// ErrUsernameTaken reports a unique-username conflict at insert time.
	ErrUsernameTaken = errors.New("username taken")

	// ErrNotFound reports a missing user. Absence is a normal outcome,
	// distinct from infrastructure failure.
	ErrNotFound = errors.New("user not found")
)
