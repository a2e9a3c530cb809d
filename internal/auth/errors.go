package auth

import "errors"

var (
	// ErrInvalidInput reports a shape/format violation caught before any
	// store access.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized covers bad credentials and missing/invalid/expired/
	// stale/reused tokens. The causes are deliberately indistinguishable to
	// the client.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenExpired is the verifier-internal expiry case. The API boundary
	// collapses it into ErrUnauthorized.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid is the verifier-internal bad-signature/bad-algorithm/
	// malformed case.
	ErrTokenInvalid = errors.New("token invalid")
)
