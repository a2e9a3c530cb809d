package identity

import (
	"context"

	"github.com/google/uuid"
)

// Store abstracts user account persistence.
type Store interface {
	// Create persists a new user. The username uniqueness constraint is
	// checked at insert time; violations surface as ErrUsernameTaken.
	Create(ctx context.Context, username, passwordHash, kdfSalt string) (User, error)

	// FindByUsername performs a case-sensitive exact lookup. A missing user
	// is reported as ErrNotFound.
	FindByUsername(ctx context.Context, username string) (User, error)
}

// NewID returns a fresh user ID. IDs are generated application-side so that
// a created User is complete before the insert round-trip.
func NewID() uuid.UUID {
	return uuid.New()
}
