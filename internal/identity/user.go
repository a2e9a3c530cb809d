// Package identity holds the user account model and its persistence.
package identity

import (
	"time"

	"github.com/google/uuid"
)

// User is the full account record, including the password hash. It never
// crosses the API boundary.
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string

	// KDFSalt is per-user random key material consumed by the messaging
	// clients for their own key derivation. It is public to its owner and
	// unrelated to authentication.
	KDFSalt string

	CreatedAt time.Time
}

// AuthenticatedUser is the non-secret projection of User embedded in bearer
// tokens and returned to clients.
type AuthenticatedUser struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	KDFSalt   string    `json:"pbkdf2_salt"`
	CreatedAt time.Time `json:"created_at"`
}

// Public returns the client-visible view of u.
func (u User) Public() AuthenticatedUser {
	return AuthenticatedUser{
		ID:        u.ID,
		Username:  u.Username,
		KDFSalt:   u.KDFSalt,
		CreatedAt: u.CreatedAt,
	}
}
