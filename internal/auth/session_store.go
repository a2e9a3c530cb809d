package auth

import (
	"context"

	"github.com/google/uuid"
)

// SessionStore is the registry of outstanding refresh tokens: one row per
// (user, token hash) pair, multiple rows per user for multi-device sign-ins.
//
// Plaintext refresh tokens never reach the registry; callers pass SHA-256
// hex digests (security/token.HashSHA256Hex).
//
// The compound operations are transactional per user: InsertDetectingReuse
// and Rotate must be atomic with respect to other session mutations for the
// same user, so two concurrent refreshes cannot both redeem the same token
// and a reuse-triggered revocation cannot interleave with a fresh insert.
type SessionStore interface {
	// Insert records a fresh session row.
	Insert(ctx context.Context, userID uuid.UUID, tokenHash string) error

	// InsertDetectingReuse evaluates a refresh token presented during
	// sign-in. If no live session of this user holds presentedHash, the
	// token was rotated away or revoked: every session owned by the user is
	// deleted (forcing other devices to re-authenticate) before the new row
	// is inserted. Both steps run in one transaction. Reports whether the
	// protective bulk delete fired.
	InsertDetectingReuse(ctx context.Context, userID uuid.UUID, newHash, presentedHash string) (revoked bool, err error)

	// Rotate atomically replaces oldHash with newHash on the matching live
	// row. When no row matches, the presented token is stale. A stale token
	// being replayed is treated as theft: all of the user's sessions are
	// deleted in the same transaction. Reports whether the rotation
	// succeeded.
	Rotate(ctx context.Context, userID uuid.UUID, oldHash, newHash string) (rotated bool, err error)

	// Delete removes the session matching (userID, tokenHash). Absence is
	// not an error.
	Delete(ctx context.Context, userID uuid.UUID, tokenHash string) error

	// DeleteAll removes every session owned by userID.
	DeleteAll(ctx context.Context, userID uuid.UUID) error
}
