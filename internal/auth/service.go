package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"nanochat/internal/identity"
	"nanochat/internal/security/password"
	"nanochat/internal/security/token"
)

// Service orchestrates the credential and session lifecycle: sign-up,
// sign-in, refresh rotation with reuse detection, and logout.
type Service struct {
	log      *slog.Logger
	users    identity.Store
	sessions SessionStore
	hasher   *password.Hasher
	hashPool *password.Pool
	tokens   *TokenManager
	digest   token.Digest
}

// NewService wires the lifecycle controller. digest selects the at-rest form
// of refresh tokens in the registry; nil means plain SHA-256.
func NewService(
	log *slog.Logger,
	users identity.Store,
	sessions SessionStore,
	hasher *password.Hasher,
	hashPool *password.Pool,
	tokens *TokenManager,
	digest token.Digest,
) *Service {
	if digest == nil {
		digest = token.HashSHA256Hex
	}
	return &Service{
		log:      log,
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		hashPool: hashPool,
		tokens:   tokens,
		digest:   digest,
	}
}

// Issued is the result of a successful sign-in or refresh.
type Issued struct {
	User         identity.AuthenticatedUser
	AccessToken  string
	RefreshToken string
}

// SignUp validates input, hashes the password off the request scheduler, and
// creates the account. It does not create a session; a separate sign-in is
// required.
func (s *Service) SignUp(ctx context.Context, username, pw, pwCheck string) (identity.AuthenticatedUser, error) {
	if !ValidUsername(username) || !ValidPassword(pw) || pw != pwCheck {
		return identity.AuthenticatedUser{}, ErrInvalidInput
	}

	hash, err := s.hashPool.Hash(ctx, s.hasher, pw)
	if err != nil {
		return identity.AuthenticatedUser{}, err
	}

	kdfSalt, err := token.NewKeyMaterialHex()
	if err != nil {
		return identity.AuthenticatedUser{}, err
	}

	user, err := s.users.Create(ctx, username, hash, kdfSalt)
	if err != nil {
		return identity.AuthenticatedUser{}, err
	}

	s.log.Info("auth.signup", "user_id", user.ID)
	return user.Public(), nil
}

// SignIn authenticates the credentials and opens a new session.
//
// presentedRefresh is the refresh token from an existing session cookie, or
// "" when absent. A presented token that no longer matches any of the user's
// live sessions is treated as reuse of a rotated token: every outstanding
// session of the user is revoked before the new one is created. Either way
// the caller replaces the cookie with the freshly minted refresh token.
//
// Unknown username and wrong password produce the identical ErrUnauthorized;
// the unknown-username path still burns a hash computation so the two are
// not separable by timing.
func (s *Service) SignIn(ctx context.Context, username, pw, presentedRefresh string) (Issued, error) {
	if !ValidUsername(username) || !ValidPassword(pw) {
		return Issued{}, ErrInvalidInput
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			if derr := s.hashPool.VerifyDummy(ctx, s.hasher, pw); derr != nil {
				return Issued{}, derr
			}
			return Issued{}, ErrUnauthorized
		}
		return Issued{}, err
	}

	ok, err := s.hashPool.Verify(ctx, s.hasher, pw, user.PasswordHash)
	if err != nil {
		return Issued{}, err
	}
	if !ok {
		return Issued{}, ErrUnauthorized
	}

	issued, err := s.mint(user.Public())
	if err != nil {
		return Issued{}, err
	}
	newHash := s.digest(issued.RefreshToken)

	if presentedRefresh == "" {
		if err := s.sessions.Insert(ctx, user.ID, newHash); err != nil {
			return Issued{}, err
		}
		return issued, nil
	}

	revoked, err := s.sessions.InsertDetectingReuse(ctx, user.ID, newHash, s.digest(presentedRefresh))
	if err != nil {
		return Issued{}, err
	}
	if revoked {
		s.log.Warn("auth.signin.reuse_detected", "user_id", user.ID)
	}

	return issued, nil
}

// Refresh redeems a refresh token for a new access/refresh pair.
//
// Redemption is single-use: the presented value is atomically replaced on
// its session row, and any later presentation of it is unconditionally a
// reuse signal that revokes all of the owner's remaining sessions.
func (s *Service) Refresh(ctx context.Context, presentedRefresh string) (Issued, error) {
	user, err := s.tokens.VerifyRefresh(presentedRefresh)
	if err != nil {
		return Issued{}, ErrUnauthorized
	}

	issued, err := s.mint(user)
	if err != nil {
		return Issued{}, err
	}

	rotated, err := s.sessions.Rotate(ctx, user.ID,
		s.digest(presentedRefresh),
		s.digest(issued.RefreshToken),
	)
	if err != nil {
		return Issued{}, err
	}
	if !rotated {
		// The registry already revoked the user's sessions in the same
		// transaction. The client sees a plain unauthorized.
		s.log.Warn("auth.refresh.reuse_detected", "user_id", user.ID)
		return Issued{}, ErrUnauthorized
	}

	return issued, nil
}

// Logout deletes the session matching the presented refresh token. It is
// idempotent: a missing row is a success.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID, presentedRefresh string) error {
	if presentedRefresh == "" {
		return nil
	}
	return s.sessions.Delete(ctx, userID, s.digest(presentedRefresh))
}

func (s *Service) mint(user identity.AuthenticatedUser) (Issued, error) {
	now := time.Now().UTC()

	access, err := s.tokens.IssueAccess(user, now)
	if err != nil {
		return Issued{}, err
	}
	refresh, err := s.tokens.IssueRefresh(user, now)
	if err != nil {
		return Issued{}, err
	}

	return Issued{User: user, AccessToken: access, RefreshToken: refresh}, nil
}
