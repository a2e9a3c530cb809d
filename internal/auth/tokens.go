package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"nanochat/internal/identity"
)

// Claims is the JWT payload for both token kinds: the public user view plus
// the registered time claims.
type Claims struct {
	User identity.AuthenticatedUser `json:"user"`
	jwt.RegisteredClaims
}

// TokenManager mints and verifies the two bearer token kinds.
//
// Access and refresh tokens are signed with distinct HS256 secrets, so a
// leaked access key cannot forge refresh tokens or vice versa. Verification
// accepts HS256 signatures only; any other algorithm in the header is
// rejected outright.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenManager constructs a TokenManager. Both secrets are required and
// must differ.
func NewTokenManager(accessSecret, refreshSecret []byte, accessTTL, refreshTTL time.Duration) (*TokenManager, error) {
	if len(accessSecret) == 0 || len(refreshSecret) == 0 {
		return nil, errors.New("auth: empty token secret")
	}
	if string(accessSecret) == string(refreshSecret) {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("auth: non-positive token TTL")
	}
	return &TokenManager{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}, nil
}

// AccessTTL returns the access token lifetime.
func (m *TokenManager) AccessTTL() time.Duration { return m.accessTTL }

// RefreshTTL returns the refresh token lifetime (also the cookie max-age).
func (m *TokenManager) RefreshTTL() time.Duration { return m.refreshTTL }

// IssueAccess mints a short-lived access token carrying user.
func (m *TokenManager) IssueAccess(user identity.AuthenticatedUser, now time.Time) (string, error) {
	return issue(user, now, m.accessTTL, m.accessSecret)
}

// IssueRefresh mints a long-lived refresh token carrying user.
func (m *TokenManager) IssueRefresh(user identity.AuthenticatedUser, now time.Time) (string, error) {
	return issue(user, now, m.refreshTTL, m.refreshSecret)
}

// VerifyAccess checks signature and expiry against the access key.
func (m *TokenManager) VerifyAccess(token string) (identity.AuthenticatedUser, error) {
	return verify(token, m.accessSecret)
}

// VerifyRefresh checks signature and expiry against the refresh key. It does
// not consult the session registry; that is the caller's job.
func (m *TokenManager) VerifyRefresh(token string) (identity.AuthenticatedUser, error) {
	return verify(token, m.refreshSecret)
}

func issue(user identity.AuthenticatedUser, now time.Time, ttl time.Duration, secret []byte) (string, error) {
	claims := Claims{
		User: user,
		RegisteredClaims: jwt.RegisteredClaims{
			// The jti makes every mint unique. Timestamps alone have second
			// granularity, and the session registry needs distinct token
			// values for rotation and multi-device sign-in.
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func verify(tokenString string, secret []byte) (identity.AuthenticatedUser, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		// Exactly HS256; sibling HMAC variants are rejected along with
		// everything else.
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrTokenInvalid
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return identity.AuthenticatedUser{}, ErrTokenExpired
		}
		return identity.AuthenticatedUser{}, ErrTokenInvalid
	}
	if !token.Valid {
		return identity.AuthenticatedUser{}, ErrTokenInvalid
	}
	return claims.User, nil
}
